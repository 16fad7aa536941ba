package analyzer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/neuroscreen-fusion-server/internal/domain"
)

// DefaultCollectTimeout bounds a whole collection when none is configured.
const DefaultCollectTimeout = 60 * time.Second

// Collection holds whatever the analyzers returned before the deadline.
type Collection struct {
	Results []domain.ModalityResult
	Errors  map[domain.Modality]error
}

// Notes renders per-modality failures in canonical modality order.
func (c *Collection) Notes() []string {
	if len(c.Errors) == 0 {
		return nil
	}
	modalities := make([]domain.Modality, 0, len(c.Errors))
	for m := range c.Errors {
		modalities = append(modalities, m)
	}
	sort.Slice(modalities, func(i, j int) bool { return modalities[i].Rank() < modalities[j].Rank() })

	notes := make([]string, 0, len(modalities))
	for _, m := range modalities {
		notes = append(notes, fmt.Sprintf("%s: %v", m.DisplayName(), c.Errors[m]))
	}
	return notes
}

// Collector fans a capture set out to the modality analyzers in parallel.
// A slow or failing analyzer never blocks the others.
type Collector struct {
	analyzers map[domain.Modality]domain.ModalityAnalyzer
	timeout   time.Duration
	log       *logrus.Logger
}

// NewCollector creates a collector over the given analyzers. A zero timeout
// uses DefaultCollectTimeout.
func NewCollector(timeout time.Duration, logger *logrus.Logger, analyzers ...domain.ModalityAnalyzer) *Collector {
	if timeout <= 0 {
		timeout = DefaultCollectTimeout
	}
	byModality := make(map[domain.Modality]domain.ModalityAnalyzer, len(analyzers))
	for _, a := range analyzers {
		byModality[a.Modality()] = a
	}
	return &Collector{analyzers: byModality, timeout: timeout, log: logger}
}

// Modalities lists the modalities with a configured analyzer.
func (c *Collector) Modalities() []domain.Modality {
	var out []domain.Modality
	for _, m := range domain.AllModalities() {
		if _, ok := c.analyzers[m]; ok {
			out = append(out, m)
		}
	}
	return out
}

// Collect runs every requested analysis and waits until all have answered
// or the timeout expires. Results come back in canonical modality order.
func (c *Collector) Collect(ctx context.Context, inputs map[domain.Modality]domain.AnalyzerInput) (*Collection, error) {
	if len(inputs) == 0 {
		return nil, domain.NewInvalidInputError("at least one modality capture is required")
	}
	for m := range inputs {
		if !m.IsValid() {
			return nil, domain.NewFieldError(m, "modality", "unknown modality", m)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var (
		mu         sync.Mutex
		collection = &Collection{Errors: make(map[domain.Modality]error)}
	)

	g, gctx := errgroup.WithContext(ctx)
	for modality, input := range inputs {
		analyzer, ok := c.analyzers[modality]
		if !ok {
			mu.Lock()
			collection.Errors[modality] = fmt.Errorf("no analyzer configured")
			mu.Unlock()
			continue
		}

		g.Go(func() error {
			result, err := analyzer.Analyze(gctx, input)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				collection.Errors[modality] = err
				c.log.WithFields(logrus.Fields{
					"modality": modality,
					"error":    err,
				}).Warn("Modality analysis failed")
				return nil
			}
			collection.Results = append(collection.Results, *result)
			return nil
		})
	}
	// Per-modality failures are recorded above, so Wait never fails.
	_ = g.Wait()

	sort.Slice(collection.Results, func(i, j int) bool {
		return collection.Results[i].Modality.Rank() < collection.Results[j].Modality.Rank()
	})

	c.log.WithFields(logrus.Fields{
		"requested": len(inputs),
		"received":  len(collection.Results),
		"failed":    len(collection.Errors),
	}).Info("Modality analysis collected")

	return collection, nil
}
