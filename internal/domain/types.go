// Package domain contains core entities for multimodal neurological screening:
// per-modality predictions produced by external analyzers, the fusion
// configuration, and the fused outcome returned to clinicians.
package domain

import (
	"fmt"
	"strings"
)

// Modality identifies one of the independent assessment channels.
type Modality string

const (
	VOICE   Modality = "VOICE"
	IMAGING Modality = "IMAGING"
	MOTOR   Modality = "MOTOR"
)

// AllModalities lists every modality in canonical order.
// Fused outcomes report modalities in this order regardless of input order.
func AllModalities() []Modality {
	return []Modality{VOICE, IMAGING, MOTOR}
}

// IsValid reports whether m is a known modality.
func (m Modality) IsValid() bool {
	switch m {
	case VOICE, IMAGING, MOTOR:
		return true
	default:
		return false
	}
}

// String returns the string representation of the modality.
func (m Modality) String() string {
	return string(m)
}

// DisplayName returns the human-readable channel name used in reports.
func (m Modality) DisplayName() string {
	switch m {
	case VOICE:
		return "Voice Analysis"
	case IMAGING:
		return "DaTscan Imaging"
	case MOTOR:
		return "Spiral Drawing"
	default:
		return "Unknown"
	}
}

// Rank returns the canonical ordering position of the modality.
func (m Modality) Rank() int {
	switch m {
	case VOICE:
		return 0
	case IMAGING:
		return 1
	case MOTOR:
		return 2
	default:
		return 3
	}
}

// ParseModality converts external identifiers into a Modality.
// Analyzer services and the web client use "datscan" and "spiral" for
// imaging and motor, so those aliases are accepted.
func ParseModality(s string) (Modality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "voice", "audio", "acoustic":
		return VOICE, nil
	case "imaging", "datscan", "dat_scan", "scan":
		return IMAGING, nil
	case "motor", "spiral", "drawing":
		return MOTOR, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidModality, s)
	}
}

// UnmarshalText accepts aliases so JSON, YAML and viper keys decode uniformly.
func (m *Modality) UnmarshalText(text []byte) error {
	parsed, err := ParseModality(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Prediction is the binary screening label.
type Prediction string

const (
	NEGATIVE Prediction = "NEGATIVE"
	POSITIVE Prediction = "POSITIVE"
)

// IsValid reports whether p is a known prediction label.
func (p Prediction) IsValid() bool {
	return p == NEGATIVE || p == POSITIVE
}

// String returns the string representation of the prediction.
func (p Prediction) String() string {
	return string(p)
}

// Label returns the clinical label shown in reports.
func (p Prediction) Label() string {
	if p == POSITIVE {
		return "Parkinson's Disease Indicators Present"
	}
	return "Healthy"
}

// ParsePrediction converts external labels into a Prediction.
// Numeric labels follow the analyzer convention: 1 is positive, 0 negative.
func ParsePrediction(s string) (Prediction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive", "1", "pd", "parkinsons":
		return POSITIVE, nil
	case "negative", "0", "healthy":
		return NEGATIVE, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPrediction, s)
	}
}

// UnmarshalText accepts the aliases handled by ParsePrediction.
func (p *Prediction) UnmarshalText(text []byte) error {
	parsed, err := ParsePrediction(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// RiskBand is the banding of the fused positive probability that selects the
// clinical narrative.
type RiskBand string

const (
	RiskLow         RiskBand = "LOW"
	RiskLowModerate RiskBand = "LOW_MODERATE"
	RiskModerate    RiskBand = "MODERATE"
	RiskHigh        RiskBand = "HIGH"
)

// RiskBandFor bands a fused positive probability.
//
//	p < 0.3        LOW
//	0.3 <= p <= 0.5 LOW_MODERATE
//	0.5 < p <= 0.7 MODERATE
//	p > 0.7        HIGH
func RiskBandFor(p float64) RiskBand {
	switch {
	case p < 0.3:
		return RiskLow
	case p <= 0.5:
		return RiskLowModerate
	case p <= 0.7:
		return RiskModerate
	default:
		return RiskHigh
	}
}

// String returns the string representation of the band.
func (b RiskBand) String() string {
	return string(b)
}

// ContributingFeature describes one analyzer feature that drove a modality
// prediction. Fusion never reads it; it is carried for display.
type ContributingFeature struct {
	Name            string  `json:"name" yaml:"name"`
	ImportanceScore float64 `json:"importance_score" yaml:"importance_score"`
	Description     string  `json:"description,omitempty" yaml:"description,omitempty"`
	Category        string  `json:"category,omitempty" yaml:"category,omitempty"`
}

// ModalityResult is the output of one external modality analyzer.
// Absence of a modality is expressed by leaving it out of the result set.
type ModalityResult struct {
	Modality              Modality              `json:"modality" yaml:"modality"`
	Prediction            Prediction            `json:"prediction" yaml:"prediction"`
	Confidence            float64               `json:"confidence" yaml:"confidence"`
	ProbabilityPositive   float64               `json:"probability_positive" yaml:"probability_positive"`
	ProbabilityNegative   float64               `json:"probability_negative" yaml:"probability_negative"`
	ProcessingTimeSeconds float64               `json:"processing_time_seconds" yaml:"processing_time_seconds"`
	ContributingFeatures  []ContributingFeature `json:"contributing_features,omitempty" yaml:"contributing_features,omitempty"`
}

// LogFields returns structured logging fields for audit trails.
func (r ModalityResult) LogFields() map[string]any {
	return map[string]any{
		"modality":             r.Modality.String(),
		"prediction":           r.Prediction.String(),
		"confidence":           r.Confidence,
		"probability_positive": r.ProbabilityPositive,
	}
}

// PatientMetadata is the optional demographic context collected before
// screening. It is reproduced in reports and never used by fusion.
type PatientMetadata struct {
	PatientID string `json:"patient_id,omitempty" yaml:"patient_id,omitempty"`
	Name      string `json:"name,omitempty" yaml:"name,omitempty"`
	Age       int    `json:"age,omitempty" yaml:"age,omitempty"`
	Sex       string `json:"sex,omitempty" yaml:"sex,omitempty"`
	Notes     string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// IsZero reports whether no metadata was supplied.
func (p PatientMetadata) IsZero() bool {
	return p == PatientMetadata{}
}
