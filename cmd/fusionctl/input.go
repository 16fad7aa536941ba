package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/neuroscreen-fusion-server/internal/domain"
	"github.com/neuroscreen-fusion-server/internal/fusion"
)

// fusionInput is the file format read by fuse and report. JSON files parse
// as YAML, so one decoder handles both.
type fusionInput struct {
	AssessmentID string                  `yaml:"assessment_id"`
	Patient      domain.PatientMetadata  `yaml:"patient"`
	Results      []domain.ModalityResult `yaml:"results"`
	Config       *fileFusionConfig       `yaml:"config"`
	Strategy     string                  `yaml:"strategy"`
	Notes        []string                `yaml:"notes"`
}

// casesInput is the file format read by evaluate and optimize.
type casesInput struct {
	Config *fileFusionConfig    `yaml:"config"`
	Cases  []domain.LabeledCase `yaml:"cases"`
}

// fileFusionConfig overrides the default fusion configuration. Each field
// applies only when present in the file, so a threshold of 0 is honoured.
type fileFusionConfig struct {
	BaseWeights       map[domain.Modality]float64 `yaml:"base_weights"`
	PositiveThreshold *float64                    `yaml:"positive_threshold"`
}

func readFile(path string, into any) error {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, into); err != nil {
		return domain.NewInvalidInputError(fmt.Sprintf("parse %s: %v", path, err))
	}
	return nil
}

// engineFor builds an engine from an optional file configuration and
// command-line overrides. Flags win over the file.
func engineFor(fileCfg *fileFusionConfig, fileStrategy string, cmd *cobra.Command) (*fusion.Engine, error) {
	cfg := domain.DefaultFusionConfig()
	if fileCfg != nil {
		if fileCfg.BaseWeights != nil {
			cfg.BaseWeights = fileCfg.BaseWeights
		}
		if fileCfg.PositiveThreshold != nil {
			cfg.PositiveThreshold = *fileCfg.PositiveThreshold
		}
	}
	if cmd.Flags().Changed("threshold") {
		threshold, err := cmd.Flags().GetFloat64("threshold")
		if err != nil {
			return nil, err
		}
		cfg.PositiveThreshold = threshold
	}

	name := fileStrategy
	if cmd.Flags().Changed("strategy") {
		name, _ = cmd.Flags().GetString("strategy")
	}
	strategy, err := fusion.ParseStrategy(name)
	if err != nil {
		return nil, err
	}
	return fusion.NewEngine(cfg, strategy)
}

func addEngineFlags(cmd *cobra.Command) {
	cmd.Flags().String("strategy", "", "fusion strategy (default confidence_weighted)")
	cmd.Flags().Float64("threshold", 0.5, "positive threshold override")
}

func writeOutput(cmd *cobra.Command, v any) error {
	format, _ := cmd.Flags().GetString("output")
	out := cmd.OutOrStdout()

	switch format {
	case "json", "":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
