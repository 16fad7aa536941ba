package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/neuroscreen-fusion-server/internal/domain"
	"github.com/neuroscreen-fusion-server/internal/report"
)

func newFuseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fuse FILE",
		Short: "Fuse the modality results in FILE (YAML or JSON, - for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outcome, _, err := fuseFile(cmd, args[0])
			if err != nil {
				return err
			}
			return writeOutput(cmd, outcome.View())
		},
	}
	addEngineFlags(cmd)
	return cmd
}

func newReportCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "report FILE",
		Short: "Fuse FILE and render the plain-text screening report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outcome, in, err := fuseFile(cmd, args[0])
			if err != nil {
				return err
			}

			now := time.Now()
			text, err := report.Render(report.Input{
				AssessmentID: in.AssessmentID,
				Patient:      in.Patient,
				Results:      in.Results,
				Outcome:      outcome.View(),
				Notes:        in.Notes,
				GeneratedAt:  now,
			})
			if err != nil {
				return err
			}

			switch outPath {
			case "":
				_, err = fmt.Fprint(cmd.OutOrStdout(), text)
				return err
			case ".":
				outPath = report.Filename(in.AssessmentID, now)
			}
			if err := os.WriteFile(outPath, []byte(text), 0o644); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", outPath)
			return nil
		},
	}
	addEngineFlags(cmd)
	cmd.Flags().StringVar(&outPath, "out", "", "write the report to this file; \".\" picks the standard file name")
	return cmd
}

func fuseFile(cmd *cobra.Command, path string) (*domain.FusionOutcome, *fusionInput, error) {
	var in fusionInput
	if err := readFile(path, &in); err != nil {
		return nil, nil, err
	}
	engine, err := engineFor(in.Config, in.Strategy, cmd)
	if err != nil {
		return nil, nil, err
	}
	outcome, err := engine.Fuse(in.Results)
	if err != nil {
		return nil, nil, err
	}
	return outcome, &in, nil
}
