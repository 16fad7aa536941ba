package main

import (
	"github.com/spf13/cobra"

	"github.com/neuroscreen-fusion-server/internal/domain"
	"github.com/neuroscreen-fusion-server/internal/fusion"
)

func newEvaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate FILE",
		Short: "Score a fusion configuration against the labeled cases in FILE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readCases(args[0])
			if err != nil {
				return err
			}
			engine, err := engineFor(in.Config, "", cmd)
			if err != nil {
				return err
			}
			metrics, err := fusion.Evaluate(engine, in.Cases)
			if err != nil {
				return err
			}
			return writeOutput(cmd, metrics)
		},
	}
	addEngineFlags(cmd)
	return cmd
}

func newOptimizeCmd() *cobra.Command {
	var (
		trials int
		seed   uint64
	)

	cmd := &cobra.Command{
		Use:   "optimize FILE",
		Short: "Search base weights that best classify the labeled cases in FILE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readCases(args[0])
			if err != nil {
				return err
			}
			engine, err := engineFor(in.Config, "", cmd)
			if err != nil {
				return err
			}
			result, err := fusion.OptimizeWeights(engine.Config(), in.Cases, fusion.OptimizeOptions{
				Trials:   trials,
				Seed:     seed,
				Strategy: engine.Strategy(),
			})
			if err != nil {
				return err
			}
			return writeOutput(cmd, result)
		},
	}
	addEngineFlags(cmd)
	cmd.Flags().IntVar(&trials, "trials", fusion.DefaultTrials, "random configurations to try")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "random seed")
	return cmd
}

func readCases(path string) (*casesInput, error) {
	var in casesInput
	if err := readFile(path, &in); err != nil {
		return nil, err
	}
	if len(in.Cases) == 0 {
		return nil, domain.NewInvalidInputError("no labeled cases in " + path)
	}
	return &in, nil
}
