package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vintoniuk/anadeabot/internal/agent"
	"github.com/vintoniuk/anadeabot/internal/evaluation"
	"github.com/vintoniuk/anadeabot/pkg/convgraph"
	"github.com/vintoniuk/anadeabot/pkg/convgraph/capability"
)

var evalCmd = &cobra.Command{
	Use:   "eval <dataset.yaml>",
	Short: "Replay a dataset and report design extraction accuracy",
	Args:  cobra.ExactArgs(1),
	RunE:  runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)
	evalCmd.Flags().Int("concurrency", 4, "Conversations replayed in parallel")
	evalCmd.Flags().Float64("min-accuracy", 0, "Fail when accuracy falls below this value")
}

func runEval(cmd *cobra.Command, args []string) error {
	s, logger, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	minAccuracy, _ := cmd.Flags().GetFloat64("min-accuracy")

	ds, err := evaluation.LoadDataset(args[0])
	if err != nil {
		return err
	}
	prompts, err := agent.DefaultPrompts().Override(s.Prompts)
	if err != nil {
		return err
	}

	client := newOpenAI(s.OpenAI)
	llmOpts := []capability.LLMOption{
		capability.WithLLMModel(s.OpenAI.Model),
		capability.WithLLMTemperature(s.OpenAI.Temperature),
		capability.WithLLMLogger(logger),
	}
	caps := capability.Set{
		Classifier: capability.NewLLMClassifier(client, llmOpts...),
		Generator:  capability.NewLLMGenerator(client, llmOpts...),
	}

	runner := evaluation.NewRunner(caps,
		evaluation.WithPrompts(prompts),
		evaluation.WithConcurrency(concurrency),
		evaluation.WithLogger(logger),
		evaluation.WithRunOptions(
			convgraph.WithStepBudget(s.Agent.StepBudget),
			convgraph.WithLogger(logger),
		),
	)
	report, err := runner.Run(cmd.Context(), ds)
	if err != nil {
		return err
	}
	if err := report.Write(cmd.OutOrStdout()); err != nil {
		return err
	}
	if report.Accuracy < minAccuracy {
		return fmt.Errorf("accuracy %.3f below %.3f", report.Accuracy, minAccuracy)
	}
	return nil
}
