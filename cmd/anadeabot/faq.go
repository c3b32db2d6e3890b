package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vintoniuk/anadeabot/internal/faq"
)

var faqCmd = &cobra.Command{
	Use:   "faq",
	Short: "Manage the FAQ index",
}

var faqSeedCmd = &cobra.Command{
	Use:   "seed <file.yaml|file.csv>",
	Short: "Embed question/answer pairs and add them to the index",
	Args:  cobra.ExactArgs(1),
	RunE:  runFAQSeed,
}

func init() {
	faqCmd.AddCommand(faqSeedCmd)
	rootCmd.AddCommand(faqCmd)
	faqSeedCmd.Flags().Int("batch", faq.DefaultBatchSize, "Questions embedded per request")
}

func runFAQSeed(cmd *cobra.Command, args []string) error {
	s, logger, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if s.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	batch, _ := cmd.Flags().GetInt("batch")

	entries, err := faq.LoadFile(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	index, err := faq.Open(ctx, s.Postgres.DSN, newOpenAI(s.OpenAI),
		faq.WithDimensions(s.OpenAI.Dimensions),
		faq.WithBatchSize(batch),
	)
	if err != nil {
		return err
	}
	defer index.Close()

	if err := index.Add(ctx, entries); err != nil {
		return err
	}
	total, err := index.Count(ctx)
	if err != nil {
		return err
	}
	logger.Info("faq seeded", "added", len(entries), "total", total)
	fmt.Fprintf(cmd.OutOrStdout(), "added %d entries, %d in index\n", len(entries), total)
	return nil
}
