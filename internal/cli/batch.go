package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/malbeclabs/hybridqa/pkg/batch"
)

type BatchCmd struct{}

func NewBatchCmd() *BatchCmd {
	return &BatchCmd{}
}

func (c *BatchCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Answer every question in a JSONL file and write one record per line",
		RunE: func(cmd *cobra.Command, args []string) error {
			inPath, err := cmd.Flags().GetString("batch")
			if err != nil {
				return fmt.Errorf("failed to get batch flag: %w", err)
			}
			outPath, err := cmd.Flags().GetString("out")
			if err != nil {
				return fmt.Errorf("failed to get out flag: %w", err)
			}
			concurrency, err := cmd.Flags().GetInt("concurrency")
			if err != nil {
				return fmt.Errorf("failed to get concurrency flag: %w", err)
			}

			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("concurrency") {
				cfg.Concurrency = concurrency
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			in, err := os.Open(inPath)
			if err != nil {
				return fmt.Errorf("failed to open batch input: %w", err)
			}
			inputs, err := batch.ReadInputs(in)
			_ = in.Close()
			if err != nil {
				return fmt.Errorf("failed to read batch input %s: %w", inPath, err)
			}

			// Fail before any model call when the output cannot be written.
			out, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("failed to create output: %w", err)
			}
			defer out.Close()

			startMetricsServer(log, cfg.MetricsAddr)

			a, err := newApp(ctx, log, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			runner, err := batch.NewRunner(batch.Config{
				Logger:      log,
				Agent:       a.pipeline,
				Concurrency: cfg.Concurrency,
			})
			if err != nil {
				return err
			}
			defer runner.Close()

			log.Info("batch: started", "inputs", len(inputs), "concurrency", cfg.Concurrency)
			records, err := runner.Run(ctx, inputs)
			if err != nil {
				return err
			}
			if err := batch.WriteRecords(out, records); err != nil {
				return fmt.Errorf("failed to write output %s: %w", outPath, err)
			}
			if err := out.Sync(); err != nil {
				return fmt.Errorf("failed to sync output %s: %w", outPath, err)
			}
			log.Info("batch: finished", "records", len(records), "out", outPath)
			return nil
		},
	}

	cmd.Flags().String("batch", "", "path to the JSONL questions file")
	cmd.Flags().String("out", "", "path to write JSONL answer records to")
	cmd.Flags().Int("concurrency", 0, "number of questions answered in parallel (default from config)")
	_ = cmd.MarkFlagRequired("batch")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}
