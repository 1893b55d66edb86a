package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/malbeclabs/hybridqa/pkg/agent"
)

type AskCmd struct{}

func NewAskCmd() *AskCmd {
	return &AskCmd{}
}

func (c *AskCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatHint, err := cmd.Flags().GetString("format-hint")
			if err != nil {
				return fmt.Errorf("failed to get format-hint flag: %w", err)
			}
			id, err := cmd.Flags().GetString("id")
			if err != nil {
				return fmt.Errorf("failed to get id flag: %w", err)
			}
			asJSON, err := cmd.Flags().GetBool("json")
			if err != nil {
				return fmt.Errorf("failed to get json flag: %w", err)
			}

			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			startMetricsServer(log, cfg.MetricsAddr)

			a, err := newApp(ctx, log, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if id == "" {
				id = uuid.NewString()
			}
			rec := a.pipeline.Run(ctx, agent.Request{
				ID:           id,
				Question:     strings.Join(args, " "),
				ExpectedType: agent.ParseFormatHint(formatHint),
				FormatHint:   formatHint,
			})

			if asJSON {
				return writeRecordJSON(os.Stdout, rec)
			}
			writeRecordTable(os.Stdout, rec)
			return nil
		},
	}

	cmd.Flags().String("format-hint", "str", "expected answer type (int, float, str, list[...], dict)")
	cmd.Flags().String("id", "", "request id (random when empty)")
	cmd.Flags().Bool("json", false, "print the output record as JSON")

	return cmd
}

func writeRecordJSON(w io.Writer, rec agent.Record) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	return nil
}

func writeRecordTable(w io.Writer, rec agent.Record) {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Field", "Value"})
	table.Append([]string{"id", rec.ID})
	table.Append([]string{"answer", formatAnswer(rec.FinalAnswer)})
	table.Append([]string{"sql", rec.SQL})
	table.Append([]string{"confidence", strconv.FormatFloat(rec.Confidence, 'f', 2, 64)})
	table.Append([]string{"explanation", rec.Explanation})
	table.Append([]string{"citations", strings.Join(rec.Citations, ", ")})
	table.Render()
}

// formatAnswer renders structured answers as compact JSON and scalars as-is.
func formatAnswer(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	default:
		return fmt.Sprint(v)
	}
}
