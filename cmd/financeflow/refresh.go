package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"FinanceFlow/internal/app"
	"FinanceFlow/internal/config"
	"FinanceFlow/internal/domain"
	"FinanceFlow/internal/logging"
	"FinanceFlow/internal/usecase"
)

func refreshCmd(configPath *string) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Run the pipeline once and print the annotated items",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)

			ctx := cmd.Context()
			application, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = application.Close(closeCtx)
			}()

			result, err := application.RefreshOnce(ctx)
			if err != nil {
				return fmt.Errorf("refresh: %w", err)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), result.Items)
			}
			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print items as JSON")
	return cmd
}

func writeJSON(w io.Writer, items []domain.Item) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(items)
}

func printResult(w io.Writer, result usecase.RunResult) {
	rows := make([][]string, 0, len(result.Items))
	for _, item := range result.Items {
		a := item.Annotation
		rows = append(rows, []string{
			item.PublishedAt.Format("2006-01-02 15:04"),
			item.Source,
			truncate(item.Title, 60),
			string(a.Sentiment),
			strconv.Itoa(a.Impact),
			strings.Join(a.ValidSymbols(), " "),
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"Published", "Source", "Title", "Sentiment", "Impact", "Symbols"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
	fmt.Fprintf(w, "run %s: %d fetched, %d merged, %d cached, %d enriched, %d dropped in %s\n",
		result.RunID, result.Fetched, result.Merged, result.CacheHits, result.Enriched, result.Dropped,
		result.Duration.Round(time.Millisecond))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
