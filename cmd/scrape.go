package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/listing-cli/internal/export"
	"github.com/sells-group/listing-cli/internal/model"
)

var (
	scrapeQuery  string
	scrapeCity   string
	scrapeOutput string
	scrapeXLSX   string
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run one aggregation and write the results file",
	Example: `  listing-cli scrape --query "restaurants in Vernon"
  listing-cli scrape --query "plumbers" --city Kelowna --xlsx plumbers.xlsx`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		text := scrapeQuery
		if strings.TrimSpace(text) == "" {
			var err error
			text, err = promptQuery(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
		}

		outPath := scrapeOutput
		if outPath == "" {
			outPath = cfg.Output.Path
		}
		cfg.Output.Path = outPath

		env, err := initPipeline("scrape")
		if err != nil {
			return err
		}

		q := model.NewQuery(text, scrapeCity, cfg.Pipeline.Country, cfg.Pipeline.MaxResults)
		return runScrape(ctx, env, q, outPath, scrapeXLSX, cmd.OutOrStdout())
	},
}

// promptQuery reads a query from r when none was given on the command line.
func promptQuery(r io.Reader, w io.Writer) (string, error) {
	fmt.Fprint(w, "Enter search query (e.g. restaurants in Vernon): ")
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", eris.Wrap(err, "scrape: read query")
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", eris.New("scrape: query is required")
	}
	return line, nil
}

// runScrape runs the pipeline once and writes the artifacts.
func runScrape(ctx context.Context, env *pipelineEnv, q model.Query, outPath, xlsxPath string, out io.Writer) error {
	res, err := env.Pipeline.Run(ctx, q)
	if err != nil {
		return eris.Wrap(err, "scrape: run")
	}

	if err := export.WriteJSON(outPath, res.Results); err != nil {
		return err
	}
	if xlsxPath != "" {
		if err := export.WriteXLSX(xlsxPath, res.Results); err != nil {
			return err
		}
	}

	zap.L().Info("scrape complete",
		zap.String("run_id", res.RunID),
		zap.Int("count", res.Count),
		zap.Int64("duration_ms", res.Duration),
		zap.String("output", outPath),
		zap.Any("host_breakers", env.Navigator.HostStates()),
	)

	fmt.Fprintf(out, "%d businesses for %q (city: %s) written to %s\n", res.Count, q.Text, q.City, outPath)
	for _, s := range res.Sources {
		status := "ok"
		if s.Error != "" {
			status = "error: " + s.Error
		}
		fmt.Fprintf(out, "  %-18s %3d  %s\n", s.Source, s.Count, status)
	}
	return nil
}

func init() {
	scrapeCmd.Flags().StringVarP(&scrapeQuery, "query", "q", "", "search query, e.g. \"restaurants in Vernon\" (prompted when empty)")
	scrapeCmd.Flags().StringVar(&scrapeCity, "city", "", "city override (default: derived from the query)")
	scrapeCmd.Flags().StringVarP(&scrapeOutput, "output", "o", "", "JSON output path (default from config)")
	scrapeCmd.Flags().StringVar(&scrapeXLSX, "xlsx", "", "also write an xlsx workbook to this path")
	rootCmd.AddCommand(scrapeCmd)
}
