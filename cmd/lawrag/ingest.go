package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/lawrag/pkg/ingest"
	"github.com/xhad/lawrag/pkg/source"
)

var datasetJSONL string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load precedents into the vector store",
}

var ingestFileCmd = &cobra.Command{
	Use:   "file [path]",
	Short: "Ingest a URI-keyed JSON export; any error aborts the run",
	Long: `Reads a JSON object mapping subject URIs to their properties, as in the
AI Hub legal knowledge base export. Without a path argument the file named
by the FILE1 environment variable (or ingest.source_path) is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngestFile,
}

var ingestDatasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Ingest the precedents dataset page by page, skipping failed pages",
	Args:  cobra.NoArgs,
	RunE:  runIngestDataset,
}

func init() {
	ingestDatasetCmd.Flags().StringVar(&datasetJSONL, "jsonl", "", "read a local JSON-lines export instead of the Hugging Face datasets server")
	ingestCmd.AddCommand(ingestFileCmd, ingestDatasetCmd)
	rootCmd.AddCommand(ingestCmd)
}

func runIngestFile(cmd *cobra.Command, args []string) error {
	path := cfg.SourcePath()
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		return fmt.Errorf("no source file: pass a path or set %s", cfg.Ingest.SourceEnv)
	}

	a, err := openApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	spin := startSpinner(cmd.ErrOrStderr(), " Ingesting "+path)
	f := &ingest.FileIngestor{Pipeline: a.pipeline()}
	report, err := f.Run(cmd.Context(), path)
	spin.Stop()
	if err != nil {
		return err
	}

	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✓ %d records, %d documents, %d chunks stored in %s\n",
		report.Records, report.Documents, report.Chunks, a.coll.Name())
	return nil
}

func runIngestDataset(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var pager source.Pager
	if datasetJSONL != "" {
		pager = source.NewJSONLPager(datasetJSONL)
	} else {
		pager = source.NewHubPager(source.HubConfig{
			Endpoint:       cfg.Dataset.Endpoint,
			Dataset:        cfg.Dataset.Name,
			Config:         cfg.Dataset.Config,
			Split:          cfg.Dataset.Split,
			RowsPerRequest: cfg.Dataset.RowsPerRequest,
			RateLimit:      cfg.Dataset.RateLimit,
			Token:          cfg.Dataset.Token,
		})
	}

	d := &ingest.DatasetIngestor{Pipeline: a.pipeline(), PageSize: cfg.Ingest.PageSize}

	bar := getProgressBar(cmd.ErrOrStderr(), -1, " Ingesting pages")
	d.Progress = func(done, total int) {
		bar.ChangeMax(total)
		_ = bar.Set(done)
	}

	report, err := d.Run(cmd.Context(), pager)
	_ = bar.Finish()
	if err != nil {
		return err
	}

	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✓ %d pages, %d records, %d chunks stored in %s\n",
		report.Pages, report.Records, report.Chunks, a.coll.Name())
	if len(report.SkippedPages) > 0 {
		color.New(color.FgYellow).Fprintf(cmd.OutOrStdout(), "! skipped pages: %v\n", report.SkippedPages)
	}
	return nil
}
