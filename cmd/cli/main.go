package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dvloznov/statement-partitions/internal/app"
	"github.com/dvloznov/statement-partitions/internal/config"
	"github.com/dvloznov/statement-partitions/internal/domain"
	"github.com/dvloznov/statement-partitions/internal/logger"
	"github.com/dvloznov/statement-partitions/internal/pipeline"
	"github.com/dvloznov/statement-partitions/internal/statement"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.NewFromConfig(cfg.LogLevel, cfg.LogFormat)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "ingest":
		runIngest(cfg, log)
	case "upload":
		runUpload(cfg, log)
	case "inspect":
		runInspect(cfg, log)
	case "preview":
		runPreview(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Statement Partitions CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  ingest    Ingest a statement workbook from a URL or a local file")
	fmt.Println("  upload    Upload a local workbook to GCS")
	fmt.Println("  inspect   Show the contents of one month partition")
	fmt.Println("  preview   Parse a local workbook and print its records without writing")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func openServices(ctx context.Context, cfg *config.Config, log zerolog.Logger, bucket string) *app.Services {
	if bucket != "" {
		cfg.GCSBucket = bucket
	}
	svc, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	return svc
}

func runIngest(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	source := fs.String("source", "", "Workbook URL (gs://, http:// or https://)")
	file := fs.String("file", "", "Path to a local workbook")
	bucket := fs.String("bucket", "", "GCS bucket holding month partitions (defaults to GCS_BUCKET)")
	recent := fs.Int("recent-months", 3, "Number of months counted as hot")
	fs.Parse(os.Args[2:])

	if (*source == "") == (*file == "") {
		log.Fatal().Msg("Usage: cli ingest (-source URL | -file PATH) [-recent-months N]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	svc := openServices(ctx, cfg, log, *bucket)
	defer svc.Close()

	var (
		res *pipeline.IngestResult
		err error
	)
	if *source != "" {
		log.Info().Str("source_url", *source).Msg("Starting ingestion")
		res, err = svc.Ingester.IngestFromSource(ctx, *source, *recent)
	} else {
		log.Info().Str("file", *file).Msg("Starting ingestion")
		var wb *statement.Workbook
		wb, err = readWorkbook(*file)
		if err == nil {
			res, err = svc.Ingester.IngestWorkbook(ctx, wb, *recent)
		}
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}

	fmt.Printf("Ingested %d records (%d hot, %d cold).\n", res.Total, res.HotSaved, res.ColdSaved)
}

func runUpload(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucket := fs.String("bucket", "", "GCS bucket name (defaults to GCS_BUCKET)")
	objectName := fs.String("object", "", "GCS object name (defaults to filename)")
	filePath := fs.String("file", "", "Path to local workbook")
	fs.Parse(os.Args[2:])

	if *filePath == "" {
		log.Fatal().Msg("Usage: cli upload [-bucket NAME] -file PATH")
	}
	if *objectName == "" {
		*objectName = filepath.Base(*filePath)
	}

	ctx := logger.WithContext(context.Background(), log)
	svc := openServices(ctx, cfg, log, *bucket)
	defer svc.Close()

	log.Info().
		Str("bucket", svc.Store.Bucket()).
		Str("object", *objectName).
		Str("file", *filePath).
		Msg("Uploading file to GCS")

	if err := svc.Store.UploadFile(ctx, *objectName, *filePath, contentTypeOf(*filePath)); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to gs://%s/%s\n", *filePath, svc.Store.Bucket(), *objectName)
}

func runInspect(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	month := fs.String("month", "", "Month key to inspect (YYYY-MM)")
	bucket := fs.String("bucket", "", "GCS bucket name (defaults to GCS_BUCKET)")
	limit := fs.Int("limit", 20, "Maximum number of records to print")
	fs.Parse(os.Args[2:])

	if !domain.IsMonthKey(*month) {
		log.Fatal().Str("month", *month).Msg("Error: -month must be YYYY-MM")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	svc := openServices(ctx, cfg, log, *bucket)
	defer svc.Close()

	p, err := svc.Writer.Load(ctx, *month)
	if err != nil {
		log.Fatal().Err(err).Str("path", svc.Writer.Path(*month)).Msg("Failed to load partition")
	}

	records := sortedRecords(p.Items)
	fmt.Println("\n=== Partition ===")
	fmt.Printf("Path:    gs://%s/%s\n", svc.Store.Bucket(), svc.Writer.Path(*month))
	fmt.Printf("Updated: %s\n", time.UnixMilli(p.Meta.UpdatedAt).In(cfg.Location()).Format(time.RFC3339))
	fmt.Printf("Items:   %d\n", len(records))
	printRecords(records, *limit)
}

func runPreview(log zerolog.Logger) {
	fs := flag.NewFlagSet("preview", flag.ExitOnError)
	file := fs.String("file", "", "Path to a local workbook")
	asJSON := fs.Bool("json", false, "Print records as JSON")
	fs.Parse(os.Args[2:])

	if *file == "" {
		log.Fatal().Msg("Usage: cli preview -file PATH [-json]")
	}

	wb, err := readWorkbook(*file)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open workbook")
	}
	layout, err := statement.NewKeywordDetector().Detect(wb.Grid)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to detect layout")
	}

	months := pipeline.GroupByMonth(statement.NormalizeRecords(wb.Grid, layout, wb.DateOptions()))
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(months); err != nil {
			log.Fatal().Err(err).Msg("Failed to encode records")
		}
		return
	}

	fmt.Printf("Format:  %s (sheet %q)\n", wb.Format, wb.Sheet)
	fmt.Printf("Account: %s / %s\n", layout.Meta.AccountNo, layout.Meta.Holder)
	for _, line := range monthSummary(months) {
		fmt.Println(line)
	}
}

func readWorkbook(path string) (*statement.Workbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("readWorkbook: reading %s: %w", path, err)
	}
	return statement.OpenWorkbook(data)
}

func contentTypeOf(path string) string {
	switch filepath.Ext(path) {
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".xls":
		return "application/vnd.ms-excel"
	case ".csv":
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}

func sortedRecords(items map[string]domain.Record) []domain.Record {
	out := make([]domain.Record, 0, len(items))
	for _, r := range items {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Datetime != out[j].Datetime {
			return out[i].Datetime < out[j].Datetime
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// monthSummary renders one line per month in ascending order.
func monthSummary(months map[string]map[string]domain.Record) []string {
	keys := make([]string, 0, len(months))
	for k := range months {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		var in, out float64
		for _, r := range months[k] {
			in += r.InAmt
			out += r.OutAmt
		}
		lines = append(lines, fmt.Sprintf("%s  %5d records  in %.2f  out %.2f", k, len(months[k]), in, out))
	}
	return lines
}

func printRecords(records []domain.Record, limit int) {
	for i, r := range records {
		if limit > 0 && i >= limit {
			fmt.Printf("\n... %d more\n", len(records)-limit)
			break
		}
		fmt.Printf("\n%d. %s  %s\n", i+1, r.Datetime, r.Record)
		fmt.Printf("   ID:      %s\n", r.ID)
		fmt.Printf("   In/Out:  %.2f / %.2f\n", r.InAmt, r.OutAmt)
		fmt.Printf("   Balance: %.2f\n", r.Balance)
		if r.Memo != "" {
			fmt.Printf("   Memo:    %s\n", r.Memo)
		}
	}
	fmt.Println()
}
