// Command lakemodel cleans one lake's CSV series, prints its statistics and
// scores both water-balance models against it, without a database.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"lake-balance/internal/config"
	"lake-balance/internal/repository"
	"lake-balance/internal/services"
	"lake-balance/pkg/logging"
	"lake-balance/pkg/metrics"
)

type options struct {
	file            string
	lakeID          string
	evaporationRate float64
	model           config.ModelConfig
}

func main() {
	file := flag.String("file", "", "CSV file with the lake's monthly observations")
	lakeID := flag.String("lake", "", "Lake id (default: file name without extension)")
	rate := flag.Float64("evaporation-rate", -1, "Simple model evaporation rate (default: configured rate)")
	verbose := flag.Bool("verbose", false, "Write service logs to stdout")
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "Usage: lakemodel -file <lake.csv> [-evaporation-rate 55]")
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewNopLogger()
	if *verbose {
		logger = logging.NewStructuredLogger("lakemodel", "1.0.0", logging.ParseLevel(cfg.Logging.Level))
		defer logger.Sync()
	}

	opts := options{
		file:            *file,
		lakeID:          *lakeID,
		evaporationRate: *rate,
		model:           cfg.Model,
	}
	if opts.evaporationRate < 0 {
		opts.evaporationRate = cfg.Model.EvaporationRate
	}

	if err := run(context.Background(), opts, logger, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "lakemodel: %v\n", err)
		os.Exit(1)
	}
}

// run loads the file into an in-memory repository and reports on it.
func run(ctx context.Context, opts options, logger *logging.StructuredLogger, out io.Writer) error {
	lakeID := opts.lakeID
	if lakeID == "" {
		lakeID = strings.TrimSuffix(filepath.Base(opts.file), filepath.Ext(opts.file))
	}

	collector := metrics.NewCollectorWithRegistry("lakemodel", prometheus.NewRegistry())
	repo := repository.NewMemoryRepository(nil)

	ingestion := services.NewIngestionService(repo, logger, collector)
	stats := services.NewStatisticsService(repo, logger, collector)
	modelService := services.NewModelService(repo, opts.model, nil, logger, collector)

	f, err := os.Open(opts.file)
	if err != nil {
		return err
	}
	defer f.Close()

	loaded, err := ingestion.IngestReader(ctx, lakeID, f)
	if err != nil {
		return err
	}

	summary, err := stats.LakeSummary(ctx, lakeID)
	if err != nil {
		return err
	}

	cmp, err := modelService.Compare(ctx, lakeID, opts.evaporationRate)
	if err != nil {
		return err
	}

	rule := strings.Repeat("═", 64)
	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "LAKE %s\n", strings.ToUpper(lakeID))
	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "Months:                 %d\n", summary.Months)
	fmt.Fprintf(out, "Unparsable cells:       %d\n", loaded.CellErrors)
	fmt.Fprintf(out, "Values repaired:        %d\n", summary.Imputation.Total())
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Largest area:           %.2f\n", summary.LargestArea)
	fmt.Fprintf(out, "Average volume:         %.2f\n", summary.AverageVolume)
	fmt.Fprintf(out, "Most average rainfall:  %s\n", summary.MostAverageRainfall)
	fmt.Fprintf(out, "Hottest month:          %s\n", summary.HottestMonth)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Simple model MAE:       %.2f (evaporation rate %g, %s area)\n",
		cmp.Simple.Run.MeanAbsoluteError, opts.evaporationRate, opts.model.AreaRelation)
	fmt.Fprintf(out, "Complex model MAE:      %.2f\n", cmp.Complex.Run.MeanAbsoluteError)
	fmt.Fprintf(out, "Better model:           %s\n", cmp.Better)
	fmt.Fprintln(out, rule)

	return nil
}
