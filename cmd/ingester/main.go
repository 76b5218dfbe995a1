package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"lake-balance/internal/config"
	"lake-balance/internal/repository"
	"lake-balance/internal/services"
	"lake-balance/pkg/database"
	"lake-balance/pkg/logging"
	"lake-balance/pkg/metrics"
)

func main() {
	dataDir := flag.String("data-dir", "./lake_data", "Directory containing one <lake_id>.csv file per lake")
	batchSize := flag.Int("batch-size", repository.DefaultBatchSize,
		fmt.Sprintf("Number of observation rows per INSERT statement (1-%d)", repository.MaxBatchSize))
	runModels := flag.Bool("run-models", false, "Run and record both models for every stored lake after ingestion")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if err := validateBatchSize(*batchSize); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid batch size: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("lake-ingester", "1.0.0", logging.ParseLevel(cfg.Logging.Level))
	defer logger.Sync()

	ctx := context.Background()
	logger.Info(ctx, "[INGESTER_START] Starting lake data ingestion", logging.Fields{
		"version":    "1.0.0",
		"data_dir":   *dataDir,
		"batch_size": *batchSize,
		"run_models": *runModels,
	})

	metricsCollector := metrics.NewCollector("lake_ingester")

	db, err := database.NewPostgresDB(cfg.Database.Postgres(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	lakeRepo := repository.NewLakeRepository(db, logger, metricsCollector, *batchSize)

	ingestionService := services.NewIngestionService(lakeRepo, logger, metricsCollector)
	modelService := services.NewModelService(lakeRepo, cfg.Model, nil, logger, metricsCollector)

	result, err := ingestionService.IngestDirectory(ctx, *dataDir)
	if err != nil {
		logger.Fatal(ctx, "[INGESTION_ERROR] Ingestion failed", logging.Fields{
			"data_dir": *dataDir,
		}, err)
	}

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("INGESTION COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Total Files:        %d\n", result.TotalFiles)
	fmt.Printf("Lakes Stored:       %d\n", result.LakesStored)
	fmt.Printf("Total Records:      %d\n", result.TotalRecords)
	fmt.Printf("Unparsable Cells:   %d\n", result.CellErrors)
	fmt.Printf("Duration:           %v\n", result.Duration)

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for i, errMsg := range result.Errors {
			if i < 10 {
				fmt.Printf("  - %s\n", errMsg)
			}
		}
		if len(result.Errors) > 10 {
			fmt.Printf("  ... and %d more errors\n", len(result.Errors)-10)
		}
	}

	if *runModels {
		fmt.Println("\n" + strings.Repeat("=", 80))
		fmt.Println("MODEL RUNS")
		fmt.Println(strings.Repeat("=", 80))

		if err := compareAll(ctx, lakeRepo, modelService); err != nil {
			logger.Error(ctx, "[MODEL_ERROR] Model runs failed", logging.Fields{}, err)
			fmt.Printf("Model runs failed: %v\n", err)
		}
	}

	logger.Info(ctx, "[INGESTER_COMPLETE] Ingestion completed", logging.Fields{
		"lakes_stored":     result.LakesStored,
		"total_records":    result.TotalRecords,
		"cell_errors":      result.CellErrors,
		"duration_seconds": result.Duration.Seconds(),
	})
}

// validateBatchSize keeps one INSERT within Postgres' bind parameter limit.
func validateBatchSize(n int) error {
	if n <= 0 || n > repository.MaxBatchSize {
		return fmt.Errorf("%d is outside 1-%d", n, repository.MaxBatchSize)
	}
	return nil
}

// compareAll runs both models for every stored lake. A lake whose models
// fail is reported and skipped.
func compareAll(ctx context.Context, repo repository.LakeRepository, modelService *services.ModelService) error {
	lakes, err := repo.ListLakes(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("%-24s %22s %22s  %s\n", "Lake", "Simple MAE", "Complex MAE", "Better")
	for _, lake := range lakes {
		cmp, err := modelService.Compare(ctx, lake.LakeID, modelService.DefaultEvaporationRate())
		if err != nil {
			fmt.Printf("%-24s failed: %v\n", lake.LakeID, err)
			continue
		}
		fmt.Printf("%-24s %22.2f %22.2f  %s\n",
			lake.LakeID, cmp.Simple.Run.MeanAbsoluteError, cmp.Complex.Run.MeanAbsoluteError, cmp.Better)
	}
	return nil
}
