package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"lake-balance/internal/models"
	"lake-balance/internal/repository"
	"lake-balance/pkg/logging"
	"lake-balance/pkg/metrics"
)

var lakeIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// ValidateLakeID rejects identifiers that cannot be used in a URL path.
func ValidateLakeID(lakeID string) error {
	if !lakeIDPattern.MatchString(lakeID) {
		return &models.ValidationError{
			Field:   "lake_id",
			Value:   lakeID,
			Message: fmt.Sprintf("invalid lake id %q: use up to 64 letters, digits, '-' or '_'", lakeID),
		}
	}
	return nil
}

// IngestionService loads observation files into the repository
type IngestionService struct {
	repo    repository.LakeRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// IngestionResult contains ingestion statistics
type IngestionResult struct {
	TotalFiles   int
	LakesStored  int
	TotalRecords int
	CellErrors   int
	Duration     time.Duration
	Errors       []string
}

// FileIngestionResult contains per-file ingestion statistics
type FileIngestionResult struct {
	LakeID       string `json:"lake_id"`
	TotalRecords int    `json:"total_records"`
	CellErrors   int    `json:"cell_errors"`
	Warnings     string `json:"warnings,omitempty"`
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(repo repository.LakeRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *IngestionService {
	return &IngestionService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// IngestDirectory ingests every *.csv file in dataDir; each file is one lake
// named after the file stem
func (s *IngestionService) IngestDirectory(ctx context.Context, dataDir string) (*IngestionResult, error) {
	startTime := time.Now()

	s.logger.Info(ctx, "[INGEST_START] Starting data ingestion", logging.Fields{
		"data_dir": dataDir,
		"stage":    "INITIALIZATION",
	})

	files, err := filepath.Glob(filepath.Join(dataDir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no data files found in %s", dataDir)
	}

	result := &IngestionResult{
		TotalFiles: len(files),
		Errors:     make([]string, 0),
	}

	s.logger.Info(ctx, "[INGEST_FILES] Found data files", logging.Fields{
		"file_count": len(files),
		"stage":      "FILE_DISCOVERY",
	})

	for _, filePath := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fileResult, err := s.IngestFile(ctx, filePath)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to ingest %s: %v", filePath, err))
			s.logger.Error(ctx, "[INGEST_FILE_ERROR] File ingestion failed", logging.Fields{
				"file_path": filePath,
				"stage":     "FILE_PROCESSING",
			}, err)
			s.metrics.RecordIngestionError("file_error")
			continue
		}

		result.LakesStored++
		result.TotalRecords += fileResult.TotalRecords
		result.CellErrors += fileResult.CellErrors
	}

	result.Duration = time.Since(startTime)
	s.metrics.IngestionDuration.Observe(result.Duration.Seconds())

	s.logger.Info(ctx, "[INGEST_COMPLETE] Data ingestion completed", logging.Fields{
		"total_files":      result.TotalFiles,
		"lakes_stored":     result.LakesStored,
		"total_records":    result.TotalRecords,
		"cell_errors":      result.CellErrors,
		"duration_seconds": result.Duration.Seconds(),
		"error_count":      len(result.Errors),
		"stage":            "COMPLETE",
	})

	return result, nil
}

// IngestFile ingests one CSV file as the lake named by its file stem
func (s *IngestionService) IngestFile(ctx context.Context, filePath string) (*FileIngestionResult, error) {
	fileName := filepath.Base(filePath)
	lakeID := strings.TrimSuffix(fileName, filepath.Ext(fileName))

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return s.IngestReader(ctx, lakeID, file)
}

// IngestReader parses a CSV series and replaces the lake's stored series with
// it. The series is stored as read; cleaning happens when it is modelled.
// Unparsable cells are stored as missing and counted in CellErrors.
func (s *IngestionService) IngestReader(ctx context.Context, lakeID string, r io.Reader) (*FileIngestionResult, error) {
	if err := ValidateLakeID(lakeID); err != nil {
		return nil, err
	}

	series, parseErr := ParseObservationsCSV(r)
	if series == nil {
		s.metrics.RecordIngestionError("unreadable_file")
		return nil, fmt.Errorf("failed to parse observations: %w", parseErr)
	}
	if len(series) == 0 {
		s.metrics.RecordIngestionError("empty_file")
		return nil, &models.ValidationError{Field: "body", Message: "no observation rows"}
	}

	result := &FileIngestionResult{
		LakeID:       lakeID,
		TotalRecords: len(series),
		CellErrors:   countErrors(parseErr),
	}
	if parseErr != nil {
		result.Warnings = parseErr.Error()
		s.metrics.IngestionErrorsTotal.WithLabelValues("parse_error").Add(float64(result.CellErrors))
		s.logger.Warn(ctx, "[INGEST_PARSE_WARNING] Cells stored as missing", logging.Fields{
			"lake_id":     lakeID,
			"cell_errors": result.CellErrors,
			"stage":       "PARSING",
		})
	}

	if err := s.repo.SaveObservations(ctx, lakeID, series); err != nil {
		return nil, fmt.Errorf("failed to store observations: %w", err)
	}

	s.logger.Info(ctx, "[INGEST_FILE_SUCCESS] Lake series stored", logging.Fields{
		"lake_id":       lakeID,
		"total_records": result.TotalRecords,
		"cell_errors":   result.CellErrors,
		"stage":         "FILE_COMPLETE",
	})

	return result, nil
}
