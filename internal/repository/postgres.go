package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"lake-balance/internal/models"
	"lake-balance/pkg/database"
	"lake-balance/pkg/logging"
	"lake-balance/pkg/metrics"
)

// DefaultBatchSize is the number of rows written per INSERT statement.
const DefaultBatchSize = 500

// observationParams is the number of bind parameters per inserted row.
const observationParams = 11

// MaxBatchSize is the most rows one INSERT can carry within Postgres'
// limit of 65535 bind parameters per statement.
const MaxBatchSize = 65535 / observationParams

const observationColumns = `period, volume, area, solar_exposure, rainfall,
	max_temperature, min_temperature, humidity, wind_speed`

// observationRow is a stored observation with its position in the series.
type observationRow struct {
	LakeID   string `db:"lake_id"`
	Position int    `db:"position"`
	models.Observation
}

// modelRunRow carries the predicted volumes as a Postgres array.
type modelRunRow struct {
	models.ModelRun
	Predicted pq.Float64Array `db:"predicted_volumes"`
}

// postgresRepository implements LakeRepository on PostgreSQL
type postgresRepository struct {
	db        *database.PostgresDB
	logger    *logging.StructuredLogger
	metrics   *metrics.Collector
	batchSize int
}

// NewLakeRepository creates a PostgreSQL-backed lake repository. A batchSize
// of zero or less uses DefaultBatchSize; one above MaxBatchSize is capped.
func NewLakeRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector, batchSize int) LakeRepository {
	switch {
	case batchSize <= 0:
		batchSize = DefaultBatchSize
	case batchSize > MaxBatchSize:
		batchSize = MaxBatchSize
	}
	return &postgresRepository{
		db:        db,
		logger:    logger,
		metrics:   metricsCollector,
		batchSize: batchSize,
	}
}

// SaveObservations replaces the lake's series in a single transaction
func (r *postgresRepository) SaveObservations(ctx context.Context, lakeID string, series []*models.Observation) error {
	timer := time.Now()

	err := r.db.WithTx(ctx, "save_observations", func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO lakes (lake_id, created_at, updated_at)
			VALUES ($1, NOW(), NOW())
			ON CONFLICT (lake_id) DO UPDATE SET updated_at = EXCLUDED.updated_at
		`, lakeID); err != nil {
			return fmt.Errorf("failed to upsert lake: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM lake_observations WHERE lake_id = $1`, lakeID); err != nil {
			return fmt.Errorf("failed to clear observations: %w", err)
		}

		for start := 0; start < len(series); start += r.batchSize {
			end := min(start+r.batchSize, len(series))
			if err := r.insertBatch(ctx, tx, lakeID, start, series[start:end]); err != nil {
				return err
			}
			r.metrics.IngestionBatchSize.Observe(float64(end - start))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save observations for lake %s: %w", lakeID, err)
	}

	r.metrics.IngestionRecordsTotal.Add(float64(len(series)))
	r.logger.Debug(ctx, "[REPO_SAVE_OBSERVATIONS] Series stored", logging.Fields{
		"lake_id":     lakeID,
		"count":       len(series),
		"duration_ms": time.Since(timer).Milliseconds(),
	})

	return nil
}

func (r *postgresRepository) insertBatch(ctx context.Context, tx *sqlx.Tx, lakeID string, offset int, batch []*models.Observation) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO lake_observations (lake_id, position, ` + observationColumns + `) VALUES `)
	args := make([]interface{}, 0, len(batch)*observationParams)

	for i, obs := range batch {
		if obs == nil {
			obs = &models.Observation{}
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j := 0; j < observationParams; j++ {
			if j > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", i*observationParams+j+1)
		}
		sb.WriteString(")")

		args = append(args,
			lakeID, offset+i,
			obs.Period, obs.Volume, obs.Area, obs.SolarExposure, obs.Rainfall,
			obs.MaxTemperature, obs.MinTemperature, obs.Humidity, obs.WindSpeed,
		)
	}

	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("failed to insert observations: %w", err)
	}
	return nil
}

// ListObservations returns the lake's series in stored order
func (r *postgresRepository) ListObservations(ctx context.Context, lakeID string) ([]*models.Observation, error) {
	query := `
		SELECT lake_id, position, ` + observationColumns + `
		FROM lake_observations
		WHERE lake_id = $1
		ORDER BY position
	`

	var rows []observationRow
	if err := r.db.SelectContext(ctx, "list_observations", &rows, query, lakeID); err != nil {
		return nil, fmt.Errorf("failed to list observations: %w", err)
	}

	if len(rows) == 0 {
		return nil, &NotFoundError{Resource: "lake", ID: lakeID}
	}

	series := make([]*models.Observation, len(rows))
	for i := range rows {
		obs := rows[i].Observation
		series[i] = &obs
	}
	return series, nil
}

// ListLakes returns every lake with a stored series
func (r *postgresRepository) ListLakes(ctx context.Context) ([]*models.Lake, error) {
	query := `
		SELECT l.lake_id, COUNT(o.position) AS observation_count, l.updated_at
		FROM lakes l
		LEFT JOIN lake_observations o ON o.lake_id = l.lake_id
		GROUP BY l.lake_id, l.updated_at
		ORDER BY l.lake_id
	`

	var lakes []*models.Lake
	if err := r.db.SelectContext(ctx, "list_lakes", &lakes, query); err != nil {
		return nil, fmt.Errorf("failed to list lakes: %w", err)
	}
	return lakes, nil
}

// CreateModelRun stores one evaluated model run
func (r *postgresRepository) CreateModelRun(ctx context.Context, run *models.ModelRun) error {
	query := `
		INSERT INTO model_runs (
			id, lake_id, model, evaporation_rate, mean_absolute_error, predicted_volumes, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, "insert_model_run", query,
		run.ID,
		run.LakeID,
		run.Model,
		run.EvaporationRate,
		run.MeanAbsoluteError,
		pq.Float64Array(run.PredictedVolumes),
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create model run: %w", err)
	}

	r.logger.Debug(ctx, "[REPO_CREATE_MODEL_RUN] Model run stored", logging.Fields{
		"run_id":  run.ID,
		"lake_id": run.LakeID,
		"model":   run.Model,
	})

	return nil
}

// GetModelRuns retrieves model runs with filtering and pagination
func (r *postgresRepository) GetModelRuns(ctx context.Context, filter ModelRunFilter) ([]*models.ModelRun, int, error) {
	query := `
		SELECT id, lake_id, model, evaporation_rate, mean_absolute_error, predicted_volumes, created_at
		FROM model_runs
		WHERE 1=1
	`
	args := []interface{}{}
	argNum := 1

	if filter.LakeID != nil {
		query += fmt.Sprintf(" AND lake_id = $%d", argNum)
		args = append(args, *filter.LakeID)
		argNum++
	}

	if filter.Model != nil {
		query += fmt.Sprintf(" AND model = $%d", argNum)
		args = append(args, *filter.Model)
		argNum++
	}

	countQuery := "SELECT COUNT(*) FROM (" + query + ") AS count_query"
	var totalCount int
	if err := r.db.GetContext(ctx, "count_model_runs", &totalCount, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count model runs: %w", err)
	}

	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filter.Limit)
		argNum++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, filter.Offset)
	}

	var rows []modelRunRow
	if err := r.db.SelectContext(ctx, "get_model_runs", &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to get model runs: %w", err)
	}

	runs := make([]*models.ModelRun, len(rows))
	for i := range rows {
		run := rows[i].ModelRun
		run.PredictedVolumes = []float64(rows[i].Predicted)
		runs[i] = &run
	}
	return runs, totalCount, nil
}

// HealthCheck performs a repository health check
func (r *postgresRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
