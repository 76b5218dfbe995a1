package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lake-balance/internal/models"
)

const csvHeader = "date,volume,area,solar_exposure,rainfall,max_temperature,min_temperature,humidity,wind_speed\n"

func TestIngestionService_IngestDirectory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sample, err := os.ReadFile(sampleFile)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "george.csv"), sample, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "eyre.csv"), []byte(csvHeader+"202001,1,2,3,4,5,1,7,oops\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.csv"), []byte("date,volume\n201401,1\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	result, err := env.ingestion.IngestDirectory(ctx, dir)
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalFiles)
	assert.Equal(t, 2, result.LakesStored)
	assert.Equal(t, 13, result.TotalRecords)
	assert.Equal(t, 1, result.CellErrors)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "broken.csv")

	lakes, err := env.repo.ListLakes(ctx)
	require.NoError(t, err)
	require.Len(t, lakes, 2)
	assert.Equal(t, "eyre", lakes[0].LakeID)
	assert.Equal(t, "george", lakes[1].LakeID)
	assert.Equal(t, 12, lakes[1].ObservationCount)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.IngestionErrorsTotal.WithLabelValues("parse_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.IngestionErrorsTotal.WithLabelValues("file_error")))
}

func TestIngestionService_IngestDirectoryEmpty(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.ingestion.IngestDirectory(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no data files")
}

func TestIngestionService_IngestReader(t *testing.T) {
	tests := []struct {
		name      string
		lakeID    string
		body      string
		wantErr   bool
		wantCells int
	}{
		{name: "valid", lakeID: "george", body: csvHeader + "202001,1,2,3,4,5,1,7,8\n"},
		{name: "bad cell stored as missing", lakeID: "george", body: csvHeader + "202001,x,2,3,4,5,1,7,8\n", wantCells: 1},
		{name: "invalid lake id", lakeID: "../etc", body: csvHeader + "202001,1,2,3,4,5,1,7,8\n", wantErr: true},
		{name: "no rows", lakeID: "george", body: csvHeader, wantErr: true},
		{name: "bad header", lakeID: "george", body: "a,b\n1,2\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			result, err := env.ingestion.IngestReader(context.Background(), tt.lakeID, strings.NewReader(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.lakeID, result.LakeID)
			assert.Equal(t, tt.wantCells, result.CellErrors)

			stored, err := env.repo.ListObservations(context.Background(), tt.lakeID)
			require.NoError(t, err)
			assert.Len(t, stored, 1)
		})
	}
}

func TestValidateLakeID(t *testing.T) {
	assert.NoError(t, ValidateLakeID("lake_george-1"))

	for _, id := range []string{"", "-lead", "has space", "a/b", strings.Repeat("x", 65)} {
		err := ValidateLakeID(id)
		var verr *models.ValidationError
		assert.ErrorAs(t, err, &verr, "id %q", id)
	}
}
