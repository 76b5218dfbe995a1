package services

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"lake-balance/internal/models"
)

// Column names expected in an observation file header.
var observationHeader = []string{
	"date", "volume", "area", "solar_exposure", "rainfall",
	"max_temperature", "min_temperature", "humidity", "wind_speed",
}

// ParseObservationsCSV reads a monthly observation series from CSV.
//
// Columns are matched by header name, case-insensitively and in any order;
// other columns (such as an exported index) are ignored. Row order is kept.
// Blank cells are missing values. Cells that are not numbers are also treated
// as missing and reported in the returned error, which joins one error per
// bad cell; the series is returned alongside it.
func ParseObservationsCSV(r io.Reader) ([]*models.Observation, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, &models.ValidationError{Field: "header", Message: fmt.Sprintf("read header: %v", err)}
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	var missing []string
	for _, name := range observationHeader {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &models.ValidationError{
			Field:   "header",
			Value:   strings.Join(header, ","),
			Message: fmt.Sprintf("header is missing columns %s", strings.Join(missing, ", ")),
		}
	}

	var (
		series  = []*models.Observation{}
		rowErrs []error
		rowNum  = 1 // header
	)

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				return nil, fmt.Errorf("row %d: read: %w", rowNum, err)
			}
			rowErrs = append(rowErrs, fmt.Errorf("row %d: %w", rowNum, err))
			continue
		}

		cell := func(name string) string {
			if i := index[name]; i < len(row) {
				return row[i]
			}
			return ""
		}

		raw := models.RawObservation{
			Row:            rowNum,
			Date:           cell("date"),
			Volume:         cell("volume"),
			Area:           cell("area"),
			SolarExposure:  cell("solar_exposure"),
			Rainfall:       cell("rainfall"),
			MaxTemperature: cell("max_temperature"),
			MinTemperature: cell("min_temperature"),
			Humidity:       cell("humidity"),
			WindSpeed:      cell("wind_speed"),
		}

		obs, err := raw.ToObservation()
		if err != nil {
			rowErrs = append(rowErrs, err)
		}
		series = append(series, obs)
	}

	return series, errors.Join(rowErrs...)
}

// countErrors reports how many errors a joined error carries.
func countErrors(err error) int {
	if err == nil {
		return 0
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		n := 0
		for _, e := range joined.Unwrap() {
			n += countErrors(e)
		}
		return n
	}
	return 1
}
