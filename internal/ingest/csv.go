package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"energy_forecast/internal/model"
)

// CSVParser parses measurement CSV files.
//
// Expected format (temperature may be empty):
//
//	building_id,ts,energy,temperature
//	B-101,2024-11-21T11:00:00Z,151.2,18.4
//
// Rows that fail to parse are skipped and counted in Skipped.
type CSVParser struct {
	Skipped int
}

var csvHeader = []string{"building_id", "ts", "energy", "temperature"}

func (p *CSVParser) Parse(r io.Reader) ([]model.Measurement, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	if err := validateHeader(header); err != nil {
		return nil, err
	}

	var ms []model.Measurement
	lineNum := 1
	p.Skipped = 0

	for {
		lineNum++
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV line %d: %w", lineNum, err)
		}

		m, err := parseRecord(record, lineNum)
		if err != nil {
			p.Skipped++
			continue
		}

		ms = append(ms, m)
	}

	return ms, nil
}

func validateHeader(header []string) error {
	if len(header) < 3 {
		return fmt.Errorf("expected at least 3 columns, got %d", len(header))
	}

	for i, col := range csvHeader[:min(len(header), len(csvHeader))] {
		if strings.TrimSpace(header[i]) != col {
			return fmt.Errorf("expected column %d to be %q, got %q", i, col, header[i])
		}
	}

	return nil
}

func parseRecord(record []string, lineNum int) (model.Measurement, error) {
	if len(record) < 3 {
		return model.Measurement{}, fmt.Errorf("line %d: expected at least 3 fields, got %d", lineNum, len(record))
	}

	ts, err := ParseTimestamp(record[1])
	if err != nil {
		return model.Measurement{}, fmt.Errorf("line %d: %w", lineNum, err)
	}

	energy, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
	if err != nil {
		return model.Measurement{}, fmt.Errorf("line %d: parsing energy: %w", lineNum, err)
	}

	m := model.Measurement{
		BuildingID: strings.TrimSpace(record[0]),
		Timestamp:  ts,
		Energy:     energy,
	}
	if len(record) > 3 && strings.TrimSpace(record[3]) != "" {
		temp, err := strconv.ParseFloat(strings.TrimSpace(record[3]), 64)
		if err != nil {
			return model.Measurement{}, fmt.Errorf("line %d: parsing temperature: %w", lineNum, err)
		}
		m.Temperature = &temp
	}

	m, err = m.Normalize()
	if err != nil {
		return model.Measurement{}, fmt.Errorf("line %d: %w", lineNum, err)
	}
	return m, nil
}
