package dataprovider

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

var csvHeader = []string{"day", "total", "recovered", "deaths"}

// LoadCSV reads day,total,recovered,deaths rows. A header row is skipped.
func LoadCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var records []Record
	line := 0
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}
		line++
		if line == 1 && strings.EqualFold(strings.TrimSpace(row[0]), csvHeader[0]) {
			continue
		}

		day, err := ParseDay(strings.TrimSpace(row[0]))
		if err != nil {
			return nil, fmt.Errorf("line %d: parsing day: %w", line, err)
		}
		values := make([]float64, 3)
		for i := range values {
			v, err := strconv.ParseFloat(strings.TrimSpace(row[i+1]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: parsing %s: %w", line, csvHeader[i+1], err)
			}
			values[i] = v
		}
		records = append(records, Record{Day: day, Total: values[0], Recovered: values[1], Deaths: values[2]})
	}
	return records, nil
}

// WriteCSV writes records with a header row.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Day.Format(DayLayout),
			strconv.FormatFloat(r.Total, 'f', -1, 64),
			strconv.FormatFloat(r.Recovered, 'f', -1, 64),
			strconv.FormatFloat(r.Deaths, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVProvider serves the history from a CSV file.
type CSVProvider struct {
	Path string
}

func (p CSVProvider) History(_ context.Context, from, to time.Time) ([]Record, error) {
	f, err := os.Open(p.Path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", p.Path, err)
	}
	defer f.Close()

	records, err := LoadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Path, err)
	}
	return Window(records, from, to), nil
}
