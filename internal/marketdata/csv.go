package marketdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"equity-backtest-lab/internal/domain"
)

// CSV column layout: timestamp_ms,open,high,low,close,volume. A header row
// is detected by a non-numeric first field and skipped.
const csvFieldCount = 6

// LoadCSVFile reads a bar series for symbol from a CSV file and validates it.
func LoadCSVFile(path, symbol string) ([]domain.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bar file: %w", err)
	}
	defer f.Close()

	bars, err := ReadCSV(f, symbol)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return bars, nil
}

// ReadCSV parses and validates a bar series for symbol from r.
func ReadCSV(r io.Reader, symbol string) ([]domain.Bar, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = csvFieldCount

	var bars []domain.Bar
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		line++

		if line == 1 {
			if _, err := strconv.ParseInt(record[0], 10, 64); err != nil {
				// Header row.
				continue
			}
		}

		bar, err := parseBar(record, symbol)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bars = append(bars, bar)
	}

	if err := ValidateSeries(symbol, bars); err != nil {
		return nil, err
	}
	return bars, nil
}

func parseBar(record []string, symbol string) (domain.Bar, error) {
	ts, err := strconv.ParseInt(record[0], 10, 64)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("timestamp %q: %w", record[0], err)
	}

	fields := make([]float64, 5)
	names := [5]string{"open", "high", "low", "close", "volume"}
	for i := 0; i < 5; i++ {
		v, err := strconv.ParseFloat(record[i+1], 64)
		if err != nil {
			return domain.Bar{}, fmt.Errorf("%s %q: %w", names[i], record[i+1], err)
		}
		fields[i] = v
	}

	return domain.Bar{
		Symbol:      symbol,
		TimestampMs: ts,
		Open:        fields[0],
		High:        fields[1],
		Low:         fields[2],
		Close:       fields[3],
		Volume:      fields[4],
	}, nil
}
