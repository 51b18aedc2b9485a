// Package ingest разбирает сырые строки датасета и группирует показания по станкам
package ingest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"machine-risk-service/internal/models"
)

// MinFields минимальное количество позиционных полей в строке:
// datetime, machineID, volt, rotate, pressure, vibration, model, age, failure, errorID, comp
const MinFields = 11

// ErrSourceUnreadable датасет не удалось получить или прочитать целиком
var ErrSourceUnreadable = errors.New("source unreadable")

// Позиции полей, которые использует конвейер
const (
	colDatetime = iota
	colMachineID
	colVoltage
	colRotation
	colPressure
	colVibration
	colModel
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"2006-01-02",
}

// Stats счетчики одного прохода группировки
type Stats struct {
	Rows        int
	Skipped     int
	NaNFields   int
	BadTimes    int
	SampleCount int
}

// ReadRecords читает текст с разделителем-запятой в набор строк.
// Каждая строка разбирается отдельно, кавычки не обрабатываются, поэтому
// битая строка не затрагивает соседние. Пустые строки пропускаются,
// количество полей не проверяется.
func ReadRecords(r io.Reader) ([][]string, error) {
	reader := bufio.NewReader(r)

	var records [][]string
	for {
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("%w: %v", ErrSourceUnreadable, err)
		}

		line = strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(line) != "" {
			fields := strings.Split(line, ",")
			for i := range fields {
				fields[i] = strings.TrimSpace(fields[i])
			}
			records = append(records, fields)
		}

		if err == io.EOF {
			break
		}
	}
	return records, nil
}

// Group группирует строки по станкам.
// Строки короче MinFields и заголовок пропускаются без ошибки,
// нечисловые значения становятся NaN.
func Group(records [][]string, hasHeader bool) (*models.MachineHistory, Stats) {
	history := models.NewMachineHistory()
	var stats Stats

	for i, rec := range records {
		if i == 0 && hasHeader {
			continue
		}
		stats.Rows++

		sample, ok := parseRow(rec, &stats)
		if !ok {
			stats.Skipped++
			continue
		}
		history.Add(sample)
		stats.SampleCount++
	}

	return history, stats
}

// Parse читает и группирует датасет с заголовком
func Parse(r io.Reader) (*models.MachineHistory, Stats, error) {
	records, err := ReadRecords(r)
	if err != nil {
		return nil, Stats{}, err
	}
	history, stats := Group(records, true)
	return history, stats, nil
}

func parseRow(rec []string, stats *Stats) (models.SensorSample, bool) {
	if len(rec) < MinFields {
		return models.SensorSample{}, false
	}

	raw := strings.TrimSpace(rec[colDatetime])
	ts, ok := ParseTimestamp(raw)
	if !ok {
		stats.BadTimes++
	}

	return models.SensorSample{
		Timestamp:     ts,
		RawTimestamp:  raw,
		MachineID:     strings.TrimSpace(rec[colMachineID]),
		Voltage:       parseFloat(rec[colVoltage], stats),
		RotationSpeed: parseFloat(rec[colRotation], stats),
		Pressure:      parseFloat(rec[colPressure], stats),
		Vibration:     parseFloat(rec[colVibration], stats),
		ModelVariant:  strings.TrimSpace(rec[colModel]),
	}, true
}

func parseFloat(v string, stats *Stats) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		stats.NaNFields++
		return math.NaN()
	}
	return f
}

// ParseTimestamp разбирает метку времени по списку поддерживаемых форматов.
// При неудаче возвращает нулевое время.
func ParseTimestamp(v string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
