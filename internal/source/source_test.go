package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"machine-risk-service/internal/config"
	"machine-risk-service/internal/ingest"
)

const dataset = `datetime,machineID,volt,rotate,pressure,vibration,model,age,failure,errorID,comp
2015-01-01 06:00:00,1,176.2,418.5,113.1,45.1,model3,18,0,,
2015-01-01 07:00:00,1,162.9,402.7,95.5,43.4,model3,18,0,,
`

func TestFile_Records(t *testing.T) {
	path := filepath.Join(t.TempDir(), "machines.csv")
	require.NoError(t, os.WriteFile(path, []byte(dataset), 0o600))

	src := NewFile(path)
	records, err := src.Records(context.Background())
	require.NoError(t, err)

	assert.True(t, src.HasHeader())
	assert.Len(t, records, 3)
	assert.Equal(t, "machineID", records[0][1])
}

func TestFile_Missing(t *testing.T) {
	src := NewFile(filepath.Join(t.TempDir(), "absent.csv"))
	_, err := src.Records(context.Background())
	assert.ErrorIs(t, err, ingest.ErrSourceUnreadable)
}

func TestHTTP_Records(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(dataset))
	}))
	defer srv.Close()

	records, err := NewHTTP(srv.URL, time.Second).Records(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestHTTP_Non2xxIsUnreadable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewHTTP(srv.URL, time.Second).Records(context.Background())
	assert.ErrorIs(t, err, ingest.ErrSourceUnreadable)
}

func TestHTTP_Cancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewHTTP(srv.URL, time.Second).Records(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestPostgres_Records(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ts := time.Date(2015, 1, 1, 6, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"datetime", "machine_id", "volt", "rotate", "pressure", "vibration",
		"model", "age", "failure", "error_id", "component",
	}).
		AddRow(ts, "1", 176.2, 418.5, 113.1, 45.1, "model3", 18, 0, nil, nil).
		AddRow(ts.Add(time.Hour), "2", nil, 402.7, 95.5, 43.4, "model4", 7, 0, "error1", "comp2")

	mock.ExpectQuery(regexp.QuoteMeta(sensorQuery)).
		WithArgs(500).
		WillReturnRows(rows)

	src := NewPostgres(db, 500)
	records, err := src.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.False(t, src.HasHeader())
	assert.Len(t, records[0], ingest.MinFields)
	assert.Equal(t, "1", records[0][1])
	assert.Equal(t, "176.2", records[0][2])
	assert.Equal(t, "", records[0][9])
	// NULL voltage becomes NaN after grouping
	assert.Equal(t, "", records[1][2])

	history, stats := ingest.Group(records, src.HasHeader())
	assert.Equal(t, 2, history.Len())
	assert.Equal(t, 1, stats.NaNFields)
	assert.Equal(t, 0, stats.BadTimes)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(sensorQuery)).
		WithArgs(10).
		WillReturnError(errors.New("relation \"machine_sensor_data\" does not exist"))

	_, err = NewPostgres(db, 10).Records(context.Background())
	assert.ErrorIs(t, err, ingest.ErrSourceUnreadable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNew(t *testing.T) {
	src, err := New(config.SourceConfig{Kind: config.SourceFile, Path: "machines.csv"})
	require.NoError(t, err)
	assert.Equal(t, "file:machines.csv", src.Name())

	src, err = New(config.SourceConfig{
		Kind:     config.SourceS3,
		Endpoint: "localhost:9000",
		Bucket:   "telemetry",
		Object:   "machines.csv",
	})
	require.NoError(t, err)
	assert.Equal(t, "s3://telemetry/machines.csv", src.Name())

	_, err = New(config.SourceConfig{Kind: "ftp"})
	assert.Error(t, err)
}
