package dataprovider

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AmoghJohri/Epidemic-Modeling/pkg/logger"
	"github.com/AmoghJohri/Epidemic-Modeling/pkg/utils"
)

const historyJSON = `{
  "success": true,
  "data": [
    {"day": "2021-03-03", "summary": {"total": 1500, "discharged": 900, "deaths": 20}},
    {"day": "2021-03-01", "summary": {"total": 1000, "discharged": 700, "deaths": 10}},
    {"day": "2021-03-02", "summary": {"total": 1200, "discharged": 800, "deaths": 15}},
    {"day": "2021-02-28", "summary": {"total": 900, "discharged": 600, "deaths": 5}}
  ]
}`

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDay(s)
	require.NoError(t, err)
	return d
}

func fastProvider(url string) *HTTPProvider {
	return NewHTTPProvider(url).
		WithRetry(3, utils.NewConstantBackoff(time.Millisecond)).
		WithLogger(logger.Discard())
}

func TestHTTPProviderHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(historyJSON))
	}))
	defer srv.Close()

	records, err := fastProvider(srv.URL).History(context.Background(), day(t, "2021-03-01"), day(t, "2021-03-03"))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, day(t, "2021-03-01"), records[0].Day)
	assert.Equal(t, day(t, "2021-03-03"), records[2].Day)
	assert.Equal(t, []float64{290, 385, 580}, Series(records))
	assert.Equal(t, Minima{Infected: 290, Recovered: 700, Deaths: 10}, WindowMinima(records))
}

func TestHTTPProviderRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(historyJSON))
	}))
	defer srv.Close()

	records, err := fastProvider(srv.URL).History(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, records, 4)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPProviderClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := fastProvider(srv.URL).History(context.Background(), time.Time{}, time.Time{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPProviderBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": [`))
	}))
	defer srv.Close()

	_, err := fastProvider(srv.URL).History(context.Background(), time.Time{}, time.Time{})
	assert.ErrorContains(t, err, "decoding history")
}

func TestLoadCSV(t *testing.T) {
	in := `day,total,recovered,deaths
# comment lines are ignored
2021-03-02, 1200, 800, 15
2021-03-01,1000,700,10
`
	records, err := LoadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 1200.0, records[0].Total)

	w := Window(records, time.Time{}, time.Time{})
	assert.Equal(t, day(t, "2021-03-01"), w[0].Day, "window sorts by day")
	assert.Equal(t, 290.0, w[0].Infected())

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, w))
	again, err := LoadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, w, again)
}

func TestLoadCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"bad day", "2021-13-01,1,1,1\n"},
		{"bad number", "2021-03-01,x,1,1\n"},
		{"short row", "2021-03-01,1,1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCSV(strings.NewReader(tt.in))
			assert.Error(t, err)
		})
	}
}

func TestCSVProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.csv")
	require.NoError(t, os.WriteFile(path, []byte("2021-03-01,1000,700,10\n2021-03-05,2000,900,30\n"), 0o644))

	records, err := CSVProvider{Path: path}.History(context.Background(), day(t, "2021-03-02"), time.Time{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 2000.0, records[0].Total)

	_, err = CSVProvider{Path: filepath.Join(t.TempDir(), "missing.csv")}.History(context.Background(), time.Time{}, time.Time{})
	assert.Error(t, err)
}

func TestWindowMinimaEmpty(t *testing.T) {
	assert.Equal(t, Minima{}, WindowMinima(nil))
	assert.Empty(t, Series(nil))
}
