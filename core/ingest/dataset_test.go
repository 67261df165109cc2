package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WubeDegife/Microgrid-Optimization/auth"
	"github.com/WubeDegife/Microgrid-Optimization/core/model"
)

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func yearDataset(t *testing.T) *Dataset {
	t.Helper()
	l := NewLoader(0, time.Time{}, nil)
	ds, err := l.Load(context.Background(),
		StaticSource{Name: "load", Values: constant(DefaultExpectedSamples, 2)},
		StaticSource{Name: "solar", Values: constant(DefaultExpectedSamples, 1)},
		StaticSource{Name: "wind", Values: constant(DefaultExpectedSamples, 0)},
	)
	require.NoError(t, err)
	return ds
}

func TestLoaderRejectsWrongLength(t *testing.T) {
	l := NewLoader(4, time.Time{}, nil)
	_, err := l.Load(context.Background(),
		StaticSource{Name: "load", Values: constant(4, 1)},
		StaticSource{Name: "solar", Values: constant(3, 1)},
		StaticSource{Name: "wind", Values: constant(4, 1)},
	)
	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "solar", ve.Field)
}

func TestLoaderRejectsNegativeInline(t *testing.T) {
	l := NewLoader(2, time.Time{}, nil)
	_, err := l.Load(context.Background(),
		StaticSource{Name: "load", Values: []float64{1, -1}},
		StaticSource{Name: "solar", Values: constant(2, 1)},
		StaticSource{Name: "wind", Values: constant(2, 1)},
	)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestMonthSlicing(t *testing.T) {
	ds := yearDataset(t)

	tests := []struct {
		month  time.Month
		offset int
		hours  int
	}{
		{time.January, 0, 744},
		{time.February, 744, 672},
		{time.July, 4344, 744},
		{time.December, 8016, 744},
	}
	for _, tt := range tests {
		t.Run(tt.month.String(), func(t *testing.T) {
			w, err := ds.Month(tt.month)
			require.NoError(t, err)
			assert.Equal(t, tt.offset, w.Offset)
			assert.Equal(t, tt.hours, w.Grid.Steps)
			assert.Len(t, w.Load, tt.hours)
			assert.Equal(t, tt.month, w.Grid.Start.Month())
		})
	}
}

func TestSelectChecksSeason(t *testing.T) {
	ds := yearDataset(t)

	w, err := ds.Select(model.Summer, time.August)
	require.NoError(t, err)
	assert.Equal(t, model.Summer, w.Season)
	assert.Equal(t, 744, w.Grid.Steps)

	_, err = ds.Select(model.Winter, time.April)
	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "month", ve.Field)
}

func TestMonthOutsideShortDataset(t *testing.T) {
	l := NewLoader(3, time.Time{}, nil)
	ds, err := l.Load(context.Background(),
		StaticSource{Name: "load", Values: constant(3, 1)},
		StaticSource{Name: "solar", Values: constant(3, 1)},
		StaticSource{Name: "wind", Values: constant(3, 1)},
	)
	require.NoError(t, err)
	_, err = ds.Month(time.March)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "load.csv")
	require.NoError(t, os.WriteFile(path, []byte("load\n1\n2\n"), 0o600))

	got, err := FileSource{Name: "load", Path: path}.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, got)

	_, err = FileSource{Name: "load", Path: filepath.Join(t.TempDir(), "missing.csv")}.Read(context.Background())
	assert.Error(t, err)
}

func TestHTTPSourceWithClientCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"abc","token_type":"bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/wind.csv", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer abc" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		_, _ = fmt.Fprint(w, strings.Join([]string{"wind_kw", "5", "6", "7"}, "\n"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cred := auth.NewClientCred(auth.Conf{ClientID: "id", ClientSecret: "s", TokenURL: srv.URL + "/token"})
	got, err := HTTPSource{Name: "wind", URL: srv.URL + "/wind.csv", Cred: cred}.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 6, 7}, got)

	_, err = HTTPSource{Name: "wind", URL: srv.URL + "/wind.csv"}.Read(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
