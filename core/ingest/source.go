package ingest

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/WubeDegife/Microgrid-Optimization/auth"
)

// Source yields one raw series.
type Source interface {
	Read(ctx context.Context) ([]float64, error)
	String() string
}

// FileSource reads a CSV file from disk.
type FileSource struct {
	Name   string
	Path   string
	Column int
}

func (s FileSource) String() string { return sourceName("file", s.Path) }

func (s FileSource) Read(ctx context.Context) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s series: %w", s.Name, err)
	}
	defer func() { _ = f.Close() }()
	return ParseCSV(s.Name, f, s.Column)
}

// HTTPSource downloads a CSV document. When Cred is set every request carries
// a client-credentials bearer token.
type HTTPSource struct {
	Name   string
	URL    string
	Column int
	Cred   *auth.ClientCred
	Client *http.Client
}

func (s HTTPSource) String() string { return sourceName("http", s.URL) }

func (s HTTPSource) Read(ctx context.Context) ([]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", s.Name, err)
	}
	req.Header.Set("Accept", "text/csv")
	if s.Cred != nil {
		if err := s.Cred.SetAuthHeader(req); err != nil {
			return nil, fmt.Errorf("authorize %s request: %w", s.Name, err)
		}
	}
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s series: %w", s.Name, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s series: unexpected status %s", s.Name, resp.Status)
	}
	return ParseCSV(s.Name, resp.Body, s.Column)
}

// StaticSource returns a fixed series. It backs API requests that carry
// their data inline.
type StaticSource struct {
	Name   string
	Values []float64
}

func (s StaticSource) String() string { return sourceName("inline", s.Name) }

func (s StaticSource) Read(context.Context) ([]float64, error) {
	out := make([]float64, len(s.Values))
	copy(out, s.Values)
	return out, nil
}
