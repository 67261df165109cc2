// Package rating stores user scores of recommended mixes. Ratings are
// exported as CSV with the header Season,Month,Rating and the month written
// as its three-letter name.
package rating

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/WubeDegife/Microgrid-Optimization/core/factory"
	"github.com/WubeDegife/Microgrid-Optimization/core/model"
)

// Header is the first row of every ratings CSV.
var Header = []string{"Season", "Month", "Rating"}

// Store persists ratings in submission order.
type Store interface {
	Add(ctx context.Context, r model.Rating) error
	List(ctx context.Context) ([]model.Rating, error)
	Close() error
}

var storeRegistry = factory.NewRegistry[Store]()

// RegisterStore adds a store factory identified by name.
func RegisterStore(name string, f factory.Factory[Store]) error {
	return storeRegistry.Register(name, f)
}

// NewStore creates the configured store. An empty type gives a MemoryStore.
func NewStore(cfg factory.ModuleConfig) (Store, error) {
	if cfg.Type == "" {
		return NewMemoryStore(), nil
	}
	return storeRegistry.Create(cfg)
}

func init() {
	_ = RegisterStore("memory", func(map[string]any) (Store, error) { return NewMemoryStore(), nil })
	_ = RegisterStore("csv", func(conf map[string]any) (Store, error) {
		var c struct {
			Path string `json:"path"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			return nil, model.NewConfigurationError("ratings.conf.path", "required for csv store")
		}
		return NewCSVStore(c.Path), nil
	})
	_ = RegisterStore("sqlite", func(conf map[string]any) (Store, error) {
		var c struct {
			DSN string `json:"dsn"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.DSN == "" {
			return nil, model.NewConfigurationError("ratings.conf.dsn", "required for sqlite store")
		}
		return NewSQLiteStore(c.DSN)
	})
}

// MemoryStore keeps ratings for the lifetime of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	ratings []model.Rating
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Add(_ context.Context, r model.Rating) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.ratings = append(s.ratings, r)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) List(context.Context) ([]model.Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Rating, len(s.ratings))
	copy(out, s.ratings)
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

// Record formats r as a CSV row.
func Record(r model.Rating) []string {
	return []string{r.Season.String(), model.MonthName(r.Month), strconv.Itoa(r.Rating)}
}

// WriteCSV writes the header followed by one row per rating.
func WriteCSV(w io.Writer, ratings []model.Rating) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range ratings {
		if err := cw.Write(Record(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses ratings written by WriteCSV. Rows are validated.
func ReadCSV(r io.Reader) ([]model.Rating, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)
	var out []model.Rating
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, model.NewValidationError("ratings", "line %d: %v", line, err)
		}
		if line == 1 && strings.EqualFold(rec[0], Header[0]) {
			continue
		}
		season, err := model.ParseSeason(rec[0])
		if err != nil {
			return nil, err
		}
		month, err := model.ParseMonth(rec[1])
		if err != nil {
			return nil, err
		}
		score, err := strconv.Atoi(strings.TrimSpace(rec[2]))
		if err != nil {
			return nil, model.NewValidationError("rating", "line %d: %q is not an integer", line, rec[2])
		}
		rt := model.Rating{Season: season, Month: month, Rating: score}
		if err := rt.Validate(); err != nil {
			return nil, err
		}
		out = append(out, rt)
	}
}
