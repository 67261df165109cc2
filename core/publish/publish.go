// Package publish defines the run summary pushed to the display
// collaborator after every successful run.
package publish

import (
	"context"
	"sync"
	"time"
)

// MixEntry is one row of the recommended mix table.
type MixEntry struct {
	Asset     string  `json:"asset"`
	EnergyKWh float64 `json:"energy_kwh"`
	Cost      string  `json:"cost"`
	// SharePercent is the asset's share of the merit-order cost.
	SharePercent string `json:"share_percent"`
}

// Summary is the payload of a finished run.
type Summary struct {
	RunID     string     `json:"run_id"`
	Season    string     `json:"season"`
	Month     string     `json:"month"`
	DemandKWh float64    `json:"demand_kwh"`
	Objective float64    `json:"objective"`
	MeritCost string     `json:"merit_cost"`
	UnmetKWh  float64    `json:"unmet_kwh"`
	Mix       []MixEntry `json:"mix"`
	Sentence  string     `json:"sentence"`
	Relaxed   bool       `json:"relaxed"`
	Time      time.Time  `json:"time"`
}

// Publisher delivers summaries.
type Publisher interface {
	PublishSummary(ctx context.Context, s Summary) error
	Close() error
}

// NopPublisher drops every summary.
type NopPublisher struct{}

func (NopPublisher) PublishSummary(context.Context, Summary) error { return nil }
func (NopPublisher) Close() error                                  { return nil }

// MemoryPublisher keeps published summaries, newest last.
type MemoryPublisher struct {
	mu        sync.Mutex
	summaries []Summary
}

func (m *MemoryPublisher) PublishSummary(_ context.Context, s Summary) error {
	m.mu.Lock()
	m.summaries = append(m.summaries, s)
	m.mu.Unlock()
	return nil
}

// All returns a copy of the published summaries.
func (m *MemoryPublisher) All() []Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Summary, len(m.summaries))
	copy(out, m.summaries)
	return out
}

func (m *MemoryPublisher) Close() error { return nil }
