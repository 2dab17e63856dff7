package entities

import "time"

// Snapshot is one immutable, fully built version of the knowledge base.
// Readers hold a pointer for the duration of a turn; refreshes publish a new one.
type Snapshot struct {
	Version   uint64
	LoadedAt  time.Time
	Knowledge *Knowledge
	Health    Health
}

type Counts struct {
	Branches    int `json:"branches"`
	Departments int `json:"departments"`
	Products    int `json:"products"`
	Scraped     int `json:"scraped"`
}

// Health describes how the snapshot was produced.
type Health struct {
	OK           bool              `json:"ok"`
	Error        string            `json:"error,omitempty"`
	Version      uint64            `json:"version"`
	LoadedAt     time.Time         `json:"loadedAt"`
	LastRefresh  time.Time         `json:"lastRefresh,omitempty"`
	Counts       Counts            `json:"counts"`
	PageFailures map[string]string `json:"pageFailures,omitempty"` // product id -> error
}
