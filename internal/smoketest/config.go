// Package smoketest drives a running groupsplit server end to end: it
// previews picks concurrently, commits a series of occurrences and checks
// that the recorded history is consistent.
package smoketest

import (
	"errors"
	"time"
)

// Defaults used when a Config field is left zero.
const (
	defaultRounds   = 4
	defaultPreviews = 32
	defaultWorkers  = 4
	defaultTimeout  = 30 * time.Second
	defaultInterval = 7 * 24 * time.Hour
)

// Config holds configuration for a smoke run.
type Config struct {
	BaseURL  string        // Base URL of the service
	Rounds   int           // Occurrences to commit
	Previews int           // POST /pick requests fired concurrently
	Workers  int           // Concurrent preview workers
	Timeout  time.Duration // HTTP request timeout
	Start    time.Time     // Date of the first committed occurrence
	Interval time.Duration // Gap between committed occurrences
	Verbose  bool          // Log every response
}

func (c *Config) applyDefaults() error {
	if c.BaseURL == "" {
		return errors.New("base URL is required")
	}
	if c.Rounds <= 0 {
		c.Rounds = defaultRounds
	}
	if c.Previews < 0 {
		c.Previews = 0
	}
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.Interval <= 0 {
		c.Interval = defaultInterval
	}
	if c.Start.IsZero() {
		c.Start = time.Now().UTC().Truncate(time.Second)
	}
	return nil
}

// Pick is the body returned by POST /pick and POST /occurrences.
type Pick struct {
	ID         string     `json:"id,omitempty"`
	Date       time.Time  `json:"date"`
	Groupings  [][]string `json:"groupings"`
	Score      float64    `json:"score"`
	Candidates int        `json:"candidates"`
	Duplicates int        `json:"duplicates"`
}

// Record is one entry of GET /history.
type Record struct {
	ID        string     `json:"id"`
	Date      time.Time  `json:"date"`
	Groupings [][]string `json:"groupings"`
}

// Stats holds run statistics.
type Stats struct {
	PreviewsSent      int
	PreviewsOK        int
	PreviewsNoResult  int
	PreviewsFailed    int
	Committed         int
	HistoryRecords    int
	RepeatedGroupings int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}
