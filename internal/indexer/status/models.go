// Package status provides indexer health tracking and status management.
package status

import (
	"time"
)

// IndexerStatus represents the health status of an indexer.
type IndexerStatus struct {
	IndexerID         int64      `json:"indexerId"`
	IndexerName       string     `json:"indexerName,omitempty"`
	EscalationLevel   int        `json:"escalationLevel"`
	InitialFailure    *time.Time `json:"initialFailure,omitempty"`
	MostRecentFailure *time.Time `json:"mostRecentFailure,omitempty"`
	LastSuccess       *time.Time `json:"lastSuccess,omitempty"`
	DisabledTill      *time.Time `json:"disabledTill,omitempty"`
	LastRSSSync       *time.Time `json:"lastRssSync,omitempty"`
	IsDisabled        bool       `json:"isDisabled"`
}

// HealthStatus represents the overall health of an indexer.
type HealthStatus string

const (
	HealthStatusHealthy  HealthStatus = "healthy"
	HealthStatusWarning  HealthStatus = "warning"
	HealthStatusDisabled HealthStatus = "disabled"
)

// IndexerHealth provides a summary of indexer health.
type IndexerHealth struct {
	IndexerID   int64        `json:"indexerId"`
	IndexerName string       `json:"indexerName"`
	Status      HealthStatus `json:"status"`
	Message     string       `json:"message,omitempty"`
	LastSuccess *time.Time   `json:"lastSuccess,omitempty"`
	LastFailure *time.Time   `json:"lastFailure,omitempty"`
	DisabledFor *Duration    `json:"disabledFor,omitempty"`
}

// Duration is a JSON-serializable duration.
type Duration struct {
	time.Duration
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// BackoffPeriods returns the escalating backoff periods, indexed by
// consecutive failure count. The first failure carries no cooldown;
// the table saturates at 24 hours.
func BackoffPeriods() []time.Duration {
	return []time.Duration{
		0,
		1 * time.Minute,
		5 * time.Minute,
		15 * time.Minute,
		30 * time.Minute,
		1 * time.Hour,
		24 * time.Hour,
	}
}

// BackoffFor returns the cooldown for the given consecutive failure count.
func BackoffFor(failures int) time.Duration {
	periods := BackoffPeriods()
	if failures <= 0 {
		return 0
	}
	if failures > len(periods) {
		return periods[len(periods)-1]
	}
	return periods[failures-1]
}
