package models

import (
	"time"
)

// ApiKey is one row of the allow-list. Existence of a row is the whole
// authorization check: keys carry no scopes, expiry or rate limits.
type ApiKey struct {
	Key       string    `json:"key" db:"key"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	CreatedBy string    `json:"created_by" db:"created_by"`
}

// LogEntry is one audit record, written once per relay request before the
// upstream call is attempted. Never updated or deleted.
type LogEntry struct {
	ID        int64     `json:"id" db:"id"`
	KeyUsed   string    `json:"key_used" db:"key_used"`
	URL       string    `json:"url" db:"url"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	IP        string    `json:"ip" db:"ip"`
}
