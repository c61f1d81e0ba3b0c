// Package storage keeps a history of computed reports in Redis.
package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when no report has been stored yet
var ErrNotFound = errors.New("no stored report")

// HistoryStats describes the stored report history of one member
type HistoryStats struct {
	MemberKey string    `json:"member_key"`
	Count     int64     `json:"count"`
	Oldest    time.Time `json:"oldest,omitempty"`
	Newest    time.Time `json:"newest,omitempty"`
	Limit     int64     `json:"limit"`
}
