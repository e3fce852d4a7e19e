package model

import (
	"time"

	"github.com/google/uuid"
)

// MaxSearchLogs is the number of most recent search logs that are kept
const MaxSearchLogs = 50

type SearchLogID string

// NewSearchLogID generates a new random SearchLogID
func NewSearchLogID() SearchLogID {
	return SearchLogID(uuid.New().String())
}

type LogStatus string

const (
	LogStatusSuccess LogStatus = "success"
	LogStatusError   LogStatus = "error"
)

// SearchLog records a single search attempt
type SearchLog struct {
	ID          SearchLogID `json:"id" yaml:"id"`
	Query       string      `json:"query" yaml:"query"`
	Timestamp   time.Time   `json:"timestamp" yaml:"timestamp"`
	Duration    int64       `json:"duration" yaml:"duration"`
	ResultCount int         `json:"resultCount" yaml:"result_count"`
	Status      LogStatus   `json:"status" yaml:"status"`
	Error       string      `json:"error,omitempty" yaml:"error,omitempty"`
}
