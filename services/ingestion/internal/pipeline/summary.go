package pipeline

import (
	"fmt"
	"time"
)

const maxErrorMessages = 50

type SourceStats struct {
	Fetched      int `json:"fetched"`
	NewOrChanged int `json:"newOrChanged"`
	Errors       int `json:"errors"`
}

type Summary struct {
	RunID         string                  `json:"runId"`
	StartedAt     time.Time               `json:"startedAt"`
	Duration      time.Duration           `json:"duration"`
	Fetched       int                     `json:"fetched"`
	UniqueByHash  int                     `json:"uniqueByHash"`
	NewOrChanged  int                     `json:"newOrChanged"`
	Unchanged     int                     `json:"unchanged"`
	Upserts       int                     `json:"upserts"`
	Inserted      int                     `json:"inserted"`
	Archived      int                     `json:"archived"`
	Published     int                     `json:"published"`
	Errors        int                     `json:"errors"`
	ErrorMessages []string                `json:"errorMessages,omitempty"`
	PerSource     map[string]*SourceStats `json:"perSource"`
}

func newSummary(runID string, now time.Time) *Summary {
	return &Summary{
		RunID:     runID,
		StartedAt: now,
		PerSource: make(map[string]*SourceStats),
	}
}

func (s *Summary) source(name string) *SourceStats {
	if name == "" {
		name = "unknown"
	}
	st, ok := s.PerSource[name]
	if !ok {
		st = &SourceStats{}
		s.PerSource[name] = st
	}
	return st
}

func (s *Summary) addError(source string, format string, args ...interface{}) {
	s.Errors++
	if source != "" {
		s.source(source).Errors++
	}
	if len(s.ErrorMessages) < maxErrorMessages {
		s.ErrorMessages = append(s.ErrorMessages, fmt.Sprintf(format, args...))
	}
}
