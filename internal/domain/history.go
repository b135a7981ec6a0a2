package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionHistoryEntry is one finished run. Entries are appended, never edited.
type SessionHistoryEntry struct {
	ID               string               `json:"id"`
	Intervals        []IntervalDefinition `json:"intervals"`
	Date             time.Time            `json:"date"`
	CompletedRepeats map[string]int       `json:"completedRepeats,omitempty"`
}

func NewHistoryEntry(intervals []IntervalDefinition, completed map[string]int, now time.Time) SessionHistoryEntry {
	repeats := make(map[string]int, len(completed))
	for name, n := range completed {
		repeats[name] = n
	}

	return SessionHistoryEntry{
		ID:               uuid.New().String(),
		Intervals:        CloneIntervals(intervals),
		Date:             now.UTC(),
		CompletedRepeats: repeats,
	}
}

// TrainingSeconds is the planned running time of the snapshot.
func (e SessionHistoryEntry) TrainingSeconds() int {
	return TotalSeconds(e.Intervals)
}

type HistoryStats struct {
	TotalSessions         int            `json:"totalSessions"`
	TotalTrainingSeconds  int            `json:"totalTrainingSeconds"`
	AverageSessionSeconds float64        `json:"averageSessionSeconds"`
	LastSessionAt         *time.Time     `json:"lastSessionAt,omitempty"`
	RepeatsByInterval     map[string]int `json:"repeatsByInterval"`
}

func ComputeStats(entries []SessionHistoryEntry) HistoryStats {
	stats := HistoryStats{
		RepeatsByInterval: make(map[string]int),
	}

	for _, e := range entries {
		stats.TotalSessions++
		stats.TotalTrainingSeconds += e.TrainingSeconds()

		if stats.LastSessionAt == nil || e.Date.After(*stats.LastSessionAt) {
			date := e.Date
			stats.LastSessionAt = &date
		}
		for name, n := range e.CompletedRepeats {
			stats.RepeatsByInterval[name] += n
		}
	}

	if stats.TotalSessions > 0 {
		stats.AverageSessionSeconds = float64(stats.TotalTrainingSeconds) / float64(stats.TotalSessions)
	}
	return stats
}
