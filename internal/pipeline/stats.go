package pipeline

import (
	"sort"
	"sync"
	"time"

	"github.com/Fatnaoui/crawler-project/internal/storage"
)

// ReaderStage holds counters of the WARC reading and extraction step. It
// sorts before every filter stage.
const (
	ReaderStage      = "reader"
	ReaderStageIndex = -1
)

// Chain counters recorded for every stage
const (
	CounterTotal     = "total"
	CounterForwarded = "forwarded"
	CounterDropped   = "dropped"
)

// StageCounters is the merged view of one stage across ranks
type StageCounters struct {
	Name     string           `json:"name"`
	Index    int              `json:"index"`
	Counters map[string]int64 `json:"counters"`
}

// RunStats aggregates per-rank counters. Ranks merge once when they finish.
type RunStats struct {
	mu            sync.RWMutex
	stages        map[int]*StageCounters
	ranks         int
	documentsRead int64
	documentsKept int64
	started       time.Time
}

// NewRunStats creates an empty aggregate
func NewRunStats() *RunStats {
	return &RunStats{
		stages:  make(map[int]*StageCounters),
		started: time.Now(),
	}
}

// MergeStage adds counts onto the stage at index
func (s *RunStats) MergeStage(index int, name string, counts map[string]int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stage := s.stages[index]
	if stage == nil {
		stage = &StageCounters{Name: name, Index: index, Counters: make(map[string]int64)}
		s.stages[index] = stage
	}
	for k, v := range counts {
		stage.Counters[k] += v
	}
}

// MergeRank records the document totals of one finished rank
func (s *RunStats) MergeRank(read, kept int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ranks++
	s.documentsRead += read
	s.documentsKept += kept
}

// Documents returns the documents read and kept so far
func (s *RunStats) Documents() (read, kept int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.documentsRead, s.documentsKept
}

// Stages returns a copy of every stage ordered by position
func (s *RunStats) Stages() []StageCounters {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]StageCounters, 0, len(s.stages))
	for _, stage := range s.stages {
		counters := make(map[string]int64, len(stage.Counters))
		for k, v := range stage.Counters {
			counters[k] = v
		}
		out = append(out, StageCounters{Name: stage.Name, Index: stage.Index, Counters: counters})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Stage returns the counters of the named stage
func (s *RunStats) Stage(name string) (StageCounters, bool) {
	for _, stage := range s.Stages() {
		if stage.Name == name {
			return stage, true
		}
	}
	return StageCounters{}, false
}

// LedgerStats flattens the aggregate into ledger rows
func (s *RunStats) LedgerStats() []storage.StageStat {
	var rows []storage.StageStat
	for _, stage := range s.Stages() {
		keys := make([]string, 0, len(stage.Counters))
		for k := range stage.Counters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			rows = append(rows, storage.StageStat{
				Stage:   stage.Name,
				Index:   stage.Index,
				Counter: k,
				Value:   stage.Counters[k],
			})
		}
	}
	return rows
}

// GetSummary returns a summary for logs and the CLI
func (s *RunStats) GetSummary() map[string]interface{} {
	stages := s.Stages()

	s.mu.RLock()
	defer s.mu.RUnlock()

	byStage := make(map[string]map[string]int64, len(stages))
	for _, stage := range stages {
		byStage[stage.Name] = stage.Counters
	}
	keepRate := 0.0
	if s.documentsRead > 0 {
		keepRate = float64(s.documentsKept) / float64(s.documentsRead) * 100.0
	}
	return map[string]interface{}{
		"ranks":          s.ranks,
		"documents_read": s.documentsRead,
		"documents_kept": s.documentsKept,
		"keep_rate":      keepRate,
		"elapsed":        time.Since(s.started).String(),
		"by_stage":       byStage,
	}
}
