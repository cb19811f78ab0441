package pipeline

import (
	"github.com/Fatnaoui/crawler-project/internal/filters"
	"github.com/Fatnaoui/crawler-project/pkg/document"
)

// Chain applies filter stages to one document in sequence. A chain belongs
// to one rank and is not safe for concurrent use.
type Chain struct {
	stages   []filters.Filter
	counters []*filters.Stats
}

// NewChain creates a chain running stages in the given order
func NewChain(stages ...filters.Filter) *Chain {
	counters := make([]*filters.Stats, len(stages))
	for i := range counters {
		counters[i] = filters.NewStats()
	}
	return &Chain{stages: stages, counters: counters}
}

// Len returns the number of stages
func (c *Chain) Len() int {
	return len(c.stages)
}

// Stages returns the stages in execution order
func (c *Chain) Stages() []filters.Filter {
	return c.stages
}

// Process runs doc through every stage and stops at the first rejection.
// It returns the position of the rejecting stage, or -1 when doc was kept.
// A rejected document carries its reason under filter_reason.
func (c *Chain) Process(doc *document.Document) (int, filters.Verdict) {
	for i, stage := range c.stages {
		c.counters[i].Inc(CounterTotal)

		verdict := stage.Filter(doc)
		if !verdict.Accepted() {
			c.counters[i].Inc(CounterDropped)
			doc.Meta()[document.MetaFilterReason] = verdict.Reason()
			return i, verdict
		}
		c.counters[i].Inc(CounterForwarded)
	}
	return -1, filters.Accept()
}

// StageCounts merges the chain counters of stage i with the stage's own stats
func (c *Chain) StageCounts(i int) map[string]int64 {
	counts := c.stages[i].Stats().Snapshot()
	for k, v := range c.counters[i].Snapshot() {
		counts[k] += v
	}
	return counts
}

// GetEnabledStages returns stage names in execution order
func (c *Chain) GetEnabledStages() []string {
	names := make([]string, len(c.stages))
	for i, stage := range c.stages {
		names[i] = stage.Name()
	}
	return names
}

// GetAvailableStages returns every stage name with its description
func (c *Chain) GetAvailableStages() map[string]string {
	out := make(map[string]string, len(c.stages))
	for _, stage := range c.stages {
		out[stage.Name()] = stage.Description()
	}
	return out
}
