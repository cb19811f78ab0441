package filters

import (
	"errors"
	"sort"

	"github.com/Fatnaoui/crawler-project/pkg/document"
)

// ErrInvalidConfig is returned by filter constructors when thresholds are inconsistent
var ErrInvalidConfig = errors.New("invalid filter configuration")

// Filter is one stage of the quality chain. Implementations may rewrite
// doc.Content.Text and metadata in place and return exactly one verdict.
type Filter interface {
	Name() string
	Description() string
	Filter(doc *document.Document) Verdict
	Stats() *Stats
}

// Verdict is the outcome of one filter invocation: accept, or reject with a reason
type Verdict struct {
	rejected bool
	reason   string
}

// Accept keeps the document in the main stream
func Accept() Verdict {
	return Verdict{}
}

// Reject drops the document with a machine-readable reason
func Reject(reason string) Verdict {
	return Verdict{rejected: true, reason: reason}
}

// Accepted reports whether the document passed the stage
func (v Verdict) Accepted() bool {
	return !v.rejected
}

// Reason returns the rejection reason, or "" for accepted documents
func (v Verdict) Reason() string {
	return v.reason
}

func (v Verdict) String() string {
	if v.rejected {
		return "reject(" + v.reason + ")"
	}
	return "accept"
}

// Stats holds per-instance counters. Each worker owns its own filter
// instances, so no locking is done here.
type Stats struct {
	counts map[string]int64
}

// NewStats creates an empty counter set
func NewStats() *Stats {
	return &Stats{counts: make(map[string]int64)}
}

// Inc increments a counter by one
func (s *Stats) Inc(key string) {
	s.counts[key]++
}

// Add increments a counter by n
func (s *Stats) Add(key string, n int64) {
	s.counts[key] += n
}

// Get returns a counter value
func (s *Stats) Get(key string) int64 {
	return s.counts[key]
}

// Keys returns counter names in sorted order
func (s *Stats) Keys() []string {
	keys := make([]string, 0, len(s.counts))
	for k := range s.counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns a copy of all counters
func (s *Stats) Snapshot() map[string]int64 {
	out := make(map[string]int64, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

// Float returns a pointer to v, for optional thresholds
func Float(v float64) *float64 {
	return &v
}

// Int returns a pointer to v, for optional thresholds
func Int(v int) *int {
	return &v
}

// enabledFloat mirrors the falsy-disables convention: nil or zero skips the check
func enabledFloat(p *float64) bool {
	return p != nil && *p != 0
}

func enabledInt(p *int) bool {
	return p != nil && *p != 0
}

// ratio divides with an explicit zero-denominator guard
func ratio(num, den int) (float64, bool) {
	if den == 0 {
		return 0, false
	}
	return float64(num) / float64(den), true
}
