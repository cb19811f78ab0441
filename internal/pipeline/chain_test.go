package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fatnaoui/crawler-project/internal/filters"
	"github.com/Fatnaoui/crawler-project/pkg/document"
	config "github.com/Fatnaoui/crawler-project/pkg/pipeline"
)

// markFilter appends its name to the text and rejects when reason is set
type markFilter struct {
	name   string
	reason string
	stats  *filters.Stats
}

func newMark(name, reason string) *markFilter {
	return &markFilter{name: name, reason: reason, stats: filters.NewStats()}
}

func (m *markFilter) Name() string          { return m.name }
func (m *markFilter) Description() string   { return "test stage " + m.name }
func (m *markFilter) Stats() *filters.Stats { return m.stats }

func (m *markFilter) Filter(doc *document.Document) filters.Verdict {
	doc.Content.Text += "|" + m.name
	if m.reason != "" {
		m.stats.Inc(m.reason)
		return filters.Reject(m.reason)
	}
	return filters.Accept()
}

func TestChainStopsAtFirstRejection(t *testing.T) {
	chain := NewChain(newMark("a", ""), newMark("b", "too_short"), newMark("c", ""))
	assert.Equal(t, 3, chain.Len())
	assert.Equal(t, []string{"a", "b", "c"}, chain.GetEnabledStages())

	doc := document.New("x")
	idx, verdict := chain.Process(doc)
	assert.Equal(t, 1, idx)
	assert.False(t, verdict.Accepted())
	assert.Equal(t, "too_short", verdict.Reason())
	assert.Equal(t, "x|a|b", doc.Content.Text, "later stages never see a rejected document")
	assert.Equal(t, "too_short", doc.MetaString(document.MetaFilterReason))

	assert.Equal(t, map[string]int64{CounterTotal: 1, CounterForwarded: 1}, chain.StageCounts(0))
	assert.Equal(t, map[string]int64{CounterTotal: 1, CounterDropped: 1, "too_short": 1}, chain.StageCounts(1))
	assert.Empty(t, chain.StageCounts(2))
}

func TestChainKeepsDocument(t *testing.T) {
	chain := NewChain(newMark("a", ""), newMark("b", ""))
	doc := document.New("x")
	idx, verdict := chain.Process(doc)
	assert.Equal(t, -1, idx)
	assert.True(t, verdict.Accepted())
	assert.Empty(t, doc.MetaString(document.MetaFilterReason))
	assert.Equal(t, map[string]string{"a": "test stage a", "b": "test stage b"}, chain.GetAvailableStages())
}

func TestStageFactoryBuildsConfiguredOrder(t *testing.T) {
	cfg := config.DefaultPipelineConfig()
	cfg.Stages = []string{config.StageFineWeb, config.StageNormalization, config.StageRepetition, config.StageGopher, config.StageC4}

	factory, err := NewStageFactory(cfg, nil)
	require.NoError(t, err)

	a, err := factory()
	require.NoError(t, err)
	b, err := factory()
	require.NoError(t, err)
	assert.Equal(t, cfg.Stages, a.GetEnabledStages())
	assert.NotSame(t, a.Stages()[0], b.Stages()[0], "each rank owns its filter instances")
}

func TestStageFactoryErrors(t *testing.T) {
	cfg := config.DefaultPipelineConfig()
	cfg.Stages = []string{"unknown"}
	_, err := NewStageFactory(cfg, nil)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	cfg = config.DefaultPipelineConfig()
	cfg.Stages = []string{config.StageGopher}
	cfg.Filters.Gopher.MinDocWords = filters.Int(100)
	cfg.Filters.Gopher.MaxDocWords = filters.Int(10)
	_, err = NewStageFactory(cfg, nil)
	assert.ErrorIs(t, err, filters.ErrInvalidConfig)
}
