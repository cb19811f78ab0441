package pipeline

import (
	"fmt"

	"github.com/pemistahl/lingua-go"

	"github.com/Fatnaoui/crawler-project/internal/filters"
	config "github.com/Fatnaoui/crawler-project/pkg/pipeline"
	"github.com/Fatnaoui/crawler-project/pkg/segment"
)

// StageFactory builds a fresh chain for one rank
type StageFactory func() (*Chain, error)

// NewStageFactory returns a factory for the stages listed in cfg. The
// language detector holds large models, so it is built once and shared by
// every chain; the factory is tried once so config errors surface here.
func NewStageFactory(cfg *config.PipelineConfig, seg segment.Segmenter) (StageFactory, error) {
	var detector lingua.LanguageDetector
	for _, name := range cfg.Stages {
		if name != config.StageLanguage {
			continue
		}
		d, err := filters.NewLanguageDetector(cfg.Filters.Language)
		if err != nil {
			return nil, err
		}
		detector = d
	}

	factory := func() (*Chain, error) {
		stages := make([]filters.Filter, 0, len(cfg.Stages))
		for _, name := range cfg.Stages {
			stage, err := buildStage(name, cfg.Filters, seg, detector)
			if err != nil {
				return nil, fmt.Errorf("failed to build stage %s: %w", name, err)
			}
			stages = append(stages, stage)
		}
		return NewChain(stages...), nil
	}

	if _, err := factory(); err != nil {
		return nil, err
	}
	return factory, nil
}

func buildStage(name string, fc *config.FiltersConfig, seg segment.Segmenter, detector lingua.LanguageDetector) (filters.Filter, error) {
	switch name {
	case config.StageNormalization:
		return filters.NewArabicNormalizer(fc.Normalization), nil
	case config.StageRepetition:
		return filters.NewGopherRepetitionFilter(fc.Repetition, seg)
	case config.StageGopher:
		return filters.NewGopherQualityFilter(fc.Gopher, seg)
	case config.StageC4:
		return filters.NewC4QualityFilter(fc.C4, seg)
	case config.StageFineWeb:
		return filters.NewFineWebQualityFilter(fc.FineWeb, seg)
	case config.StageLanguage:
		return filters.NewLanguageFilter(fc.Language, detector)
	}
	return nil, fmt.Errorf("%w: unknown stage %q", config.ErrInvalidConfig, name)
}
