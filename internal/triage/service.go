package triage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/narcan-finder/internal/advisory"
	"github.com/danielpatrickdp/narcan-finder/internal/history"
	"github.com/danielpatrickdp/narcan-finder/internal/sampler"
)

// ErrEmptyLocationFile is returned when a location file has no content.
var ErrEmptyLocationFile = errors.New("triage: location file is empty")

// #region recorder
// Recorder persists assessments. *history.Store satisfies it.
type Recorder interface {
	Record(e history.Entry) (history.Entry, error)
	SetAdvice(id, advice, adviceErr string) error
}

// #endregion recorder

// #region service
// Result is what Assess hands back to the caller.
type Result struct {
	Assessment
	ID        string
	Advice    string
	AdviceErr error
	Fallback  bool // Advice is local guidance because the backend failed
}

// Service runs a full request: sample, score, record, advise.
type Service struct {
	engine   *Engine
	sampler  sampler.Sampler
	recorder Recorder
	advisor  advisory.Advisor
	logger   *zap.Logger
}

// NewService assembles a service. recorder and advisor may be nil to skip
// persistence or advice.
func NewService(engine *Engine, s sampler.Sampler, recorder Recorder, advisor advisory.Advisor, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{engine: engine, sampler: s, recorder: recorder, advisor: advisor, logger: logger}
}

// Engine exposes the scoring engine for hot reload.
func (s *Service) Engine() *Engine { return s.engine }

// Assess scores symptoms under the current machine load and asks the advisor.
// An advisory failure does not fail the call: Result.AdviceErr is set and
// the local fallback text is returned in its place.
func (s *Service) Assess(ctx context.Context, location, symptoms string) (Result, error) {
	sample := s.sampler.Sample(ctx)
	a := s.engine.Score(sample, symptoms)
	res := Result{Assessment: a}

	s.logger.Info("request scored",
		zap.Float64("score", a.Verdict.Score),
		zap.String("tier", string(a.Verdict.Tier)),
		zap.Bool("overridden", a.Verdict.Overridden),
		zap.Bool("degraded", a.Sample.Degraded))

	if s.recorder != nil {
		entry, err := s.recorder.Record(history.Entry{
			Location: location,
			Symptoms: symptoms,
			Sample:   a.Sample,
			Features: a.Features,
			Wires:    a.Wires,
			Verdict:  a.Verdict,
		})
		if err != nil {
			return res, fmt.Errorf("triage: record: %w", err)
		}
		res.ID = entry.ID
	}

	if s.advisor == nil {
		return res, nil
	}
	advice, err := s.advisor.Advise(ctx, advisory.Request{
		Location: location,
		Symptoms: symptoms,
		Sample:   a.Sample,
		Verdict:  a.Verdict,
	})
	if err != nil {
		s.logger.Warn("advisory failed, using local guidance", zap.Error(err))
		res.AdviceErr = err
		res.Fallback = true
		advice = advisory.Fallback(a.Verdict.Tier)
	}
	res.Advice = advice

	if s.recorder != nil {
		errText := ""
		if res.AdviceErr != nil {
			errText = res.AdviceErr.Error()
		}
		stored := advice
		if res.Fallback {
			stored = ""
		}
		if err := s.recorder.SetAdvice(res.ID, stored, errText); err != nil {
			s.logger.Warn("advice not persisted", zap.String("id", res.ID), zap.Error(err))
		}
	}
	return res, nil
}

// #endregion service

// #region location
// LoadLocation reads a location (address, ZIP, or coordinates) from a file.
func LoadLocation(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("triage: read location: %w", err)
	}
	loc := strings.TrimSpace(string(data))
	if loc == "" {
		return "", ErrEmptyLocationFile
	}
	return loc, nil
}

// #endregion location
