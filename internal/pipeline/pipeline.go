// Package pipeline drives a blood request through the matching stages:
// Validating, Searching, Ranking, Notifying, Complete. Each run operates on a
// frozen donor snapshot and observes cancellation cooperatively at stage
// boundaries and between notification dispatches; a cancellation seen during
// Notifying lets in-flight dispatches finish, marks the undispatched
// candidates skipped and finishes the run Cancelled.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bloodlink/internal/match"
	"bloodlink/pkg/domain"
	"bloodlink/pkg/geo"
	"bloodlink/pkg/logger"
	"bloodlink/pkg/metrics"
	"bloodlink/pkg/notify"
)

// Config tunes a pipeline instance. Zero values fall back to defaults.
type Config struct {
	// InitialRadiusKm is the search radius for urgent and routine requests.
	InitialRadiusKm float64
	// CriticalRadiiKm is the widening radius ladder for critical requests.
	// The search keeps widening until the eligible donors found cover the
	// requested units or the ladder is exhausted.
	CriticalRadiiKm []float64
	// TopN caps how many ranked candidates are notified.
	TopN int
	// NotifyTimeout bounds each individual notification dispatch.
	NotifyTimeout time.Duration
	// NotifyConcurrency bounds parallel notification dispatches.
	NotifyConcurrency int
	// Weights configures the candidate scorer.
	Weights match.Weights
	// DeferralPeriod is the post-donation exclusion window.
	DeferralPeriod time.Duration
}

// DefaultConfig returns the production pipeline configuration.
func DefaultConfig() Config {
	return Config{
		InitialRadiusKm:   5,
		CriticalRadiiKm:   []float64{5, 10, 25, 50},
		TopN:              10,
		NotifyTimeout:     5 * time.Second,
		NotifyConcurrency: 4,
		Weights:           match.DefaultWeights(),
		DeferralPeriod:    match.DefaultDeferralPeriod,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.InitialRadiusKm <= 0 {
		c.InitialRadiusKm = d.InitialRadiusKm
	}
	if len(c.CriticalRadiiKm) == 0 {
		c.CriticalRadiiKm = d.CriticalRadiiKm
	}
	if c.TopN <= 0 {
		c.TopN = d.TopN
	}
	if c.NotifyTimeout <= 0 {
		c.NotifyTimeout = d.NotifyTimeout
	}
	if c.NotifyConcurrency <= 0 {
		c.NotifyConcurrency = d.NotifyConcurrency
	}
	if c.DeferralPeriod <= 0 {
		c.DeferralPeriod = d.DeferralPeriod
	}

	return c
}

// DonorSource is the read side a run queries for candidates. Implementations
// must be immutable for the lifetime of the run; registry snapshots satisfy
// this.
type DonorSource interface {
	FindCompatible(center geo.Point, radiusKm float64, recipient domain.BloodType) []domain.Donor
}

// Hooks let the caller persist state transitions and surface cancellation.
// Both are optional; nil hooks make the run purely in-memory.
type Hooks struct {
	// OnTransition is called after every state change with the updated run.
	// An error aborts the run.
	OnTransition func(ctx context.Context, run domain.PipelineRun) error
	// CancelRequested is polled at stage boundaries. Returning true moves the
	// run to Cancelled.
	CancelRequested func(ctx context.Context) (bool, error)
}

// Pipeline executes matching runs. Safe for concurrent use; each Execute
// call is independent.
type Pipeline struct {
	cfg      Config
	scorer   match.Scorer
	notifier notify.Notifier
	metrics  *metrics.Engine
	now      func() time.Time
}

// New creates a Pipeline. A nil metrics engine disables instrumentation.
func New(cfg Config, notifier notify.Notifier, m *metrics.Engine) *Pipeline {
	cfg = cfg.withDefaults()

	return &Pipeline{
		cfg:      cfg,
		scorer:   match.NewScorer(cfg.Weights, cfg.DeferralPeriod),
		notifier: notifier,
		metrics:  m,
		now:      time.Now,
	}
}

// Execute runs the request through the full pipeline and returns the
// finished run. The returned run is always in a terminal state unless the
// error is non-nil, in which case the run reflects the last persisted state
// and the caller may retry.
func (p *Pipeline) Execute(
	ctx context.Context,
	run domain.PipelineRun,
	req domain.BloodRequest,
	donors DonorSource,
	hooks Hooks,
) (domain.PipelineRun, error) {
	ctx = logger.WithFields(ctx,
		zap.String("runId", run.ID.String()),
		zap.String("requestId", req.ID.String()))

	if run.StartedAt.IsZero() {
		run.StartedAt = p.now()
	}

	// Validating
	stageStart := p.now()
	run.State = domain.RunStateValidating
	if err := p.persist(ctx, run, hooks); err != nil {
		return run, err
	}
	if err := req.Validate(); err != nil {
		run.FailureReason = err.Error()

		return p.finish(ctx, run, domain.RunStateFailed, hooks)
	}
	p.metrics.ObserveStage("validating", p.now().Sub(stageStart))

	if cancelled, err := p.cancelRequested(ctx, hooks); err != nil {
		return run, err
	} else if cancelled {
		return p.finish(ctx, run, domain.RunStateCancelled, hooks)
	}

	// Searching
	stageStart = p.now()
	run.State = domain.RunStateSearching
	if err := p.persist(ctx, run, hooks); err != nil {
		return run, err
	}
	found, radius := p.search(req, donors)
	run.SearchRadiusKm = radius
	p.metrics.ObserveStage("searching", p.now().Sub(stageStart))
	logger.Debug(ctx, "search finished",
		zap.Int("found", len(found)),
		zap.Float64("radiusKm", radius))

	if cancelled, err := p.cancelRequested(ctx, hooks); err != nil {
		return run, err
	} else if cancelled {
		return p.finish(ctx, run, domain.RunStateCancelled, hooks)
	}

	// Ranking
	stageStart = p.now()
	run.State = domain.RunStateRanking
	if err := p.persist(ctx, run, hooks); err != nil {
		return run, err
	}
	run.Candidates = p.rank(found, req, radius)
	p.metrics.ObserveStage("ranking", p.now().Sub(stageStart))
	if p.metrics != nil {
		p.metrics.CandidatesRanked.Observe(float64(len(run.Candidates)))
	}

	if cancelled, err := p.cancelRequested(ctx, hooks); err != nil {
		return run, err
	} else if cancelled {
		return p.finish(ctx, run, domain.RunStateCancelled, hooks)
	}

	// Notifying. An empty candidate list is a valid outcome; the stage is a
	// no-op then and the run still completes.
	stageStart = p.now()
	run.State = domain.RunStateNotifying
	if err := p.persist(ctx, run, hooks); err != nil {
		return run, err
	}
	byID := make(map[domain.DonorID]domain.Donor, len(found))
	for _, d := range found {
		byID[d.ID] = d
	}
	p.notifyTopCandidates(ctx, &run, req, byID, hooks)
	p.metrics.ObserveStage("notifying", p.now().Sub(stageStart))

	if cancelled, err := p.cancelRequested(ctx, hooks); err != nil {
		return run, err
	} else if cancelled {
		return p.finish(ctx, run, domain.RunStateCancelled, hooks)
	}

	return p.finish(ctx, run, domain.RunStateComplete, hooks)
}

func (p *Pipeline) persist(ctx context.Context, run domain.PipelineRun, hooks Hooks) error {
	if hooks.OnTransition == nil {
		return nil
	}
	if err := hooks.OnTransition(ctx, run); err != nil {
		return fmt.Errorf("could not persist %s transition: %w", run.State, err)
	}

	return nil
}

func (p *Pipeline) finish(
	ctx context.Context,
	run domain.PipelineRun,
	state domain.RunState,
	hooks Hooks,
) (domain.PipelineRun, error) {
	run.State = state
	run.FinishedAt = p.now()

	if err := p.persist(ctx, run, hooks); err != nil {
		return run, err
	}
	p.metrics.RunFinished(string(state))
	logger.Info(ctx, "pipeline run finished",
		zap.String("state", string(state)),
		zap.Int("candidates", len(run.Candidates)),
		zap.String("failureReason", run.FailureReason))

	return run, nil
}

func (p *Pipeline) cancelRequested(ctx context.Context, hooks Hooks) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if hooks.CancelRequested == nil {
		return false, nil
	}

	return hooks.CancelRequested(ctx)
}

// search locates compatible donors. Critical requests walk the widening
// radius ladder until the eligible donors found cover the requested units;
// other urgencies use the initial radius only. Eligibility is gated here as
// well as in rank, so an unavailable or deferred donor nearby never halts
// the widening. Returns the donors and the radius that produced them.
func (p *Pipeline) search(req domain.BloodRequest, donors DonorSource) ([]domain.Donor, float64) {
	radii := []float64{p.cfg.InitialRadiusKm}
	if req.Urgency == domain.UrgencyCritical {
		radii = p.cfg.CriticalRadiiKm
	}

	now := p.now()

	var (
		found  []domain.Donor
		radius float64
	)
	for _, r := range radii {
		radius = r
		found = donors.FindCompatible(req.Location, r, req.BloodType)

		eligible := 0
		for _, d := range found {
			if p.scorer.Eligible(d, now) {
				eligible++
			}
		}
		if eligible >= req.Units {
			break
		}
	}

	return found, radius
}

// rank gates, scores and orders the found donors into the run's candidate
// list. Rank is 1-based.
func (p *Pipeline) rank(found []domain.Donor, req domain.BloodRequest, radiusKm float64) []domain.MatchCandidate {
	now := p.now()

	cands := make([]match.Candidate, 0, len(found))
	for _, d := range found {
		if !p.scorer.Eligible(d, now) {
			continue
		}
		dist := geo.DistanceKm(req.Location, d.Location)
		cands = append(cands, match.Candidate{
			Donor:      d,
			DistanceKm: dist,
			Score:      p.scorer.Score(d, dist, radiusKm),
		})
	}
	match.Rank(cands)

	out := make([]domain.MatchCandidate, len(cands))
	for i, c := range cands {
		out[i] = domain.MatchCandidate{
			DonorID:    c.Donor.ID,
			DistanceKm: c.DistanceKm,
			Score:      c.Score,
			Rank:       i + 1,
		}
	}

	return out
}

// notifyTopCandidates dispatches notifications to the top-N candidates with
// bounded concurrency and a per-notification timeout. Failures and timeouts
// are recorded on the candidate, never returned; partial notification
// success is a normal outcome. The cancel flag is re-polled before every
// dispatch, so a cancellation arriving mid-stage stops the remaining
// candidates while in-flight dispatches finish.
func (p *Pipeline) notifyTopCandidates(
	ctx context.Context,
	run *domain.PipelineRun,
	req domain.BloodRequest,
	donors map[domain.DonorID]domain.Donor,
	hooks Hooks,
) {
	n := p.cfg.TopN
	if n > len(run.Candidates) {
		n = len(run.Candidates)
	}
	if n == 0 || p.notifier == nil {
		return
	}

	var cancelled atomic.Bool

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.NotifyConcurrency)

	for i := range run.Candidates[:n] {
		cand := &run.Candidates[i]
		g.Go(func() error {
			// the run is being torn down or cancelled; do not start new dispatches
			if gctx.Err() != nil || cancelled.Load() {
				cand.Notification = domain.NotifySkipped
				p.metrics.NotificationOutcome(string(domain.NotifySkipped))

				return nil
			}
			if c, pollErr := p.cancelRequested(gctx, hooks); pollErr == nil && c {
				cancelled.Store(true)
				cand.Notification = domain.NotifySkipped
				p.metrics.NotificationOutcome(string(domain.NotifySkipped))

				return nil
			}

			nctx, cancel := context.WithTimeout(gctx, p.cfg.NotifyTimeout)
			defer cancel()

			err := p.notifier.Notify(nctx, notify.Message{
				Donor:      donors[cand.DonorID],
				RequestID:  req.ID,
				BloodType:  req.BloodType,
				Urgency:    req.Urgency,
				DistanceKm: cand.DistanceKm,
			})
			switch {
			case err == nil:
				cand.Notification = domain.NotifySent
			case gctx.Err() != nil:
				cand.Notification = domain.NotifySkipped
			case errors.Is(err, context.DeadlineExceeded):
				cand.Notification = domain.NotifyTimeout
				logger.Warn(ctx, "notification timed out", zap.String("donorId", cand.DonorID.String()))
			default:
				cand.Notification = domain.NotifyFailed
				cand.NotificationError = err.Error()
				logger.Warn(ctx, "notification failed",
					zap.String("donorId", cand.DonorID.String()),
					zap.Error(err))
			}
			p.metrics.NotificationOutcome(string(cand.Notification))

			// notification errors never fail the run
			return nil
		})
	}

	_ = g.Wait()
}
