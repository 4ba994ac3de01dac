package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"bloodlink/internal/geoindex"
	"bloodlink/internal/pipeline"
	"bloodlink/internal/registry"
	"bloodlink/pkg/domain"
	"bloodlink/pkg/geo"
	"bloodlink/pkg/logger"
	"bloodlink/pkg/notify"
)

func TestMain(m *testing.M) {
	logger.Setup(logger.DevelopmentEnvironment)
	m.Run()
}

var hospital = geo.Point{Lat: 12.9716, Lng: 77.5946}

func newRun(reqID domain.RequestID) domain.PipelineRun {
	return domain.PipelineRun{
		ID:        domain.RunID(uuid.New()),
		RequestID: reqID,
	}
}

func newRequest(bt domain.BloodType, urgency domain.Urgency) domain.BloodRequest {
	return domain.BloodRequest{
		ID:          domain.RequestID(uuid.New()),
		RequesterID: domain.RequesterID(uuid.New()),
		BloodType:   bt,
		Location:    hospital,
		Units:       2,
		Urgency:     urgency,
		CreatedAt:   time.Now(),
	}
}

func donorAt(bt domain.BloodType, lat, lng float64, mut func(*domain.Donor)) domain.Donor {
	d := domain.Donor{
		ID:        domain.DonorID(uuid.New()),
		BloodType: bt,
		Location:  geo.Point{Lat: lat, Lng: lng},
		Available: true,
		Rating:    4,
	}
	if mut != nil {
		mut(&d)
	}

	return d
}

func snapshotOf(donors ...domain.Donor) *registry.Snapshot {
	r := registry.New(geoindex.DefaultCellSizeKm)
	r.Load(donors)

	return r.Snapshot()
}

// recorder captures notifications and state transitions.
type recorder struct {
	mu       sync.Mutex
	messages []notify.Message
	states   []domain.RunState
}

func (r *recorder) notifier() notify.Notifier {
	return notify.Func(func(_ context.Context, msg notify.Message) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.messages = append(r.messages, msg)

		return nil
	})
}

func (r *recorder) hooks() pipeline.Hooks {
	return pipeline.Hooks{
		OnTransition: func(_ context.Context, run domain.PipelineRun) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.states = append(r.states, run.State)

			return nil
		},
	}
}

func TestExecute_HappyPath(t *testing.T) {
	rec := &recorder{}
	p := pipeline.New(pipeline.DefaultConfig(), rec.notifier(), nil)

	req := newRequest(domain.BloodAPos, domain.UrgencyUrgent)
	snap := snapshotOf(
		donorAt(domain.BloodOPos, 12.9750, 77.6000, nil),
		donorAt(domain.BloodAPos, 12.9760, 77.6010, nil),
		donorAt(domain.BloodBPos, 12.9770, 77.6020, nil), // incompatible
	)

	run, err := p.Execute(context.Background(), newRun(req.ID), req, snap, rec.hooks())
	require.NoError(t, err)

	require.Equal(t, domain.RunStateComplete, run.State)
	require.False(t, run.FinishedAt.IsZero())
	require.Len(t, run.Candidates, 2, "incompatible donors never become candidates")
	require.Equal(t, []domain.RunState{
		domain.RunStateValidating,
		domain.RunStateSearching,
		domain.RunStateRanking,
		domain.RunStateNotifying,
		domain.RunStateComplete,
	}, rec.states)

	for i, c := range run.Candidates {
		require.Equal(t, i+1, c.Rank)
		require.Equal(t, domain.NotifySent, c.Notification)
	}
	require.Len(t, rec.messages, 2)
}

func TestExecute_ValidationFailure(t *testing.T) {
	rec := &recorder{}
	p := pipeline.New(pipeline.DefaultConfig(), rec.notifier(), nil)

	req := newRequest(domain.BloodAPos, domain.UrgencyRoutine)
	req.Units = 50

	run, err := p.Execute(context.Background(), newRun(req.ID), req, snapshotOf(), rec.hooks())
	require.NoError(t, err)

	require.Equal(t, domain.RunStateFailed, run.State)
	require.Contains(t, run.FailureReason, "units")
	require.Empty(t, rec.messages)
	require.Equal(t, []domain.RunState{domain.RunStateValidating, domain.RunStateFailed}, rec.states)
}

func TestExecute_NoDonorsIsComplete(t *testing.T) {
	rec := &recorder{}
	p := pipeline.New(pipeline.DefaultConfig(), rec.notifier(), nil)

	// O- recipients accept only O-; none registered
	req := newRequest(domain.BloodONeg, domain.UrgencyUrgent)
	snap := snapshotOf(donorAt(domain.BloodAPos, 12.9750, 77.6000, nil))

	run, err := p.Execute(context.Background(), newRun(req.ID), req, snap, rec.hooks())
	require.NoError(t, err)

	require.Equal(t, domain.RunStateComplete, run.State, "no donors found is a valid outcome, not a failure")
	require.Empty(t, run.Candidates)
	require.Empty(t, rec.messages)
}

func TestExecute_CriticalWidensRadius(t *testing.T) {
	rec := &recorder{}
	p := pipeline.New(pipeline.DefaultConfig(), rec.notifier(), nil)

	// nearest compatible donor ~42km out; critical must widen 5->10->25->50
	far := donorAt(domain.BloodONeg, 13.3500, 77.6000, nil)
	req := newRequest(domain.BloodABPos, domain.UrgencyCritical)

	run, err := p.Execute(context.Background(), newRun(req.ID), req, snapshotOf(far), rec.hooks())
	require.NoError(t, err)

	require.Equal(t, domain.RunStateComplete, run.State)
	require.InDelta(t, 50, run.SearchRadiusKm, 1e-9)
	require.Len(t, run.Candidates, 1)
	require.Equal(t, far.ID, run.Candidates[0].DonorID)
}

func TestExecute_CriticalStopsOnceUnitsCovered(t *testing.T) {
	rec := &recorder{}
	p := pipeline.New(pipeline.DefaultConfig(), rec.notifier(), nil)

	nearA := donorAt(domain.BloodONeg, 12.9750, 77.6000, nil)
	nearB := donorAt(domain.BloodOPos, 12.9760, 77.6010, nil)
	far := donorAt(domain.BloodABPos, 13.3500, 77.6000, nil) // ~42km

	req := newRequest(domain.BloodABPos, domain.UrgencyCritical) // units: 2
	run, err := p.Execute(context.Background(), newRun(req.ID), req, snapshotOf(nearA, nearB, far), rec.hooks())
	require.NoError(t, err)

	require.InDelta(t, 5, run.SearchRadiusKm, 1e-9, "two eligible donors nearby cover two units")
	require.Len(t, run.Candidates, 2)
}

func TestExecute_CriticalWidensUntilUnitsCovered(t *testing.T) {
	rec := &recorder{}
	p := pipeline.New(pipeline.DefaultConfig(), rec.notifier(), nil)

	near := donorAt(domain.BloodONeg, 12.9750, 77.6000, nil)
	far := donorAt(domain.BloodABPos, 13.3500, 77.6000, nil) // ~42km

	req := newRequest(domain.BloodABPos, domain.UrgencyCritical) // units: 2
	run, err := p.Execute(context.Background(), newRun(req.ID), req, snapshotOf(near, far), rec.hooks())
	require.NoError(t, err)

	require.InDelta(t, 50, run.SearchRadiusKm, 1e-9, "one nearby donor does not cover two units")
	require.Len(t, run.Candidates, 2)
	ids := []domain.DonorID{run.Candidates[0].DonorID, run.Candidates[1].DonorID}
	require.Contains(t, ids, near.ID)
	require.Contains(t, ids, far.ID)
}

func TestExecute_CriticalWideningSkipsGatedDonors(t *testing.T) {
	rec := &recorder{}
	p := pipeline.New(pipeline.DefaultConfig(), rec.notifier(), nil)

	unavailable := donorAt(domain.BloodONeg, 12.9750, 77.6000, func(d *domain.Donor) {
		d.Available = false
	})
	far := donorAt(domain.BloodABPos, 13.3500, 77.6000, nil) // ~42km

	req := newRequest(domain.BloodABPos, domain.UrgencyCritical)
	req.Units = 1

	run, err := p.Execute(context.Background(), newRun(req.ID), req, snapshotOf(unavailable, far), rec.hooks())
	require.NoError(t, err)

	require.InDelta(t, 50, run.SearchRadiusKm, 1e-9, "a gated donor nearby must not stop the ladder")
	require.Len(t, run.Candidates, 1)
	require.Equal(t, far.ID, run.Candidates[0].DonorID)
}

func TestExecute_RoutineDoesNotWiden(t *testing.T) {
	rec := &recorder{}
	p := pipeline.New(pipeline.DefaultConfig(), rec.notifier(), nil)

	far := donorAt(domain.BloodONeg, 13.3500, 77.6000, nil)
	req := newRequest(domain.BloodABPos, domain.UrgencyRoutine)

	run, err := p.Execute(context.Background(), newRun(req.ID), req, snapshotOf(far), rec.hooks())
	require.NoError(t, err)

	require.Empty(t, run.Candidates)
	require.InDelta(t, 5, run.SearchRadiusKm, 1e-9)
}

func TestExecute_HardGatesExcludeBeforeScoring(t *testing.T) {
	rec := &recorder{}
	p := pipeline.New(pipeline.DefaultConfig(), rec.notifier(), nil)

	eligible := donorAt(domain.BloodOPos, 12.9750, 77.6000, nil)
	unavailable := donorAt(domain.BloodOPos, 12.9751, 77.6001, func(d *domain.Donor) {
		d.Available = false
	})
	deferred := donorAt(domain.BloodOPos, 12.9752, 77.6002, func(d *domain.Donor) {
		d.LastDonationAt = time.Now().Add(-10 * 24 * time.Hour)
	})

	req := newRequest(domain.BloodAPos, domain.UrgencyUrgent)
	run, err := p.Execute(context.Background(), newRun(req.ID), req,
		snapshotOf(eligible, unavailable, deferred), rec.hooks())
	require.NoError(t, err)

	require.Len(t, run.Candidates, 1)
	require.Equal(t, eligible.ID, run.Candidates[0].DonorID)
}

func TestExecute_TopNLimitsNotifications(t *testing.T) {
	cfg := pipeline.DefaultConfig()
	cfg.TopN = 2

	rec := &recorder{}
	p := pipeline.New(cfg, rec.notifier(), nil)

	snap := snapshotOf(
		donorAt(domain.BloodOPos, 12.9750, 77.6000, nil),
		donorAt(domain.BloodOPos, 12.9760, 77.6010, nil),
		donorAt(domain.BloodOPos, 12.9770, 77.6020, nil),
		donorAt(domain.BloodOPos, 12.9780, 77.6030, nil),
	)

	req := newRequest(domain.BloodAPos, domain.UrgencyUrgent)
	run, err := p.Execute(context.Background(), newRun(req.ID), req, snap, rec.hooks())
	require.NoError(t, err)

	require.Len(t, run.Candidates, 4)
	require.Len(t, rec.messages, 2, "only top-N candidates are notified")
	require.Equal(t, domain.NotifySent, run.Candidates[0].Notification)
	require.Equal(t, domain.NotifySent, run.Candidates[1].Notification)
	require.Empty(t, run.Candidates[2].Notification)
	require.Empty(t, run.Candidates[3].Notification)
}

func TestExecute_NotificationFailureDoesNotFailRun(t *testing.T) {
	cfg := pipeline.DefaultConfig()
	cfg.NotifyConcurrency = 1

	var calls int
	flaky := notify.Func(func(_ context.Context, _ notify.Message) error {
		calls++
		if calls == 1 {
			return errors.New("gateway exploded")
		}

		return nil
	})

	p := pipeline.New(cfg, flaky, nil)

	snap := snapshotOf(
		donorAt(domain.BloodOPos, 12.9750, 77.6000, func(d *domain.Donor) { d.Verified = true }),
		donorAt(domain.BloodOPos, 12.9760, 77.6010, nil),
	)

	req := newRequest(domain.BloodAPos, domain.UrgencyUrgent)
	run, err := p.Execute(context.Background(), newRun(req.ID), req, snap, pipeline.Hooks{})
	require.NoError(t, err)

	require.Equal(t, domain.RunStateComplete, run.State, "partial notification success still completes the run")
	require.Equal(t, domain.NotifyFailed, run.Candidates[0].Notification)
	require.Contains(t, run.Candidates[0].NotificationError, "gateway exploded")
	require.Equal(t, domain.NotifySent, run.Candidates[1].Notification)
}

func TestExecute_NotificationTimeout(t *testing.T) {
	cfg := pipeline.DefaultConfig()
	cfg.NotifyTimeout = 20 * time.Millisecond

	slow := notify.Func(func(ctx context.Context, _ notify.Message) error {
		<-ctx.Done()

		return ctx.Err()
	})

	p := pipeline.New(cfg, slow, nil)

	snap := snapshotOf(donorAt(domain.BloodOPos, 12.9750, 77.6000, nil))
	req := newRequest(domain.BloodAPos, domain.UrgencyUrgent)

	run, err := p.Execute(context.Background(), newRun(req.ID), req, snap, pipeline.Hooks{})
	require.NoError(t, err)

	require.Equal(t, domain.RunStateComplete, run.State)
	require.Equal(t, domain.NotifyTimeout, run.Candidates[0].Notification)
}

func TestExecute_CancelBeforeNotifying(t *testing.T) {
	rec := &recorder{}
	p := pipeline.New(pipeline.DefaultConfig(), rec.notifier(), nil)

	snap := snapshotOf(donorAt(domain.BloodOPos, 12.9750, 77.6000, nil))
	req := newRequest(domain.BloodAPos, domain.UrgencyUrgent)

	hooks := rec.hooks()
	var polls int
	hooks.CancelRequested = func(context.Context) (bool, error) {
		polls++

		// cancel lands while the run is in Ranking
		return polls >= 3, nil
	}

	run, err := p.Execute(context.Background(), newRun(req.ID), req, snap, hooks)
	require.NoError(t, err)

	require.Equal(t, domain.RunStateCancelled, run.State)
	require.False(t, run.FinishedAt.IsZero())
	require.Empty(t, rec.messages, "cancellation before Notifying sends nothing")
}

func TestExecute_CancelBeforeSearching(t *testing.T) {
	rec := &recorder{}
	p := pipeline.New(pipeline.DefaultConfig(), rec.notifier(), nil)

	snap := snapshotOf(donorAt(domain.BloodOPos, 12.9750, 77.6000, nil))
	req := newRequest(domain.BloodAPos, domain.UrgencyUrgent)

	hooks := rec.hooks()
	hooks.CancelRequested = func(context.Context) (bool, error) {
		return true, nil
	}

	run, err := p.Execute(context.Background(), newRun(req.ID), req, snap, hooks)
	require.NoError(t, err)

	require.Equal(t, domain.RunStateCancelled, run.State)
	require.Empty(t, run.Candidates)
	require.Equal(t, []domain.RunState{domain.RunStateValidating, domain.RunStateCancelled}, rec.states)
}

func TestExecute_CancelDuringNotifying(t *testing.T) {
	cfg := pipeline.DefaultConfig()
	cfg.NotifyConcurrency = 1

	var (
		mu         sync.Mutex
		cancelFlag bool
		sent       int
	)

	// cancel lands while the first dispatch is in flight
	notifier := notify.Func(func(_ context.Context, _ notify.Message) error {
		mu.Lock()
		defer mu.Unlock()
		sent++
		cancelFlag = true

		return nil
	})

	p := pipeline.New(cfg, notifier, nil)

	snap := snapshotOf(
		donorAt(domain.BloodOPos, 12.9750, 77.6000, nil),
		donorAt(domain.BloodOPos, 12.9760, 77.6010, nil),
		donorAt(domain.BloodOPos, 12.9770, 77.6020, nil),
	)

	hooks := pipeline.Hooks{
		CancelRequested: func(context.Context) (bool, error) {
			mu.Lock()
			defer mu.Unlock()

			return cancelFlag, nil
		},
	}

	req := newRequest(domain.BloodAPos, domain.UrgencyUrgent)
	run, err := p.Execute(context.Background(), newRun(req.ID), req, snap, hooks)
	require.NoError(t, err)

	require.Equal(t, domain.RunStateCancelled, run.State, "cancellation during Notifying must not complete the run")
	require.Equal(t, 1, sent, "the in-flight dispatch finishes, the rest never start")
	require.Equal(t, domain.NotifySent, run.Candidates[0].Notification)
	require.Equal(t, domain.NotifySkipped, run.Candidates[1].Notification)
	require.Equal(t, domain.NotifySkipped, run.Candidates[2].Notification)
}

func TestExecute_TransitionErrorAborts(t *testing.T) {
	p := pipeline.New(pipeline.DefaultConfig(), nil, nil)

	snap := snapshotOf(donorAt(domain.BloodOPos, 12.9750, 77.6000, nil))
	req := newRequest(domain.BloodAPos, domain.UrgencyUrgent)

	boom := errors.New("db down")
	hooks := pipeline.Hooks{
		OnTransition: func(_ context.Context, run domain.PipelineRun) error {
			if run.State == domain.RunStateSearching {
				return boom
			}

			return nil
		},
	}

	_, err := p.Execute(context.Background(), newRun(req.ID), req, snap, hooks)
	require.ErrorIs(t, err, boom)
}

func TestExecute_RankingIsDeterministic(t *testing.T) {
	p := pipeline.New(pipeline.DefaultConfig(), nil, nil)

	donors := []domain.Donor{
		donorAt(domain.BloodOPos, 12.9750, 77.6000, func(d *domain.Donor) { d.Rating = 5; d.Verified = true }),
		donorAt(domain.BloodOPos, 12.9800, 77.6050, func(d *domain.Donor) { d.Rating = 3 }),
		donorAt(domain.BloodANeg, 12.9900, 77.6100, func(d *domain.Donor) { d.DonationCount = 25 }),
	}
	req := newRequest(domain.BloodAPos, domain.UrgencyUrgent)

	first, err := p.Execute(context.Background(), newRun(req.ID), req, snapshotOf(donors...), pipeline.Hooks{})
	require.NoError(t, err)
	second, err := p.Execute(context.Background(), newRun(req.ID), req, snapshotOf(donors...), pipeline.Hooks{})
	require.NoError(t, err)

	require.Len(t, first.Candidates, 3)
	for i := range first.Candidates {
		require.Equal(t, first.Candidates[i].DonorID, second.Candidates[i].DonorID)
		require.InDelta(t, first.Candidates[i].Score, second.Candidates[i].Score, 1e-9)
	}
}
