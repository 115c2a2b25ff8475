// Package platformscheduler runs the long-lived admission loop that
// decides, per tick, which platform gets the next scrape job (spec §4.E).
package platformscheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/priceguard/sentinel/internal/job"
	"github.com/priceguard/sentinel/internal/queue"
)

const liveHeartbeatKey = queue.HeartbeatKey

// Config tunes the scheduler's tick and spacing behavior.
type Config struct {
	TickInterval       time.Duration
	InterPlatformDelay time.Duration
	HeartbeatInterval  time.Duration
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.InterPlatformDelay <= 0 {
		c.InterPlatformDelay = 2 * time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 10 * time.Second
	}
	return c
}

// Scheduler is the long-running per-process admission loop over a
// configured, ordered list of platforms.
type Scheduler struct {
	cfg       Config
	platforms []Platform
	queue     queue.Store
	state     queue.StateStore
	log       zerolog.Logger

	lastHeartbeat time.Time
}

// New builds a Scheduler over platforms, in the order they should be
// checked each tick.
func New(cfg Config, platforms []Platform, q queue.Store, state queue.StateStore, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cfg:       cfg.withDefaults(),
		platforms: platforms,
		queue:     q,
		state:     state,
		log:       log.With().Str("component", "platformscheduler").Logger(),
	}
}

// Run blocks, ticking until ctx is cancelled. Queue-store failures never
// propagate; the tick is simply skipped and retried on the next interval
// (spec §4.E "Failure semantics").
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.tick(ctx, now)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	enabled, err := s.state.GetEnabled(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("state store unreachable, skipping tick")
		return
	}
	if !enabled {
		return
	}

	for _, p := range s.platforms {
		if err := s.tryAdmit(ctx, p, now); err != nil {
			s.log.Warn().Err(err).Str("platform", p.Tag).Msg("admission check failed, skipping platform this tick")
		}
	}

	if now.Sub(s.lastHeartbeat) >= s.cfg.HeartbeatInterval {
		if err := s.state.Heartbeat(ctx, liveHeartbeatKey, now); err == nil {
			s.lastHeartbeat = now
		}
	}
}

func (s *Scheduler) tryAdmit(ctx context.Context, p Platform, now time.Time) error {
	pstate, err := s.state.PlatformState(ctx, p.Tag)
	if err != nil {
		return err
	}
	if pstate.LastCompletedAt != nil && p.SameCooldown > 0 {
		if now.Sub(*pstate.LastCompletedAt) < p.SameCooldown {
			return nil
		}
	}

	globalLast, ok, err := s.state.GlobalLastEnqueueAt(ctx)
	if err != nil {
		return err
	}
	if ok && now.Sub(globalLast) < s.cfg.InterPlatformDelay {
		return nil
	}

	state := nextSaleState(pstate.OnSaleCounter, p.CoverageRatio)

	j := job.New(p.WorkflowID, p.Tag, p.Priority, map[string]any{
		"platform":         p.Tag,
		"sale_state":       string(state),
		"link_url_pattern": p.LinkURLPattern,
	})
	j.Metadata["scheduled"] = true

	if err := s.queue.Enqueue(ctx, p.Tag, j); err != nil {
		return err
	}

	if err := s.state.SetGlobalLastEnqueueAt(ctx, now); err != nil {
		s.log.Warn().Err(err).Msg("failed to persist global enqueue clock")
	}

	if state == SaleStateOnSale {
		pstate.OnSaleCounter++
		if p.CoverageRatio > 0 && pstate.OnSaleCounter > p.CoverageRatio {
			pstate.OnSaleCounter = p.CoverageRatio
		}
	} else {
		pstate.OnSaleCounter = 0
	}
	return s.state.SetPlatformState(ctx, p.Tag, pstate)
}

// NotifyCompletion is the hook the reconciliation stage invokes on
// successful workflow completion (spec §4.E step 6). Workers also invoke
// it after every job run, whether the run succeeded or failed.
func (s *Scheduler) NotifyCompletion(ctx context.Context, platformTag string, at time.Time) error {
	st, err := s.state.PlatformState(ctx, platformTag)
	if err != nil {
		return err
	}
	completedAt := at
	st.LastCompletedAt = &completedAt
	return s.state.SetPlatformState(ctx, platformTag, st)
}

// Stop flips the shared enabled flag to false. When clearQueues is true it
// also drains every configured platform's pending queue.
func (s *Scheduler) Stop(ctx context.Context, clearQueues bool) error {
	if err := s.state.SetEnabled(ctx, false); err != nil {
		return err
	}
	if !clearQueues {
		return nil
	}
	for _, p := range s.platforms {
		if _, err := s.queue.Clear(ctx, p.Tag); err != nil {
			s.log.Warn().Err(err).Str("platform", p.Tag).Msg("failed to clear queue on stop")
		}
	}
	return nil
}

// Start flips the shared enabled flag to true.
func (s *Scheduler) Start(ctx context.Context) error {
	return s.state.SetEnabled(ctx, true)
}
