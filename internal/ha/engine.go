// internal/ha/engine.go
package ha

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"

	"code.cloudfoundry.org/clock"
	"go.uber.org/zap"

	"github.com/FairForge/sitefence/internal/alerts"
	"github.com/FairForge/sitefence/internal/cloud"
	"github.com/FairForge/sitefence/internal/topology"
)

// Topology reads and mutates accelerator membership
type Topology interface {
	Resolve(ctx context.Context, dnsName string) (*topology.Topology, error)
	UpdateMembership(ctx context.Context, groupARN string, endpoints []topology.Endpoint) error
}

// Replication takes a site's cross-site backup offline
type Replication interface {
	TakeOffline(ctx context.Context, endpoint, site string) error
}

// Engine fences offline sites. It keeps no memory between alerts; each one
// is decided from live control-plane state.
type Engine struct {
	topology    Topology
	replication Replication
	logger      *zap.Logger
	clock       clock.Clock

	mu          sync.RWMutex
	subscribers []func(Decision)
}

// NewEngine creates a decision engine
func NewEngine(topo Topology, repl Replication, logger *zap.Logger, clk clock.Clock) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.NewClock()
	}
	return &Engine{
		topology:    topo,
		replication: repl,
		logger:      logger,
		clock:       clk,
	}
}

// Subscribe registers a listener called synchronously for every decision
func (e *Engine) Subscribe(handler func(Decision)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subscribers = append(e.subscribers, handler)
}

// HandleAll processes alerts in order. A failure on one alert never stops
// the ones after it.
func (e *Engine) HandleAll(ctx context.Context, seq iter.Seq[alerts.Alert]) []Decision {
	var decisions []Decision
	for alert := range seq {
		decisions = append(decisions, e.Handle(ctx, alert))
	}
	return decisions
}

// Handle evaluates one SiteOffline alert and applies the resulting plan.
// Membership is updated first, then the replication backend is taken
// offline. The pair is not transactional: if the second step fails the
// traffic change stays and a redelivered alert retries both, which is safe
// because both calls are idempotent.
func (e *Engine) Handle(ctx context.Context, alert alerts.Alert) (d Decision) {
	start := e.clock.Now()
	d = Decision{
		Outcome:     OutcomeEvaluating,
		Accelerator: alert.Accelerator(),
		Site:        alert.Site(),
		Reporter:    alert.Reporter(),
		DecidedAt:   start,
	}

	defer func() {
		if r := recover(); r != nil {
			d.Outcome = OutcomeError
			d.Reason = "panic while handling alert"
			d.Err = fmt.Errorf("ha: panic: %v", r)
		}
		d.Duration = e.clock.Since(start)
		e.finish(d)
	}()

	if err := requireLabels(alert, alerts.LabelAccelerator); err != nil {
		d.Outcome = OutcomeError
		d.Reason = "alert rejected"
		d.Err = err
		return d
	}

	topo, err := e.topology.Resolve(ctx, d.Accelerator)
	if err != nil {
		d.Outcome = OutcomeError
		d.Err = err
		if errors.Is(err, topology.ErrAcceleratorNotFound) {
			d.Reason = "accelerator not found, ignoring alert"
		} else {
			d.Reason = "could not resolve topology"
		}
		return d
	}

	// A group that cannot lose a member is left alone whatever the other
	// labels say.
	if topo.Group.Len() > 1 {
		if err := requireLabels(alert, alerts.LabelSite, alerts.LabelReporter, alerts.LabelInfinispan); err != nil {
			d.Outcome = OutcomeError
			d.Reason = "alert rejected"
			d.Err = err
			return d
		}
	}

	plan := Decide(topo.Group, d.Reporter, d.Site)
	d.Outcome = plan.Outcome
	d.Reason = plan.Reason
	d.Err = plan.Err
	if plan.Outcome != OutcomeApplied {
		return d
	}

	d.Removed = topology.IDs(plan.Removed)
	d.Remaining = topology.IDs(plan.Remaining)

	if err := e.topology.UpdateMembership(ctx, topo.Group.ARN, plan.Remaining); err != nil {
		d.Outcome = OutcomeError
		d.Reason = "endpoint group update failed"
		d.FailedEffect = EffectMembership
		d.Err = err
		return d
	}

	if err := e.replication.TakeOffline(ctx, alert.Infinispan(), d.Site); err != nil {
		d.Outcome = OutcomeError
		d.Reason = "site removed from accelerator but replication backend not taken offline"
		d.FailedEffect = EffectReplication
		d.Err = err
		return d
	}

	return d
}

func requireLabels(alert alerts.Alert, keys ...string) error {
	for _, key := range keys {
		if alert.Labels[key] == "" {
			return fmt.Errorf("%w: %s", ErrMissingLabel, key)
		}
	}
	return nil
}

func (e *Engine) finish(d Decision) {
	fields := []zap.Field{
		zap.String("outcome", d.Outcome.String()),
		zap.String("accelerator", d.Accelerator),
		zap.String("site", d.Site),
		zap.String("reporter", d.Reporter),
		zap.String("reason", d.Reason),
		zap.Duration("duration", d.Duration),
	}
	if len(d.Removed) > 0 {
		fields = append(fields, zap.Strings("removed", d.Removed))
	}
	if d.FailedEffect != "" {
		fields = append(fields, zap.String("failed_effect", d.FailedEffect))
	}
	if d.Err != nil {
		fields = append(fields, zap.Error(d.Err))
		if code := cloud.ErrorCode(d.Err); code != "" {
			fields = append(fields, zap.String("aws_error_code", code))
		}
	}

	switch d.Outcome {
	case OutcomeApplied:
		e.logger.Info("SiteOffline applied", fields...)
	case OutcomeNoOp:
		e.logger.Info("SiteOffline ignored", fields...)
	case OutcomeBlocked:
		e.logger.Warn("SiteOffline blocked", fields...)
	default:
		e.logger.Error("SiteOffline failed", fields...)
	}

	e.mu.RLock()
	subscribers := append([]func(Decision){}, e.subscribers...)
	e.mu.RUnlock()
	for _, handler := range subscribers {
		e.notify(handler, d)
	}
}

func (e *Engine) notify(handler func(Decision), d Decision) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("decision subscriber panicked", zap.Any("panic", r))
		}
	}()
	handler(d)
}
