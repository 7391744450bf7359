package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/FairForge/sitefence/internal/alerts"
	"github.com/FairForge/sitefence/internal/auth"
	"github.com/FairForge/sitefence/internal/ha"
	"github.com/FairForge/sitefence/internal/replication"
	"github.com/FairForge/sitefence/internal/secrets"
	"github.com/FairForge/sitefence/internal/topology"
)

// handleWebhook accepts an Alertmanager delivery. The response only reports
// whether the delivery itself was acceptable; per-alert outcomes are logged
// and counted, never returned.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	start := s.clock.Now()
	status := http.StatusNoContent
	defer func() {
		s.metrics.ObserveWebhook(status, s.clock.Since(start))
	}()

	ctx := r.Context()
	logger := s.loggerFrom(ctx)
	clients := s.sessions()
	resolver := secrets.NewResolver(clients.Secrets)

	if err := s.authorize(r, resolver); err != nil {
		status = auth.StatusCode(err)
		w.WriteHeader(status)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.Server.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		status = http.StatusInternalServerError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		logger.Error("failed to read webhook body", zap.Error(err))
		w.WriteHeader(status)
		return
	}

	payload, err := alerts.Parse(body)
	if err != nil {
		status = http.StatusInternalServerError
		logger.Error("rejected webhook body", zap.Error(err))
		w.WriteHeader(status)
		return
	}
	logger.Info("webhook received",
		zap.String("receiver", payload.Receiver),
		zap.String("group_status", payload.Status),
		zap.Int("alerts", len(payload.Items)))

	engine := ha.NewEngine(
		topology.NewResolver(clients.Accelerator, clients.Tags),
		s.lazyReplication(resolver),
		logger,
		s.clock,
	)
	engine.Subscribe(s.recordDecision)
	engine.HandleAll(ctx, payload.SiteOffline())

	w.WriteHeader(status)
}

func (s *Server) recordDecision(d ha.Decision) {
	s.metrics.IncDecision(d.Outcome.String())
	if d.FailedEffect != "" {
		s.metrics.IncSideEffectFailure(d.FailedEffect)
	}
}

func (s *Server) replicationClient(ctx context.Context, resolver *secrets.Resolver) (*replication.Client, error) {
	password, err := resolver.Get(ctx, s.config.Secrets.ReplicationSecretName)
	if err != nil {
		return nil, err
	}
	return replication.NewClient(replication.Credentials{
		User:     s.config.Replication.User,
		Password: password,
	}, s.replicationOpts...)
}

// lazyReplication defers the replication secret lookup until an alert
// actually gets as far as the offline command.
func (s *Server) lazyReplication(resolver *secrets.Resolver) ha.Replication {
	return &deferredReplication{open: func(ctx context.Context) (*replication.Client, error) {
		return s.replicationClient(ctx, resolver)
	}}
}

type deferredReplication struct {
	open func(context.Context) (*replication.Client, error)

	mu     sync.Mutex
	client *replication.Client
}

func (d *deferredReplication) TakeOffline(ctx context.Context, endpoint, site string) error {
	d.mu.Lock()
	if d.client == nil {
		c, err := d.open(ctx)
		if err != nil {
			d.mu.Unlock()
			return errors.Join(replication.ErrOfflineFailed, err)
		}
		d.client = c
	}
	c := d.client
	d.mu.Unlock()

	return c.TakeOffline(ctx, endpoint, site)
}
