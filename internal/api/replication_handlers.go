package api

import (
	"encoding/json"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/FairForge/sitefence/internal/replication"
)

// handleReplicationStatus handles GET /api/v1/replication/{site}
func (s *Server) handleReplicationStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	site := chi.URLParam(r, "site")
	endpoint, ok := s.config.Replication.Sites[site]
	if !ok {
		http.Error(w, "unknown site", http.StatusNotFound)
		return
	}

	client, err := s.replicationClient(ctx, secretsFrom(ctx))
	if err != nil {
		s.loggerFrom(ctx).Error("failed to build replication client", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	statuses, err := client.Status(ctx, endpoint)
	if err != nil {
		s.loggerFrom(ctx).Error("backup status failed", zap.String("site", site), zap.Error(err))
		w.WriteHeader(http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"site":    site,
		"backups": statuses,
	}); err != nil {
		s.loggerFrom(ctx).Error("failed to encode response", zap.Error(err))
	}
}

// handleReplicationAction handles POST /api/v1/replication/{site}?action=...
// The backups of the site's own cluster are changed; the target is given by
// the "target" query parameter and defaults to every other configured site.
func (s *Server) handleReplicationAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := s.loggerFrom(ctx)
	site := chi.URLParam(r, "site")
	action := r.URL.Query().Get("action")
	if action != replication.ActionTakeOffline && action != replication.ActionBringOnline {
		http.Error(w, "action must be take-offline or bring-online", http.StatusBadRequest)
		return
	}

	endpoint, ok := s.config.Replication.Sites[site]
	if !ok {
		http.Error(w, "unknown site", http.StatusNotFound)
		return
	}

	targets := s.targets(site, r.URL.Query()["target"])
	if len(targets) == 0 {
		http.Error(w, "no target site", http.StatusBadRequest)
		return
	}

	client, err := s.replicationClient(ctx, secretsFrom(ctx))
	if err != nil {
		logger.Error("failed to build replication client", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	for _, target := range targets {
		if action == replication.ActionTakeOffline {
			err = client.TakeOffline(ctx, endpoint, target)
		} else {
			err = client.BringOnline(ctx, endpoint, target)
		}
		if err != nil {
			logger.Error("replication action failed",
				zap.String("site", site),
				zap.String("target", target),
				zap.String("action", action),
				zap.Error(err))
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		logger.Info("replication action applied",
			zap.String("site", site),
			zap.String("target", target),
			zap.String("action", action))
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"site":    site,
		"action":  action,
		"targets": targets,
	}); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) targets(site string, requested []string) []string {
	if len(requested) > 0 {
		return requested
	}
	var out []string
	for name := range s.config.Replication.Sites {
		if name != site {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}
