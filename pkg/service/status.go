package service

import (
	"context"

	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/store/metadata"
	"github.com/marmos91/dittofiles/pkg/store/session"
)

// Status reports backend liveness. Field names keep the wire format of
// earlier releases, where sessions lived in Redis and metadata in a DB.
type Status struct {
	Redis bool `json:"redis"`
	DB    bool `json:"db"`
}

// Stats reports record counts.
type Stats struct {
	Users int64 `json:"users"`
	Files int64 `json:"files"`
}

// StatusService answers the unauthenticated health and stats endpoints.
// It never fails: unavailable backends show as false or 0.
type StatusService struct {
	sessions session.Store
	meta     metadata.MetadataStore
}

// NewStatusService creates a StatusService.
func NewStatusService(sessions session.Store, meta metadata.MetadataStore) *StatusService {
	return &StatusService{sessions: sessions, meta: meta}
}

func (s *StatusService) Status(ctx context.Context) Status {
	var status Status

	if err := s.sessions.Healthcheck(ctx); err != nil {
		logger.Warn("Status: session store unhealthy: %v", err)
	} else {
		status.Redis = true
	}

	if err := s.meta.Healthcheck(ctx); err != nil {
		logger.Warn("Status: metadata store unhealthy: %v", err)
	} else {
		status.DB = true
	}

	return status
}

func (s *StatusService) Stats(ctx context.Context) Stats {
	var stats Stats

	users, err := s.meta.CountUsers(ctx)
	if err != nil {
		logger.Warn("Stats: failed to count users: %v", err)
	} else {
		stats.Users = users
	}

	files, err := s.meta.CountFiles(ctx)
	if err != nil {
		logger.Warn("Stats: failed to count files: %v", err)
	} else {
		stats.Files = files
	}

	return stats
}
