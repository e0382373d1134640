package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/redgumnet/edgegate/internal/gateway/domain"
	"github.com/redgumnet/edgegate/internal/gateway/store"
	"github.com/redgumnet/edgegate/pkg/idx"
)

// AuditService records what the gateway did with each request. A failed
// audit write never fails the request itself; it's logged and dropped.
type AuditService struct {
	Store  store.Store
	Logger *slog.Logger
}

// Record fills in ID and timestamp and persists the entry.
func (s *AuditService) Record(ctx context.Context, entry domain.RequestAudit) {
	now := time.Now().UTC()
	entry.ID = idx.NewAt(now).String()
	entry.CreatedAt = now

	if err := s.Store.Audit().Insert(ctx, entry); err != nil {
		s.Logger.Error("audit write failed",
			"error", err,
			"upstream", entry.Upstream,
			"outcome", entry.Outcome,
		)
	}
}
