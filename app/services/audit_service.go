package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/shashiranjanraj/phonedeals/app/models"
	"github.com/shashiranjanraj/phonedeals/app/repositories"
	"github.com/shashiranjanraj/phonedeals/pkg/auth"
	"github.com/shashiranjanraj/phonedeals/pkg/event"
	"github.com/shashiranjanraj/phonedeals/pkg/logger"
	"github.com/shashiranjanraj/phonedeals/pkg/metrics"
)

// AuditService appends admin actions to the audit log. Recording never fails
// the caller: store errors are logged and counted.
type AuditService struct {
	store      repositories.AdminLogStore
	bus        *event.Bus
	adminEmail string
}

func NewAuditService(store repositories.AdminLogStore, bus *event.Bus, adminEmail string) *AuditService {
	return &AuditService{store: store, bus: bus, adminEmail: adminEmail}
}

// Identity names p in audit entries.
func (s *AuditService) Identity(p auth.Principal) string {
	if p.IsAdmin() {
		return s.adminEmail
	}
	if id, ok := p.UserID(); ok {
		return fmt.Sprint(id)
	}
	return "unknown"
}

// Record appends one entry with before and after snapshots.
func (s *AuditService) Record(ctx context.Context, p auth.Principal, action, target string, before, after any) {
	s.write(ctx, p, action, target, map[string]any{
		"before": snapshot(before),
		"after":  snapshot(after),
	})
}

// RecordDelete appends one entry for a destructive action: the pre-state and
// how long the delete took.
func (s *AuditService) RecordDelete(ctx context.Context, p auth.Principal, action, target string, before any, took time.Duration) {
	s.write(ctx, p, action, target, map[string]any{
		"before":     snapshot(before),
		"durationMs": took.Milliseconds(),
	})
}

func (s *AuditService) write(ctx context.Context, p auth.Principal, action, target string, meta map[string]any) {
	entry := &models.AdminLog{
		ID:        ulid.Make().String(),
		Action:    action,
		Target:    target,
		Admin:     s.Identity(p),
		Metadata:  meta,
		CreatedAt: time.Now().UTC(),
	}
	// written even when the request is cancelled: the mutation has happened
	if err := s.store.Append(context.WithoutCancel(ctx), entry); err != nil {
		metrics.AuditWriteFailures.WithLabelValues(action).Inc()
		logger.WithCtx(ctx).Error("audit write failed",
			"action", action,
			"target", target,
			"admin", entry.Admin,
			"error", err,
		)
		return
	}
	if s.bus != nil {
		s.bus.FireAsync(EventAuditRecorded, *entry)
	}
}

// List returns entries newest first.
func (s *AuditService) List(ctx context.Context, f repositories.LogFilter) ([]models.AdminLog, error) {
	return s.store.List(ctx, f)
}

// snapshot turns v into plain JSON values so every store can encode it.
func snapshot(v any) any {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return string(raw)
	}
	return out
}

// Audit targets.
func listingTarget(id uint) string  { return fmt.Sprintf("Listing:%d", id) }
func userTarget(id uint) string     { return fmt.Sprintf("User:%d", id) }
func reviewTarget(id string) string { return "Review:" + id }
