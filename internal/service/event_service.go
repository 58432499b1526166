package service

import (
	"context"
	"log/slog"
	"time"

	"rentdesk/internal/model"
)

type eventAppender interface {
	Append(ctx context.Context, event model.SecurityEvent) error
	ListRecent(ctx context.Context, limit int) ([]model.SecurityEvent, error)
}

// EventService writes to the append-only security event log. Recording is
// best-effort: a failed append is logged and swallowed so the primary
// request path is never blocked or failed by observability.
type EventService struct {
	repo    eventAppender
	timeout time.Duration
	now     func() time.Time
}

func NewEventService(repo eventAppender) *EventService {
	return &EventService{repo: repo, timeout: 2 * time.Second, now: time.Now}
}

func (s *EventService) Record(ctx context.Context, kind string, identifier string, detail string) {
	event := model.SecurityEvent{
		Kind:       kind,
		Identifier: identifier,
		Detail:     detail,
		CreatedAt:  s.now().UTC(),
	}

	// Detach from the request so a cancelled caller still gets its event
	// written, but bound the write so it can never hang.
	appendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	if err := s.repo.Append(appendCtx, event); err != nil {
		slog.Warn("security event dropped", "kind", kind, "error", err)
	}
}

// ListRecent returns the newest events, newest first. Unlike Record this is a
// read on behalf of a caller, so failures propagate.
func (s *EventService) ListRecent(ctx context.Context, limit int) ([]model.SecurityEvent, error) {
	return s.repo.ListRecent(ctx, limit)
}
