package service

import (
	"context"
	"log/slog"
	"time"

	"go-org-access/internal/authz"
	"go-org-access/internal/event"
	"go-org-access/internal/model"
)

// ActivityService persists bus events to the activity log and serves reads.
type ActivityService struct {
	store ActivityStore
	authz Authorizer
}

func NewActivityService(store ActivityStore, authorizer Authorizer) *ActivityService {
	return &ActivityService{store: store, authz: authorizer}
}

// Run consumes events until ctx is done or the subscription closes. It is
// meant to run in its own goroutine; done is closed on return.
func (s *ActivityService) Run(ctx context.Context, events <-chan event.Event, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			s.Record(ctx, e)
		}
	}
}

// Record writes one event. Failures are logged; the activity log never
// fails the operation that produced the event.
func (s *ActivityService) Record(ctx context.Context, e event.Event) {
	occurredAt := time.Now().UTC()
	if e.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, e.Timestamp); err == nil {
			occurredAt = parsed.UTC()
		}
	}

	detail := e.Detail
	if e.SubjectID != "" && e.SubjectID != e.ActorID {
		if detail != "" {
			detail = "subject=" + e.SubjectID + " " + detail
		} else {
			detail = "subject=" + e.SubjectID
		}
	}

	if _, err := s.store.Append(ctx, model.ActivityEntry{
		ActorID:    e.ActorID,
		Action:     string(e.Type),
		Detail:     detail,
		OccurredAt: occurredAt,
	}); err != nil {
		slog.Warn("activity log write failed", "type", e.Type, "event_id", e.ID, "error", err)
	}
}

// List returns activity entries. Non-admins can only read their own trail.
func (s *ActivityService) List(ctx context.Context, actor model.AuthenticatedUser, query model.ActivityQuery) ([]model.ActivityEntry, error) {
	res := authz.Resource{Type: authz.ResourceActivity}
	if query.ActorID != "" {
		res.OwnerIDs = []string{query.ActorID}
	}
	if _, err := s.authz.Authorize(ctx, actor, authz.ActionRead, res); err != nil {
		return nil, err
	}
	return s.store.List(ctx, query)
}
