package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-org-access/internal/event"
	"go-org-access/internal/model"
)

func TestActivityServiceRecordsBusEvents(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "ana", model.RoleStaff, "")
	admin := f.addUser(t, "root", model.RoleAdmin, "").Identity()
	activity := NewActivityService(f.store.Activity, f.engine)

	ctx, cancel := context.WithCancel(context.Background())
	events, unsubscribe := f.bus.Subscribe()
	defer unsubscribe()
	done := make(chan struct{})
	go activity.Run(ctx, events, done)

	_, err := f.auth.Login(context.Background(), "ana@example.org", testPassword, testNow)
	require.NoError(t, err)
	_, err = f.auth.Login(context.Background(), "ana@example.org", "not-the-password", testNow)
	require.ErrorIs(t, err, model.ErrInvalidCredentials)

	require.Eventually(t, func() bool {
		entries, err := activity.List(context.Background(), admin, model.ActivityQuery{})
		return err == nil && len(entries) == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done

	entries, err := activity.List(context.Background(), admin, model.ActivityQuery{Action: string(event.TypeLoginFailed)})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotContains(t, entries[0].Detail, "not-the-password")
}

func TestActivityListScopedToOwnTrail(t *testing.T) {
	f := newFixture(t)
	staff := f.addUser(t, "ana", model.RoleStaff, "").Identity()
	activity := NewActivityService(f.store.Activity, f.engine)
	ctx := context.Background()

	activity.Record(ctx, event.Event{Type: event.TypeLoginSucceeded, ActorID: staff.ID})
	activity.Record(ctx, event.Event{Type: event.TypeLoginSucceeded, ActorID: "other"})

	_, err := activity.List(ctx, staff, model.ActivityQuery{})
	require.ErrorIs(t, err, model.ErrForbidden)

	_, err = activity.List(ctx, staff, model.ActivityQuery{ActorID: "other"})
	require.ErrorIs(t, err, model.ErrForbidden)

	entries, err := activity.List(ctx, staff, model.ActivityQuery{ActorID: staff.ID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
