package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/deLKM/Genteblog/internal/metrics"
	"github.com/deLKM/Genteblog/internal/model"
	"github.com/deLKM/Genteblog/internal/store"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSweepFixtures(t *testing.T, s store.Store, now time.Time) {
	t.Helper()
	old := now.Add(-31 * 24 * time.Hour)
	recent := now.Add(-29 * 24 * time.Hour)
	err := s.WithTransaction(context.Background(), []store.Collection{store.Revisions, store.Interactions}, store.ReadWrite, func(tx store.Tx) error {
		for _, r := range []*model.Revision{
			{PostID: "p1", Content: "old", CreatedAt: old},
			{PostID: "p1", Content: "recent", CreatedAt: recent},
		} {
			if err := tx.Revisions().Add(r); err != nil {
				return err
			}
		}
		for _, i := range []*model.Interaction{
			{ID: model.InteractionKey("p1", "u1", "like"), PostID: "p1", UserID: "u1", Type: "like", CreatedAt: old, UpdatedAt: old, Active: false},
			{ID: model.InteractionKey("p1", "u2", "like"), PostID: "p1", UserID: "u2", Type: "like", CreatedAt: old, UpdatedAt: old, Active: true},
			{ID: model.InteractionKey("p1", "u3", "like"), PostID: "p1", UserID: "u3", Type: "like", CreatedAt: old, UpdatedAt: recent, Active: false},
		} {
			if err := tx.Interactions().Put(i); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed sweep fixtures: %v", err)
	}
}

func TestRetentionService_Sweep(t *testing.T) {
	s := setupTestStore(t)
	clock := newTestClock()
	seedSweepFixtures(t, s, clock.Now())
	m := metrics.New()

	svc := NewRetentionService(s).WithClock(clock.Now).WithMetrics(m)
	result, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Revisions)
	assert.Equal(t, 1, result.Interactions)
	assert.True(t, result.Cutoff.Equal(clock.Now().Add(-30*24*time.Hour)))

	snap, err := NewBackupService(s).Export(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Revisions, 1)
	assert.Equal(t, "recent", snap.Revisions[0].Content)
	ids := []string{}
	for _, i := range snap.Interactions {
		ids = append(ids, i.ID)
	}
	assert.ElementsMatch(t, []string{"p1_u2_like", "p1_u3_like"}, ids)

	expected := `
# HELP genteblog_retention_deleted_total Records deleted by the retention sweep.
# TYPE genteblog_retention_deleted_total counter
genteblog_retention_deleted_total{collection="interactions"} 1
genteblog_retention_deleted_total{collection="revisions"} 1
`
	if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "genteblog_retention_deleted_total"); err != nil {
		t.Fatalf("unexpected sweep metrics: %v", err)
	}
	if _, err := svc.Sweep(context.Background()); err != nil {
		t.Fatalf("second sweep: %v", err)
	}
}

func TestRetentionService_CustomRetention(t *testing.T) {
	s := setupTestStore(t)
	clock := newTestClock()
	seedSweepFixtures(t, s, clock.Now())

	result, err := NewRetentionService(s).WithClock(clock.Now).WithRetention(28 * 24 * time.Hour).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Revisions)
	assert.Equal(t, 2, result.Interactions)
}

func TestRetentionService_RunStopsOnCancel(t *testing.T) {
	s := setupTestStore(t)
	clock := newTestClock()
	seedSweepFixtures(t, s, clock.Now())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewRetentionService(s).WithClock(clock.Now).Run(ctx, time.Hour)
		close(done)
	}()

	require.Eventually(t, func() bool {
		snap, err := NewBackupService(s).Export(context.Background())
		return err == nil && len(snap.Revisions) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}
