package service

import (
	"context"
	"testing"
	"time"
)

func TestCleanupService_PurgeIdempotencyKeys(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.Idempotency.Record(ctx, opCharge, "old", true, testNow.Add(-48*time.Hour)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := store.Idempotency.Record(ctx, opCharge, "recent", true, testNow.Add(-time.Hour)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	svc := NewCleanupService(store.Idempotency, testLogger())
	svc.now = func() time.Time { return testNow }

	result, err := svc.PurgeIdempotencyKeys(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("PurgeIdempotencyKeys() error = %v", err)
	}
	if result.KeysDeleted != 1 {
		t.Errorf("KeysDeleted = %d, want 1", result.KeysDeleted)
	}
	if !result.Cutoff.Equal(testNow.Add(-24 * time.Hour)) {
		t.Errorf("Cutoff = %v", result.Cutoff)
	}

	if _, found, _ := store.Idempotency.Get(ctx, opCharge, "old"); found {
		t.Error("old key survived cleanup")
	}
	if _, found, _ := store.Idempotency.Get(ctx, opCharge, "recent"); !found {
		t.Error("recent key was purged")
	}
}

func TestCleanupService_RunScheduledCleanupStops(t *testing.T) {
	store := setupTestStore(t)
	svc := NewCleanupService(store.Idempotency, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.RunScheduledCleanup(ctx, time.Hour, time.Hour)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("RunScheduledCleanup did not stop after cancel")
	}
}
