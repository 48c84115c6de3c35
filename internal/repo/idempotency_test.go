package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/bindbot/internal/domain"
)

func TestClaimUpdate_FirstWinsSecondIsDuplicate(t *testing.T) {
	db := newTestDB(t, &domain.ProcessedUpdate{})
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	if err := ClaimUpdate(ctx, db, 7, 42, now, time.Hour); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if err := ClaimUpdate(ctx, db, 7, 42, now.Add(time.Minute), time.Hour); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second claim err = %v, want ErrDuplicate", err)
	}
	if err := ClaimUpdate(ctx, db, 8, 42, now, time.Hour); err != nil {
		t.Fatalf("other id: %v", err)
	}
}

func TestClaimUpdate_ExpiredRecordIsReplaced(t *testing.T) {
	db := newTestDB(t, &domain.ProcessedUpdate{})
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	if err := ClaimUpdate(ctx, db, 7, 42, now, time.Minute); err != nil {
		t.Fatalf("claim: %v", err)
	}
	later := now.Add(2 * time.Minute)
	if err := ClaimUpdate(ctx, db, 7, 43, later, time.Minute); err != nil {
		t.Fatalf("reclaim after expiry: %v", err)
	}
	var rec domain.ProcessedUpdate
	if err := db.First(&rec, "update_id = ?", 7).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if rec.ChatID != 43 || !rec.ExpiresAt.Equal(later.Add(time.Minute)) {
		t.Fatalf("record = %+v", rec)
	}
}

func TestClaimUpdate_Error_NoTable(t *testing.T) {
	db := newTestDB(t /* no migrations */)
	if err := ClaimUpdate(context.Background(), db, 1, 1, time.Now(), time.Hour); err == nil || errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected a storage error, got %v", err)
	}
}

func TestPruneUpdates(t *testing.T) {
	db := newTestDB(t, &domain.ProcessedUpdate{})
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, ttl := range []time.Duration{time.Minute, time.Minute, time.Hour} {
		if err := ClaimUpdate(ctx, db, int64(i+1), 42, now, ttl); err != nil {
			t.Fatalf("claim %d: %v", i+1, err)
		}
	}
	n, err := PruneUpdates(ctx, db, now.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 2 {
		t.Fatalf("pruned = %d, want 2", n)
	}
	var left int64
	db.Model(&domain.ProcessedUpdate{}).Count(&left)
	if left != 1 {
		t.Fatalf("remaining = %d, want 1", left)
	}
}
