package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/bindbot/internal/domain"
)

func TestCreateBinding_AssignsIDAndPending(t *testing.T) {
	db := newTestDB(t, &domain.Binding{})
	ctx := context.Background()

	b1, err := CreateBinding(ctx, db, 42, "MOSCOW")
	if err != nil {
		t.Fatalf("CreateBinding: %v", err)
	}
	b2, err := CreateBinding(ctx, db, 42, "SPB")
	if err != nil {
		t.Fatalf("CreateBinding: %v", err)
	}
	if b1.ID == 0 || b2.ID <= b1.ID {
		t.Fatalf("expected increasing ids, got %d then %d", b1.ID, b2.ID)
	}
	if b1.Status != domain.BindingStatusPending || b1.Server != "MOSCOW" || b1.UserID != 42 {
		t.Fatalf("unexpected binding: %+v", b1)
	}
	if b1.AdminMessageID != nil || b1.UserMessageID != nil {
		t.Fatalf("message ids must be nil until attached: %+v", b1)
	}
	if time.Since(b1.CreatedAt) > time.Minute {
		t.Fatalf("CreatedAt not set reasonably: %v", b1.CreatedAt)
	}
}

func TestAttachMessageIDs_ThenFindByAdminMessage(t *testing.T) {
	db := newTestDB(t, &domain.Binding{})
	ctx := context.Background()

	b, err := CreateBinding(ctx, db, 42, "MOSCOW")
	if err != nil {
		t.Fatalf("CreateBinding: %v", err)
	}
	if err := AttachMessageIDs(ctx, db, b.ID, 100, 500); err != nil {
		t.Fatalf("AttachMessageIDs: %v", err)
	}

	got, err := FindBindingByAdminMessageID(ctx, db, 500)
	if err != nil {
		t.Fatalf("FindBindingByAdminMessageID: %v", err)
	}
	if got.ID != b.ID || got.UserID != 42 {
		t.Fatalf("unexpected binding: %+v", got)
	}
	if got.UserMessageID == nil || *got.UserMessageID != 100 {
		t.Fatalf("user message id not stored: %+v", got)
	}
	if got.AdminMessageID == nil || *got.AdminMessageID != 500 {
		t.Fatalf("admin message id not stored: %+v", got)
	}
}

func TestAttachMessageIDs_OneTimeOnly(t *testing.T) {
	db := newTestDB(t, &domain.Binding{})
	ctx := context.Background()

	b, _ := CreateBinding(ctx, db, 1, "RED")
	if err := AttachMessageIDs(ctx, db, b.ID, 1, 2); err != nil {
		t.Fatalf("first attach: %v", err)
	}
	if err := AttachMessageIDs(ctx, db, b.ID, 3, 4); !errors.Is(err, ErrAlreadyAttached) {
		t.Fatalf("expected ErrAlreadyAttached, got %v", err)
	}
	got, _ := GetBinding(ctx, db, b.ID)
	if *got.AdminMessageID != 2 || *got.UserMessageID != 1 {
		t.Fatalf("second attach must not overwrite: %+v", got)
	}
}

func TestAttachMessageIDs_MissingBinding(t *testing.T) {
	db := newTestDB(t, &domain.Binding{})
	if err := AttachMessageIDs(context.Background(), db, 999, 1, 2); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAttachMessageIDs_DuplicateAdminMessage(t *testing.T) {
	db := newTestDB(t, &domain.Binding{})
	ctx := context.Background()

	a, _ := CreateBinding(ctx, db, 1, "RED")
	b, _ := CreateBinding(ctx, db, 2, "GOLD")
	if err := AttachMessageIDs(ctx, db, a.ID, 10, 77); err != nil {
		t.Fatalf("attach a: %v", err)
	}
	if err := AttachMessageIDs(ctx, db, b.ID, 11, 77); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestFindBindingByAdminMessageID_NotFound(t *testing.T) {
	db := newTestDB(t, &domain.Binding{})
	ctx := context.Background()

	// An un-attached binding must never match.
	if _, err := CreateBinding(ctx, db, 1, "RED"); err != nil {
		t.Fatalf("CreateBinding: %v", err)
	}
	if _, err := FindBindingByAdminMessageID(ctx, db, 123); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListRecentBindings_NewestFirstWithLimit(t *testing.T) {
	db := newTestDB(t, &domain.Binding{})
	ctx := context.Background()
	for _, s := range []string{"RED", "GOLD", "UFA"} {
		if _, err := CreateBinding(ctx, db, 1, s); err != nil {
			t.Fatalf("CreateBinding: %v", err)
		}
	}
	out, err := ListRecentBindings(ctx, db, 2)
	if err != nil {
		t.Fatalf("ListRecentBindings: %v", err)
	}
	if len(out) != 2 || out[0].Server != "UFA" || out[1].Server != "GOLD" {
		t.Fatalf("unexpected order/limit: %+v", out)
	}
}
