package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"brainark-core/internal/domain"
	"brainark-core/internal/storage"
)

func testParticipant(address string) *domain.Participant {
	return &domain.Participant{
		Address:        address,
		ReferralCode:   "ref-" + address,
		CompletedTasks: make(map[string]bool),
		TotalEarned:    decimal.Zero,
		Status:         domain.StatusTasksPending,
	}
}

func TestParticipantStore_PutAndGet(t *testing.T) {
	store := NewParticipantStore()
	ctx := context.Background()

	p := testParticipant("0xaaa")
	p.CompletedTasks[domain.TaskTwitterFollow] = true

	if err := store.Put(ctx, p); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(ctx, "0xaaa")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.CompletedTasks[domain.TaskTwitterFollow] {
		t.Error("task completion lost on round trip")
	}

	// Mutating the returned copy must not affect the stored value.
	got.CompletedTasks[domain.TaskTelegramJoin] = true
	again, err := store.Get(ctx, "0xaaa")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if again.CompletedTasks[domain.TaskTelegramJoin] {
		t.Error("store returned a shared task map")
	}
}

func TestParticipantStore_GetNotFound(t *testing.T) {
	store := NewParticipantStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "0xmissing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestParticipantStore_AppendClaimedOrdinals(t *testing.T) {
	store := NewParticipantStore()
	ctx := context.Background()

	ord1, err := store.AppendClaimed(ctx, "0xaaa")
	if err != nil {
		t.Fatalf("AppendClaimed failed: %v", err)
	}
	ord2, err := store.AppendClaimed(ctx, "0xbbb")
	if err != nil {
		t.Fatalf("AppendClaimed failed: %v", err)
	}

	if ord1 != 1 || ord2 != 2 {
		t.Errorf("ordinals: got %d, %d; want 1, 2", ord1, ord2)
	}

	// Double append must fail.
	_, err = store.AppendClaimed(ctx, "0xaaa")
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestParticipantStore_ClaimedRange(t *testing.T) {
	store := NewParticipantStore()
	ctx := context.Background()

	addresses := []string{"0xaaa", "0xbbb", "0xccc"}
	for _, addr := range addresses {
		if _, err := store.AppendClaimed(ctx, addr); err != nil {
			t.Fatalf("AppendClaimed failed: %v", err)
		}
	}

	got, err := store.ClaimedRange(ctx, 1, 10)
	if err != nil {
		t.Fatalf("ClaimedRange failed: %v", err)
	}
	if len(got) != 2 || got[0] != "0xbbb" || got[1] != "0xccc" {
		t.Errorf("ClaimedRange mismatch: %v", got)
	}

	// Offset beyond count.
	_, err = store.ClaimedRange(ctx, 10, 5)
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestParticipantStore_ReferralsAndCounters(t *testing.T) {
	store := NewParticipantStore()
	ctx := context.Background()

	edge := &domain.ReferralEdge{
		Referrer:  "0xaaa",
		Referee:   "0xbbb",
		Bonus:     decimal.NewFromFloat(3.2),
		Status:    "paid",
		Timestamp: 1704067200000,
	}
	if err := store.AppendReferral(ctx, edge); err != nil {
		t.Fatalf("AppendReferral failed: %v", err)
	}

	edges, err := store.ReferralsByReferrer(ctx, "0xaaa")
	if err != nil {
		t.Fatalf("ReferralsByReferrer failed: %v", err)
	}
	if len(edges) != 1 || edges[0].Referee != "0xbbb" {
		t.Errorf("referral edge mismatch: %+v", edges)
	}

	if err := store.AddCounters(ctx, decimal.NewFromInt(10), decimal.NewFromFloat(3.2)); err != nil {
		t.Fatalf("AddCounters failed: %v", err)
	}
	if err := store.AddCounters(ctx, decimal.NewFromInt(10), decimal.Zero); err != nil {
		t.Fatalf("AddCounters failed: %v", err)
	}

	claimed, referral, err := store.Counters(ctx)
	if err != nil {
		t.Fatalf("Counters failed: %v", err)
	}
	if !claimed.Equal(decimal.NewFromInt(20)) {
		t.Errorf("claimed: got %s, want 20", claimed)
	}
	if !referral.Equal(decimal.NewFromFloat(3.2)) {
		t.Errorf("referral: got %s, want 3.2", referral)
	}
}
