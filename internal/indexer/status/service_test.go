package status

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sportarr/sportarr/internal/testutil"
)

func newTestService(t *testing.T) (*Service, func(time.Time)) {
	db := testutil.NewTestDB(t)
	svc := NewService(db.Conn, testutil.NewTestLogger(t))
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	return svc, func(t time.Time) { now = t }
}

func seedIndexer(t *testing.T, svc *Service) int64 {
	t.Helper()
	res, err := svc.db.Exec(
		`INSERT INTO indexers (name, implementation, base_url) VALUES ('Test', 'torznab', 'http://x')`)
	if err != nil {
		t.Fatalf("seed indexer: %v", err)
	}
	id, _ := res.LastInsertId()
	return id
}

func TestBackoffFor(t *testing.T) {
	cases := []struct {
		failures int
		want     time.Duration
	}{
		{0, 0},
		{1, 0},
		{2, time.Minute},
		{3, 5 * time.Minute},
		{4, 15 * time.Minute},
		{5, 30 * time.Minute},
		{6, time.Hour},
		{7, 24 * time.Hour},
		{8, 24 * time.Hour},
		{100, 24 * time.Hour},
	}
	for _, tc := range cases {
		if got := BackoffFor(tc.failures); got != tc.want {
			t.Errorf("BackoffFor(%d) = %v, want %v", tc.failures, got, tc.want)
		}
	}
}

func TestFailureEscalation(t *testing.T) {
	svc, _ := newTestService(t)
	id := seedIndexer(t, svc)
	ctx := context.Background()

	// First failure: streak starts but no cooldown yet.
	if err := svc.RecordFailure(ctx, id, errors.New("boom")); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	ok, _, err := svc.IsAvailable(ctx, id)
	if err != nil {
		t.Fatalf("IsAvailable: %v", err)
	}
	if !ok {
		t.Error("indexer should stay available after a single failure")
	}

	// Second failure applies the one-minute cooldown.
	if err := svc.RecordFailure(ctx, id, errors.New("boom")); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	ok, reason, err := svc.IsAvailable(ctx, id)
	if err != nil {
		t.Fatalf("IsAvailable: %v", err)
	}
	if ok {
		t.Error("indexer should be disabled after second failure")
	}
	if reason == "" {
		t.Error("expected a disable reason")
	}

	st, err := svc.GetStatus(ctx, id)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if st.EscalationLevel != 2 {
		t.Errorf("escalation = %d, want 2", st.EscalationLevel)
	}
	if st.InitialFailure == nil || st.MostRecentFailure == nil {
		t.Error("failure timestamps not recorded")
	}
}

func TestSuccessResetsStreak(t *testing.T) {
	svc, _ := newTestService(t)
	id := seedIndexer(t, svc)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := svc.RecordFailure(ctx, id, errors.New("boom")); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}
	if err := svc.RecordSuccess(ctx, id); err != nil {
		t.Fatalf("RecordSuccess: %v", err)
	}

	st, err := svc.GetStatus(ctx, id)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if st.EscalationLevel != 0 {
		t.Errorf("escalation = %d, want 0", st.EscalationLevel)
	}
	if st.DisabledTill != nil {
		t.Error("cooldown should be cleared on success")
	}
	if st.LastSuccess == nil {
		t.Error("last success not recorded")
	}
	if ok, _, _ := svc.IsAvailable(ctx, id); !ok {
		t.Error("indexer should be available after success")
	}
}

func TestRateLimitCooldownWithoutEscalation(t *testing.T) {
	svc, advance := newTestService(t)
	id := seedIndexer(t, svc)
	ctx := context.Background()

	if err := svc.RecordRateLimit(ctx, id, 2*time.Minute); err != nil {
		t.Fatalf("RecordRateLimit: %v", err)
	}

	st, err := svc.GetStatus(ctx, id)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if st.EscalationLevel != 0 {
		t.Errorf("rate limit must not bump the failure streak, got level %d", st.EscalationLevel)
	}
	if ok, _, _ := svc.IsAvailable(ctx, id); ok {
		t.Error("indexer should be in cooldown")
	}

	// Cooldown expires with the clock.
	advance(time.Date(2026, 3, 1, 12, 3, 0, 0, time.UTC))
	if ok, _, _ := svc.IsAvailable(ctx, id); !ok {
		t.Error("cooldown should have expired")
	}
}

func TestUnknownIndexerIsHealthy(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	st, err := svc.GetStatus(ctx, 999)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if st.EscalationLevel != 0 || st.IsDisabled {
		t.Errorf("unknown indexer should be healthy, got %+v", st)
	}
	if ok, _, _ := svc.IsAvailable(ctx, 999); !ok {
		t.Error("unknown indexer should be available")
	}
}

func TestGetHealth(t *testing.T) {
	svc, _ := newTestService(t)
	id := seedIndexer(t, svc)
	ctx := context.Background()

	h, err := svc.GetHealth(ctx, id, "Test")
	if err != nil {
		t.Fatalf("GetHealth: %v", err)
	}
	if h.Status != HealthStatusHealthy {
		t.Errorf("status = %q, want healthy", h.Status)
	}

	svc.RecordFailure(ctx, id, errors.New("boom"))
	h, _ = svc.GetHealth(ctx, id, "Test")
	if h.Status != HealthStatusWarning {
		t.Errorf("status = %q, want warning after one failure", h.Status)
	}

	svc.RecordFailure(ctx, id, errors.New("boom"))
	h, _ = svc.GetHealth(ctx, id, "Test")
	if h.Status != HealthStatusDisabled {
		t.Errorf("status = %q, want disabled", h.Status)
	}
	if h.DisabledFor == nil {
		t.Error("expected remaining cooldown")
	}
}
