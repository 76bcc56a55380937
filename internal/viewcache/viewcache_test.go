package viewcache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type cache interface {
	Get(ctx context.Context, userID int64) ([]byte, bool, error)
	Set(ctx context.Context, userID int64, payload []byte) error
	Invalidate(ctx context.Context, userID int64) error
}

func exerciseCache(t *testing.T, c cache) {
	t.Helper()
	ctx := t.Context()

	if _, found, err := c.Get(ctx, 1); err != nil || found {
		t.Fatalf("Get on empty cache = found %v, err %v", found, err)
	}
	if err := c.Set(ctx, 1, []byte(`[{"week_number":1}]`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	payload, found, err := c.Get(ctx, 1)
	if err != nil || !found {
		t.Fatalf("Get after Set = found %v, err %v", found, err)
	}
	if diff := cmp.Diff(`[{"week_number":1}]`, string(payload)); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
	if _, found, _ = c.Get(ctx, 2); found {
		t.Error("other user must not see the entry")
	}
	if err = c.Invalidate(ctx, 1); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, found, _ = c.Get(ctx, 1); found {
		t.Error("entry found after Invalidate")
	}
	if err = c.Invalidate(ctx, 1); err != nil {
		t.Errorf("Invalidate of missing entry: %v", err)
	}
}

func TestMemory(t *testing.T) {
	exerciseCache(t, NewMemory(time.Hour))
}

func TestMemory_expiry(t *testing.T) {
	now := time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)
	m := NewMemory(time.Minute)
	m.now = func() time.Time { return now }

	if err := m.Set(t.Context(), 1, []byte("x")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	now = now.Add(59 * time.Second)
	if _, found, _ := m.Get(t.Context(), 1); !found {
		t.Error("entry expired too early")
	}
	now = now.Add(time.Second)
	if _, found, _ := m.Get(t.Context(), 1); found {
		t.Error("entry should have expired")
	}
}

func TestMemory_copiesPayload(t *testing.T) {
	m := NewMemory(time.Hour)
	payload := []byte("abc")
	if err := m.Set(t.Context(), 1, payload); err != nil {
		t.Fatalf("Set: %v", err)
	}
	payload[0] = 'x'
	got, _, _ := m.Get(t.Context(), 1)
	if string(got) != "abc" {
		t.Errorf("cached payload changed to %q", got)
	}
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("RUNPLAN_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("RUNPLAN_TEST_REDIS_ADDR not set")
	}
	r, err := NewRedis(t.Context(), addr, "runplan-test:"+t.Name(), time.Minute)
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	exerciseCache(t, r)
}
