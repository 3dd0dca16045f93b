package throttle

import (
	"context"
	"errors"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"
)

func TestMemory_Window(t *testing.T) {
	m := NewMemory(time.Hour)
	defer m.Close()

	now := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	if ok, _ := m.Allow(ctx, "203.0.113.7", time.Minute); !ok {
		t.Fatal("first call should be allowed")
	}
	now = now.Add(30 * time.Second)
	if ok, _ := m.Allow(ctx, "203.0.113.7", time.Minute); ok {
		t.Fatal("second call within window should be denied")
	}
	if ok, _ := m.Allow(ctx, "198.51.100.1", time.Minute); !ok {
		t.Fatal("other key should be allowed")
	}
	// a denied call does not extend the window
	now = now.Add(31 * time.Second)
	if ok, _ := m.Allow(ctx, "203.0.113.7", time.Minute); !ok {
		t.Fatal("call after window should be allowed")
	}
}

func TestMemory_ZeroWindowAndEmptyKey(t *testing.T) {
	m := NewMemory(time.Hour)
	defer m.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if ok, err := m.Allow(ctx, "k", 0); !ok || err != nil {
			t.Fatalf("zero window: ok=%v err=%v", ok, err)
		}
	}
	if _, err := m.Allow(ctx, "", time.Minute); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("empty key: err = %v", err)
	}
}

func TestMemory_RemoveExpired(t *testing.T) {
	m := NewMemory(time.Hour)
	defer m.Close()

	now := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	_, _ = m.Allow(ctx, "a", time.Second)
	_, _ = m.Allow(ctx, "b", time.Hour)
	now = now.Add(2 * time.Second)
	m.removeExpired()

	if got := m.Len(); got != 1 {
		t.Errorf("Len after sweep = %d, want 1", got)
	}
}

func TestMemory_Concurrent(t *testing.T) {
	m := NewMemory(time.Hour)
	defer m.Close()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := m.Allow(context.Background(), "same", time.Minute); ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if allowed != 1 {
		t.Errorf("allowed = %d, want exactly 1", allowed)
	}
}

func TestMemory_CloseTwice(t *testing.T) {
	m := NewMemory(time.Millisecond)
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNop(t *testing.T) {
	if ok, err := (Nop{}).Allow(context.Background(), "", time.Hour); !ok || err != nil {
		t.Errorf("Nop.Allow = %v, %v", ok, err)
	}
}

// Requires a reachable server; set INQUIRY_TEST_REDIS_ADDR=localhost:6379.
func TestRedis_Window(t *testing.T) {
	addr := os.Getenv("INQUIRY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("INQUIRY_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	prefix := "inquiry:test:" + strconv.FormatInt(time.Now().UnixNano(), 36) + ":"
	r, err := NewRedis(ctx, RedisConfig{Address: addr, KeyPrefix: prefix})
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	defer r.Close()

	if err := r.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if ok, err := r.Allow(ctx, "ip", 300*time.Millisecond); !ok || err != nil {
		t.Fatalf("first Allow = %v, %v", ok, err)
	}
	if ok, err := r.Allow(ctx, "ip", 300*time.Millisecond); ok || err != nil {
		t.Fatalf("second Allow = %v, %v", ok, err)
	}
	time.Sleep(400 * time.Millisecond)
	if ok, err := r.Allow(ctx, "ip", 300*time.Millisecond); !ok || err != nil {
		t.Fatalf("Allow after expiry = %v, %v", ok, err)
	}
}

func TestNewRedis_NoAddress(t *testing.T) {
	if _, err := NewRedis(context.Background(), RedisConfig{}); err == nil {
		t.Error("expected error without address")
	}
}
