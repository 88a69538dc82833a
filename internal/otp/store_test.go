package otp

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"authcore/internal/identifier"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, 5*time.Minute), mr
}

func TestIssueAndConsume(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	code, err := s.Issue(ctx, identifier.KindEmail, "alice@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("code length = %d, want 6", len(code))
	}

	ok, err := s.Consume(ctx, identifier.KindEmail, "alice@example.com", code)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if !ok {
		t.Fatal("fresh code should consume successfully")
	}
}

func TestConsume_SingleUse(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	code, err := s.Issue(ctx, identifier.KindEmail, "alice@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if ok, _ := s.Consume(ctx, identifier.KindEmail, "alice@example.com", code); !ok {
		t.Fatal("first consume should succeed")
	}
	if ok, _ := s.Consume(ctx, identifier.KindEmail, "alice@example.com", code); ok {
		t.Fatal("second consume of the same code must fail")
	}
}

func TestConsume_WrongCodeKeepsChallenge(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	code, err := s.Issue(ctx, identifier.KindPhone, "+18584846800")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if ok, _ := s.Consume(ctx, identifier.KindPhone, "+18584846800", "000000"); ok && code != "000000" {
		t.Fatal("wrong code should not consume")
	}
	// The challenge survives a wrong guess.
	if ok, _ := s.Consume(ctx, identifier.KindPhone, "+18584846800", code); !ok {
		t.Fatal("correct code should still consume after a wrong guess")
	}
}

func TestIssue_InvalidatesPriorChallenge(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	first, err := s.Issue(ctx, identifier.KindEmail, "alice@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	second, err := s.Issue(ctx, identifier.KindEmail, "alice@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if first == second {
		t.Skip("collided codes; cannot distinguish challenges")
	}
	if ok, _ := s.Consume(ctx, identifier.KindEmail, "alice@example.com", first); ok {
		t.Fatal("first code must fail after second is issued")
	}
	if ok, _ := s.Consume(ctx, identifier.KindEmail, "alice@example.com", second); !ok {
		t.Fatal("second code should consume")
	}
}

func TestConsume_Expired(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	code, err := s.Issue(ctx, identifier.KindEmail, "alice@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	mr.FastForward(6 * time.Minute)
	if ok, _ := s.Consume(ctx, identifier.KindEmail, "alice@example.com", code); ok {
		t.Fatal("expired challenge must not consume")
	}
}

func TestConsume_Concurrent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	code, err := s.Issue(ctx, identifier.KindEmail, "race@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Consume(ctx, identifier.KindEmail, "race@example.com", code)
			if err != nil {
				t.Errorf("Consume: %v", err)
				return
			}
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("concurrent consume wins = %d, want exactly 1", wins)
	}
}

func TestGenerateCode_Format(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := GenerateCode()
		if err != nil {
			t.Fatalf("GenerateCode: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("code length = %d, want 6", len(code))
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("non-digit in code %q", code)
			}
		}
		seen[code] = true
	}
	if len(seen) < 2 {
		t.Error("codes look constant; generator is not random")
	}
}

func TestCodeEqual(t *testing.T) {
	hash := HashCode("123456")
	if !CodeEqual("123456", hash) {
		t.Error("matching code should compare equal")
	}
	if CodeEqual("654321", hash) {
		t.Error("non-matching code should compare unequal")
	}
}
