package database

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second, Factor: 2, MaxDelay: 5 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second}, // MaxDelayで頭打ち
		{0, time.Second},
	}

	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetryPolicy_Delay_FactorBelowOneIsConstant(t *testing.T) {
	p := RetryPolicy{BaseDelay: 500 * time.Millisecond, Factor: 0.5}
	if got := p.Delay(3); got != 500*time.Millisecond {
		t.Errorf("Delay(3) = %v, want 500ms", got)
	}
}

// pingOutcomes は接続試行ごとのPing結果を順に返すテスト用のOpenFuncを生成する。
func pingOutcomes(t *testing.T, outcomes ...error) (OpenFunc, *int) {
	t.Helper()
	calls := 0
	return func(string, PoolOptions) (*sql.DB, error) {
		if calls >= len(outcomes) {
			t.Fatalf("unexpected connect attempt %d", calls+1)
		}
		outcome := outcomes[calls]
		calls++

		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		if err != nil {
			t.Fatalf("failed to create sqlmock: %v", err)
		}
		if outcome != nil {
			mock.ExpectPing().WillReturnError(outcome)
		} else {
			mock.ExpectPing()
		}
		return db, nil
	}, &calls
}

func newTestConnector(open OpenFunc, policy RetryPolicy) (*Connector, *[]time.Duration) {
	var slept []time.Duration
	c := NewConnector("postgres://test", PoolOptions{ConnectTimeout: time.Second}, policy,
		slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil)))
	c.open = open
	c.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return c, &slept
}

func TestConnector_Connect_SucceedsAfterRetries(t *testing.T) {
	down := errors.New("connection refused")
	open, calls := pingOutcomes(t, down, down, nil)
	c, slept := newTestConnector(open, RetryPolicy{MaxAttempts: 5, BaseDelay: 100 * time.Millisecond, Factor: 2})

	db, err := c.Connect(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer db.Close()

	if *calls != 3 {
		t.Errorf("connect attempts = %d, want 3", *calls)
	}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}
	if len(*slept) != len(want) {
		t.Fatalf("sleeps = %v, want %v", *slept, want)
	}
	for i := range want {
		if (*slept)[i] != want[i] {
			t.Errorf("sleep[%d] = %v, want %v", i, (*slept)[i], want[i])
		}
	}
}

func TestConnector_OnAttempt_ReportsEachOutcome(t *testing.T) {
	down := errors.New("connection refused")
	open, _ := pingOutcomes(t, down, nil)
	c, _ := newTestConnector(open, RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Factor: 2})

	var outcomes []bool
	c.OnAttempt(func(success bool) { outcomes = append(outcomes, success) })

	db, err := c.Connect(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer db.Close()

	if len(outcomes) != 2 || outcomes[0] || !outcomes[1] {
		t.Errorf("outcomes = %v, want [false true]", outcomes)
	}
}

func TestConnector_Connect_GivesUpAfterMaxAttempts(t *testing.T) {
	down := errors.New("connection refused")
	open, calls := pingOutcomes(t, down, down, down)
	c, slept := newTestConnector(open, RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Factor: 2})

	_, err := c.Connect(context.Background())
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if !errors.Is(err, down) {
		t.Errorf("error = %v, want it to wrap the last ping error", err)
	}
	if *calls != 3 {
		t.Errorf("connect attempts = %d, want 3", *calls)
	}
	if len(*slept) != 2 {
		t.Errorf("sleeps = %d, want 2 (no sleep after the final attempt)", len(*slept))
	}
}

func TestConnector_Connect_OpenErrorIsRetried(t *testing.T) {
	calls := 0
	open := func(string, PoolOptions) (*sql.DB, error) {
		calls++
		return nil, errors.New("bad dsn")
	}
	c, _ := newTestConnector(open, RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond})

	if _, err := c.Connect(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if calls != 2 {
		t.Errorf("open calls = %d, want 2", calls)
	}
}

func TestConnector_Connect_StopsWhenContextCancelledDuringBackoff(t *testing.T) {
	down := errors.New("connection refused")
	open, calls := pingOutcomes(t, down, down)
	c, _ := newTestConnector(open, RetryPolicy{MaxAttempts: 5, BaseDelay: time.Hour})
	c.sleep = sleepContext

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.Connect(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if *calls != 1 {
		t.Errorf("connect attempts = %d, want 1", *calls)
	}
}

func TestNewConnector_ClampsMaxAttempts(t *testing.T) {
	c := NewConnector("postgres://test", PoolOptions{}, RetryPolicy{}, nil)
	if c.policy.MaxAttempts != 1 {
		t.Errorf("MaxAttempts = %d, want 1", c.policy.MaxAttempts)
	}
}
