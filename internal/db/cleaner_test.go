package db

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type purgerFunc func(ctx context.Context, cutoff time.Time) (int64, error)

func (f purgerFunc) DeleteStaleSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	return f(ctx, cutoff)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func bufferLogger(level zapcore.Level) (*zap.Logger, *syncBuffer) {
	var buf syncBuffer
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(&buf),
		level,
	)
	return zap.New(core), &buf
}

func TestStartSessionCleaner_Success(t *testing.T) {
	var (
		mu      sync.Mutex
		cutoffs []time.Time
	)
	purger := purgerFunc(func(ctx context.Context, cutoff time.Time) (int64, error) {
		mu.Lock()
		defer mu.Unlock()
		cutoffs = append(cutoffs, cutoff)
		return 3, nil
	})

	logger, buf := bufferLogger(zapcore.InfoLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	start := time.Now()
	StartSessionCleaner(ctx, purger, 10*time.Millisecond, time.Hour, logger)

	time.Sleep(200 * time.Millisecond)
	cancel()

	mu.Lock()
	defer mu.Unlock()
	if len(cutoffs) == 0 {
		t.Fatalf("expected the purger to run")
	}
	if !cutoffs[0].Before(start.Add(-59 * time.Minute)) {
		t.Errorf("cutoff %v should be about one hour before %v", cutoffs[0], start)
	}
	if !strings.Contains(buf.String(), "cleaned stale sessions") {
		t.Errorf("expected info log, got:\n%s", buf.String())
	}
}

func TestStartSessionCleaner_ErrorLogged(t *testing.T) {
	purger := purgerFunc(func(ctx context.Context, cutoff time.Time) (int64, error) {
		return 0, errors.New("db fail")
	})

	logger, buf := bufferLogger(zapcore.ErrorLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	StartSessionCleaner(ctx, purger, 10*time.Millisecond, time.Hour, logger)

	time.Sleep(200 * time.Millisecond)
	cancel()

	if out := buf.String(); !strings.Contains(out, "failed to clean stale sessions") {
		t.Errorf("expected error log, got:\n%s", out)
	}
}

func TestStartSessionCleaner_CancelBeforeTicker(t *testing.T) {
	calls := 0
	var mu sync.Mutex
	purger := purgerFunc(func(ctx context.Context, cutoff time.Time) (int64, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return 0, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	StartSessionCleaner(ctx, purger, 100*time.Millisecond, time.Hour, zap.NewNop())
	cancel()

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Errorf("expected no purge after cancel, got %d", calls)
	}
}
