package logger

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}

	Get().Info(context.Background(), "test message", String("k", "v"))
}

func TestLoggerNamed(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	namedLogger := Named("test")
	if namedLogger == nil {
		t.Fatal("named logger is nil")
	}
	namedLogger.Info(context.Background(), "test message")
}

func TestNamedOrNop(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	if NamedOrNop("sweeper") == nil {
		t.Fatal("named logger is nil")
	}
}

func TestContextFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core)).Named("pipeline")

	ctx := WithUserID(WithRequestID(context.Background(), "req-1"), "user-9")
	l.Warn(ctx, "slow upload", Int("asset", 2), Error(errors.New("boom")))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.LoggerName != "pipeline" {
		t.Errorf("unexpected logger name %q", e.LoggerName)
	}
	fields := e.ContextMap()
	if fields["request_id"] != "req-1" || fields["user_id"] != "user-9" {
		t.Errorf("context fields missing: %v", fields)
	}
	if fields["asset"] != int64(2) {
		t.Errorf("asset field = %v", fields["asset"])
	}
	if fields["error"] != "boom" {
		t.Errorf("error field = %v", fields["error"])
	}
}

func TestSetLevelString(t *testing.T) {
	for _, lvl := range []string{"debug", "INFO", "warning", "error", ""} {
		if err := SetLevelString(lvl); err != nil {
			t.Errorf("level %q: %v", lvl, err)
		}
	}
	if err := SetLevelString("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
	_ = SetLevelString("info")
}
