package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestNopHandlerDisabled(t *testing.T) {
	h := nopHandler{}
	for _, lvl := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if h.Enabled(context.Background(), lvl) {
			t.Errorf("nopHandler enabled at %v", lvl)
		}
	}
	if _, ok := h.WithAttrs(nil).(nopHandler); !ok {
		t.Error("WithAttrs should return nopHandler")
	}
	if _, ok := h.WithGroup("g").(nopHandler); !ok {
		t.Error("WithGroup should return nopHandler")
	}
}

func TestLoggerDefaultSilent(t *testing.T) {
	SetLogger(nil)
	if Logger().Enabled(context.Background(), slog.LevelError) {
		t.Fatal("default logger should be silent")
	}
}

func TestSetLogger(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	defer SetLogger(nil)

	Logger().Info("patient loaded", "branches", 3)
	if !strings.Contains(buf.String(), "patient loaded") {
		t.Fatalf("expected log output, got %q", buf.String())
	}

	SetLogger(nil)
	buf.Reset()
	Logger().Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected silence after SetLogger(nil), got %q", buf.String())
	}
}

func TestLoggerConcurrentAccess(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			SetLogger(nil)
		}()
		go func() {
			defer wg.Done()
			Logger().Debug("x")
		}()
	}
	wg.Wait()
}
