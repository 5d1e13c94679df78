package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLineHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		session string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			session: "s-123",
			level:   slog.LevelInfo,
			message: "box added",
			want:    "2024-06-15T14:30:45Z\tINFO\ts-123\tbox added\n",
		},
		{
			name:    "debug level",
			session: "s-456",
			level:   slog.LevelDebug,
			message: "add box skipped: empty name",
			want:    "2024-06-15T14:30:45Z\tDEBUG\ts-456\tadd box skipped: empty name\n",
		},
		{
			name:    "with record attrs",
			session: "s-789",
			level:   slog.LevelInfo,
			message: "item added",
			attrs:   []slog.Attr{slog.String("item_id", "id-2"), slog.Int("tags", 3)},
			want:    "2024-06-15T14:30:45Z\tINFO\ts-789\titem added\titem_id=id-2\ttags=3\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &lineHandler{w: &buf, session: tt.session}

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			for _, a := range tt.attrs {
				r.AddAttrs(a)
			}

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestLineHandler_WithAttrs_doesNotMutateOriginal(t *testing.T) {
	var buf bytes.Buffer
	h := &lineHandler{w: &buf, session: "s-1", attrs: []slog.Attr{slog.String("a", "1")}}

	h2 := h.WithAttrs([]slog.Attr{slog.String("b", "2")}).(*lineHandler)

	if len(h.attrs) != 1 {
		t.Errorf("original handler attrs modified: got %d, want 1", len(h.attrs))
	}
	if len(h2.attrs) != 2 {
		t.Errorf("new handler attrs: got %d, want 2", len(h2.attrs))
	}
}

func TestLineHandler_Enabled(t *testing.T) {
	all := &lineHandler{}
	warn := &lineHandler{level: slog.LevelWarn}

	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if !all.Enabled(context.Background(), level) {
			t.Errorf("Enabled(%v) without level = false, want true", level)
		}
		want := level >= slog.LevelWarn
		if got := warn.Enabled(context.Background(), level); got != want {
			t.Errorf("Enabled(%v) with warn level = %v, want %v", level, got, want)
		}
	}
}

func TestNewLogger_SplitsFileAndConsole(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	logger, f, err := newLogger(dir, "s-1", &console, slog.LevelWarn)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}

	logger.With("component", "inventory").Info("box added", "box_id", "id-1")
	logger.Warn("durable write failed", "id", "id-2")
	f.Close()

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	file := string(data)
	if !strings.Contains(file, "box added\tcomponent=inventory\tbox_id=id-1") {
		t.Errorf("log file missing info record: %q", file)
	}
	if !strings.Contains(file, "durable write failed") {
		t.Errorf("log file missing warn record: %q", file)
	}

	if strings.Contains(console.String(), "box added") {
		t.Errorf("console got info record: %q", console.String())
	}
	if !strings.Contains(console.String(), "WARN\ts-1\tdurable write failed\tid=id-2") {
		t.Errorf("console missing warn record: %q", console.String())
	}
}
