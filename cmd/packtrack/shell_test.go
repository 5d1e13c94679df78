package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"packtrack/internal/app"
	"packtrack/internal/config"
)

func newShellApp(t *testing.T) *app.App {
	t.Helper()
	cfg := config.NewConfig(t.TempDir())
	cfg.Store.Type = "memory"
	cfg.Classifier.Type = "none"

	a, err := app.NewApp(context.Background(), cfg, app.Options{Command: "shell", Console: io.Discard})
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.Close(ctx)
	})
	return a
}

func TestRunShell_PackingSession(t *testing.T) {
	a := newShellApp(t)
	script := strings.Join([]string{
		"box Kitchen",
		"add Whisk",
		"add Ladle",
		"box Garage",
		"add Drill",
		"use kitchen",
		"ls",
		"seal",
		"quit",
		"box Never",
	}, "\n")

	var out bytes.Buffer
	if err := runShell(context.Background(), a, strings.NewReader(script), &out, false); err != nil {
		t.Fatalf("runShell() error = %v", err)
	}

	got := out.String()
	for _, want := range []string{"Created box Kitchen", "Using box Kitchen", "Whisk", "Ladle", "Kitchen is now full"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Drill") {
		t.Errorf("ls listed an item from another box:\n%s", got)
	}
	if n := len(a.Inventory().Boxes()); n != 2 {
		t.Errorf("Boxes() = %d, want 2 (commands after quit must not run)", n)
	}
	box, _ := a.Inventory().CurrentBox()
	if !box.IsFull {
		t.Error("current box not sealed")
	}
}

func TestRunShell_Errors(t *testing.T) {
	a := newShellApp(t)

	tests := []struct {
		name string
		line string
		want string
	}{
		{name: "unknown command", line: "dance", want: `unknown command "dance"`},
		{name: "empty box name", line: "box   ", want: "name must not be empty"},
		{name: "add without box", line: "add Spoon", want: "no box selected"},
		{name: "ls without box", line: "ls", want: "no box selected"},
		{name: "move usage", line: "mv onlyone", want: "usage: mv ITEM BOX"},
		{name: "remove unknown", line: "rm nope", want: "unknown item"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if err := runShell(context.Background(), a, strings.NewReader(tt.line), &out, false); err != nil {
				t.Fatalf("runShell() error = %v", err)
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("output = %q, want it to contain %q", out.String(), tt.want)
			}
		})
	}
}

func TestRunShell_InteractiveRerendersAfterChange(t *testing.T) {
	a := newShellApp(t)

	var out bytes.Buffer
	script := "box Attic\nboxes\nadd Lamp\n"
	if err := runShell(context.Background(), a, strings.NewReader(script), &out, true); err != nil {
		t.Fatalf("runShell() error = %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "[Attic] > ") {
		t.Errorf("prompt does not show current box:\n%s", got)
	}
	if n := strings.Count(got, "-- Attic (open):"); n != 2 {
		t.Errorf("re-rendered %d times, want 2 (only after changes):\n%s", n, got)
	}
	if !strings.Contains(got, "-- Attic (open): 1 item(s)") {
		t.Errorf("missing render after add:\n%s", got)
	}
}
