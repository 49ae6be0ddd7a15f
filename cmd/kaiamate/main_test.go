package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/mohans/kaiamate/config"
)

func TestNewLogger_FormatIgnoresCase(t *testing.T) {
	for _, format := range []string{"json", "JSON", "Json"} {
		cfg := config.DefaultConfig()
		cfg.LogFormat = format
		if _, ok := newLogger(cfg).Handler().(*slog.JSONHandler); !ok {
			t.Fatalf("format %q: want JSON handler", format)
		}
	}
	cfg := config.DefaultConfig()
	cfg.LogFormat = "text"
	if _, ok := newLogger(cfg).Handler().(*slog.TextHandler); !ok {
		t.Fatal("format text: want text handler")
	}
}

func TestRun_WorkerRequiresAsynq(t *testing.T) {
	*workerOnly = true
	defer func() { *workerOnly = false }()

	cfg := config.DefaultConfig()
	cfg.Analysis.Provider = "static"
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := run(context.Background(), cfg, logger); err == nil {
		t.Fatal("expected error for worker mode without asynq dispatch")
	}
}
