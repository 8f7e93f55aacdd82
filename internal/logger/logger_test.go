package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestNewWritesDailyFile(t *testing.T) {
	prev := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(prev) })

	dir := t.TempDir()
	log, err := New(dir, "debug", false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Infow("draft created", "draft_id", "d-1")
	_ = log.Sync()

	name := filepath.Join(dir, time.Now().Format("2006-01-02")+".log")
	raw, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if len(raw) == 0 {
		t.Fatal("log file is empty")
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(t.TempDir(), "chatty", false); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
