package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestSetupWriterLevels(t *testing.T) {
	var buf bytes.Buffer
	SetupWriter(&buf, "warn", false)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	log.Info().Msg("hidden")
	log.Warn().Str("session_id", "s1").Msg("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %q", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("expected json line: %v", err)
	}
	if entry["message"] != "shown" || entry["session_id"] != "s1" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestSetupWriterUnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	SetupWriter(&buf, "chatty", false)
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info fallback, got %s", zerolog.GlobalLevel())
	}
}

func TestGormLoggerTrace(t *testing.T) {
	var buf bytes.Buffer
	SetupWriter(&buf, "debug", false)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	quiet := NewGormLogger(false)
	sql := func() (string, int64) { return "SELECT 1", 1 }
	quiet.Trace(context.Background(), time.Now(), sql, nil)
	quiet.Trace(context.Background(), time.Now(), sql, gorm.ErrRecordNotFound)
	if buf.Len() != 0 {
		t.Fatalf("expected fast queries to stay quiet, got %q", buf.String())
	}

	quiet.Trace(context.Background(), time.Now(), sql, errors.New("broken"))
	if !strings.Contains(buf.String(), "gorm query error") {
		t.Fatalf("expected error to be logged, got %q", buf.String())
	}

	buf.Reset()
	quiet.Trace(context.Background(), time.Now().Add(-time.Second), sql, nil)
	if !strings.Contains(buf.String(), "slow query") {
		t.Fatalf("expected slow query warning, got %q", buf.String())
	}

	buf.Reset()
	quiet.LogMode(logger.Silent).Trace(context.Background(), time.Now(), sql, errors.New("broken"))
	if buf.Len() != 0 {
		t.Fatalf("expected silent mode to drop everything, got %q", buf.String())
	}
}
