package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew_WritesJSONToFileSink(t *testing.T) {
	console, err := os.CreateTemp(t.TempDir(), "console")
	if err != nil {
		t.Fatal(err)
	}
	defer console.Close()

	var file bytes.Buffer
	logger := New(console, &file)
	logger.Info().Str("product", "Foo").Msg("Processing product")

	var entry map[string]any
	if err := json.Unmarshal(file.Bytes(), &entry); err != nil {
		t.Fatalf("file sink is not JSON: %v (%q)", err, file.String())
	}
	if entry["product"] != "Foo" || entry["message"] != "Processing product" {
		t.Errorf("unexpected entry: %v", entry)
	}

	consoleOut, err := os.ReadFile(console.Name())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(consoleOut), "Processing product") {
		t.Errorf("console sink missing message: %q", consoleOut)
	}
	if strings.Contains(string(consoleOut), "\x1b[") {
		t.Errorf("non-terminal console must not be coloured: %q", consoleOut)
	}
}

func TestInit_CreatesLogDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	t.Setenv("LOGS_FOLDER", dir)
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := Init(true); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Errorf("expected debug level, got %v", zerolog.GlobalLevel())
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("expected log directory %s: %v", dir, err)
	}
}
