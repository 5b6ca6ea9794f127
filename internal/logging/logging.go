package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogFileName is the rotating log file inside the log directory.
const LogFileName = "bgzfiltra.log"

// Init sets up the global logger with two sinks: stderr and a rotating file
// in $LOGS_FOLDER (default ./logs).
func Init(verbose bool) error {
	// Init runs before config.Load, so LOGS_FOLDER may only live in .env yet.
	_ = godotenv.Load()

	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	logDir := os.Getenv("LOGS_FOLDER")
	if logDir == "" {
		logDir = "logs"
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory %q: %w", logDir, err)
	}

	testFile := filepath.Join(logDir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
		return fmt.Errorf("log directory %q is not writable: %w", logDir, err)
	}
	_ = os.Remove(testFile)

	fileWriter := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, LogFileName),
		MaxSize:    16, // megabytes
		MaxBackups: 32,
		MaxAge:     365, // days
		Compress:   true,
	}

	log.Logger = New(os.Stderr, fileWriter)
	return nil
}

// New builds a logger writing human-readable lines to console (coloured only
// on a terminal) and JSON lines to file.
func New(console *os.File, file io.Writer) zerolog.Logger {
	isTerminal := isatty.IsTerminal(console.Fd()) || isatty.IsCygwinTerminal(console.Fd())
	consoleWriter := zerolog.ConsoleWriter{
		Out:        console,
		TimeFormat: time.RFC3339,
		NoColor:    !isTerminal,
	}

	multi := zerolog.MultiLevelWriter(io.Writer(consoleWriter), file)
	return zerolog.New(multi).
		With().
		Timestamp().
		Logger()
}
