// Package logging configures the process-wide logrus logger.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/barathvasan-dev/Gemini-Anywhere/internal/config"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const logFileName = "gemini-anywhere.log"

var (
	setupOnce  sync.Once
	outputMu   sync.Mutex
	fileOutput *lumberjack.Logger
)

// LogFormatter renders entries as "[time] [level] [file:line] message key=value".
type LogFormatter struct{}

// Format implements logrus.Formatter.
func (f *LogFormatter) Format(entry *log.Entry) ([]byte, error) {
	b := entry.Buffer
	if b == nil {
		b = &bytes.Buffer{}
	}
	timestamp := entry.Time.Format("2006-01-02 15:04:05")
	fmt.Fprintf(b, "[%s] [%s] ", timestamp, entry.Level.String())
	if entry.HasCaller() {
		fmt.Fprintf(b, "[%s:%d] ", filepath.Base(entry.Caller.File), entry.Caller.Line)
	}
	b.WriteString(strings.TrimRight(entry.Message, "\n"))

	if len(entry.Data) > 0 {
		keys := make([]string, 0, len(entry.Data))
		for k := range entry.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(b, " %s=%v", k, entry.Data[k])
		}
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// SetupBaseLogger installs the formatter and stdout output once per process.
func SetupBaseLogger() {
	setupOnce.Do(func() {
		log.SetOutput(os.Stdout)
		log.SetReportCaller(true)
		log.SetFormatter(&LogFormatter{})
		log.SetLevel(log.InfoLevel)
	})
}

// ConfigureLogOutput applies the debug level and switches output to a rotating
// file under the configured log directory when file logging is enabled.
func ConfigureLogOutput(cfg *config.Config) error {
	SetupBaseLogger()
	if cfg == nil {
		return nil
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}

	outputMu.Lock()
	defer outputMu.Unlock()

	if !cfg.LoggingToFile {
		closeFileOutput()
		log.SetOutput(os.Stdout)
		return nil
	}

	dir, err := cfg.ResolvedLogDir()
	if err != nil {
		return err
	}
	if dir == "" {
		return fmt.Errorf("logging: log-dir is required when logging-to-file is enabled")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("logging: create log dir: %w", err)
	}
	target := filepath.Join(dir, logFileName)
	if fileOutput != nil && fileOutput.Filename == target {
		return nil
	}
	closeFileOutput()
	fileOutput = &lumberjack.Logger{
		Filename:   target,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     14,
	}
	log.SetOutput(fileOutput)
	return nil
}

// Output returns the writer currently receiving log entries.
func Output() io.Writer {
	return log.StandardLogger().Out
}

func closeFileOutput() {
	if fileOutput == nil {
		return
	}
	if err := fileOutput.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "logging: close log file: %v\n", err)
	}
	fileOutput = nil
}
