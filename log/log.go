// Package log owns the process-wide diagnostic log and the caption
// transcript file. Diagnostics go to a file rather than the terminal
// because the terminal belongs to the caption view.
package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog     zerolog.Logger
	diagFile    *os.File
	captionFile *os.File
	logMu       sync.Mutex
	logReady    bool
	pid         int
	dir         string
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		if !filepath.IsAbs(flagPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, flagPath), nil
		}
		return flagPath, nil
	}

	// Priority 2: LINGOCAP_LOG_PATH environment variable
	envPath := os.Getenv("LINGOCAP_LOG_PATH")
	if envPath != "" {
		if !filepath.IsAbs(envPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, envPath), nil
		}
		return envPath, nil
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init(debug bool) error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	captionPath := filepath.Join(dir, "captions_log.txt")
	captionFile, err = os.OpenFile(captionPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	diagLog = zerolog.New(consoleWriter).Level(level).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if captionFile != nil {
		captionFile.Close()
		captionFile = nil
	}
	logReady = false
}

// Logger hands out the diagnostic logger for components that take one
// by injection. Safe to call before Init; events are discarded until
// the log is ready.
func Logger() zerolog.Logger {
	logMu.Lock()
	defer logMu.Unlock()
	if !logReady {
		return zerolog.Nop()
	}
	return diagLog
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

// CaptionText appends one delivered caption to the transcript file,
// kept apart from diagnostics so the transcript stays greppable.
func CaptionText(source, translated string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	line := fmt.Sprintf("%s\t[%d]\t%s\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, source, translated)
	captionFile.WriteString(line)
}

func SessionStart(runID, recognizer, translator, source, target string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("run", runID).
		Str("recognizer", recognizer).
		Str("translator", translator).
		Str("source_lang", source).
		Str("target_lang", target).
		Msg("session_start")
}

func SessionEnd(delivered, failed int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("delivered", delivered).
		Int("failed", failed).
		Msg("session_end")
}
