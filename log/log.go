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
	diagLog    zerolog.Logger
	diagFile   *os.File
	transcFile *os.File
	logMu      sync.Mutex
	logReady   bool
	pid        int
	dir        string
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

	// Priority 2: OVERHEAR_LOG_PATH environment variable
	envPath := os.Getenv("OVERHEAR_LOG_PATH")
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

	// Priority 3: default OS-specific location
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

func Init() error {
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

	transcPath := filepath.Join(dir, "transcript_log.txt")
	transcFile, err = os.OpenFile(transcPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		diagFile = nil
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

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
	if transcFile != nil {
		transcFile.Close()
		transcFile = nil
	}
	logReady = false
}

// TranscriptText appends a finished transcript to the transcript log.
func TranscriptText(text string) {
	writeTranscriptLine("Q", text)
}

// ResponseText appends a finished AI response to the transcript log.
func ResponseText(text string) {
	writeTranscriptLine("A", text)
}

func writeTranscriptLine(tag, text string) {
	logMu.Lock()
	defer logMu.Unlock()
	if !logReady || transcFile == nil {
		return
	}
	ts := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(transcFile, "%s\t[%d]\t%s\t%s\n", ts, pid, tag, text)
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Debugf(format string, args ...any) {
	if logReady {
		diagLog.Debug().Msg(fmt.Sprintf(format, args...))
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

// WorkerLine records a diagnostics line relayed from the capture worker.
func WorkerLine(line string) {
	if logReady {
		diagLog.Debug().Str("src", "worker").Msg(line)
	}
}

// CaptureStats logs one capture session's traffic counters at stop time.
func CaptureStats(sentChunks int, sentKB float64, recvFinal, recvInterim int, transcriptLen int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("sent_chunks", sentChunks).
		Float64("sent_kb", sentKB).
		Int("recv_final", recvFinal).
		Int("recv_interim", recvInterim).
		Int("transcript_len", transcriptLen).
		Msg("capture_session")
}

// ResponseStats logs one AI streaming call.
func ResponseStats(providerName string, promptLen, responseLen int, totalMs float64) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("provider", providerName).
		Int("prompt_len", promptLen).
		Int("response_len", responseLen).
		Float64("total_ms", totalMs).
		Msg("ai_response")
}
