package log

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"
	"sync"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger *logrus.Logger
	mu     sync.Mutex
)

type Fields = logrus.Fields

// Options controls where and how verbosely we log.
type Options struct {
	Level string
	// File enables a rotating log file alongside stderr.
	File string
	// Output overrides stderr (tests).
	Output io.Writer
}

// Setup builds the process-wide logger. Calling it again replaces the previous one.
func Setup(opts Options) (*logrus.Logger, error) {
	level := logrus.InfoLevel
	if opts.Level != "" {
		parsed, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	l := logrus.New()
	l.SetLevel(level)
	l.SetFormatter(&formatter.Formatter{
		NoColors:        opts.Output != nil,
		TimestampFormat: "02 Jan 06 - 15:04:05",
		HideKeys:        false,
		CallerFirst:     true,
		CustomCallerFormatter: func(f *runtime.Frame) string {
			s := strings.Split(f.Function, ".")
			funcName := s[len(s)-1]
			return fmt.Sprintf(" [%s:%d][%s()]", path.Base(f.File), f.Line, funcName)
		},
	})

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	writers := []io.Writer{out}
	if opts.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			LocalTime:  true,
			Compress:   true,
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 3,
		})
	}
	l.SetOutput(io.MultiWriter(writers...))
	l.SetReportCaller(level >= logrus.DebugLevel)

	mu.Lock()
	logger = l
	mu.Unlock()
	return l, nil
}

// Logger returns the process logger, creating an info-level stderr logger on first use.
func Logger() *logrus.Logger {
	mu.Lock()
	l := logger
	mu.Unlock()
	if l != nil {
		return l
	}
	l, _ = Setup(Options{})
	return l
}

func Debug(fields Fields, msg string) {
	Logger().WithFields(fields).Debug(msg)
}

func Info(fields Fields, msg string) {
	Logger().WithFields(fields).Info(msg)
}

func Warn(fields Fields, msg string) {
	Logger().WithFields(fields).Warn(msg)
}

func Error(fields Fields, msg string) {
	Logger().WithFields(fields).Error(msg)
}
