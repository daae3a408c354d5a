package logging

import (
	"io"
	"os"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds the application logger. Output goes to stderr, plus a rotating
// file when logFile is set (proctoring sessions can run for hours; logs are
// capped rather than unbounded).
func New(level, logFile string) *logrus.Logger {
	logger := logrus.New()

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)

	logger.SetFormatter(&formatter.Formatter{
		TimestampFormat: "2006-01-02 15:04:05",
		HideKeys:        false,
		NoColors:        logFile != "",
	})

	writers := []io.Writer{os.Stderr}
	if logFile != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   logFile,
			LocalTime:  true,
			Compress:   true,
			MaxSize:    50, // megabytes
			MaxAge:     7,  // days
			MaxBackups: 3,
		})
	}
	logger.SetOutput(io.MultiWriter(writers...))

	return logger
}
