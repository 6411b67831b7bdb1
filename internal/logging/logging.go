package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds the process logger. Output always goes to out; when file is
// set it is also written to a rotating log file. The returned closer flushes
// and closes the file and is safe to call when no file is configured.
func New(out io.Writer, level, file string) (zerolog.Logger, io.Closer) {
	if out == nil {
		out = os.Stdout
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var closer io.Closer = nopCloser{}
	w := out
	if strings.TrimSpace(file) != "" {
		rotator := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		w = zerolog.MultiLevelWriter(out, rotator)
		closer = rotator
	}

	return zerolog.New(w).With().Timestamp().Logger().Level(lvl), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
