// Package logging sets up the slog pipeline (console or file, plus the
// OTel bridge) and the zerolog loggers used by the storage managers.
package logging

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"
)

// LogFilePath builds a log file path using OS-appropriate path separators.
func LogFilePath(logsDir, name string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", name, sessionStart.Format("20060102_150405")),
	)
}

// SessionAttrs tags every record with the session id and the number of
// steps requested so far.
func SessionAttrs(sessionID string, step func() int) ContextProvider {
	return func() []slog.Attr {
		attrs := []slog.Attr{slog.String("session", sessionID)}
		if step != nil {
			attrs = append(attrs, slog.Int("step", step()))
		}
		return attrs
	}
}
