package decompiler

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/decompiler/cfg"
	"github.com/wippyai/decompiler/structure"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
	loggerMu   sync.Mutex
)

// Logger returns the package logger, a no-op logger unless SetLogger was
// called.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		loggerMu.Lock()
		defer loggerMu.Unlock()
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	loggerMu.Lock()
	defer loggerMu.Unlock()
	return logger
}

// SetLogger replaces the package logger and hands it to the cfg and
// structure packages as well. A nil logger restores the no-op default.
func SetLogger(l *zap.Logger) {
	loggerOnce.Do(func() {})
	loggerMu.Lock()
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
	loggerMu.Unlock()
	cfg.SetLogger(l)
	structure.SetLogger(l)
}
