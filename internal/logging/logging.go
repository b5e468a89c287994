// Package logging wraps zap's SugaredLogger into the event/key/value call
// shape hycast's components use for operational logging: a short event name
// followed by alternating keys and values, e.g.
// log.Infow("store", "event", "evict", "product", idx).
//
// Grounded on cmd/chunkserver/main.go and cmd/master/api.go in pyropy-dfs,
// which call log.Infow/log.Errorw throughout in exactly this shape via a
// logger built over zap (zap is a direct dependency in that repo's go.mod).
package logging

import (
	"go.uber.org/zap"
)

// Logger is the *zap.SugaredLogger, aliased so callers in this module don't
// need to import zap directly.
type Logger = zap.SugaredLogger

// New builds a production zap logger (JSON encoding, info level) tagged
// with a "component" field, matching pyropy-dfs's per-binary named loggers
// (logger.New("chunk-server-rpc")).
func New(component string) (*Logger, error) {
	base, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return base.Sugar().With("component", component), nil
}

// Nop returns a logger that discards everything, for tests and callers that
// don't want operational logging.
func Nop() *Logger {
	return zap.NewNop().Sugar()
}
