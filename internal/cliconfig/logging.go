package cliconfig

import (
	"os"

	"github.com/bft-labs/tagship/pkg/log"
)

// NewLogger builds the process logger from the log settings of cfg.
func NewLogger(cfg Config) (*log.ZerologAdapter, error) {
	return log.NewZerologAdapter(log.Options{
		Level: cfg.LogLevel,
		JSON:  cfg.LogJSON,
		Out:   os.Stderr,
	})
}
