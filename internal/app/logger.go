package app

import (
	"service-dispatch/internal/config"
	"service-dispatch/internal/logx"
)

// NewLogger builds the zap-backed production logger at the configured level.
func NewLogger(cfg *config.Config) (logx.Logger, error) {
	return logx.NewProduction(cfg.LogLevel)
}
