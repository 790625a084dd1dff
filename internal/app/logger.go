package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. Production always logs JSON; elsewhere
// LOG_FORMAT picks between json and the readable text handler. Every record
// carries the service name so aggregated logs stay attributable.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	var handler slog.Handler
	if cfg != nil && (cfg.LogFormat == "json" || cfg.IsProduction()) {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler).With(slog.String("service", "grandlivre"))
}
