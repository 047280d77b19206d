package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mesh-intelligence/cakeday/pkg/types"
)

// newLogger builds the process logger from the log section. verbose forces
// debug level.
func newLogger(cfg types.LogConfig, verbose bool, w io.Writer) (*slog.Logger, error) {
	level := slog.LevelInfo
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Level))); err != nil {
			return nil, fmt.Errorf("log.level: %w", err)
		}
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch cfg.Format {
	case types.LogFormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	case types.LogFormatText, "":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrLogFormatUnknown, cfg.Format)
	}
	return slog.New(handler), nil
}
