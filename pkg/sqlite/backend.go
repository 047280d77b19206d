// Package sqlite exposes the SQLite record store to programs that embed
// cakeday storage without running the service.
package sqlite

import (
	"log/slog"

	"github.com/mesh-intelligence/cakeday/internal/sqlite"
	"github.com/mesh-intelligence/cakeday/pkg/types"
)

// Open attaches a SQLite record store described by config. A nil logger
// uses slog.Default.
//
// Example:
//
//	store, err := sqlite.Open(types.Config{DataDir: ".cakeday"}, nil)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
func Open(config types.Config, logger *slog.Logger) (types.RecordStore, error) {
	return sqlite.Open(config, sqlite.WithLogger(logger))
}
