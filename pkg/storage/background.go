package storage

import (
	"context"
	"runtime"
	"time"
)

// Stats is a point-in-time summary of the engine.
type Stats struct {
	Databases     int    `json:"databases"`
	Collections   int    `json:"collections"`
	Documents     int64  `json:"documents"`
	AllocMB       uint64 `json:"alloc_mb"`
	SysMB         uint64 `json:"sys_mb"`
	NumGoroutines int    `json:"num_goroutines"`
}

// Stats counts databases, collections and documents and samples memory use.
func (e *Engine) Stats() Stats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	stats := Stats{
		AllocMB:       m.Alloc / 1024 / 1024,
		SysMB:         m.Sys / 1024 / 1024,
		NumGoroutines: runtime.NumGoroutine(),
	}

	e.mu.RLock()
	dbs := make([]*Database, 0, len(e.databases))
	for _, db := range e.databases {
		dbs = append(dbs, db)
	}
	e.mu.RUnlock()

	for _, db := range dbs {
		db.mu.RLock()
		colls := make([]*Collection, 0, len(db.collections))
		for _, coll := range db.collections {
			colls = append(colls, coll)
		}
		db.mu.RUnlock()
		if len(colls) == 0 {
			continue
		}
		stats.Databases++
		for _, coll := range colls {
			coll.mu.RLock()
			if !coll.dropped {
				stats.Collections++
				stats.Documents += int64(len(coll.docs))
			}
			coll.mu.RUnlock()
		}
	}
	return stats
}

// RunSnapshots saves a snapshot to filename every interval until ctx is
// done, then saves once more. Failed periodic saves are logged and retried on
// the next tick; only the final save's error is returned.
func (e *Engine) RunSnapshots(ctx context.Context, filename string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := e.SaveToFile(filename); err != nil {
				e.logger.Errorw("periodic snapshot failed", "file", filename, "error", err)
			}
		case <-ctx.Done():
			return e.SaveToFile(filename)
		}
	}
}
