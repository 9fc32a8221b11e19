package corpus

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/kozaktomas/derm-match/internal/index"
)

// Loader pulls case records from a source and swaps them into the index.
// It is safe for concurrent use; the index serializes swaps internally.
type Loader struct {
	source Source
	idx    *index.Index
}

func NewLoader(source Source, idx *index.Index) *Loader {
	return &Loader{source: source, idx: idx}
}

// Reload loads the full corpus from the source and atomically replaces the
// index contents. On any error the index keeps serving its previous snapshot.
func (l *Loader) Reload(ctx context.Context) (int, error) {
	start := time.Now()

	records, err := l.source.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load corpus from %s: %w", l.source.Describe(), err)
	}
	if err := CheckDim(records, l.idx.Dim()); err != nil {
		return 0, fmt.Errorf("corpus from %s: %w", l.source.Describe(), err)
	}
	if err := l.idx.Swap(records); err != nil {
		return 0, fmt.Errorf("swap index: %w", err)
	}

	log.Printf("corpus: reloaded %d records from %s in %s",
		len(records), l.source.Describe(), time.Since(start).Round(time.Millisecond))
	return len(records), nil
}

// Run reloads on a fixed interval until the context is cancelled. Failed
// reloads are logged and retried on the next tick.
func (l *Loader) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := l.Reload(ctx); err != nil {
				log.Printf("corpus: periodic reload failed: %v", err)
			}
		}
	}
}
