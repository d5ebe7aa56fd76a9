// Package worker runs the periodic maintenance sweep over the
// refresh-token table.  Access tokens self-expire and need no sweeping;
// refresh rows accumulate and are removed here once expired or long idle.
package worker

import (
	"context"
	"log"
	"time"

	"github.com/arepabuelas/arepabuelas-api/internal/repository"
)

// CleanupWorker periodically deletes expired and inactive refresh tokens.
type CleanupWorker struct {
	Tokens       *repository.TokenRepo
	Interval     time.Duration
	InactiveDays int
}

// Run blocks until ctx is cancelled, sweeping once immediately and then on
// every tick.  Intended to be launched as a goroutine from main.
func (w *CleanupWorker) Run(ctx context.Context) {
	interval := w.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *CleanupWorker) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	expired, err := w.Tokens.CleanupExpired(sweepCtx)
	if err != nil {
		log.Printf("cleanup: expired sweep failed: %v", err)
	}
	var inactive int64
	if w.InactiveDays > 0 {
		inactive, err = w.Tokens.CleanupInactive(sweepCtx, w.InactiveDays)
		if err != nil {
			log.Printf("cleanup: inactive sweep failed: %v", err)
		}
	}
	if expired > 0 || inactive > 0 {
		log.Printf("cleanup: removed %d expired and %d inactive refresh tokens", expired, inactive)
	}
}
