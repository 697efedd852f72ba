package engram

import (
	"context"
	"log"
	"time"
)

// RunConsolidationLoop runs consolidation and forgetting on a fixed interval
// until ctx is canceled. No Engram operation starts this on its own (spec §5:
// no operation spawns background work) — a caller that wants periodic
// consolidation runs this in its own goroutine, mirroring how the teacher's
// decay worker ran but without the implicit autostart.
func (e *Engram) RunConsolidationLoop(ctx context.Context, interval time.Duration, deltaDays float64, forgetThreshold float64) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := e.Consolidate(ctx, deltaDays); err != nil {
				log.Printf("[engram] consolidation error: %v", err)
				continue
			}
			forgotten, err := e.Forget(ctx, forgetThreshold)
			if err != nil {
				log.Printf("[engram] forget error: %v", err)
				continue
			}
			if forgotten > 0 {
				log.Printf("[engram] consolidation sweep: %d forgotten", forgotten)
			}
		case <-ctx.Done():
			return
		}
	}
}
