package console

import (
	"context"
	"time"
)

// Run calls Tick at TickRate until ctx is canceled, then commits pending
// changes.
func (p *Pad) Run(ctx context.Context) error {
	p.Start()
	ticker := time.NewTicker(time.Second / TickRate)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return p.Store.Close()
		case <-ticker.C:
			p.Tick()
		}
	}
}
