package sweeper

import (
	"context"
	"log"
	"time"
)

const DefaultInterval = time.Minute

// Expirer expires overdue unpaid orders. *order.Service satisfies it.
type Expirer interface {
	ExpirePendingOrders(ctx context.Context) (int, error)
}

// Sweeper runs the expiry job on a fixed cadence.
type Sweeper struct {
	expirer  Expirer
	interval time.Duration
}

func New(expirer Expirer, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{expirer: expirer, interval: interval}
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	log.Printf("[Sweeper] Expiring unpaid orders every %s", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.RunOnce(ctx)
		select {
		case <-ctx.Done():
			log.Println("[Sweeper] Stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single sweep. Failures are logged; the next tick retries.
func (s *Sweeper) RunOnce(ctx context.Context) int {
	n, err := s.expirer.ExpirePendingOrders(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("[Sweeper] Sweep failed: %v", err)
		}
		return n
	}
	if n > 0 {
		log.Printf("[Sweeper] Expired %d orders", n)
	}
	return n
}
