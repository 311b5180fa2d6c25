package payment

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Reaper periodically sweeps expired payment sessions. The sweep callback
// is supplied by the command layer, which knows how to find candidate
// orders and release their stock.
type Reaper struct {
	interval time.Duration
	sweep    func(ctx context.Context) (int, error)
	log      *logrus.Entry
}

func NewReaper(interval time.Duration, sweep func(ctx context.Context) (int, error)) *Reaper {
	return &Reaper{
		interval: interval,
		sweep:    sweep,
		log:      logrus.WithField("component", "payment-reaper"),
	}
}

// Run blocks until the context is cancelled, sweeping once per interval.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, err := r.sweep(ctx)
			if err != nil {
				r.log.WithError(err).Error("sweep expired payment sessions")
				continue
			}
			if expired > 0 {
				r.log.WithField("expired", expired).Info("swept expired payment sessions")
			}
		}
	}
}
