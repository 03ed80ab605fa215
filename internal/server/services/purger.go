package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophtoken/internal/logging"
	"github.com/dmitrijs2005/gophtoken/internal/server/repositories/refreshtokens"
)

// Purger deletes refresh tokens that expired more than retention ago. Recent
// records are kept so replays of expired tokens still resolve.
type Purger struct {
	repo      refreshtokens.Repository
	interval  time.Duration
	retention time.Duration
	logger    logging.Logger
	now       func() time.Time
}

func NewPurger(repo refreshtokens.Repository, interval, retention time.Duration, logger logging.Logger) *Purger {
	return &Purger{
		repo:      repo,
		interval:  interval,
		retention: retention,
		logger:    logger.With("module", "purger"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// PurgeOnce runs a single deletion pass.
func (p *Purger) PurgeOnce(ctx context.Context) (int64, error) {
	n, err := p.repo.DeleteExpired(ctx, p.now().Add(-p.retention))
	if err != nil {
		return 0, fmt.Errorf("error purging refresh tokens: %w", err)
	}
	return n, nil
}

// Run purges every interval until ctx is done. A non-positive interval
// disables purging.
func (p *Purger) Run(ctx context.Context) {
	if p.interval <= 0 {
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := p.PurgeOnce(ctx)
			if err != nil {
				p.logger.Error(ctx, "purge failed", "error", err)
				continue
			}
			if n > 0 {
				p.logger.Info(ctx, "expired refresh tokens purged", "deleted", n)
			}

		case <-ctx.Done():
			return
		}
	}
}
