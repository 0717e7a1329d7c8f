package identity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"fleetadmin/repository"
)

// The cascade engine enqueues external ids here after its transactions
// commit.
var _ repository.IdentityCleaner = (*Cleaner)(nil)

// AccountDeleter is the slice of AdminClient the cleaner needs.
type AccountDeleter interface {
	DeleteAccount(ctx context.Context, externalID string) error
}

// Cleaner drains identity deletions queued by the cascade engine after
// its transactions commit. Delivery is at-most-once with bounded retry: a
// delete that keeps failing is logged with its external id and dropped,
// so an operator can finish it by hand.
type Cleaner struct {
	deleter AccountDeleter
	queue   chan string
	wg      sync.WaitGroup
	logger  *zap.Logger

	mu     sync.Mutex
	closed bool

	attempts    int
	baseBackoff time.Duration
}

func NewCleaner(deleter AccountDeleter, logger *zap.Logger) *Cleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Cleaner{
		deleter:     deleter,
		queue:       make(chan string, 256),
		logger:      logger,
		attempts:    3,
		baseBackoff: 200 * time.Millisecond,
	}
	c.wg.Add(1)
	go c.run()
	return c
}

// Enqueue schedules an identity deletion. It never blocks: when the queue
// is full, or the cleaner already closed, the id is logged and dropped
// rather than stalling the caller's request path.
func (c *Cleaner) Enqueue(externalID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		c.logger.Warn("identity cleanup queue closed, dropping", zap.String("external_id", externalID))
		return
	}
	select {
	case c.queue <- externalID:
	default:
		c.logger.Warn("identity cleanup queue full, dropping", zap.String("external_id", externalID))
	}
}

// Close stops accepting work and waits for the queue to drain. Safe to
// call more than once.
func (c *Cleaner) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.queue)
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Cleaner) run() {
	defer c.wg.Done()
	for externalID := range c.queue {
		c.deleteWithRetry(externalID)
	}
}

func (c *Cleaner) deleteWithRetry(externalID string) {
	backoff := c.baseBackoff
	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := c.deleter.DeleteAccount(ctx, externalID)
		cancel()
		if err == nil {
			c.logger.Debug("identity record removed", zap.String("external_id", externalID))
			return
		}
		if attempt >= c.attempts {
			c.logger.Error("identity cleanup failed, dropping",
				zap.String("external_id", externalID),
				zap.Int("attempts", attempt),
				zap.Error(err),
			)
			return
		}
		c.logger.Warn("identity cleanup attempt failed, retrying",
			zap.String("external_id", externalID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		time.Sleep(backoff)
		backoff *= 2
	}
}
