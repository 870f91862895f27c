package catchup

import (
	"context"
	"sync"
	"time"

	"github.com/datazip-inc/streamcatchup/constants"
	"github.com/datazip-inc/streamcatchup/utils/logger"
	"github.com/datazip-inc/streamcatchup/utils/safego"
)

// Poller runs a batch immediately and then once per interval until it is
// stopped or its context is cancelled.
type Poller struct {
	mu      sync.Mutex
	stopped bool
	stop    chan struct{}
	exec    *safego.Execution
}

// Poll starts a background loop calling RunSingleBatch. Batch errors are
// logged and polling continues. A non-positive interval falls back to
// constants.DefaultPollInterval.
func (c *Catchup[D, C]) Poll(ctx context.Context, interval time.Duration) *Poller {
	if interval <= 0 {
		logger.Warnf("Catchup[%s]: invalid poll interval %s, using %s", c.id, interval, constants.DefaultPollInterval)
		interval = constants.DefaultPollInterval
	}

	poller := &Poller{stop: make(chan struct{})}
	logger.Infof("Catchup[%s]: polling stream[%s] every %s", c.id, c.stream.ID(), interval)

	poller.exec = safego.Run(func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			if !poller.runOnce(func() {
				if _, err := c.RunSingleBatch(ctx); err != nil {
					logger.Errorf("Catchup[%s]: poll batch failed: %s", c.id, err)
				}
			}) {
				return
			}

			select {
			case <-ctx.Done():
				logger.Infof("Catchup[%s]: polling stopped: %s", c.id, ctx.Err())
				return
			case <-poller.stop:
				logger.Infof("Catchup[%s]: polling stopped", c.id)
				return
			case <-ticker.C:
			}
		}
	})
	return poller
}

// runOnce runs batch unless the poller was stopped. The lock is held for the
// whole batch so Stop cannot return while a batch it did not prevent is running.
func (p *Poller) runOnce(batch func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return false
	}
	batch()
	return true
}

// Stop prevents any further batch from starting. A batch in flight completes
// before Stop returns. Stop must not be called from within an aggregator.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.stopped {
		p.stopped = true
		close(p.stop)
	}
}

// Wait blocks until the polling loop has exited
func (p *Poller) Wait() {
	<-p.exec.Done()
}

// Done is closed when the polling loop exits
func (p *Poller) Done() <-chan struct{} {
	return p.exec.Done()
}
