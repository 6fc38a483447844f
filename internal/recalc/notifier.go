// Package recalc notifies the external attendance-percentage service after
// ledger-affecting mutations. The call is advisory: it runs detached from the
// mutating request and its failures are logged, never propagated.
package recalc

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bnc-guild/attendance-engine/internal/adapter"
	"github.com/bnc-guild/attendance-engine/internal/logger"
)

const defaultTimeout = 15 * time.Second

// Notifier triggers the collaborator's recalculation endpoint.
type Notifier struct {
	client  adapter.HTTPClient
	url     string
	timeout time.Duration

	wg sync.WaitGroup
}

// NewNotifier creates a notifier for the given endpoint; an empty url
// disables notifications
func NewNotifier(client adapter.HTTPClient, url string, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Notifier{client: client, url: url, timeout: timeout}
}

// Notify fires the recalculation call on a detached goroutine with its own
// timeout. It returns immediately; the caller's transaction must already be
// durable since nothing here can roll it back.
func (n *Notifier) Notify() {
	if n.url == "" {
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		// The response body is discarded; only reachability matters
		if err := n.client.Get(ctx, n.url, nil); err != nil {
			logger.Warn("attendance recalculation call failed",
				zap.String("url", n.url),
				zap.Error(err))
		}
	}()
}

// Drain blocks until all in-flight notifications finish, for shutdown
func (n *Notifier) Drain() {
	n.wg.Wait()
}
