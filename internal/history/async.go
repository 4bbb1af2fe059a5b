package history

import (
	"context"
	"sync"
	"time"

	"github.com/insightbot/insightbot/internal/logger"
)

// AsyncLogger wraps a Store so chat turns can fire history logging without
// waiting on extraction or the database. Failures flow through a dedicated
// error channel and land in the logs; they never reach the chat path.
type AsyncLogger struct {
	store   *Store
	timeout time.Duration
	errs    chan error
	wg      sync.WaitGroup
	done    chan struct{}
}

func NewAsyncLogger(store *Store) *AsyncLogger {
	al := &AsyncLogger{
		store:   store,
		timeout: 30 * time.Second,
		errs:    make(chan error, 16),
		done:    make(chan struct{}),
	}
	go al.drainErrors()
	return al
}

// Log queues one interaction for logging and returns immediately.
func (al *AsyncLogger) Log(userQuery, agentResponse, sessionID string) {
	al.wg.Add(1)
	go func() {
		defer al.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), al.timeout)
		defer cancel()
		if id := al.store.LogSearch(ctx, userQuery, agentResponse, sessionID); id == -1 {
			select {
			case al.errs <- errNotLogged{sessionID}:
			default:
				// Error channel full; LogSearch already logged the cause.
			}
		}
	}()
}

// Close waits for in-flight log calls to finish.
func (al *AsyncLogger) Close() {
	al.wg.Wait()
	close(al.done)
}

func (al *AsyncLogger) drainErrors() {
	for {
		select {
		case err := <-al.errs:
			logger.L.Warn("history logging dropped an interaction", "error", err)
		case <-al.done:
			return
		}
	}
}

type errNotLogged struct {
	sessionID string
}

func (e errNotLogged) Error() string {
	return "interaction for session " + e.sessionID + " was not logged"
}
