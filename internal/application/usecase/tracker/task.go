package tracker

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// task is one session loop. prices is only touched by the loop goroutine.
type task struct {
	session string
	run     string
	cancel  context.CancelFunc
	done    chan struct{}
	kick    chan struct{}

	mu        sync.Mutex
	messageID string
	replaced  map[string]struct{} // earlier render targets of this loop

	prices map[string]decimal.Decimal
}

func newTask(session, target string, cancel context.CancelFunc) *task {
	return &task{
		session:   session,
		run:       uuid.NewString(),
		cancel:    cancel,
		done:      make(chan struct{}),
		kick:      make(chan struct{}, 1),
		messageID: target,
		prices:    make(map[string]decimal.Decimal),
	}
}

// stop cancels the loop and waits until it has exited.
func (t *task) stop() {
	t.cancel()
	<-t.done
}

func (t *task) MessageID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.messageID
}

func (t *task) setMessageID(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.messageID != "" && t.messageID != id {
		if t.replaced == nil {
			t.replaced = make(map[string]struct{})
		}
		t.replaced[t.messageID] = struct{}{}
	}
	t.messageID = id
}

// renders reports whether id is the current or an earlier render target.
func (t *task) renders(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id == t.messageID {
		return true
	}
	_, ok := t.replaced[id]
	return ok
}
