package lock

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Local is an in-process Locker for single instance runs and tests.
type Local struct {
	mu     sync.Mutex
	owners map[string]string
	freed  map[string]chan struct{}
}

func NewLocal() *Local {
	return &Local{owners: map[string]string{}, freed: map[string]chan struct{}{}}
}

func (l *Local) Lock(ctx context.Context, eventID string) (string, error) {
	token := uuid.NewString()
	for {
		l.mu.Lock()
		if _, held := l.owners[eventID]; !held {
			l.owners[eventID] = token
			l.freed[eventID] = make(chan struct{})
			l.mu.Unlock()
			return token, nil
		}
		wait := l.freed[eventID]
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-wait:
		}
	}
}

func (l *Local) Unlock(_ context.Context, eventID, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owners[eventID] != token {
		return nil
	}
	delete(l.owners, eventID)
	close(l.freed[eventID])
	delete(l.freed, eventID)
	return nil
}
