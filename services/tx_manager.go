package services

import (
	"context"
	"sync"

	"gorm.io/gorm"
)

type TxManager interface {
	WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// treeMutex serializes tree renumbering per owner inside this process. The
// root row lock does the same across processes on engines that have row locks.
type treeMutex struct {
	mu    sync.Mutex
	locks map[uint]*ownerLock
}

type ownerLock struct {
	mu   sync.Mutex
	refs int
}

func newTreeMutex() *treeMutex {
	return &treeMutex{locks: map[uint]*ownerLock{}}
}

// Lock blocks until userID's tree is free and returns the unlock func.
func (m *treeMutex) Lock(userID uint) func() {
	m.mu.Lock()
	l, ok := m.locks[userID]
	if !ok {
		l = &ownerLock{}
		m.locks[userID] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, userID)
		}
		m.mu.Unlock()
	}
}
