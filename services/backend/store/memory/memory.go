// Copyright 2025 Parley AI <dev@parley.chat>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/parley-ai/parley/services/backend/store"
	"github.com/parley-ai/parley/utils"
)

// DefaultMaxSessions is the default bound on the number of retained sessions.
const DefaultMaxSessions = 10000

type memoryBackend struct {
	mutex       sync.RWMutex
	sessions    map[string]*store.Session
	sessionIDs  []string
	maxSessions int
}

// CreateMemoryBackend creates a session store backend that keeps
// everything in memory. When the session count exceeds the given bound the
// oldest sessions are evicted.
func CreateMemoryBackend(maxSessions int) (store.Backend, error) {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	b := &memoryBackend{
		sessions:    make(map[string]*store.Session),
		sessionIDs:  []string{},
		maxSessions: maxSessions,
	}
	return b, nil
}

func (b *memoryBackend) Destroy() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.sessions = nil
	b.sessionIDs = nil
}

func (b *memoryBackend) CreateSession(_ context.Context, userID string) (*store.Session, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	session := &store.Session{
		ID:        utils.RandomString(16),
		UserID:    userID,
		CreatedAt: time.Now(),
		Turns:     []store.Turn{},
	}
	b.sessions[session.ID] = session
	b.sessionIDs = append(b.sessionIDs, session.ID)

	for len(b.sessionIDs) > b.maxSessions {
		evictedID := b.sessionIDs[0]
		b.sessionIDs = b.sessionIDs[1:]
		delete(b.sessions, evictedID)
	}

	return copySession(session), nil
}

func (b *memoryBackend) AppendTurns(_ context.Context, sessionID string, turns []store.Turn) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	session, exists := b.sessions[sessionID]
	if !exists {
		return &store.UnknownSessionError{SessionID: sessionID}
	}
	session.Turns = append(session.Turns, turns...)
	return nil
}

func (b *memoryBackend) RetrieveSession(_ context.Context, sessionID string) (*store.Session, error) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	session, exists := b.sessions[sessionID]
	if !exists {
		return nil, &store.UnknownSessionError{SessionID: sessionID}
	}
	return copySession(session), nil
}

func (b *memoryBackend) ListSessions(
	_ context.Context,
	fromSessionIdx int,
	count int,
) ([]*store.SessionInfo, int, error) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	if fromSessionIdx < 0 {
		fromSessionIdx = 0
	}

	infos := []*store.SessionInfo{}
	nextIdx := fromSessionIdx
	for ; nextIdx < len(b.sessionIDs); nextIdx++ {
		if count > 0 && len(infos) >= count {
			break
		}
		session := b.sessions[b.sessionIDs[nextIdx]]
		infos = append(infos, &store.SessionInfo{
			ID:         session.ID,
			UserID:     session.UserID,
			CreatedAt:  session.CreatedAt,
			TurnsCount: len(session.Turns),
		})
	}
	return infos, nextIdx, nil
}

func (b *memoryBackend) DeleteSessions(_ context.Context, sessionIDs []string) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	deleted := map[string]struct{}{}
	for _, sessionID := range sessionIDs {
		if _, exists := b.sessions[sessionID]; exists {
			delete(b.sessions, sessionID)
			deleted[sessionID] = struct{}{}
		}
	}

	remainingIDs := make([]string, 0, len(b.sessionIDs))
	for _, sessionID := range b.sessionIDs {
		if _, wasDeleted := deleted[sessionID]; !wasDeleted {
			remainingIDs = append(remainingIDs, sessionID)
		}
	}
	b.sessionIDs = remainingIDs
	return nil
}

func copySession(src *store.Session) *store.Session {
	dst := &store.Session{
		ID:        src.ID,
		UserID:    src.UserID,
		CreatedAt: src.CreatedAt,
		Turns:     make([]store.Turn, len(src.Turns)),
	}
	copy(dst.Turns, src.Turns)
	return dst
}
