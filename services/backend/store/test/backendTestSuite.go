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

// Package test defines a reusable test suite runnable against any session
// store backend implementation.
package test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-ai/parley/services/backend/store"
)

func generateTurns(count int, offset int) []store.Turn {
	turns := make([]store.Turn, count)
	for turnIdx := range turns {
		role := store.RoleUser
		if (offset+turnIdx)%2 == 1 {
			role = store.RoleBackend
		}
		turns[turnIdx] = store.Turn{
			Role:      role,
			Content:   fmt.Sprintf("turn-%d", offset+turnIdx),
			Timestamp: time.Now(),
		}
	}
	return turns
}

// RunSuite runs the session store test suite against the backend instances
// built by `createBackend`, destroying each with `destroyBackend`.
func RunSuite(t *testing.T, createBackend func() store.Backend, destroyBackend func(store.Backend)) {
	t.Run("TestCreateAndRetrieveSession", func(t *testing.T) {
		b := createBackend()
		defer destroyBackend(b)

		ctx := context.Background()

		session, err := b.CreateSession(ctx, "a_user")
		require.NoError(t, err)
		assert.NotEmpty(t, session.ID)
		assert.Equal(t, "a_user", session.UserID)
		assert.Empty(t, session.Turns)

		retrieved, err := b.RetrieveSession(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, session.ID, retrieved.ID)
		assert.Equal(t, "a_user", retrieved.UserID)
		assert.Empty(t, retrieved.Turns)
	})

	t.Run("TestRetrieveUnknownSession", func(t *testing.T) {
		b := createBackend()
		defer destroyBackend(b)

		_, err := b.RetrieveSession(context.Background(), "unknown_session")
		var unknownErr *store.UnknownSessionError
		assert.ErrorAs(t, err, &unknownErr)
		assert.Equal(t, "unknown_session", unknownErr.SessionID)
	})

	t.Run("TestAppendTurns", func(t *testing.T) {
		b := createBackend()
		defer destroyBackend(b)

		ctx := context.Background()

		session, err := b.CreateSession(ctx, "a_user")
		require.NoError(t, err)

		err = b.AppendTurns(ctx, session.ID, generateTurns(2, 0))
		require.NoError(t, err)
		err = b.AppendTurns(ctx, session.ID, generateTurns(2, 2))
		require.NoError(t, err)

		retrieved, err := b.RetrieveSession(ctx, session.ID)
		require.NoError(t, err)
		require.Len(t, retrieved.Turns, 4)
		for turnIdx, turn := range retrieved.Turns {
			assert.Equal(t, fmt.Sprintf("turn-%d", turnIdx), turn.Content)
		}
		assert.Equal(t, store.RoleUser, retrieved.Turns[0].Role)
		assert.Equal(t, store.RoleBackend, retrieved.Turns[1].Role)
	})

	t.Run("TestAppendTurnsToUnknownSession", func(t *testing.T) {
		b := createBackend()
		defer destroyBackend(b)

		err := b.AppendTurns(context.Background(), "unknown_session", generateTurns(1, 0))
		var unknownErr *store.UnknownSessionError
		assert.ErrorAs(t, err, &unknownErr)
	})

	t.Run("TestListSessions", func(t *testing.T) {
		b := createBackend()
		defer destroyBackend(b)

		ctx := context.Background()

		createdIDs := []string{}
		for sessionIdx := 0; sessionIdx < 5; sessionIdx++ {
			session, err := b.CreateSession(ctx, fmt.Sprintf("user-%d", sessionIdx))
			require.NoError(t, err)
			createdIDs = append(createdIDs, session.ID)
		}

		infos, nextIdx, err := b.ListSessions(ctx, 0, -1)
		require.NoError(t, err)
		require.Len(t, infos, 5)
		for infoIdx, info := range infos {
			assert.Equal(t, createdIDs[infoIdx], info.ID)
			assert.Equal(t, fmt.Sprintf("user-%d", infoIdx), info.UserID)
			assert.Equal(t, 0, info.TurnsCount)
		}

		// Pagination from the returned index yields nothing new
		moreInfos, _, err := b.ListSessions(ctx, nextIdx, -1)
		require.NoError(t, err)
		assert.Empty(t, moreInfos)
	})

	t.Run("TestListSessionsPaginated", func(t *testing.T) {
		b := createBackend()
		defer destroyBackend(b)

		ctx := context.Background()

		for sessionIdx := 0; sessionIdx < 5; sessionIdx++ {
			_, err := b.CreateSession(ctx, fmt.Sprintf("user-%d", sessionIdx))
			require.NoError(t, err)
		}

		listed := []*store.SessionInfo{}
		fromIdx := 0
		for {
			infos, nextIdx, err := b.ListSessions(ctx, fromIdx, 2)
			require.NoError(t, err)
			if len(infos) == 0 {
				break
			}
			listed = append(listed, infos...)
			fromIdx = nextIdx
		}
		assert.Len(t, listed, 5)
	})

	t.Run("TestListSessionsCountsTurns", func(t *testing.T) {
		b := createBackend()
		defer destroyBackend(b)

		ctx := context.Background()

		session, err := b.CreateSession(ctx, "a_user")
		require.NoError(t, err)
		err = b.AppendTurns(ctx, session.ID, generateTurns(3, 0))
		require.NoError(t, err)

		infos, _, err := b.ListSessions(ctx, 0, -1)
		require.NoError(t, err)
		require.Len(t, infos, 1)
		assert.Equal(t, 3, infos[0].TurnsCount)
	})

	t.Run("TestDeleteSessions", func(t *testing.T) {
		b := createBackend()
		defer destroyBackend(b)

		ctx := context.Background()

		firstSession, err := b.CreateSession(ctx, "a_user")
		require.NoError(t, err)
		secondSession, err := b.CreateSession(ctx, "another_user")
		require.NoError(t, err)

		err = b.DeleteSessions(ctx, []string{firstSession.ID, "unknown_session"})
		require.NoError(t, err)

		_, err = b.RetrieveSession(ctx, firstSession.ID)
		var unknownErr *store.UnknownSessionError
		assert.ErrorAs(t, err, &unknownErr)

		_, err = b.RetrieveSession(ctx, secondSession.ID)
		assert.NoError(t, err)
	})
}
