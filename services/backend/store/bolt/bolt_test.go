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

package bolt

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-ai/parley/services/backend/store"
	"github.com/parley-ai/parley/services/backend/store/test"
)

func TestSuiteBoltBackend(t *testing.T) {
	test.RunSuite(t, func() store.Backend {
		// create and open a temporary file
		f, err := os.CreateTemp("", "parley-session-store-bolt-test")
		assert.NoError(t, err)

		// close and remove the temporary file
		defer f.Close()

		b, err := CreateBoltBackend(f.Name())
		assert.NoError(t, err)
		return b
	}, func(b store.Backend) {
		rb := b.(*boltBackend)

		defer os.Remove(rb.filePath)
		defer rb.Destroy()
	})
}

func TestBoltBackendPersistsAcrossReopen(t *testing.T) {
	f, err := os.CreateTemp("", "parley-session-store-bolt-reopen")
	require.NoError(t, err)
	f.Close()
	defer os.Remove(f.Name())

	ctx := context.Background()

	b, err := CreateBoltBackend(f.Name())
	require.NoError(t, err)

	session, err := b.CreateSession(ctx, "a_user")
	require.NoError(t, err)
	err = b.AppendTurns(ctx, session.ID, []store.Turn{
		{Role: store.RoleUser, Content: "hello"},
		{Role: store.RoleBackend, Content: "received message: hello"},
	})
	require.NoError(t, err)
	b.Destroy()

	reopened, err := CreateBoltBackend(f.Name())
	require.NoError(t, err)
	defer reopened.Destroy()

	retrieved, err := reopened.RetrieveSession(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, retrieved.Turns, 2)
	assert.Equal(t, "hello", retrieved.Turns[0].Content)
	assert.Equal(t, "received message: hello", retrieved.Turns[1].Content)
	assert.Equal(t, "a_user", retrieved.UserID)
}
