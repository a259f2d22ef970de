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
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/parley-ai/parley/services/backend/store"
	"github.com/parley-ai/parley/utils"
)

type boltBackend struct {
	db       *bolt.DB
	filePath string
}

// metadata includes all the data used to list sessions without reading the turns
type metadata struct {
	UserID     string
	CreatedAt  time.Time
	SessionIdx uint64
	TurnsCount int
}

// Bucket structure is
//	sessions > {session_id} > turns    > {turn_idx} > {store.Turn}
//	                        > metadata > {boltBackend.metadata}
//	session_indices > session_idx > {session_idx} > {session_id}

var sessionsBucketName = []byte("sessions")

func getSessionsBucket(tx *bolt.Tx) *bolt.Bucket {
	sessionsBucket := tx.Bucket(sessionsBucketName)
	if sessionsBucket == nil {
		log.Fatal("sessions bucket doesn't exist")
	}
	return sessionsBucket
}

var turnsBucketName = []byte("turns")

var metadataKey = []byte("metadata")

var indicesBucketName = []byte("session_indices")

var sessionsIdxBucketName = []byte("session_idx")

func getSessionsIdxBucket(tx *bolt.Tx) *bolt.Bucket {
	indicesBucket := tx.Bucket(indicesBucketName)
	if indicesBucket == nil {
		log.Fatal("indices bucket doesn't exist")
	}
	sessionsIdxBucket := indicesBucket.Bucket(sessionsIdxBucketName)
	if sessionsIdxBucket == nil {
		log.Fatal("session idx bucket doesn't exist")
	}
	return sessionsIdxBucket
}

func serializeNumID(id uint64) []byte {
	// Format using a hex representation of a fixed length of 16 characters padded with 0
	return []byte(fmt.Sprintf("%016x", id))
}

func deserializeNumIDAsInt(value []byte) (int, error) {
	number, err := strconv.ParseInt(string(value), 16, 32)
	if err != nil {
		return 0, store.NewUnexpectedError("unable to deserialize number id as an int (%w)", err)
	}
	return int(number), nil
}

func serializeTurn(turn *store.Turn) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	err := enc.Encode(*turn)
	if err != nil {
		return nil, store.NewUnexpectedError("unable to serialize turn (%w)", err)
	}
	return buf.Bytes(), nil
}

func deserializeTurn(v []byte) (*store.Turn, error) {
	dec := gob.NewDecoder(bytes.NewBuffer(v))
	turn := &store.Turn{}
	err := dec.Decode(turn)
	if err != nil {
		return nil, store.NewUnexpectedError("unable to deserialize turn (%w)", err)
	}
	return turn, nil
}

func serializeSessionMetadata(metadata *metadata) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	err := enc.Encode(*metadata)
	if err != nil {
		return nil, store.NewUnexpectedError("unable to serialize session metadata (%w)", err)
	}
	return buf.Bytes(), nil
}

func deserializeSessionMetadata(v []byte) (*metadata, error) {
	dec := gob.NewDecoder(bytes.NewBuffer(v))
	metadata := &metadata{}
	err := dec.Decode(metadata)
	if err != nil {
		return nil, store.NewUnexpectedError("unable to deserialize session metadata (%w)", err)
	}
	return metadata, nil
}

// CreateBoltBackend creates a session store that persists sessions in a
// bolt-managed file
func CreateBoltBackend(filePath string) (store.Backend, error) {
	db, err := bolt.Open(filePath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		// Opening of the file failed
		return nil, err
	}
	// Create the root buckets
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionsBucketName)
		if err != nil {
			return store.NewUnexpectedError("unable to create the sessions bucket (%w)", err)
		}
		indicesBucket, err := tx.CreateBucketIfNotExists(indicesBucketName)
		if err != nil {
			return store.NewUnexpectedError("unable to create the session indices bucket (%w)", err)
		}
		_, err = indicesBucket.CreateBucketIfNotExists(sessionsIdxBucketName)
		if err != nil {
			return store.NewUnexpectedError("unable to create the session idx bucket (%w)", err)
		}
		return nil
	})
	if err != nil {
		// Creation of the root buckets failed
		return nil, err
	}

	b := &boltBackend{
		db:       db,
		filePath: filePath,
	}
	return b, nil
}

func (b *boltBackend) Destroy() {
	b.db.Close()
	b.db = nil
}

func (b *boltBackend) CreateSession(_ context.Context, userID string) (*store.Session, error) {
	session := &store.Session{
		ID:        utils.RandomString(16),
		UserID:    userID,
		CreatedAt: time.Now(),
		Turns:     []store.Turn{},
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		sessionsBucket := getSessionsBucket(tx)
		sessionsIdxBucket := getSessionsIdxBucket(tx)

		sessionBucket, err := sessionsBucket.CreateBucket([]byte(session.ID))
		if err != nil {
			return store.NewUnexpectedError("unable to create the bucket for session %q (%w)", session.ID, err)
		}
		_, err = sessionBucket.CreateBucket(turnsBucketName)
		if err != nil {
			return store.NewUnexpectedError("unable to create the turns bucket for session %q (%w)", session.ID, err)
		}

		sessionIdx, err := sessionsIdxBucket.NextSequence()
		if err != nil {
			return store.NewUnexpectedError("unable to compute the next session index (%w)", err)
		}
		err = sessionsIdxBucket.Put(serializeNumID(sessionIdx), []byte(session.ID))
		if err != nil {
			return store.NewUnexpectedError("unable to store the session index (%w)", err)
		}

		serializedMetadata, err := serializeSessionMetadata(&metadata{
			UserID:     session.UserID,
			CreatedAt:  session.CreatedAt,
			SessionIdx: sessionIdx,
			TurnsCount: 0,
		})
		if err != nil {
			return err
		}
		return sessionBucket.Put(metadataKey, serializedMetadata)
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (b *boltBackend) AppendTurns(_ context.Context, sessionID string, turns []store.Turn) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		sessionsBucket := getSessionsBucket(tx)
		sessionBucket := sessionsBucket.Bucket([]byte(sessionID))
		if sessionBucket == nil {
			return &store.UnknownSessionError{SessionID: sessionID}
		}

		turnsBucket := sessionBucket.Bucket(turnsBucketName)
		for turnIdx := range turns {
			serializedTurn, err := serializeTurn(&turns[turnIdx])
			if err != nil {
				return err
			}
			seq, err := turnsBucket.NextSequence()
			if err != nil {
				return store.NewUnexpectedError("unable to compute the next turn index (%w)", err)
			}
			err = turnsBucket.Put(serializeNumID(seq), serializedTurn)
			if err != nil {
				return store.NewUnexpectedError("unable to store a turn (%w)", err)
			}
		}

		sessionMetadata, err := deserializeSessionMetadata(sessionBucket.Get(metadataKey))
		if err != nil {
			return err
		}
		sessionMetadata.TurnsCount += len(turns)
		serializedMetadata, err := serializeSessionMetadata(sessionMetadata)
		if err != nil {
			return err
		}
		return sessionBucket.Put(metadataKey, serializedMetadata)
	})
}

func (b *boltBackend) RetrieveSession(_ context.Context, sessionID string) (*store.Session, error) {
	session := &store.Session{ID: sessionID, Turns: []store.Turn{}}
	err := b.db.View(func(tx *bolt.Tx) error {
		sessionsBucket := getSessionsBucket(tx)
		sessionBucket := sessionsBucket.Bucket([]byte(sessionID))
		if sessionBucket == nil {
			return &store.UnknownSessionError{SessionID: sessionID}
		}

		sessionMetadata, err := deserializeSessionMetadata(sessionBucket.Get(metadataKey))
		if err != nil {
			return err
		}
		session.UserID = sessionMetadata.UserID
		session.CreatedAt = sessionMetadata.CreatedAt

		turnsBucket := sessionBucket.Bucket(turnsBucketName)
		return turnsBucket.ForEach(func(_ []byte, v []byte) error {
			turn, err := deserializeTurn(v)
			if err != nil {
				return err
			}
			session.Turns = append(session.Turns, *turn)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (b *boltBackend) ListSessions(
	_ context.Context,
	fromSessionIdx int,
	count int,
) ([]*store.SessionInfo, int, error) {
	infos := []*store.SessionInfo{}
	nextIdx := fromSessionIdx
	err := b.db.View(func(tx *bolt.Tx) error {
		sessionsBucket := getSessionsBucket(tx)
		sessionsIdxBucket := getSessionsIdxBucket(tx)

		cursor := sessionsIdxBucket.Cursor()
		for k, v := cursor.Seek(serializeNumID(uint64(fromSessionIdx))); k != nil; k, v = cursor.Next() {
			if count > 0 && len(infos) >= count {
				break
			}
			sessionIdx, err := deserializeNumIDAsInt(k)
			if err != nil {
				return err
			}

			sessionID := string(v)
			sessionBucket := sessionsBucket.Bucket([]byte(sessionID))
			if sessionBucket == nil {
				// The session was deleted, its index entry is stale
				nextIdx = sessionIdx + 1
				continue
			}

			sessionMetadata, err := deserializeSessionMetadata(sessionBucket.Get(metadataKey))
			if err != nil {
				return err
			}
			infos = append(infos, &store.SessionInfo{
				ID:         sessionID,
				UserID:     sessionMetadata.UserID,
				CreatedAt:  sessionMetadata.CreatedAt,
				TurnsCount: sessionMetadata.TurnsCount,
			})
			nextIdx = sessionIdx + 1
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return infos, nextIdx, nil
}

func (b *boltBackend) DeleteSessions(_ context.Context, sessionIDs []string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		sessionsBucket := getSessionsBucket(tx)
		for _, sessionID := range sessionIDs {
			sessionBucket := sessionsBucket.Bucket([]byte(sessionID))
			if sessionBucket == nil {
				continue
			}
			err := sessionsBucket.DeleteBucket([]byte(sessionID))
			if err != nil {
				return store.NewUnexpectedError("unable to delete session %q (%w)", sessionID, err)
			}
		}
		return nil
	})
}
