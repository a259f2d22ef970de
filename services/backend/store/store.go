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

package store

import (
	"context"
	"fmt"
	"time"
)

// Turn is a single conversation turn, either sent by the user or produced
// by the backend.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	RoleUser    = "user"
	RoleBackend = "backend"
)

// Session is a conversation session and its full history.
type Session struct {
	ID        string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	Turns     []Turn    `json:"turns"`
}

// SessionInfo represents the storage status of a session.
type SessionInfo struct {
	ID         string    `json:"session_id"`
	UserID     string    `json:"user_id"`
	CreatedAt  time.Time `json:"created_at"`
	TurnsCount int       `json:"turns_count"`
}

// Backend defines the interface for a conversation session store
type Backend interface {
	Destroy()

	CreateSession(ctx context.Context, userID string) (*Session, error)
	AppendTurns(ctx context.Context, sessionID string, turns []Turn) error
	RetrieveSession(ctx context.Context, sessionID string) (*Session, error)
	ListSessions(ctx context.Context, fromSessionIdx int, count int) ([]*SessionInfo, int, error)
	DeleteSessions(ctx context.Context, sessionIDs []string) error
}

// UnknownSessionError is raised when trying to operate on an unknown session
type UnknownSessionError struct {
	SessionID string
}

func (e *UnknownSessionError) Error() string {
	return fmt.Sprintf("no session %q found", e.SessionID)
}

// UnexpectedError is raised when the backend implementation fails in an
// unexpected way
type UnexpectedError struct {
	wrappedErr error
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("unexpected session store error: %v", e.wrappedErr)
}

func (e *UnexpectedError) Unwrap() error {
	return e.wrappedErr
}

func NewUnexpectedError(format string, a ...interface{}) error {
	return &UnexpectedError{wrappedErr: fmt.Errorf(format, a...)}
}
