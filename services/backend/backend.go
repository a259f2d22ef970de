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

package backend

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/parley-ai/parley/services/backend/httpserver"
	"github.com/parley-ai/parley/services/backend/store"
	"github.com/parley-ai/parley/services/backend/store/bolt"
	"github.com/parley-ai/parley/services/backend/store/memory"
)

var log = logrus.WithField("component", "backend")

type StorageType int

const (
	Memory StorageType = iota
	File
)

type Options struct {
	Storage                  StorageType
	WebPort                  uint
	TokenSecret              string
	MemoryStorageMaxSessions int
	FileStoragePath          string
}

var DefaultOptions = Options{
	Storage:                  Memory,
	WebPort:                  3123,
	TokenSecret:              "parley_session_secret",
	MemoryStorageMaxSessions: memory.DefaultMaxSessions,
	FileStoragePath:          ".parley/sessions.db",
}

func Run(ctx context.Context, options Options) error {
	var sessionStore store.Backend
	switch options.Storage {
	case File:
		log.WithField("path", options.FileStoragePath).Info("using a file storage backend")
		var err error
		sessionStore, err = bolt.CreateBoltBackend(options.FileStoragePath)
		if err != nil {
			return fmt.Errorf("unable to create the bolt backend: %w", err)
		}
	case Memory:
		log.Info("using an in-memory storage")
		var err error
		sessionStore, err = memory.CreateMemoryBackend(options.MemoryStorageMaxSessions)
		if err != nil {
			return fmt.Errorf("unable to create the memory backend: %w", err)
		}
	}

	httpServer, err := httpserver.New(options.WebPort, sessionStore, options.TokenSecret)
	if err != nil {
		return err
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.WithField("web_port", options.WebPort).Info("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("unexpected error while serving http routes: %v", err)
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		log.Info("Gracefully stopping")

		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		log.Debug("Stopping the http server")
		if err := httpServer.Shutdown(stopCtx); err != nil {
			log.WithField("error", err).Warning("Error while stopping")
		}

		log.Debug("Destroying the session store")
		sessionStore.Destroy()

		return ctx.Err()
	})

	return group.Wait()
}
