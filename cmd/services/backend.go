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

package services

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/parley-ai/parley/services/backend"
	"github.com/parley-ai/parley/version"
)

// backendViper represents the configuration of the backend command
var backendViper = viper.New()

var backendWebPortKey = "web_port"
var backendTokenSecretKey = "token_secret"
var backendMemoryStorageMaxSessionsKey = "memory_storage_max_sessions"
var backendFileStoragePathKey = "file_storage"

// backendCmd represents the backend command
var backendCmd = &cobra.Command{
	Use:   "backend",
	Short: "Run the conversation backend",
	Args:  cobra.NoArgs,
	RunE: func(_cmd *cobra.Command, _args []string) error {
		err := configureLog(servicesViper)
		if err != nil {
			return err
		}

		log.WithFields(logrus.Fields{
			"version": version.Version,
			"hash":    version.Hash,
		}).Info("starting the conversation backend")

		options := backend.Options{
			Storage:                  backend.Memory,
			WebPort:                  backendViper.GetUint(backendWebPortKey),
			TokenSecret:              backendViper.GetString(backendTokenSecretKey),
			MemoryStorageMaxSessions: backendViper.GetInt(backendMemoryStorageMaxSessionsKey),
			FileStoragePath:          backendViper.GetString(backendFileStoragePathKey),
		}

		if backendViper.IsSet(backendFileStoragePathKey) {
			options.Storage = backend.File
		}

		ctx := contextWithUserTermination(context.Background())

		err = backend.Run(ctx, options)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("interrupted by user")
				return nil
			}
			return err
		}
		return nil
	},
}

// contextWithUserTermination cancels the context on SIGINT/SIGTERM.
func contextWithUserTermination(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	interruptChan := make(chan os.Signal, 1)
	signal.Notify(interruptChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-interruptChan
		log.Debug("termination signal received")
		signal.Stop(interruptChan)
		cancel()
	}()
	return ctx
}

func init() {
	backendViper.SetDefault(backendWebPortKey, backend.DefaultOptions.WebPort)
	_ = backendViper.BindEnv(backendWebPortKey, "PARLEY_BACKEND_PORT")
	backendCmd.Flags().Uint(
		backendWebPortKey,
		backendViper.GetUint(backendWebPortKey),
		"The port to listen on",
	)

	backendViper.SetDefault(backendTokenSecretKey, backend.DefaultOptions.TokenSecret)
	_ = backendViper.BindEnv(backendTokenSecretKey, "PARLEY_BACKEND_TOKEN_SECRET")
	backendCmd.Flags().String(
		backendTokenSecretKey,
		backendViper.GetString(backendTokenSecretKey),
		"The secret used to sign session tokens",
	)

	backendViper.SetDefault(
		backendMemoryStorageMaxSessionsKey,
		backend.DefaultOptions.MemoryStorageMaxSessions,
	)
	_ = backendViper.BindEnv(backendMemoryStorageMaxSessionsKey, "PARLEY_BACKEND_MEMORY_STORAGE_MAX_SESSIONS")
	backendCmd.Flags().Int(
		backendMemoryStorageMaxSessionsKey,
		backendViper.GetInt(backendMemoryStorageMaxSessionsKey),
		"Maximum number of sessions the memory storage holds before evicting the oldest ones",
	)

	_ = backendViper.BindEnv(backendFileStoragePathKey, "PARLEY_BACKEND_FILE_STORAGE_PATH")
	backendCmd.Flags().String(
		backendFileStoragePathKey,
		backendViper.GetString(backendFileStoragePathKey),
		"If provided, the backend uses a file-based session storage instead of "+
			"the default in-memory one with the provided file path as its location",
	)
	if !backendViper.IsSet(backendFileStoragePathKey) {
		backendCmd.Flags().Lookup(backendFileStoragePathKey).NoOptDefVal = backend.DefaultOptions.FileStoragePath
	}

	// Don't sort alphabetically, keep insertion order
	backendCmd.Flags().SortFlags = false

	// Bind "cobra" flags defined in the CLI with viper
	_ = backendViper.BindPFlags(backendCmd.Flags())
}
