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

// Package connectors defines the contract between the evaluation engine and
// the applications or model APIs it talks to, along with a registry of named
// connector adapters.
package connectors

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config is the configuration of a connector instance, usually loaded from a
// run plan file.
type Config struct {
	Adapter        string            `yaml:"adapter" json:"adapter"`
	Endpoint       string            `yaml:"endpoint" json:"endpoint"`
	Model          string            `yaml:"model,omitempty" json:"model,omitempty"`
	APIKey         string            `yaml:"api_key,omitempty" json:"-"`
	TimeoutSeconds int               `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty"`
	Params         map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
}

// Response is what a connector returns for a single prompt.
type Response struct {
	Text string
}

// Connector is implemented by every connector adapter.
type Connector interface {
	Configure(cfg Config) error
	GetResponse(ctx context.Context, prompt string) (Response, error)
}

// Factory builds an unconfigured connector instance.
type Factory func() Connector

var (
	registryMutex sync.RWMutex
	registry      = map[string]Factory{}
)

// Register records a named connector adapter factory. It is meant to be
// called from the adapter package's init function.
func Register(name string, factory Factory) {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("connector adapter %q registered twice", name))
	}
	registry[name] = factory
}

// New builds and configures the connector adapter named in the config.
func New(cfg Config) (Connector, error) {
	registryMutex.RLock()
	factory, exists := registry[cfg.Adapter]
	registryMutex.RUnlock()
	if !exists {
		return nil, fmt.Errorf(
			"unknown connector adapter %q, expecting one of %v",
			cfg.Adapter,
			RegisteredAdapters(),
		)
	}

	connector := factory()
	if err := connector.Configure(cfg); err != nil {
		return nil, fmt.Errorf("unable to configure connector adapter %q: %w", cfg.Adapter, err)
	}
	return connector, nil
}

// RegisteredAdapters lists the registered adapter names in a stable order.
func RegisteredAdapters() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
