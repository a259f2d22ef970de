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

// Package metrics defines the evaluation metric contract and a registry of
// named metric adapters.
package metrics

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/imdario/mergo"

	"github.com/parley-ai/parley/connectors"
)

// Record is a single evaluation case: the prompt sent to the application,
// the expected target and the response the application actually produced.
type Record struct {
	Prompt            string `json:"prompt"`
	Target            string `json:"target"`
	PredictedResponse string `json:"predicted_value"`
}

// Evaluation is the outcome of evaluating one record with one metric.
type Evaluation struct {
	// Details holds the metric-specific evaluation payload, serialized
	// verbatim into the run results.
	Details map[string]interface{} `json:"details"`
	// Score is the scalar the pass rate is computed from.
	Score float64 `json:"score"`
}

// DefaultThreshold is the pass threshold applied when a metric config does
// not set one: an evaluation passes when its score reaches the threshold.
const DefaultThreshold = 0.5

// Config is the configuration of a metric instance, usually loaded from a
// run plan file. Adapter-specific knobs go through Params.
type Config struct {
	Name      string                 `yaml:"name" json:"name"`
	Connector connectors.Config      `yaml:"connector,omitempty" json:"connector,omitempty"`
	Models    []string               `yaml:"models,omitempty" json:"models,omitempty"`
	Threshold float64                `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	Params    map[string]interface{} `yaml:"params,omitempty" json:"params,omitempty"`
}

// WithDefaults returns the config completed with the given defaults, the
// explicitly set fields win.
func (cfg Config) WithDefaults(defaults Config) (Config, error) {
	err := mergo.Merge(&cfg, defaults)
	if err != nil {
		return Config{}, fmt.Errorf("unable to merge metric config defaults: %w", err)
	}
	return cfg, nil
}

// Metric is implemented by every metric adapter.
type Metric interface {
	Configure(cfg Config) error
	EvaluateRecord(ctx context.Context, record *Record) (*Evaluation, error)
	Summarize(evaluations []*Evaluation) (map[string]float64, error)
}

// Factory builds an unconfigured metric instance.
type Factory func() Metric

var (
	registryMutex sync.RWMutex
	registry      = map[string]Factory{}
)

// Register records a named metric adapter factory. It is meant to be called
// from the adapter package's init function.
func Register(name string, factory Factory) {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("metric adapter %q registered twice", name))
	}
	registry[name] = factory
}

// New builds and configures the metric adapter named in the config.
func New(cfg Config) (Metric, error) {
	registryMutex.RLock()
	factory, exists := registry[cfg.Name]
	registryMutex.RUnlock()
	if !exists {
		return nil, fmt.Errorf(
			"unknown metric adapter %q, expecting one of %v",
			cfg.Name,
			RegisteredAdapters(),
		)
	}

	metric := factory()
	if err := metric.Configure(cfg); err != nil {
		return nil, fmt.Errorf("unable to configure metric adapter %q: %w", cfg.Name, err)
	}
	return metric, nil
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
