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

package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/parley-ai/parley/connectors"
	"github.com/parley-ai/parley/metrics"
)

// DefaultConcurrency bounds how many cases are driven through the connector
// at once when the plan does not say.
const DefaultConcurrency = 4

// Case is one prompt/target pair of a run plan.
type Case struct {
	Prompt string `yaml:"prompt" json:"prompt"`
	Target string `yaml:"target" json:"target"`
}

// Plan is an evaluation run definition, loaded from a YAML file.
type Plan struct {
	Name      string            `yaml:"name"`
	Connector connectors.Config `yaml:"connector"`
	// MetricDefaults is merged into every metric config, handy to share a
	// scoring endpoint and API key across metrics.
	MetricDefaults metrics.Config   `yaml:"metric_defaults"`
	Metrics        []metrics.Config `yaml:"metrics"`
	Cases          []Case           `yaml:"cases"`
	Concurrency    int              `yaml:"concurrency"`
}

func LoadPlan(fileName string) (*Plan, error) {
	planContent, err := os.ReadFile(fileName)
	if err != nil {
		return nil, err
	}

	plan := &Plan{}
	if err := yaml.Unmarshal(planContent, plan); err != nil {
		return nil, fmt.Errorf("unable to parse the run plan %q: %w", fileName, err)
	}

	if plan.Name == "" {
		plan.Name = strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	}
	if err := plan.validate(); err != nil {
		return nil, fmt.Errorf("invalid run plan %q: %w", fileName, err)
	}
	return plan, nil
}

func (plan *Plan) validate() error {
	if plan.Connector.Adapter == "" {
		return fmt.Errorf("no connector adapter defined")
	}
	if len(plan.Metrics) == 0 {
		return fmt.Errorf("no metric defined")
	}
	for _, metricCfg := range plan.Metrics {
		if metricCfg.Name == "" {
			return fmt.Errorf("a metric has no name")
		}
	}
	if len(plan.Cases) == 0 {
		return fmt.Errorf("no case defined")
	}
	if plan.Concurrency < 0 {
		return fmt.Errorf("negative concurrency")
	}
	if plan.Concurrency == 0 {
		plan.Concurrency = DefaultConcurrency
	}
	return nil
}
