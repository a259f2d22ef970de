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

// Package exactmatch scores 1 when the predicted response equals the target
// after whitespace trimming, 0 otherwise.
package exactmatch

import (
	"context"
	"strings"

	"github.com/parley-ai/parley/metrics"
)

const MetricName = "exactmatch"

func init() {
	metrics.Register(MetricName, func() metrics.Metric { return &exactMatch{} })
}

type exactMatch struct{}

func (m *exactMatch) Configure(metrics.Config) error {
	return nil
}

func (m *exactMatch) EvaluateRecord(_ context.Context, record *metrics.Record) (*metrics.Evaluation, error) {
	score := 0.0
	if strings.TrimSpace(record.PredictedResponse) == strings.TrimSpace(record.Target) {
		score = 1.0
	}
	return &metrics.Evaluation{
		Details: map[string]interface{}{
			"prompt":          record.Prompt,
			"predicted_value": record.PredictedResponse,
			"target":          record.Target,
		},
		Score: score,
	}, nil
}

func (m *exactMatch) Summarize(evaluations []*metrics.Evaluation) (map[string]float64, error) {
	if len(evaluations) == 0 {
		return map[string]float64{"accuracy": 0.0}, nil
	}

	matches := 0.0
	for _, evaluation := range evaluations {
		matches += evaluation.Score
	}
	return map[string]float64{"accuracy": matches / float64(len(evaluations))}, nil
}
