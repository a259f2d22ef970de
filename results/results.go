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

// Package results holds the evaluation run result model, its JSON file store
// and the pass rate summarizers.
package results

// Document is the top level run results payload, one entry per executed test.
type Document struct {
	RunResults []*RunResult `json:"run_results"`
}

// RunResult is the outcome of a single test run.
type RunResult struct {
	Metadata Metadata `json:"metadata"`
	Results  Results  `json:"results"`
}

// Metadata identifies a run. Timestamps are unix seconds.
type Metadata struct {
	TestName   string `json:"test_name"`
	RunID      string `json:"run_id"`
	StartedAt  int64  `json:"started_at"`
	FinishedAt int64  `json:"finished_at"`
}

// Results holds, per metric name, the aggregate summary and the per case
// evaluations.
type Results struct {
	EvaluationSummary map[string]map[string]float64  `json:"evaluation_summary"`
	IndividualResults map[string][]*IndividualResult `json:"individual_results"`
}

// PassRateKey is the summary entry every metric gets, the percentage of
// cases whose score reached the metric's threshold.
const PassRateKey = "pass_rate"

// IndividualResult is the evaluation of one case by one metric.
type IndividualResult struct {
	// EvaluatedResult is the metric-specific payload, typically holding the
	// prompt, the target and the predicted value alongside the metric's own
	// details.
	EvaluatedResult map[string]interface{} `json:"evaluated_result"`
	Score           float64                `json:"score"`
	Passed          bool                   `json:"passed"`
}

// GradeForPassRate maps a pass rate percentage to its letter grade.
func GradeForPassRate(rate float64) string {
	switch {
	case rate >= 90:
		return "🟢 A"
	case rate >= 80:
		return "🟡 B"
	case rate >= 70:
		return "🟠 C"
	default:
		return "🔴 D"
	}
}
