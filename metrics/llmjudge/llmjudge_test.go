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

package llmjudge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-ai/parley/connectors"
	"github.com/parley-ai/parley/metrics"
)

// createJudgesServer serves a chat completions API whose verdict is looked
// up by the requested model name.
func createJudgesServer(t *testing.T, verdicts map[string]string) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		request := struct {
			Model string `json:"model"`
		}{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&request))

		content, exists := verdicts[request.Model]
		require.True(t, exists, "unexpected judge model %q", request.Model)

		w.Header().Set("Content-Type", "application/json")
		response := map[string]interface{}{
			"model": request.Model,
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(response))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestEvaluateAveragesJudges(t *testing.T) {
	server := createJudgesServer(t, map[string]string{
		"judge-a": `{"score": 1, "explanation": "matches"}`,
		"judge-b": `{"score": 0, "explanation": "contradicts"}`,
	})

	metric, err := metrics.New(metrics.Config{
		Name:      MetricName,
		Connector: connectors.Config{Endpoint: server.URL},
		Models:    []string{"judge-a", "judge-b"},
	})
	require.NoError(t, err)

	evaluation, err := metric.EvaluateRecord(context.Background(), &metrics.Record{
		Prompt:            "a prompt",
		Target:            "the expected answer",
		PredictedResponse: "the actual answer",
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, evaluation.Score, 1e-9)
	assert.Equal(t, 0.5, evaluation.Details["llm_score"])

	explanations := evaluation.Details["evaluations"].([]map[string]string)
	require.Len(t, explanations, 2)
	assert.Equal(t, map[string]string{"judge-a": "matches"}, explanations[0])
	assert.Equal(t, map[string]string{"judge-b": "contradicts"}, explanations[1])
}

func TestEvaluateReasoningPreamble(t *testing.T) {
	server := createJudgesServer(t, map[string]string{
		"judge-a": "<think>\nlet me compare both answers\n</think>\nVerdict: {\"score\": 1, \"explanation\": \"same meaning\"}",
	})

	metric, err := metrics.New(metrics.Config{
		Name:      MetricName,
		Connector: connectors.Config{Endpoint: server.URL, Model: "judge-a"},
	})
	require.NoError(t, err)

	evaluation, err := metric.EvaluateRecord(context.Background(), &metrics.Record{
		Target:            "yes",
		PredictedResponse: "yes",
	})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, evaluation.Score, 1e-9)
}

func TestEvaluateUnparsableVerdict(t *testing.T) {
	server := createJudgesServer(t, map[string]string{
		"judge-a": "I refuse to answer in JSON",
	})

	metric, err := metrics.New(metrics.Config{
		Name:      MetricName,
		Connector: connectors.Config{Endpoint: server.URL, Model: "judge-a"},
	})
	require.NoError(t, err)

	_, err = metric.EvaluateRecord(context.Background(), &metrics.Record{})
	assert.Error(t, err)
}

func TestConfigureRequiresModels(t *testing.T) {
	_, err := metrics.New(metrics.Config{
		Name:      MetricName,
		Connector: connectors.Config{Endpoint: "http://localhost:9999"},
	})
	assert.Error(t, err)
}

func TestRenderPromptOverride(t *testing.T) {
	server := createJudgesServer(t, nil)

	metric, err := metrics.New(metrics.Config{
		Name:      MetricName,
		Connector: connectors.Config{Endpoint: server.URL, Model: "judge-a"},
		Params: map[string]interface{}{
			promptParam: "compare {text} with {target}",
		},
	})
	require.NoError(t, err)

	judge := metric.(*llmJudge)
	rendered := judge.renderPrompt(&metrics.Record{
		Target:            "B",
		PredictedResponse: "A",
	})
	assert.Equal(t, "compare A with B", rendered)
}

func TestSummarize(t *testing.T) {
	metric := &llmJudge{}

	summary, err := metric.Summarize([]*metrics.Evaluation{
		{Score: 1.0},
		{Score: 0.5},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.75, summary["average_score"], 1e-9)

	summary, err = metric.Summarize(nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, summary["average_score"])
}

func TestParseVerdict(t *testing.T) {
	testCases := []struct {
		response string
		score    float64
	}{
		{`{"score": 1, "explanation": "ok"}`, 1},
		{"<think>hmm</think>{\"score\": 0, \"explanation\": \"no\"}", 0},
		{fmt.Sprintf("<think>%s</think> the verdict is {\"score\": 0.8, \"explanation\": \"close\"}", "step by step"), 0.8},
	}
	for _, testCase := range testCases {
		parsedVerdict, err := parseVerdict(testCase.response)
		require.NoError(t, err, testCase.response)
		assert.Equal(t, testCase.score, parsedVerdict.Score, testCase.response)
	}
}
