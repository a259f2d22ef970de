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
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-ai/parley/connectors"
	_ "github.com/parley-ai/parley/connectors/appclient"
	"github.com/parley-ai/parley/metrics"
	_ "github.com/parley-ai/parley/metrics/exactmatch"
	"github.com/parley-ai/parley/results"
)

// createEchoBackend serves the conversation route the way the backend does.
func createEchoBackend(t *testing.T) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		request := struct {
			Message string `json:"message"`
		}{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&request))

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(map[string]string{
			"data": fmt.Sprintf("received message: %s", request.Message),
		}))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestExecute(t *testing.T) {
	server := createEchoBackend(t)
	resultsDirectory := t.TempDir()

	plan := &Plan{
		Name: "echo-check",
		Connector: connectors.Config{
			Adapter:  "app_client",
			Endpoint: server.URL,
		},
		Metrics: []metrics.Config{
			{Name: "exactmatch"},
		},
		Cases: []Case{
			{Prompt: "hi", Target: "received message: hi"},
			{Prompt: "hello", Target: "received message: hello"},
			{Prompt: "bye", Target: "something else entirely"},
		},
		Concurrency: 2,
	}

	runner, err := New(plan, resultsDirectory)
	require.NoError(t, err)

	runID, document, err := runner.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, document.RunResults, 1)

	run := document.RunResults[0]
	assert.Equal(t, "echo-check", run.Metadata.TestName)
	assert.Equal(t, runID, run.Metadata.RunID)

	summary := run.Results.EvaluationSummary["exactmatch"]
	assert.InDelta(t, 66.67, summary[results.PassRateKey], 1e-9)
	assert.InDelta(t, 2.0/3.0, summary["accuracy"], 1e-9)

	individualResults := run.Results.IndividualResults["exactmatch"]
	require.Len(t, individualResults, 3)
	assert.True(t, individualResults[0].Passed)
	assert.True(t, individualResults[1].Passed)
	assert.False(t, individualResults[2].Passed)
	assert.Equal(t, "received message: hi", individualResults[0].EvaluatedResult["predicted_value"])

	// The document is persisted under the run id.
	store, err := results.NewStore(resultsDirectory)
	require.NoError(t, err)
	loaded, err := store.Load(runID)
	require.NoError(t, err)
	assert.Equal(t, document, loaded)
}

func TestExecuteConnectorFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	plan := &Plan{
		Name: "failing-backend",
		Connector: connectors.Config{
			Adapter:  "app_client",
			Endpoint: server.URL,
		},
		Metrics:     []metrics.Config{{Name: "exactmatch"}},
		Cases:       []Case{{Prompt: "hi", Target: "anything"}},
		Concurrency: 1,
	}

	runner, err := New(plan, t.TempDir())
	require.NoError(t, err)

	_, _, err = runner.Execute(context.Background())
	assert.Error(t, err)
}

func TestLoadPlan(t *testing.T) {
	planFile := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(planFile, []byte(`
connector:
  adapter: app_client
  endpoint: http://localhost:3123/api/v1/conversation
metric_defaults:
  connector:
    endpoint: http://localhost:8080/v1/embeddings
metrics:
  - name: exactmatch
  - name: bertscore
    threshold: 0.7
    params:
      rescale_baseline: 0.25
cases:
  - prompt: hi
    target: "received message: hi"
`), 0o644))

	plan, err := LoadPlan(planFile)
	require.NoError(t, err)
	// The name defaults to the file name.
	assert.Equal(t, "plan", plan.Name)
	assert.Equal(t, "app_client", plan.Connector.Adapter)
	assert.Equal(t, DefaultConcurrency, plan.Concurrency)
	require.Len(t, plan.Metrics, 2)
	assert.Equal(t, 0.7, plan.Metrics[1].Threshold)
	assert.Equal(t, 0.25, plan.Metrics[1].Params["rescale_baseline"])
	assert.Equal(t, "http://localhost:8080/v1/embeddings", plan.MetricDefaults.Connector.Endpoint)

	merged, err := plan.Metrics[0].WithDefaults(plan.MetricDefaults)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/v1/embeddings", merged.Connector.Endpoint)
}

func TestLoadPlanInvalid(t *testing.T) {
	directory := t.TempDir()

	testCases := []struct {
		name    string
		content string
	}{
		{"no-connector", "metrics:\n  - name: exactmatch\ncases:\n  - prompt: hi\n"},
		{"no-metric", "connector:\n  adapter: app_client\ncases:\n  - prompt: hi\n"},
		{"no-case", "connector:\n  adapter: app_client\nmetrics:\n  - name: exactmatch\n"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			planFile := filepath.Join(directory, testCase.name+".yaml")
			require.NoError(t, os.WriteFile(planFile, []byte(testCase.content), 0o644))

			_, err := LoadPlan(planFile)
			assert.Error(t, err)
		})
	}
}
