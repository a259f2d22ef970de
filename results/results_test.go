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

package results

import (
	"bytes"
	"testing"

	"github.com/bradleyjkemp/cupaloy/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestDocument() *Document {
	return &Document{
		RunResults: []*RunResult{
			{
				Metadata: Metadata{
					TestName:   "backend-regression",
					RunID:      "run-1234",
					StartedAt:  1700000000,
					FinishedAt: 1700000042,
				},
				Results: Results{
					EvaluationSummary: map[string]map[string]float64{
						"bertscore":  {PassRateKey: 85, "f1": 0.82},
						"exactmatch": {PassRateKey: 100, "accuracy": 1},
					},
					IndividualResults: map[string][]*IndividualResult{
						"bertscore": {
							{
								EvaluatedResult: map[string]interface{}{
									"prompt":          "hi",
									"predicted_value": "received message: hi",
									"target":          "received message: hi",
								},
								Score:  0.82,
								Passed: true,
							},
						},
					},
				},
			},
		},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	document := createTestDocument()
	require.NoError(t, store.Save("run-1234", document))

	loaded, err := store.Load("run-1234")
	require.NoError(t, err)
	assert.Equal(t, document, loaded)

	runIDs, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1234"}, runIDs)
}

func TestStoreLoadUnknownRun(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load("no-such-run")
	assert.Error(t, err)
}

func TestGradeForPassRate(t *testing.T) {
	assert.Equal(t, "🟢 A", GradeForPassRate(100))
	assert.Equal(t, "🟢 A", GradeForPassRate(90))
	assert.Equal(t, "🟡 B", GradeForPassRate(89.9))
	assert.Equal(t, "🟡 B", GradeForPassRate(80))
	assert.Equal(t, "🟠 C", GradeForPassRate(70))
	assert.Equal(t, "🔴 D", GradeForPassRate(69.9))
	assert.Equal(t, "🔴 D", GradeForPassRate(0))
}

func TestRenderMarkdown(t *testing.T) {
	cupaloy.SnapshotT(t, RenderMarkdown(createTestDocument()))
}

func TestRenderTable(t *testing.T) {
	buffer := &bytes.Buffer{}
	RenderTable(buffer, createTestDocument())

	output := buffer.String()
	assert.Contains(t, output, "backend-regression")
	assert.Contains(t, output, "bertscore")
	assert.Contains(t, output, "🟡 B")
	assert.Contains(t, output, "🟢 A")
}
