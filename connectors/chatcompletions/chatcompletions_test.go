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

package chatcompletions

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-ai/parley/connectors"
)

const testEndpoint = "http://localhost:8000/v1/chat/completions"

func createTestClient(t *testing.T) *Client {
	c, err := NewClient(connectors.Config{
		Adapter:  AdapterName,
		Endpoint: testEndpoint,
		Model:    "judge",
	})
	require.NoError(t, err)

	httpmock.ActivateNonDefault(c.client.GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

func TestComplete(t *testing.T) {
	c := createTestClient(t)

	var received map[string]interface{}
	httpmock.RegisterResponder(
		http.MethodPost,
		testEndpoint,
		func(req *http.Request) (*http.Response, error) {
			if err := json.NewDecoder(req.Body).Decode(&received); err != nil {
				return httpmock.NewStringResponse(http.StatusBadRequest, err.Error()), nil
			}
			return httpmock.NewJsonResponse(http.StatusOK, CompletionResponse{
				Model: "judge",
				Choices: []completionChoice{
					{Message: Message{Role: RoleAssistant, Content: "fine"}},
				},
			})
		},
	)

	response, err := c.Complete(context.Background(), CompletionRequest{
		Messages:       []Message{{Role: RoleUser, Content: "how are you"}},
		ResponseFormat: &ResponseFormat{Type: ResponseFormatJSONObject},
	})
	require.NoError(t, err)

	content, err := response.Content()
	require.NoError(t, err)
	assert.Equal(t, "fine", content)

	assert.Equal(t, "judge", received["model"])
	assert.Equal(
		t,
		map[string]interface{}{"type": ResponseFormatJSONObject},
		received["response_format"],
	)
}

func TestCompleteOmitsResponseFormat(t *testing.T) {
	c := createTestClient(t)

	var received map[string]interface{}
	httpmock.RegisterResponder(
		http.MethodPost,
		testEndpoint,
		func(req *http.Request) (*http.Response, error) {
			if err := json.NewDecoder(req.Body).Decode(&received); err != nil {
				return httpmock.NewStringResponse(http.StatusBadRequest, err.Error()), nil
			}
			return httpmock.NewJsonResponse(http.StatusOK, CompletionResponse{
				Model: "judge",
				Choices: []completionChoice{
					{Message: Message{Role: RoleAssistant, Content: "ok"}},
				},
			})
		},
	)

	_, err := c.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	})
	require.NoError(t, err)
	assert.NotContains(t, received, "response_format")
}

func TestCompleteServerError(t *testing.T) {
	c := createTestClient(t)

	httpmock.RegisterResponder(
		http.MethodPost,
		testEndpoint,
		httpmock.NewStringResponder(http.StatusBadRequest, "bad request"),
	)

	_, err := c.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	})
	assert.Error(t, err)
}

func TestContentNoChoices(t *testing.T) {
	response := &CompletionResponse{Model: "judge"}
	_, err := response.Content()
	assert.Error(t, err)
}
