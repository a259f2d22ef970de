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

package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-ai/parley/services/backend/store/memory"
)

func createTestServer(t *testing.T) *Server {
	sessions, err := memory.CreateMemoryBackend(memory.DefaultMaxSessions)
	require.NoError(t, err)
	t.Cleanup(sessions.Destroy)

	server, err := New(0, sessions, "test_secret")
	require.NoError(t, err)
	return server
}

func doJSONRequest(
	server *Server,
	method string,
	path string,
	body interface{},
	headers map[string]string,
) *httptest.ResponseRecorder {
	var reqBody bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&reqBody).Encode(body)
	}
	req := httptest.NewRequest(method, path, &reqBody)
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	recorder := httptest.NewRecorder()
	server.Handler.ServeHTTP(recorder, req)
	return recorder
}

func TestGetInfo(t *testing.T) {
	server := createTestServer(t)

	recorder := doJSONRequest(server, http.MethodGet, "/", nil, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)

	info := infoResponse{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &info))
	assert.Equal(t, http.StatusOK, info.Code)
	assert.Equal(t, "backend service is up and running", info.Response)
}

func TestConversation(t *testing.T) {
	server := createTestServer(t)

	recorder := doJSONRequest(server, http.MethodPost, "/api/v1/conversation", jsonBody{
		"message": "I want to find out more about the technology sector",
	}, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	response := conversationResponse{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, "received message: I want to find out more about the technology sector", response.Data)
}

func TestConversationMissingMessage(t *testing.T) {
	server := createTestServer(t)

	recorder := doJSONRequest(server, http.MethodPost, "/api/v1/conversation", jsonBody{}, nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestDeletedSessionNotFound(t *testing.T) {
	sessions, err := memory.CreateMemoryBackend(memory.DefaultMaxSessions)
	require.NoError(t, err)
	t.Cleanup(sessions.Destroy)

	server, err := New(0, sessions, "test_secret")
	require.NoError(t, err)

	recorder := doJSONRequest(server, http.MethodPost, "/api/v1/session", jsonBody{"user_id": "a_user"}, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	opened := openSessionResponse{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &opened))

	require.NoError(t, sessions.DeleteSessions(context.Background(), []string{opened.SessionID}))

	recorder = doJSONRequest(server, http.MethodPost, "/api/v1/conversation", jsonBody{
		"message":    "hello",
		"session_id": opened.SessionID,
	}, map[string]string{sessionTokenHeaderKey: opened.Token})
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	recorder = doJSONRequest(
		server,
		http.MethodGet,
		fmt.Sprintf("/api/v1/session/%s/history", opened.SessionID),
		nil,
		map[string]string{sessionTokenHeaderKey: opened.Token},
	)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestSessionConversationHistory(t *testing.T) {
	server := createTestServer(t)

	recorder := doJSONRequest(server, http.MethodPost, "/api/v1/session", jsonBody{"user_id": "a_user"}, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	opened := openSessionResponse{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &opened))
	require.NotEmpty(t, opened.SessionID)
	require.NotEmpty(t, opened.Token)

	recorder = doJSONRequest(server, http.MethodPost, "/api/v1/conversation", jsonBody{
		"message":    "hello",
		"session_id": opened.SessionID,
	}, map[string]string{sessionTokenHeaderKey: opened.Token})
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = doJSONRequest(
		server,
		http.MethodGet,
		fmt.Sprintf("/api/v1/session/%s/history", opened.SessionID),
		nil,
		map[string]string{sessionTokenHeaderKey: opened.Token},
	)
	require.Equal(t, http.StatusOK, recorder.Code)

	history := historyResponse{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &history))
	require.Len(t, history.Turns, 2)
	assert.Equal(t, "hello", history.Turns[0].Content)
	assert.Equal(t, "received message: hello", history.Turns[1].Content)
}

func TestHistoryBadToken(t *testing.T) {
	server := createTestServer(t)

	recorder := doJSONRequest(server, http.MethodPost, "/api/v1/session", jsonBody{}, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	opened := openSessionResponse{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &opened))

	recorder = doJSONRequest(
		server,
		http.MethodGet,
		fmt.Sprintf("/api/v1/session/%s/history", opened.SessionID),
		nil,
		map[string]string{sessionTokenHeaderKey: "not_a_valid_token"},
	)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestHistoryTokenSessionMismatch(t *testing.T) {
	server := createTestServer(t)

	recorder := doJSONRequest(server, http.MethodPost, "/api/v1/session", jsonBody{}, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	firstSession := openSessionResponse{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &firstSession))

	recorder = doJSONRequest(server, http.MethodPost, "/api/v1/session", jsonBody{}, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	secondSession := openSessionResponse{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &secondSession))

	recorder = doJSONRequest(
		server,
		http.MethodGet,
		fmt.Sprintf("/api/v1/session/%s/history", firstSession.SessionID),
		nil,
		map[string]string{sessionTokenHeaderKey: secondSession.Token},
	)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

// jsonBody is a loose JSON object used to build request payloads
type jsonBody map[string]interface{}
