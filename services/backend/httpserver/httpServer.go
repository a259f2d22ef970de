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
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/juju/errors"
	"github.com/loopfz/gadgeto/tonic"
	"github.com/sirupsen/logrus"
	"github.com/wI2L/fizz"
	"github.com/wI2L/fizz/openapi"

	"github.com/parley-ai/parley/services/backend/store"
	"github.com/parley-ai/parley/version"
)

var log = logrus.WithField("component", "backend/http")

var infos = openapi.Info{
	Title: "Parley Backend",
	Description: "The Parley backend serves the conversation API driven by web clients and by the" +
		" evaluation runner. It implements a JSON HTTP API.\n" +
		"\n" +
		"The API is composed of two groups of routes:\n" +
		"- [Conversation](#tag/Conversation)\n" +
		"- [Session](#tag/Session)\n",
	Version: version.Version,
}

// Origins allowed by default, the backend is meant to sit behind a local
// web frontend during development.
var defaultAllowedOriginPattern = regexp.MustCompile(`^https?://localhost(:\d+)?$`)

type Server struct {
	http.Server
	sessions    store.Backend
	tokenSecret string

	gin  *gin.Engine
	fizz *fizz.Fizz
}

func New(port uint, sessions store.Backend, tokenSecret string) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)

	tonic.SetErrorHook(tonicErrorHook)

	ginEngine := gin.New()
	fizzEngine := fizz.NewFromEngine(ginEngine)

	server := &Server{
		Server: http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: fizzEngine,
		},
		sessions:    sessions,
		tokenSecret: tokenSecret,
		gin:         ginEngine,
		fizz:        fizzEngine,
	}

	server.gin.HandleMethodNotAllowed = true

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOriginFunc = func(origin string) bool {
		return defaultAllowedOriginPattern.MatchString(origin)
	}
	corsConfig.AddAllowHeaders(sessionTokenHeaderKey)

	server.fizz.Use(cors.New(corsConfig))

	// Use a custom error handler
	server.fizz.Use(ginErrorHandlerMiddleware)

	// Use the custom logger middleware
	server.fizz.Use(ginLoggerMiddleware)

	// Recovery middleware recovers from any panics and writes a 500 if there was one.
	server.fizz.Use(gin.Recovery())

	server.fizz.GET("/", []fizz.OperationOption{
		fizz.Summary("Check that the backend service is up and running"),
	}, tonic.Handler(server.getInfo, http.StatusOK))

	server.fizz.GET("/openapi.json", []fizz.OperationOption{
		fizz.Summary("Retrieve the open api specification"),
		fizz.Response("500", "Bad server configuration or state", httpError{}, nil, nil),
	}, server.fizz.OpenAPI(&infos, "json"))

	apiGroup := server.fizz.Group(
		"/api/v1",
		"Conversation",
		"Send messages to the backend and read back conversation history.",
	)
	apiGroup.POST("/conversation", []fizz.OperationOption{
		fizz.Summary("Send a message to the backend"),
		fizz.Description("Send a message and retrieve the backend's reply.\n" +
			"\n" +
			"When a `session_id` is provided along a valid session token, both the message and the" +
			" reply are appended to the session history."),
		fizz.Response("401", "Invalid session token", httpError{}, nil, nil),
		fizz.Response("404", "Session not found", httpError{}, nil, nil),
		fizz.Response("500", "Bad server configuration or state", httpError{}, nil, nil),
	}, tonic.Handler(server.conversation, http.StatusOK))

	sessionGroup := server.fizz.Group(
		"/api/v1/session",
		"Session",
		"Manage conversation sessions.",
	)
	sessionGroup.POST("", []fizz.OperationOption{
		fizz.Summary("Open a session"),
		fizz.Description("Open a conversation session and retrieve its session token."),
		fizz.Response("500", "Bad server configuration or state", httpError{}, nil, nil),
	}, tonic.Handler(server.openSession, http.StatusOK))
	sessionGroup.GET("/:session_id/history", []fizz.OperationOption{
		fizz.Summary("Retrieve the history of a session"),
		fizz.Response("401", "Invalid session token", httpError{}, nil, nil),
		fizz.Response("404", "Session not found", httpError{}, nil, nil),
		fizz.Response("500", "Bad server configuration or state", httpError{}, nil, nil),
	}, tonic.Handler(server.getHistory, http.StatusOK))

	ginEngine.NoRoute(func(c *gin.Context) {
		_ = c.AbortWithError(http.StatusNotFound, fmt.Errorf("not found"))
	})

	ginEngine.NoMethod(func(c *gin.Context) {
		_ = c.AbortWithError(http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	})

	return server, nil
}

type infoResponse struct {
	Code        int    `json:"code" description:"Mirror of the HTTP status code"`
	Response    string `json:"response" description:"Human-readable service status"`
	Version     string `json:"version" description:"Parley version"`
	VersionHash string `json:"version_hash"`
}

func (server *Server) getInfo(*gin.Context) (*infoResponse, error) {
	return &infoResponse{
		Code:        http.StatusOK,
		Response:    "backend service is up and running",
		Version:     version.Version,
		VersionHash: version.Hash,
	}, nil
}

const sessionTokenHeaderKey = "Parley-Session-Token"

type conversationRequest struct {
	Message   string `json:"message" validate:"required" description:"The user message"`
	SessionID string `json:"session_id,omitempty" description:"Optional session the conversation belongs to"`
	Token     string `header:"Parley-Session-Token" description:"Session token, required when session_id is set"`
}

type conversationResponse struct {
	Data string `json:"data" description:"The backend reply"`
}

func (server *Server) conversation(c *gin.Context, request *conversationRequest) (*conversationResponse, error) {
	reply := fmt.Sprintf("received message: %s", request.Message)

	if request.SessionID != "" {
		err := server.checkSessionToken(request.SessionID, request.Token)
		if err != nil {
			return nil, err
		}

		log.WithFields(logrus.Fields{
			"session_id": request.SessionID,
		}).Debug("appending conversation turns")

		err = server.sessions.AppendTurns(c, request.SessionID, []store.Turn{
			{Role: store.RoleUser, Content: request.Message, Timestamp: time.Now()},
			{Role: store.RoleBackend, Content: reply, Timestamp: time.Now()},
		})
		if err != nil {
			var unknownErr *store.UnknownSessionError
			if errors.As(err, &unknownErr) {
				return nil, wrapError(http.StatusNotFound, err)
			}
			return nil, wrapError(http.StatusInternalServerError, err)
		}
	}

	return &conversationResponse{Data: reply}, nil
}

type openSessionRequest struct {
	UserID string `json:"user_id,omitempty" description:"Optional caller-provided user identifier"`
}

type openSessionResponse struct {
	SessionID string `json:"session_id" description:"The session identifier"`
	Token     string `json:"token" description:"Session token, required to authenticate further interactions with this session."`
}

func (server *Server) openSession(c *gin.Context, request *openSessionRequest) (*openSessionResponse, error) {
	session, err := server.sessions.CreateSession(c, request.UserID)
	if err != nil {
		return nil, wrapError(http.StatusInternalServerError, err)
	}

	log.WithFields(logrus.Fields{
		"session_id": session.ID,
		"user_id":    session.UserID,
	}).Info("session opened")

	tokenStr, err := MakeAndSerializeToken(session.ID, session.UserID, server.tokenSecret)
	if err != nil {
		return nil, wrapError(http.StatusInternalServerError, err)
	}

	return &openSessionResponse{
		SessionID: session.ID,
		Token:     tokenStr,
	}, nil
}

type historyRequest struct {
	SessionID string `path:"session_id" description:"The session identifier"`
	Token     string `header:"Parley-Session-Token" validate:"required" description:"The session token, it must match the token returned when the session was opened."`
}

type historyResponse struct {
	SessionID string       `json:"session_id"`
	UserID    string       `json:"user_id,omitempty"`
	Turns     []store.Turn `json:"turns"`
}

func (server *Server) getHistory(c *gin.Context, request *historyRequest) (*historyResponse, error) {
	err := server.checkSessionToken(request.SessionID, request.Token)
	if err != nil {
		return nil, err
	}

	session, err := server.sessions.RetrieveSession(c, request.SessionID)
	if err != nil {
		var unknownErr *store.UnknownSessionError
		if errors.As(err, &unknownErr) {
			return nil, wrapError(http.StatusNotFound, err)
		}
		return nil, wrapError(http.StatusInternalServerError, err)
	}

	return &historyResponse{
		SessionID: session.ID,
		UserID:    session.UserID,
		Turns:     session.Turns,
	}, nil
}

func (server *Server) checkSessionToken(sessionID string, tokenStr string) error {
	claims, err := ParseAndVerifyToken(tokenStr, server.tokenSecret)
	if err != nil {
		return wrapError(
			http.StatusUnauthorized,
			fmt.Errorf("unable to validate token from header [%s] (%w)", sessionTokenHeaderKey, err),
		)
	}

	if claims.SessionID != sessionID {
		return wrapError(
			http.StatusUnauthorized,
			fmt.Errorf("provided token doesn't match session [%s]", sessionID),
		)
	}
	return nil
}
