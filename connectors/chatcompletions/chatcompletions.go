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

// Package chatcompletions is a client for OpenAI-compatible chat completions
// APIs. It doubles as a registered connector adapter for plans that evaluate
// a hosted model directly instead of a deployed application.
package chatcompletions

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/parley-ai/parley/connectors"
)

const AdapterName = "chat_completions"

const DefaultTimeout = 60 * time.Second

func init() {
	connectors.Register(AdapterName, func() connectors.Connector { return &Client{} })
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseFormat constrains the model output, serialized as the
// {"type": ...} object OpenAI-compatible endpoints expect.
type ResponseFormat struct {
	Type string `json:"type"`
}

const ResponseFormatJSONObject = "json_object"

type CompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	TopP           float64         `json:"top_p"`
	MaxTokens      int             `json:"max_tokens"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

type completionChoice struct {
	Message Message `json:"message"`
}

type CompletionResponse struct {
	Model   string             `json:"model"`
	Choices []completionChoice `json:"choices"`
}

// Content returns the content of the first choice.
func (r *CompletionResponse) Content() (string, error) {
	if len(r.Choices) == 0 {
		return "", fmt.Errorf("completion response from model %q holds no choices", r.Model)
	}
	return r.Choices[0].Message.Content, nil
}

// Client calls a single model behind an OpenAI-compatible endpoint.
type Client struct {
	endpoint string
	model    string
	client   *resty.Client
}

func NewClient(cfg connectors.Config) (*Client, error) {
	c := &Client{}
	if err := c.Configure(cfg); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) Configure(cfg connectors.Config) error {
	if cfg.Endpoint == "" {
		return fmt.Errorf("the %q connector adapter requires an endpoint", AdapterName)
	}
	if cfg.Model == "" {
		return fmt.Errorf("the %q connector adapter requires a model", AdapterName)
	}

	timeout := DefaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	c.endpoint = cfg.Endpoint
	c.model = cfg.Model
	c.client = resty.New().SetTimeout(timeout)
	if cfg.APIKey != "" {
		c.client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	return nil
}

func (c *Client) Model() string {
	return c.model
}

// Complete sends the given request, forcing the configured model.
func (c *Client) Complete(ctx context.Context, request CompletionRequest) (*CompletionResponse, error) {
	request.Model = c.model

	result := &CompletionResponse{}
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(request).
		SetResult(result).
		Post(c.endpoint)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf(
			"chat completions endpoint returned status %d for model %q",
			resp.StatusCode(),
			c.model,
		)
	}
	return result, nil
}

// GetResponse implements connectors.Connector with a single user message.
func (c *Client) GetResponse(ctx context.Context, prompt string) (connectors.Response, error) {
	response, err := c.Complete(ctx, CompletionRequest{
		Messages:    []Message{{Role: RoleUser, Content: prompt}},
		Temperature: 1,
		TopP:        1,
		MaxTokens:   4028,
	})
	if err != nil {
		return connectors.Response{}, err
	}
	content, err := response.Content()
	if err != nil {
		return connectors.Response{}, err
	}
	return connectors.Response{Text: content}, nil
}
