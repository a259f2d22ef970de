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

// Package appclient is the connector adapter driving a Parley backend (or
// any application exposing the same conversation route) over HTTP.
package appclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/parley-ai/parley/connectors"
)

var log = logrus.WithField("component", "connectors/appclient")

const AdapterName = "app_client"

// DefaultTimeout matches the patience web clients give the backend.
const DefaultTimeout = 20 * time.Second

func init() {
	connectors.Register(AdapterName, func() connectors.Connector { return &appClient{} })
}

type conversationRequest struct {
	Message string `json:"message"`
}

type conversationResponse struct {
	Data string `json:"data"`
}

type appClient struct {
	endpoint string
	client   *resty.Client
}

func (c *appClient) Configure(cfg connectors.Config) error {
	if cfg.Endpoint == "" {
		return fmt.Errorf("the %q connector adapter requires an endpoint", AdapterName)
	}

	timeout := DefaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	c.endpoint = cfg.Endpoint
	c.client = resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return err != nil || resp.StatusCode() >= http.StatusInternalServerError
		})
	return nil
}

func (c *appClient) GetResponse(ctx context.Context, prompt string) (connectors.Response, error) {
	result := conversationResponse{}
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(conversationRequest{Message: prompt}).
		SetResult(&result).
		Post(c.endpoint)
	if err != nil {
		log.WithField("error", err).Error("failed to process prompt")
		return connectors.Response{}, err
	}
	if resp.IsError() {
		err := fmt.Errorf("application endpoint returned status %d", resp.StatusCode())
		log.WithField("error", err).Error("failed to process prompt")
		return connectors.Response{}, err
	}
	return connectors.Response{Text: result.Data}, nil
}
