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

// Package embeddings is a client for OpenAI-compatible embeddings APIs with
// an LRU cache in front, keyed by the embedded text.
package embeddings

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	lru "github.com/hashicorp/golang-lru"

	"github.com/parley-ai/parley/connectors"
)

const DefaultTimeout = 60 * time.Second

// DefaultCacheSize bounds the number of cached embedding vectors. Evaluation
// plans embed the same targets over and over, the cache keeps those local.
const DefaultCacheSize = 4096

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsDataItem struct {
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

type embeddingsResponse struct {
	Data []embeddingsDataItem `json:"data"`
}

// Client calls an embeddings endpoint and caches the resulting vectors.
type Client struct {
	endpoint string
	model    string
	client   *resty.Client
	cache    *lru.Cache
}

func NewClient(cfg connectors.Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("the embeddings client requires an endpoint")
	}

	timeout := DefaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	cache, err := lru.New(DefaultCacheSize)
	if err != nil {
		return nil, err
	}

	c := &Client{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		client:   resty.New().SetTimeout(timeout),
		cache:    cache,
	}
	if cfg.APIKey != "" {
		c.client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	return c, nil
}

// Embed returns one embedding vector per input text, in order. Cached texts
// are served locally, the rest are fetched in a single request.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))

	missingTexts := []string{}
	missingIndices := []int{}
	for textIdx, text := range texts {
		if cached, exists := c.cache.Get(text); exists {
			vectors[textIdx] = cached.([]float64)
			continue
		}
		missingTexts = append(missingTexts, text)
		missingIndices = append(missingIndices, textIdx)
	}

	if len(missingTexts) == 0 {
		return vectors, nil
	}

	result := &embeddingsResponse{}
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(embeddingsRequest{Model: c.model, Input: missingTexts}).
		SetResult(result).
		Post(c.endpoint)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("embeddings endpoint returned status %d", resp.StatusCode())
	}
	if len(result.Data) != len(missingTexts) {
		return nil, fmt.Errorf(
			"embeddings endpoint returned %d vectors, expected %d",
			len(result.Data),
			len(missingTexts),
		)
	}

	for _, item := range result.Data {
		if item.Index < 0 || item.Index >= len(missingTexts) {
			return nil, fmt.Errorf("embeddings endpoint returned an out of range index %d", item.Index)
		}
		text := missingTexts[item.Index]
		c.cache.Add(text, item.Embedding)
		vectors[missingIndices[item.Index]] = item.Embedding
	}
	return vectors, nil
}
