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

// Package llmjudge scores a predicted response by asking a panel of judge
// models how well it matches the target, and averaging their verdicts.
package llmjudge

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/parley-ai/parley/connectors/chatcompletions"
	"github.com/parley-ai/parley/metrics"
)

var log = logrus.WithField("component", "metrics/llmjudge")

const MetricName = "llmjudge"

const (
	promptParam       = "prompt"
	systemPromptParam = "system_prompt"
)

const defaultSystemPrompt = "You are an impartial judge grading how well a response matches its expected answer."

const defaultPrompt = `Grade the following response against the expected answer.

Response: {text}
Expected answer: {target}

Reply with a JSON object of the form {"score": <integer between 0 and 1>, "explanation": "<one sentence>"}.`

func init() {
	metrics.Register(MetricName, func() metrics.Metric { return &llmJudge{} })
}

// Some judge models emit a reasoning preamble before the verdict.
var (
	thinkRegexp   = regexp.MustCompile(`(?s)^<think>(.*?)</think>(.*)`)
	verdictRegexp = regexp.MustCompile(`\{[^}]*\}`)
)

type verdict struct {
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation"`
}

type llmJudge struct {
	judges       []*chatcompletions.Client
	prompt       string
	systemPrompt string
}

func (m *llmJudge) Configure(cfg metrics.Config) error {
	models := cfg.Models
	if len(models) == 0 {
		if cfg.Connector.Model == "" {
			return fmt.Errorf("no judge model configured")
		}
		models = []string{cfg.Connector.Model}
	}

	m.judges = nil
	for _, model := range models {
		judgeCfg := cfg.Connector
		judgeCfg.Model = model
		judge, err := chatcompletions.NewClient(judgeCfg)
		if err != nil {
			return fmt.Errorf("unable to create the judge client for model %q: %w", model, err)
		}
		m.judges = append(m.judges, judge)
	}

	m.prompt = defaultPrompt
	if rawPrompt, exists := cfg.Params[promptParam]; exists {
		prompt, ok := rawPrompt.(string)
		if !ok {
			return fmt.Errorf("invalid %q param %v, expecting a string", promptParam, rawPrompt)
		}
		m.prompt = prompt
	}
	m.systemPrompt = defaultSystemPrompt
	if rawSystemPrompt, exists := cfg.Params[systemPromptParam]; exists {
		systemPrompt, ok := rawSystemPrompt.(string)
		if !ok {
			return fmt.Errorf("invalid %q param %v, expecting a string", systemPromptParam, rawSystemPrompt)
		}
		m.systemPrompt = systemPrompt
	}
	return nil
}

func (m *llmJudge) EvaluateRecord(ctx context.Context, record *metrics.Record) (*metrics.Evaluation, error) {
	request := chatcompletions.CompletionRequest{
		Messages: []chatcompletions.Message{
			{Role: chatcompletions.RoleSystem, Content: m.systemPrompt},
			{Role: chatcompletions.RoleUser, Content: m.renderPrompt(record)},
		},
		Temperature:    1,
		TopP:           1,
		MaxTokens:      4028,
		ResponseFormat: &chatcompletions.ResponseFormat{Type: chatcompletions.ResponseFormatJSONObject},
	}

	scores := make([]float64, len(m.judges))
	explanations := make([]map[string]string, len(m.judges))
	var mutex sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	for judgeIdx, judge := range m.judges {
		judgeIdx, judge := judgeIdx, judge
		group.Go(func() error {
			response, err := judge.Complete(groupCtx, request)
			if err != nil {
				return err
			}
			content, err := response.Content()
			if err != nil {
				return err
			}
			judgeVerdict, err := parseVerdict(content)
			if err != nil {
				return fmt.Errorf("unable to parse the verdict of judge model %q: %w", response.Model, err)
			}
			mutex.Lock()
			scores[judgeIdx] = judgeVerdict.Score
			explanations[judgeIdx] = map[string]string{response.Model: judgeVerdict.Explanation}
			mutex.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		log.WithField("error", err).Error("error evaluating the individual result")
		return nil, err
	}

	averageScore := 0.0
	if len(scores) > 0 {
		for _, score := range scores {
			averageScore += score
		}
		averageScore = math.Round(averageScore/float64(len(scores))*100) / 100
	}

	return &metrics.Evaluation{
		Details: map[string]interface{}{
			"prompt":          record.Prompt,
			"predicted_value": record.PredictedResponse,
			"target":          record.Target,
			"llm_score":       averageScore,
			"evaluations":     explanations,
		},
		Score: averageScore,
	}, nil
}

func (m *llmJudge) Summarize(evaluations []*metrics.Evaluation) (map[string]float64, error) {
	if len(evaluations) == 0 {
		return map[string]float64{"average_score": 0.0}, nil
	}

	scoreSum := 0.0
	for _, evaluation := range evaluations {
		scoreSum += evaluation.Score
	}
	return map[string]float64{"average_score": scoreSum / float64(len(evaluations))}, nil
}

func (m *llmJudge) renderPrompt(record *metrics.Record) string {
	prompt := strings.ReplaceAll(m.prompt, "{text}", record.PredictedResponse)
	return strings.ReplaceAll(prompt, "{target}", record.Target)
}

// parseVerdict extracts the {score, explanation} object from a judge
// response, skipping over an optional `<think>...</think>` preamble.
func parseVerdict(response string) (*verdict, error) {
	payload := response
	if thinkMatch := thinkRegexp.FindStringSubmatch(response); thinkMatch != nil {
		payload = verdictRegexp.FindString(thinkMatch[2])
		if payload == "" {
			return nil, fmt.Errorf("no verdict found after the reasoning preamble in %q", response)
		}
	}

	parsedVerdict := &verdict{}
	if err := json.Unmarshal([]byte(payload), parsedVerdict); err != nil {
		return nil, err
	}
	return parsedVerdict, nil
}
