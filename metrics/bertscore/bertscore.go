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

// Package bertscore scores the similarity between a predicted response and
// its target by greedily matching token embeddings, the way BERTScore does:
// precision is the mean over response tokens of the best cosine similarity
// to any target token, recall is the symmetric quantity over target tokens,
// F1 their harmonic mean.
package bertscore

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/parley-ai/parley/connectors/embeddings"
	"github.com/parley-ai/parley/metrics"
)

var log = logrus.WithField("component", "metrics/bertscore")

const MetricName = "bertscore"

// rescaleBaselineParam optionally rescales raw similarities, which tend to
// cluster in a narrow high band: scores are mapped through
// (x - baseline) / (1 - baseline).
const rescaleBaselineParam = "rescale_baseline"

func init() {
	metrics.Register(MetricName, func() metrics.Metric { return &bertScore{} })
}

type bertScore struct {
	embedder *embeddings.Client
	baseline float64
}

func (m *bertScore) Configure(cfg metrics.Config) error {
	var err error
	m.embedder, err = embeddings.NewClient(cfg.Connector)
	if err != nil {
		return fmt.Errorf("unable to create the embeddings client: %w", err)
	}

	if rawBaseline, exists := cfg.Params[rescaleBaselineParam]; exists {
		baseline, ok := rawBaseline.(float64)
		if !ok || baseline < 0 || baseline >= 1 {
			return fmt.Errorf("invalid %q param %v, expecting a float in [0, 1)", rescaleBaselineParam, rawBaseline)
		}
		m.baseline = baseline
	}
	return nil
}

func (m *bertScore) EvaluateRecord(ctx context.Context, record *metrics.Record) (*metrics.Evaluation, error) {
	candidateTokens := tokenize(record.PredictedResponse)
	referenceTokens := tokenize(record.Target)

	precision, recall, f1 := 0.0, 0.0, 0.0
	if len(candidateTokens) > 0 && len(referenceTokens) > 0 {
		vectors, err := m.embedder.Embed(ctx, append(candidateTokens, referenceTokens...))
		if err != nil {
			log.WithField("error", err).Error("error evaluating the individual result")
			return nil, err
		}
		candidateVectors := vectors[:len(candidateTokens)]
		referenceVectors := vectors[len(candidateTokens):]

		precision = greedyMatch(candidateVectors, referenceVectors)
		recall = greedyMatch(referenceVectors, candidateVectors)
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}

		if m.baseline > 0 {
			precision = rescale(precision, m.baseline)
			recall = rescale(recall, m.baseline)
			f1 = rescale(f1, m.baseline)
		}
	} else {
		log.WithFields(logrus.Fields{
			"candidate_tokens": len(candidateTokens),
			"reference_tokens": len(referenceTokens),
		}).Warn("empty candidate or reference, scoring zero")
	}

	return &metrics.Evaluation{
		Details: map[string]interface{}{
			"prompt":          record.Prompt,
			"predicted_value": record.PredictedResponse,
			"target":          record.Target,
			"bertscore": map[string]interface{}{
				"precision": precision,
				"recall":    recall,
				"f1":        f1,
			},
		},
		Score: f1,
	}, nil
}

func (m *bertScore) Summarize(evaluations []*metrics.Evaluation) (map[string]float64, error) {
	if len(evaluations) == 0 {
		return map[string]float64{"f1": 0.0}, nil
	}

	f1Sum := 0.0
	for _, evaluation := range evaluations {
		f1Sum += evaluation.Score
	}
	return map[string]float64{"f1": f1Sum / float64(len(evaluations))}, nil
}

// greedyMatch computes the mean over `from` vectors of the best cosine
// similarity to any `to` vector.
func greedyMatch(from [][]float64, to [][]float64) float64 {
	total := 0.0
	for _, fromVector := range from {
		best := math.Inf(-1)
		for _, toVector := range to {
			similarity := cosineSimilarity(fromVector, toVector)
			if similarity > best {
				best = similarity
			}
		}
		total += best
	}
	return total / float64(len(from))
}

func cosineSimilarity(a []float64, b []float64) float64 {
	length := len(a)
	if len(b) < length {
		length = len(b)
	}
	dot, normA, normB := 0.0, 0.0, 0.0
	for i := 0; i < length; i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func rescale(score float64, baseline float64) float64 {
	return (score - baseline) / (1 - baseline)
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
