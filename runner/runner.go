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

// Package runner executes evaluation run plans: it drives every case through
// the plan's connector, scores the responses with the plan's metrics and
// persists the aggregated results.
package runner

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/parley-ai/parley/connectors"
	"github.com/parley-ai/parley/metrics"
	"github.com/parley-ai/parley/results"
	"github.com/parley-ai/parley/utils"
)

var log = logrus.WithField("component", "runner")

const runIDLength = 16

type Runner struct {
	plan      *Plan
	connector connectors.Connector
	metrics   map[string]metrics.Metric
	store     *results.Store
}

func New(plan *Plan, resultsDirectory string) (*Runner, error) {
	connector, err := connectors.New(plan.Connector)
	if err != nil {
		return nil, err
	}

	planMetrics := make(map[string]metrics.Metric, len(plan.Metrics))
	for _, metricCfg := range plan.Metrics {
		metricCfg, err := metricCfg.WithDefaults(plan.MetricDefaults)
		if err != nil {
			return nil, err
		}
		metric, err := metrics.New(metricCfg)
		if err != nil {
			return nil, err
		}
		planMetrics[metricCfg.Name] = metric
	}

	store, err := results.NewStore(resultsDirectory)
	if err != nil {
		return nil, err
	}

	return &Runner{
		plan:      plan,
		connector: connector,
		metrics:   planMetrics,
		store:     store,
	}, nil
}

// Execute runs the whole plan and persists the resulting document under the
// returned run id.
func (r *Runner) Execute(ctx context.Context) (string, *results.Document, error) {
	runID := utils.RandomString(runIDLength)
	startedAt := time.Now().Unix()

	log.WithFields(logrus.Fields{
		"run_id": runID,
		"plan":   r.plan.Name,
		"cases":  len(r.plan.Cases),
	}).Info("starting evaluation run")

	records, err := r.collectRecords(ctx)
	if err != nil {
		return "", nil, err
	}

	runResults := results.Results{
		EvaluationSummary: map[string]map[string]float64{},
		IndividualResults: map[string][]*results.IndividualResult{},
	}
	for _, metricCfg := range r.plan.Metrics {
		summary, individualResults, err := r.evaluateMetric(ctx, metricCfg, records)
		if err != nil {
			return "", nil, err
		}
		runResults.EvaluationSummary[metricCfg.Name] = summary
		runResults.IndividualResults[metricCfg.Name] = individualResults

		log.WithFields(logrus.Fields{
			"run_id":    runID,
			"metric":    metricCfg.Name,
			"pass_rate": summary[results.PassRateKey],
		}).Info("metric evaluated")
	}

	document := &results.Document{
		RunResults: []*results.RunResult{
			{
				Metadata: results.Metadata{
					TestName:   r.plan.Name,
					RunID:      runID,
					StartedAt:  startedAt,
					FinishedAt: time.Now().Unix(),
				},
				Results: runResults,
			},
		},
	}
	if err := r.store.Save(runID, document); err != nil {
		return "", nil, err
	}
	return runID, document, nil
}

// collectRecords drives every case through the connector, keeping the plan
// order whatever the completion order.
func (r *Runner) collectRecords(ctx context.Context) ([]*metrics.Record, error) {
	records := make([]*metrics.Record, len(r.plan.Cases))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.plan.Concurrency)
	for caseIdx, planCase := range r.plan.Cases {
		caseIdx, planCase := caseIdx, planCase
		group.Go(func() error {
			response, err := r.connector.GetResponse(groupCtx, planCase.Prompt)
			if err != nil {
				return err
			}
			records[caseIdx] = &metrics.Record{
				Prompt:            planCase.Prompt,
				Target:            planCase.Target,
				PredictedResponse: response.Text,
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *Runner) evaluateMetric(
	ctx context.Context,
	metricCfg metrics.Config,
	records []*metrics.Record,
) (map[string]float64, []*results.IndividualResult, error) {
	metric := r.metrics[metricCfg.Name]

	evaluations := make([]*metrics.Evaluation, len(records))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.plan.Concurrency)
	for recordIdx, record := range records {
		recordIdx, record := recordIdx, record
		group.Go(func() error {
			evaluation, err := metric.EvaluateRecord(groupCtx, record)
			if err != nil {
				return err
			}
			evaluations[recordIdx] = evaluation
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, nil, err
	}

	summary, err := metric.Summarize(evaluations)
	if err != nil {
		return nil, nil, err
	}

	threshold := metricCfg.Threshold
	if threshold == 0 {
		threshold = metrics.DefaultThreshold
	}

	individualResults := make([]*results.IndividualResult, len(evaluations))
	passed := 0
	for evaluationIdx, evaluation := range evaluations {
		pass := evaluation.Score >= threshold
		if pass {
			passed++
		}
		individualResults[evaluationIdx] = &results.IndividualResult{
			EvaluatedResult: evaluation.Details,
			Score:           evaluation.Score,
			Passed:          pass,
		}
	}
	passRate := 0.0
	if len(evaluations) > 0 {
		passRate = math.Round(float64(passed)/float64(len(evaluations))*10000) / 100
	}
	summary[results.PassRateKey] = passRate

	return summary, individualResults, nil
}
