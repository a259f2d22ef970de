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
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
)

type summaryRow struct {
	testName string
	metric   string
	passRate float64
	result   string
	grade    string
}

func summaryRows(document *Document) []summaryRow {
	rows := []summaryRow{}
	for _, run := range document.RunResults {
		metricNames := make([]string, 0, len(run.Results.EvaluationSummary))
		for metricName := range run.Results.EvaluationSummary {
			metricNames = append(metricNames, metricName)
		}
		sort.Strings(metricNames)

		for _, metricName := range metricNames {
			summary := run.Results.EvaluationSummary[metricName]
			passRate := summary[PassRateKey]

			statNames := make([]string, 0, len(summary))
			for statName := range summary {
				if statName != PassRateKey {
					statNames = append(statNames, statName)
				}
			}
			sort.Strings(statNames)
			stats := make([]string, 0, len(statNames))
			for _, statName := range statNames {
				stats = append(stats, fmt.Sprintf("%s=%s", statName, formatRate(summary[statName])))
			}

			rows = append(rows, summaryRow{
				testName: run.Metadata.TestName,
				metric:   metricName,
				passRate: passRate,
				result:   strings.Join(stats, ", "),
				grade:    GradeForPassRate(passRate),
			})
		}
	}
	return rows
}

func formatRate(rate float64) string {
	return strconv.FormatFloat(rate, 'f', -1, 64)
}

// RenderMarkdown renders the run results as a GitHub-flavored markdown
// report with one graded row per test and metric.
func RenderMarkdown(document *Document) string {
	var b strings.Builder
	b.WriteString("## Parley Test Results\n\n")
	b.WriteString("| Test Name | Metric | Pass Rate % | Result | Grade |\n")
	b.WriteString("|-----------|--------|-------------|--------|-------|\n")
	for _, row := range summaryRows(document) {
		fmt.Fprintf(
			&b,
			"| %s | %s | %s | %s | %s |\n",
			row.testName,
			row.metric,
			formatRate(row.passRate),
			row.result,
			row.grade,
		)
	}

	b.WriteString("\n## Grading Criteria\n\n")
	b.WriteString("| Grade | Pass Rate % | Color |\n")
	b.WriteString("|-------|-------------|-------|\n")
	b.WriteString("| A     | 90-100      | 🟢 Green |\n")
	b.WriteString("| B     | 80-89       | 🟡 Yellow |\n")
	b.WriteString("| C     | 70-79       | 🟠 Orange |\n")
	b.WriteString("| D     | 0-69        | 🔴 Red |\n")
	return b.String()
}

// RenderTable renders the run results as a console table.
func RenderTable(w io.Writer, document *Document) {
	table := tablewriter.NewWriter(w)
	table.SetBorder(false)
	table.SetHeader([]string{"test name", "metric", "pass rate %", "result", "grade"})
	for _, row := range summaryRows(document) {
		table.Append([]string{
			row.testName,
			row.metric,
			formatRate(row.passRate),
			row.result,
			row.grade,
		})
	}
	table.Render()
}
