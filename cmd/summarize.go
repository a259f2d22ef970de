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

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/parley-ai/parley/results"
)

// summarizeViper represents the configuration of the summarize command
var summarizeViper = viper.New()

var summarizeResultsDirKey = "results_dir"
var summarizeFormatKey = "format"

type summaryFormat string

const (
	consoleFormat  summaryFormat = "console"
	markdownFormat summaryFormat = "markdown"
)

var expectedSummaryFormats = []summaryFormat{consoleFormat, markdownFormat}

// summarizeCmd represents the summarize command
var summarizeCmd = &cobra.Command{
	Use:   "summarize <run id>",
	Short: "Render the graded summary of a stored evaluation run",
	Args:  cobra.ExactArgs(1),
	RunE: func(_cmd *cobra.Command, args []string) error {
		store, err := results.NewStore(summarizeViper.GetString(summarizeResultsDirKey))
		if err != nil {
			return err
		}
		document, err := store.Load(args[0])
		if err != nil {
			return err
		}

		switch summaryFormat(summarizeViper.GetString(summarizeFormatKey)) {
		case markdownFormat:
			fmt.Print(results.RenderMarkdown(document))
		case consoleFormat:
			results.RenderTable(os.Stdout, document)
		default:
			return fmt.Errorf(
				"invalid format specified %q expecting one of %v",
				summarizeViper.GetString(summarizeFormatKey),
				expectedSummaryFormats,
			)
		}
		return nil
	},
}

func init() {
	summarizeViper.SetDefault(summarizeResultsDirKey, results.DefaultDirectory)
	_ = summarizeViper.BindEnv(summarizeResultsDirKey, "PARLEY_RESULTS_DIR")
	summarizeCmd.Flags().String(
		summarizeResultsDirKey,
		summarizeViper.GetString(summarizeResultsDirKey),
		"Directory the run results are read from",
	)

	summarizeViper.SetDefault(summarizeFormatKey, string(consoleFormat))
	_ = summarizeViper.BindEnv(summarizeFormatKey, "PARLEY_SUMMARY_FORMAT")
	summarizeCmd.Flags().String(
		summarizeFormatKey,
		summarizeViper.GetString(summarizeFormatKey),
		fmt.Sprintf("Output format as one of %v", expectedSummaryFormats),
	)

	// Don't sort alphabetically, keep insertion order
	summarizeCmd.Flags().SortFlags = false

	// Bind "cobra" flags defined in the CLI with viper
	_ = summarizeViper.BindPFlags(summarizeCmd.Flags())
}
