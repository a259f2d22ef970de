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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	// Connector and metric adapters register themselves
	_ "github.com/parley-ai/parley/connectors/appclient"
	_ "github.com/parley-ai/parley/connectors/chatcompletions"
	_ "github.com/parley-ai/parley/metrics/bertscore"
	_ "github.com/parley-ai/parley/metrics/exactmatch"
	_ "github.com/parley-ai/parley/metrics/llmjudge"

	"github.com/parley-ai/parley/results"
	"github.com/parley-ai/parley/runner"
)

// runViper represents the configuration of the run command
var runViper = viper.New()

var runResultsDirKey = "results_dir"

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <plan file>",
	Short: "Execute an evaluation run plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(_cmd *cobra.Command, args []string) error {
		plan, err := runner.LoadPlan(args[0])
		if err != nil {
			return err
		}

		planRunner, err := runner.New(plan, runViper.GetString(runResultsDirKey))
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		interruptChan := make(chan os.Signal, 1)
		signal.Notify(interruptChan, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-interruptChan
			signal.Stop(interruptChan)
			cancel()
		}()

		runID, document, err := planRunner.Execute(ctx)
		if err != nil {
			return err
		}

		results.RenderTable(os.Stdout, document)
		fmt.Printf("\nrun %s saved under %s\n", runID, runViper.GetString(runResultsDirKey))
		return nil
	},
}

func init() {
	runViper.SetDefault(runResultsDirKey, results.DefaultDirectory)
	_ = runViper.BindEnv(runResultsDirKey, "PARLEY_RESULTS_DIR")
	runCmd.Flags().String(
		runResultsDirKey,
		runViper.GetString(runResultsDirKey),
		"Directory the run results are written to",
	)

	// Don't sort alphabetically, keep insertion order
	runCmd.Flags().SortFlags = false

	// Bind "cobra" flags defined in the CLI with viper
	_ = runViper.BindPFlags(runCmd.Flags())
}
