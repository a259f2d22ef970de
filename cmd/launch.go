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
	"github.com/spf13/cobra"

	"github.com/parley-ai/parley/launcher"
)

var launchQuietLevel int

// launchCmd represents the launch command
var launchCmd = &cobra.Command{
	Use:   "launch <definition file> [args...]",
	Short: "Launch the processes of a YAML launch definition",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(_cmd *cobra.Command, args []string) error {
		return launcher.Launch(args[0], args[1:], launchQuietLevel)
	},
}

func init() {
	launchCmd.Flags().CountVarP(
		&launchQuietLevel,
		"quiet",
		"q",
		"Decrease launcher output (can be repeated)",
	)
}
