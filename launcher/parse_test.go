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

package launcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDefinition(t *testing.T, content string) string {
	fileName := filepath.Join(t.TempDir(), "launch.yaml")
	require.NoError(t, os.WriteFile(fileName, []byte(content), 0o644))
	return fileName
}

func TestParseFile(t *testing.T) {
	fileName := writeDefinition(t, `
global:
  environment:
    PORT: "3123"
scripts:
  backend:
    ready_output: listening on port {{.PORT}}
    commands:
      - ["parley", "services", "backend", "--web_port", "{{.PORT}}"]
  run:
    depends_on: [backend]
    environment:
      TARGET: http://localhost:{{.PORT}}
    commands:
      - ["parley", "run", "plan.yaml"]
`)

	def, err := parseFile(fileName, nil)
	require.NoError(t, err)
	require.Len(t, def.processes, 2)

	// Processes are ordered by script name.
	backend := def.processes[0]
	assert.Equal(t, "backend", backend.Name)
	assert.Empty(t, backend.Dependencies)
	require.NotNil(t, backend.ReadyRegex)
	assert.True(t, backend.ReadyRegex.MatchString("backend: listening on port 3123"))
	require.Len(t, backend.Commands, 1)
	assert.Equal(t, []string{"parley", "services", "backend", "--web_port", "3123"}, backend.Commands[0])

	run := def.processes[1]
	assert.Equal(t, "run", run.Name)
	assert.Equal(t, []int{0}, run.Dependencies)
	assert.Contains(t, run.Environment, "TARGET=http://localhost:3123")
	assert.Nil(t, run.ReadyRegex)
}

func TestParseFileArgs(t *testing.T) {
	fileName := writeDefinition(t, `
scripts:
  run:
    commands:
      - ["parley", "run", "{{.__1}}"]
`)

	def, err := parseFile(fileName, []string{"plan.yaml"})
	require.NoError(t, err)
	require.Len(t, def.processes, 1)
	assert.Equal(t, []string{"parley", "run", "plan.yaml"}, def.processes[0].Commands[0])
}

func TestParseFileNoScript(t *testing.T) {
	fileName := writeDefinition(t, "global:\n  folder: .\n")

	_, err := parseFile(fileName, nil)
	assert.Error(t, err)
}

func TestParseFileUnknownDependency(t *testing.T) {
	fileName := writeDefinition(t, `
scripts:
  run:
    depends_on: [no-such-script]
    commands:
      - ["true"]
`)

	_, err := parseFile(fileName, nil)
	assert.Error(t, err)
}

func TestParseFileDependencyCycle(t *testing.T) {
	fileName := writeDefinition(t, `
scripts:
  first:
    depends_on: [second]
    commands:
      - ["true"]
  second:
    depends_on: [first]
    commands:
      - ["true"]
`)

	_, err := parseFile(fileName, nil)
	assert.Error(t, err)
}

func TestParseFileSelfDependency(t *testing.T) {
	fileName := writeDefinition(t, `
scripts:
  loop:
    depends_on: [loop]
    commands:
      - ["true"]
`)

	_, err := parseFile(fileName, nil)
	assert.Error(t, err)
}

func TestParseFileBadReadyRegex(t *testing.T) {
	fileName := writeDefinition(t, `
scripts:
  run:
    ready_output: "(["
    commands:
      - ["true"]
`)

	_, err := parseFile(fileName, nil)
	assert.Error(t, err)
}
