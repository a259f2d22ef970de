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
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"text/template"

	"github.com/dominikbraun/graph"
	"gopkg.in/yaml.v2"

	"github.com/parley-ai/parley/utils"
)

// YAML launch definition file structures
type yamlFile struct {
	Global  yamlGlobal
	Scripts map[string]yamlScript
}

type yamlGlobal struct {
	Environment yaml.MapSlice
	Folder      string
}

type yamlScript struct {
	Folder      string
	Environment yaml.MapSlice
	Quiet       bool
	ReadyOutput string   `yaml:"ready_output"`
	DependsOn   []string `yaml:"depends_on"`
	Commands    [][]string
}

// Internal representation of a launch definition (post-processed)
type launchDefinition struct {
	processes []launchProcess
}

type launchProcess struct {
	Name        string
	Folder      string
	Environment []string
	Quiet       bool
	ReadyRegex  *regexp.Regexp
	// Indices into launchDefinition.processes this process waits for
	Dependencies []int

	Commands [][]string
	Ready    *utils.SingleEvent
}

func loadYaml(fileName string) (*yamlFile, error) {
	yamlContent, err := os.ReadFile(fileName)
	if err != nil {
		return nil, err
	}

	result := &yamlFile{}
	if err := yaml.Unmarshal(yamlContent, result); err != nil {
		return nil, err
	}
	return result, nil
}

func expandString(text string, vars map[string]string) (string, error) {
	expandTemplate, err := template.New("launch").Parse(text)
	if err != nil {
		return "", err
	}

	var result bytes.Buffer
	if err := expandTemplate.Execute(&result, vars); err != nil {
		return "", err
	}
	return result.String(), nil
}

// baseVars builds the substitution dictionary from the process environment
// and the positional launch arguments ({{.__1}} to {{.__9}}).
func baseVars(cliArgs []string) map[string]string {
	vars := map[string]string{}
	for _, envEntry := range os.Environ() {
		separatorIdx := strings.IndexRune(envEntry, '=')
		vars[envEntry[:separatorIdx]] = envEntry[separatorIdx+1:]
	}

	for argNo := 1; argNo <= 9; argNo++ {
		argValue := ""
		if argNo <= len(cliArgs) {
			argValue = cliArgs[argNo-1]
		}
		vars[fmt.Sprintf("__%d", argNo)] = argValue
	}
	vars["__ALL_ARGS"] = strings.Join(cliArgs, " ")
	vars["__NB_ARGS"] = fmt.Sprintf("%d", len(cliArgs))
	return vars
}

func expandEnvironment(
	environment yaml.MapSlice,
	vars map[string]string,
	env []string,
) (map[string]string, []string, error) {
	for _, item := range environment {
		name := fmt.Sprintf("%v", item.Key)
		value := ""
		if item.Value != nil {
			value = fmt.Sprintf("%v", item.Value)
		}

		expandedValue, err := expandString(value, vars)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to expand environment variable %q: %w", name, err)
		}
		vars[name] = expandedValue
		env = append(env, fmt.Sprintf("%v=%v", name, expandedValue))
	}
	return vars, env, nil
}

func parseScript(script *yamlScript, scriptName string, globalVars map[string]string, globalEnv []string,
	basePath string) (launchProcess, error) {
	proc := launchProcess{
		Name:  scriptName,
		Quiet: script.Quiet,
		Ready: utils.MakeSingleEvent(),
	}

	if len(script.Folder) != 0 && !filepath.IsAbs(script.Folder) {
		proc.Folder = filepath.Join(basePath, script.Folder)
	} else if len(script.Folder) != 0 {
		proc.Folder = script.Folder
	} else {
		proc.Folder = basePath
	}

	scriptVars, scriptEnv, err := expandEnvironment(
		script.Environment,
		utils.CopyStrMap(globalVars),
		utils.CopyStrSlice(globalEnv),
	)
	if err != nil {
		return launchProcess{}, fmt.Errorf("script %q: %w", scriptName, err)
	}
	proc.Environment = scriptEnv

	if len(script.ReadyOutput) > 0 {
		expandedRegex, err := expandString(script.ReadyOutput, scriptVars)
		if err != nil {
			return launchProcess{}, fmt.Errorf("script %q ready_output: %w", scriptName, err)
		}
		proc.ReadyRegex, err = regexp.Compile(expandedRegex)
		if err != nil {
			return launchProcess{}, fmt.Errorf("script %q ready_output: %w", scriptName, err)
		}
	}

	proc.Commands = make([][]string, 0, len(script.Commands))
	for _, command := range script.Commands {
		expandedCommand := make([]string, 0, len(command))
		for _, arg := range command {
			expandedArg, err := expandString(arg, scriptVars)
			if err != nil {
				return launchProcess{}, fmt.Errorf("script %q command: %w", scriptName, err)
			}
			expandedCommand = append(expandedCommand, expandedArg)
		}
		proc.Commands = append(proc.Commands, expandedCommand)
	}

	return proc, nil
}

// parseDependencies checks the depends_on declarations for cycles and
// resolves them to process indices.
func parseDependencies(def *launchDefinition, file *yamlFile) error {
	nameIndex := make(map[string]int)
	for index, proc := range def.processes {
		nameIndex[proc.Name] = index
	}

	dependencyGraph := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())
	for _, proc := range def.processes {
		if err := dependencyGraph.AddVertex(proc.Name); err != nil {
			return err
		}
	}
	for index, proc := range def.processes {
		script := file.Scripts[proc.Name]
		for _, dependencyName := range script.DependsOn {
			dependencyIndex, exists := nameIndex[dependencyName]
			if !exists {
				return fmt.Errorf("unknown dependency [%s] in script [%s]", dependencyName, proc.Name)
			}
			if dependencyIndex == index {
				return fmt.Errorf("script [%s] depends on itself", proc.Name)
			}
			if err := dependencyGraph.AddEdge(dependencyName, proc.Name); err != nil {
				if errors.Is(err, graph.ErrEdgeCreatesCycle) {
					return fmt.Errorf("dependency cycle through script [%s]", proc.Name)
				}
				if !errors.Is(err, graph.ErrEdgeAlreadyExists) {
					return err
				}
			}
			def.processes[index].Dependencies = append(def.processes[index].Dependencies, dependencyIndex)
		}
	}
	return nil
}

func parseFile(fileName string, cliArgs []string) (*launchDefinition, error) {
	yamlDef, err := loadYaml(fileName)
	if err != nil {
		return nil, err
	}
	if len(yamlDef.Scripts) == 0 {
		return nil, fmt.Errorf("no script defined")
	}

	globalVars, globalEnv, err := expandEnvironment(
		yamlDef.Global.Environment,
		baseVars(cliArgs),
		os.Environ(),
	)
	if err != nil {
		return nil, err
	}

	basePath := yamlDef.Global.Folder
	if !filepath.IsAbs(basePath) {
		basePath = filepath.Join(filepath.Dir(fileName), basePath)
	}

	scriptNames := make([]string, 0, len(yamlDef.Scripts))
	for scriptName := range yamlDef.Scripts {
		if len(scriptName) == 0 {
			return nil, fmt.Errorf("empty script name")
		}
		scriptNames = append(scriptNames, scriptName)
	}
	sort.Strings(scriptNames)

	result := &launchDefinition{
		processes: make([]launchProcess, 0, len(yamlDef.Scripts)),
	}
	for _, scriptName := range scriptNames {
		script := yamlDef.Scripts[scriptName]
		proc, err := parseScript(&script, scriptName, globalVars, globalEnv, basePath)
		if err != nil {
			return nil, err
		}
		result.processes = append(result.processes, proc)
	}

	if err := parseDependencies(result, yamlDef); err != nil {
		return nil, err
	}
	return result, nil
}
