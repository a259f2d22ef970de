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

// Package launcher starts a set of processes from a YAML launch definition,
// honoring dependency ordering and readiness output matching. It is the one
// command way to bring up the backend together with an evaluation run.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
)

var errScriptCompleted = fmt.Errorf("script completed")
var errScriptCancelled = fmt.Errorf("script cancelled")

func runProcess(ctx context.Context, def *launchDefinition, index int) error {
	proc := def.processes[index]
	logger := log.WithField("script", proc.Name)
	proc.Ready.ReadyFunc(func() {
		logger.Trace("ready")
	})

	// Wait for dependencies
	for _, dependencyIndex := range proc.Dependencies {
		def.processes[dependencyIndex].Ready.Wait()
	}
	defer proc.Ready.Disable()

	select {
	case <-ctx.Done():
		logger.Debug("cancelled")
		return errScriptCancelled
	default:
	}

	exe := executor{
		Ctx:           ctx,
		Folder:        proc.Folder,
		Environment:   proc.Environment,
		OutputEnabled: !proc.Quiet,
		OutputRegex:   proc.ReadyRegex,
		OutputMatched: proc.Ready,
	}

	for cmdIndex, cmdArgs := range proc.Commands {
		cmdDesc := fmt.Sprintf("%s:(%d/%d)", proc.Name, cmdIndex+1, len(proc.Commands))
		if err := exe.execute(cmdDesc, cmdArgs); err != nil {
			return err
		}
	}

	logger.Trace("completed")
	return errScriptCompleted
}

// launchFile starts every script of the definition, cancelling all of them
// on an OS signal.
func launchFile(fileName string, cliArgs []string) (*errgroup.Group, error) {
	rootCtx, cancelCtx := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(rootCtx)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.WithField("signal", fmt.Sprintf("%v", sig)).Debug("stopping")
		cancelCtx()
	}()

	def, err := parseFile(fileName, cliArgs)
	if err != nil {
		return nil, err
	}

	for index := range def.processes {
		procIndex := index
		group.Go(func() error {
			return runProcess(ctx, def, procIndex)
		})
	}
	return group, nil
}

// Launch only returns once every launched process has terminated.
func Launch(fileName string, cliArgs []string, quietLevel int) error {
	configureLog(quietLevel)

	group, err := launchFile(fileName, cliArgs)
	if err != nil {
		return err
	}

	err = group.Wait()
	if !errors.Is(err, errScriptCompleted) && !errors.Is(err, errScriptCancelled) {
		return err
	}
	return nil
}
