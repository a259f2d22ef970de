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
	"bufio"
	"context"
	"io"
	"os/exec"
	"regexp"
	"strings"
	"sync"

	"github.com/parley-ai/parley/utils"
)

type executor struct {
	Ctx           context.Context
	Folder        string
	Environment   []string
	OutputEnabled bool
	OutputRegex   *regexp.Regexp
	OutputMatched *utils.SingleEvent
}

func (exe *executor) relayOutput(out func(args ...interface{}), src *io.PipeReader, wg *sync.WaitGroup) {
	defer wg.Done()

	scanner := bufio.NewScanner(src)
	for scanner.Scan() {
		line := scanner.Text()

		if !exe.OutputMatched.IsSet() && exe.OutputRegex.MatchString(line) {
			exe.OutputMatched.Set()
		}

		if exe.OutputEnabled {
			out(line)
		}
	}
}

func (exe *executor) execute(cmdDesc string, cmdArgs []string) error {
	logger := log.WithField("script", cmdDesc)

	if exe.OutputRegex == nil {
		exe.OutputMatched.Set()
	}

	if len(cmdArgs) == 0 || len(cmdArgs[0]) == 0 {
		logger.Trace("empty command ignored")
		return nil
	}

	command := exec.CommandContext(exe.Ctx, cmdArgs[0], cmdArgs[1:]...)
	command.Dir = exe.Folder
	command.Env = exe.Environment

	if exe.OutputEnabled || !exe.OutputMatched.IsSet() {
		errReader, errWriter := io.Pipe()
		outReader, outWriter := io.Pipe()
		command.Stderr = errWriter
		command.Stdout = outWriter

		outputWg := new(sync.WaitGroup)
		outputWg.Add(2)
		go exe.relayOutput(logger.Info, outReader, outputWg)
		go exe.relayOutput(logger.Warn, errReader, outputWg)
		defer func() {
			errWriter.Close()
			outWriter.Close()
			outputWg.Wait()
		}()
	}

	logger.WithField("command", strings.Join(cmdArgs, " ")).Trace("launching")

	if err := command.Start(); err != nil {
		logger.WithField("error", err).Debug("failed to start")
		return err
	}

	if err := command.Wait(); err != nil {
		// A "signal: ..." error is what a context cancellation or a
		// sibling's failure in the errgroup looks like.
		if strings.HasPrefix(err.Error(), "signal: ") {
			logger.Debug(err.Error())
			return errScriptCancelled
		}
		logger.WithField("error", err).Debug("failed")
		return err
	}

	logger.Trace("completed")
	return nil
}
