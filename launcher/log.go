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
	"github.com/sirupsen/logrus"

	"github.com/parley-ai/parley/utils"
)

// The launcher has its own logger: process output is relayed at info/warn
// level and must stay visible whatever the service log level is.
var log = logrus.New()

func configureLog(quietLevel int) {
	loggerFormatter := utils.MakeLoggerFormatter([]string{"script"})
	log.SetFormatter(&loggerFormatter)

	switch {
	case quietLevel <= 0:
		log.SetLevel(logrus.TraceLevel)
	case quietLevel == 1:
		log.SetLevel(logrus.DebugLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}
}
