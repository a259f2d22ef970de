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

package httpserver

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func ginLoggerMiddleware(c *gin.Context) {
	start := time.Now()
	c.Next()
	elapsed := time.Since(start)

	statusCode := c.Writer.Status()
	responseSize := c.Writer.Size()
	if responseSize < 0 {
		responseSize = 0
	}

	entry := log.WithFields(logrus.Fields{
		"status":    statusCode,
		"latencyMs": elapsed.Milliseconds(),
		"clientIP":  c.ClientIP(),
		"size":      responseSize,
	})

	// Log the route pattern rather than the raw path so session
	// identifiers stay out of the logs.
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	message := fmt.Sprintf("%s %s", c.Request.Method, route)

	switch {
	case statusCode >= http.StatusInternalServerError:
		entry.Error(message)
	case statusCode >= http.StatusBadRequest:
		entry.Warn(message)
	default:
		entry.Debug(message)
	}
}

func ginErrorHandlerMiddleware(c *gin.Context) {
	c.Next()

	statusCode := c.Writer.Status()
	entry := log.WithField("status", statusCode)

	for _, err := range c.Errors {
		if statusCode >= http.StatusInternalServerError {
			entry.WithField("error", err.Err).Error("request failed")
		} else if statusCode >= http.StatusBadRequest {
			entry.WithField("error", err.Err).Debug("request rejected")
		}
	}

	if len(c.Errors) > 0 && !c.Writer.Written() {
		body := gin.H{
			"message": c.Errors.Last().Error(),
		}
		if len(c.Errors) > 1 {
			body["errors"] = c.Errors
		}

		c.JSON(statusCode, body)
	}
}
