/*
 * Copyright 2025 Olake By Datazip
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package safego

import (
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/datazip-inc/streamcatchup/utils/logger"
)

type RecoverHandler func(value interface{})

// GlobalRecoverHandler logs the recovered value with its stack trace
var GlobalRecoverHandler RecoverHandler = func(value interface{}) {
	logger.Errorf("recovered from panic: %v", value)
	for _, str := range strings.Split(string(debug.Stack()), "\n") {
		logger.Debug(strings.ReplaceAll(str, "\t", ""))
	}
}

var (
	startTime time.Time
)

type Execution struct {
	f              func()
	recoverHandler RecoverHandler
	done           chan struct{}
}

// Run runs a new goroutine and add panic handler
func Run(f func()) *Execution {
	exec := Execution{
		f:              f,
		recoverHandler: GlobalRecoverHandler,
		done:           make(chan struct{}),
	}
	return exec.run()
}

func (exec *Execution) run() *Execution {
	go func() {
		defer close(exec.done)
		defer func() {
			if r := recover(); r != nil {
				exec.recoverHandler(r)
			}
		}()
		exec.f()
	}()
	return exec
}

// Done is closed once the goroutine returns
func (exec *Execution) Done() <-chan struct{} {
	return exec.done
}

func Recovery(exit bool) {
	err := recover()
	if err != nil {
		logger.Error(err)
		// capture stacks trace
		for _, str := range strings.Split(string(debug.Stack()), "\n") {
			logger.Error(strings.ReplaceAll(str, "\t", ""))
		}
	}
	if exit {
		logger.Infof("Time of execution %v", time.Since(startTime).String())
		os.Exit(1)
	}
}

func init() {
	startTime = time.Now()
}
