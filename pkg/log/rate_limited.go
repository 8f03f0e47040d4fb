// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// rateLimitedLogger passes at most one message per interval to logger. The
// number of messages dropped since the last one passed is appended to the
// next message that is let through, so a burst of retries is still visible
// as a count.
type rateLimitedLogger struct {
	logger Logger
	limit  *rate.Limiter
	now    func() time.Time

	mu      sync.Mutex
	dropped int
}

// allow reports whether a message may be emitted now and, if so, returns the
// suffix to append to it.
func (rl *rateLimitedLogger) allow() (string, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if !rl.limit.AllowN(rl.now(), 1) {
		rl.dropped++
		return "", false
	}
	n := rl.dropped
	rl.dropped = 0
	switch n {
	case 0:
		return "", true
	case 1:
		return " (1 similar message suppressed)", true
	default:
		return " (" + strconv.Itoa(n) + " similar messages suppressed)", true
	}
}

func (rl *rateLimitedLogger) Debugf(format string, v ...any) {
	if !rl.logger.IsLogging(Debug) {
		return
	}
	if suffix, ok := rl.allow(); ok {
		rl.logger.Debugf(format+suffix, v...)
	}
}

func (rl *rateLimitedLogger) Infof(format string, v ...any) {
	if !rl.logger.IsLogging(Info) {
		return
	}
	if suffix, ok := rl.allow(); ok {
		rl.logger.Infof(format+suffix, v...)
	}
}

func (rl *rateLimitedLogger) Warningf(format string, v ...any) {
	if suffix, ok := rl.allow(); ok {
		rl.logger.Warningf(format+suffix, v...)
	}
}

func (rl *rateLimitedLogger) IsLogging(level Level) bool {
	return rl.logger.IsLogging(level)
}

// BasicRateLimitedLogger returns a Logger that logs to the global logger no
// more than once per every.
func BasicRateLimitedLogger(every time.Duration) Logger {
	return RateLimitedLogger(Log(), every)
}

// RateLimitedLogger returns a Logger that logs to logger no more than once per
// every.
func RateLimitedLogger(logger Logger, every time.Duration) Logger {
	return newRateLimitedLogger(logger, every, time.Now)
}

func newRateLimitedLogger(logger Logger, every time.Duration, now func() time.Time) *rateLimitedLogger {
	return &rateLimitedLogger{
		logger: logger,
		limit:  rate.NewLimiter(rate.Every(every), 1),
		now:    now,
	}
}
