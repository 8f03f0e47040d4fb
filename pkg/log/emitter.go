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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"
)

// GoogleEmitter is a wrapper that emits logs in a format compatible with
// package github.com/golang/glog.
type GoogleEmitter struct {
	*Writer
}

// pid is used for the threadid component of the header.
var pid = os.Getpid()

// Emit emits the message, google-style.
//
// Log lines have this form:
//
//	Lmmdd hh:mm:ss.uuuuuu threadid file:line] msg...
func (g GoogleEmitter) Emit(depth int, level Level, timestamp time.Time, format string, args ...any) {
	var lc byte
	switch level {
	case Debug:
		lc = 'D'
	case Info:
		lc = 'I'
	default:
		lc = 'W'
	}
	file, line := "???", 0
	if _, f, l, ok := runtime.Caller(depth + 1); ok {
		file, line = trimPath(f), l
	}
	_, month, day := timestamp.Date()
	hour, minute, second := timestamp.Clock()
	prefix := fmt.Sprintf("%c%02d%02d %02d:%02d:%02d.%06d %7d %s:%d] ",
		lc, int(month), day, hour, minute, second, timestamp.Nanosecond()/1000, pid, file, line)
	g.Writer.Write([]byte(prefix + fmt.Sprintf(format, args...)))
}

type jsonLog struct {
	Msg   string    `json:"msg"`
	Level Level     `json:"level"`
	Time  time.Time `json:"time"`
}

// MarshalJSON implements json.Marshaler.MarashalJSON.
func (l Level) MarshalJSON() ([]byte, error) {
	switch l {
	case Warning:
		return []byte(`"warning"`), nil
	case Info:
		return []byte(`"info"`), nil
	case Debug:
		return []byte(`"debug"`), nil
	default:
		return nil, fmt.Errorf("unknown level %v", l)
	}
}

// UnmarshalJSON implements json.Unmarshaler.UnmarshalJSON. It can unmarshal
// from both string names and integers.
func (l *Level) UnmarshalJSON(b []byte) error {
	switch s := string(b); s {
	case "0", `"warning"`:
		*l = Warning
	case "1", `"info"`:
		*l = Info
	case "2", `"debug"`:
		*l = Debug
	default:
		return fmt.Errorf("unknown level %q", s)
	}
	return nil
}

// JSONEmitter logs messages in json format.
type JSONEmitter struct {
	*Writer
}

// Emit implements Emitter.Emit.
func (e JSONEmitter) Emit(depth int, level Level, timestamp time.Time, format string, v ...any) {
	logLine := fmt.Sprintf(format, v...)
	if _, file, line, ok := runtime.Caller(depth + 1); ok {
		logLine = fmt.Sprintf("%s:%d] %s", trimPath(file), line, logLine)
	}
	b, err := json.Marshal(jsonLog{
		Msg:   logLine,
		Level: level,
		Time:  timestamp,
	})
	if err != nil {
		panic(err)
	}
	e.Writer.Write(b)
}

// NewEmitter returns an emitter writing to w in the given format: "text" or
// "json".
func NewEmitter(format string, w io.Writer) (Emitter, error) {
	switch format {
	case "text", "":
		return GoogleEmitter{&Writer{Next: w}}, nil
	case "json":
		return JSONEmitter{&Writer{Next: w}}, nil
	}
	return nil, fmt.Errorf("invalid log format %q, must be 'text' or 'json'", format)
}

func trimPath(file string) string {
	if slash := strings.LastIndexByte(file, '/'); slash >= 0 {
		return file[slash+1:]
	}
	return file
}
