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
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"
)

type testWriter struct {
	lines []string
	fail  bool
}

func (w *testWriter) Write(bytes []byte) (int, error) {
	if w.fail {
		return 0, fmt.Errorf("simulated failure")
	}
	w.lines = append(w.lines, string(bytes))
	return len(bytes), nil
}

func TestDropMessages(t *testing.T) {
	tw := &testWriter{}
	w := Writer{Next: tw}
	if _, err := w.Write([]byte("line 1\n")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}

	tw.fail = true
	if _, err := w.Write([]byte("error\n")); err == nil {
		t.Fatalf("Write should have failed")
	}
	if _, err := w.Write([]byte("error\n")); err == nil {
		t.Fatalf("Write should have failed")
	}

	tw.fail = false
	if _, err := w.Write([]byte("line 2\n")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}

	expected := []string{
		"line 1\n",
		"line 2\n",
		"\n*** Dropped 2 log messages ***\n",
	}
	if len(tw.lines) != len(expected) {
		t.Fatalf("Writer should have logged %d lines, got: %q, expected: %q", len(expected), tw.lines, expected)
	}
	for i, l := range tw.lines {
		if l != expected[i] {
			t.Errorf("line %d doesn't match, got: %q, expected: %q", i, l, expected[i])
		}
	}
}

func TestLevelMarshal(t *testing.T) {
	for _, lv := range []Level{Warning, Info, Debug} {
		bs, err := lv.MarshalJSON()
		if err != nil {
			t.Errorf("error marshaling %v: %v", lv, err)
		}
		var lv2 Level
		if err := lv2.UnmarshalJSON(bs); err != nil {
			t.Errorf("error unmarshaling %v: %v", bs, err)
		}
		if lv != lv2 {
			t.Errorf("marshal/unmarshal level got %v wanted %v", lv2, lv)
		}
	}
}

func TestParseLevel(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Level
	}{
		{"debug", Debug},
		{"INFO", Info},
		{"", Info},
		{"warn", Warning},
	} {
		got, err := ParseLevel(tc.in)
		if err != nil {
			t.Errorf("ParseLevel(%q) failed: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Errorf("ParseLevel(loud) succeeded, want error")
	}
}

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := &BasicLogger{Level: Info, Emitter: GoogleEmitter{&Writer{Next: &buf}}}
	l.Debugf("hidden %d", 1)
	l.Infof("shown %d", 2)
	l.Warningf("shown %d", 3)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug message emitted at Info level: %q", out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), out)
	}
	if lines[0][0] != 'I' || lines[1][0] != 'W' {
		t.Errorf("unexpected level characters in %q", lines)
	}
	if !strings.Contains(lines[0], "log_test.go:") {
		t.Errorf("caller not attributed to test file: %q", lines[0])
	}
}

func TestJSONEmitter(t *testing.T) {
	var buf bytes.Buffer
	e := JSONEmitter{&Writer{Next: &buf}}
	e.Emit(0, Warning, time.Unix(0, 0).UTC(), "queue %d stalled", 7)

	var got jsonLog
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &got); err != nil {
		t.Fatalf("json.Unmarshal(%q) failed: %v", buf.String(), err)
	}
	if got.Level != Warning {
		t.Errorf("Level = %v, want %v", got.Level, Warning)
	}
	if !strings.HasSuffix(got.Msg, "queue 7 stalled") {
		t.Errorf("Msg = %q, want suffix %q", got.Msg, "queue 7 stalled")
	}
}

func TestRateLimitedLogger(t *testing.T) {
	var buf bytes.Buffer
	base := &BasicLogger{Level: Info, Emitter: &Writer{Next: &buf}}
	now := time.Unix(1000, 0)
	rl := newRateLimitedLogger(base, time.Hour, func() time.Time { return now })
	for i := 0; i < 10; i++ {
		rl.Warningf("rejected %d", i)
	}
	// Filtered by level, so not counted.
	rl.Debugf("ignored")
	if got := strings.Count(buf.String(), "rejected"); got != 1 {
		t.Errorf("rate limited logger emitted %d messages, want 1: %q", got, buf.String())
	}

	now = now.Add(time.Hour)
	buf.Reset()
	rl.Infof("rejected %d", 10)
	if want := "rejected 10 (9 similar messages suppressed)"; !strings.Contains(buf.String(), want) {
		t.Errorf("rate limited logger emitted %q, want %q", buf.String(), want)
	}

	now = now.Add(time.Hour)
	buf.Reset()
	rl.Warningf("rejected %d", 11)
	if strings.Contains(buf.String(), "suppressed") {
		t.Errorf("rate limited logger emitted %q after a quiet interval", buf.String())
	}
}

func TestNewEmitter(t *testing.T) {
	for _, format := range []string{"text", "json", ""} {
		if _, err := NewEmitter(format, &bytes.Buffer{}); err != nil {
			t.Errorf("NewEmitter(%q) failed: %v", format, err)
		}
	}
	if _, err := NewEmitter("xml", &bytes.Buffer{}); err == nil {
		t.Errorf("NewEmitter(xml) succeeded, want error")
	}
}
