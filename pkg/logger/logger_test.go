package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		in   string
		want logrus.Level
	}{
		{in: "debug", want: logrus.DebugLevel},
		{in: "WARN", want: logrus.WarnLevel},
		{in: "loud", want: logrus.InfoLevel},
		{in: "", want: logrus.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := New(tt.in, "text").GetLevel(); got != tt.want {
				t.Fatalf("level = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := newWithOutput("info", "json", &buf)
	l.WithField("request_id", "abc").Info("Received message")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("not JSON: %v (%q)", err, buf.String())
	}
	if entry["request_id"] != "abc" || entry["msg"] != "Received message" {
		t.Fatalf("entry = %v", entry)
	}
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	l := newWithOutput("info", "text", &buf)
	l.WithField("chat_id", 42).Warn("Action denied")

	if out := buf.String(); !strings.Contains(out, "chat_id=42") || !strings.Contains(out, "Action denied") {
		t.Fatalf("output = %q", out)
	}
}
