package utils

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"
)

func TestSetOutputAndJSON(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetJSON(true)
	defer func() {
		SetOutput(os.Stdout)
		SetJSON(false)
	}()

	NewLogger("scanner").WithField("target", "10.0.0.5").Info("端口 %d 开放", 22)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("日志不是JSON: %v\n%s", err, buf.String())
	}
	if entry["msg"] != "端口 22 开放" || entry["component"] != "scanner" || entry["target"] != "10.0.0.5" {
		t.Errorf("日志字段不符: %v", entry)
	}
}
