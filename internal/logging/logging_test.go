package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"WARN", slog.LevelWarn, false},
		{" error ", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSetupNonTerminalWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup(&buf, "debug")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	t.Cleanup(func() { slog.SetDefault(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))) })

	Component(logger, "gateway").Debug("client connected", "remote", "10.0.0.2:5000")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if rec["component"] != "gateway" {
		t.Errorf("component = %v, want gateway", rec["component"])
	}
	if rec["msg"] != "client connected" {
		t.Errorf("msg = %v", rec["msg"])
	}
}

func TestLevelVarIsShared(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup(&buf, "error")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	t.Cleanup(func() { slog.SetDefault(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))) })

	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info logged at error level: %q", buf.String())
	}
	Level.Set(slog.LevelInfo)
	logger.Info("shown")
	if buf.Len() == 0 {
		t.Fatal("info not logged after lowering level")
	}
}
