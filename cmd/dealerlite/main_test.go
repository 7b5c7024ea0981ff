package main

import (
	"bytes"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/a3tai/dealerlite/internal/config"
)

const testVersion = "1.2.3"

// captureStdout runs fn with os.Stdout redirected and returns what it wrote
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	originalStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Failed to create pipe: %v", err)
	}
	os.Stdout = w
	defer func() { os.Stdout = originalStdout }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
		w.Close()
	}()

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	<-done
	return buf.String()
}

func TestPrintVersion(t *testing.T) {
	oldVersion, oldBuildTime, oldGitCommit := version, buildTime, gitCommit
	version = testVersion
	buildTime = "2024-05-01_10:30:00"
	gitCommit = "abc123"
	defer func() {
		version, buildTime, gitCommit = oldVersion, oldBuildTime, oldGitCommit
	}()

	output := captureStdout(t, printVersion)

	expectedStrings := []string{
		"DealerLite",
		"Version: " + testVersion,
		"Build Time: 2024-05-01_10:30:00",
		"Git Commit: abc123",
		"Built with:",
	}
	for _, expected := range expectedStrings {
		if !strings.Contains(output, expected) {
			t.Errorf("printVersion() output missing expected string: %s\nActual output:\n%s", expected, output)
		}
	}
}

func TestSetupLogging(t *testing.T) {
	originalOutput := log.Writer()
	originalFlags := log.Flags()
	defer func() {
		log.SetOutput(originalOutput)
		log.SetFlags(originalFlags)
	}()

	tests := []struct {
		name      string
		mode      string
		logLevel  string
		wantFlags int
		discard   bool
	}{
		{name: "stdio quiet", mode: config.ModeStdio, logLevel: "info", wantFlags: originalFlags, discard: true},
		{name: "stdio debug", mode: config.ModeStdio, logLevel: "debug", wantFlags: originalFlags},
		{name: "server", mode: config.ModeServer, logLevel: "info", wantFlags: log.LstdFlags | log.Lshortfile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log.SetFlags(originalFlags)
			cfg := &config.Config{Mode: tt.mode, LogLevel: tt.logLevel}
			setupLogging(cfg)

			if got := log.Writer() == io.Discard; got != tt.discard {
				t.Errorf("setupLogging() discards output = %v, want %v", got, tt.discard)
			}
			if log.Flags() != tt.wantFlags {
				t.Errorf("setupLogging() flags = %d, want %d", log.Flags(), tt.wantFlags)
			}
		})
	}
}

func TestNewServer_CreatesTemplates(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.TemplateDirectory = filepath.Join(dir, "forms")
	cfg.OutputDirectory = filepath.Join(dir, "out")

	server, err := newServer(cfg)
	if err != nil {
		t.Fatalf("newServer() error = %v", err)
	}
	if server == nil {
		t.Fatal("newServer() returned nil server")
	}

	for _, name := range []string{"test_drive_waiver_template.pdf", "bill_of_sale_template.pdf"} {
		if _, err := os.Stat(filepath.Join(cfg.TemplateDirectory, name)); err != nil {
			t.Errorf("newServer() should have created %s: %v", name, err)
		}
	}
}

func TestNewServer_InvalidPayloadLimit(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.TemplateDirectory = filepath.Join(dir, "forms")
	cfg.OutputDirectory = filepath.Join(dir, "out")
	cfg.MaxPayloadSize = 0

	if _, err := newServer(cfg); err == nil {
		t.Error("newServer() expected error for zero payload limit")
	}
}
