package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// executeCmd runs the root command with args and returns captured stdout.
func executeCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pingzy.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestRunValidate_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
urls:
  - https://example.com
  - https://api.example.com/health
interval: 2
api:
  addr: ":8080"
  public_keys: [pub]
`)
	output, err := executeCmd(t, "validate", "-c", path)
	if err != nil {
		t.Fatalf("validate command error = %v", err)
	}

	for _, phrase := range []string{
		"Config is valid!",
		"URLs:     2",
		"Interval: 2m0s",
		"warning: slack.url is empty",
		"warning: no admin keys",
	} {
		if !strings.Contains(output, phrase) {
			t.Errorf("output missing %q\nGot: %s", phrase, output)
		}
	}
	if strings.Contains(output, "read routes are open") {
		t.Errorf("unexpected open-routes warning\nGot: %s", output)
	}
}

func TestRunValidate_InvalidConfig(t *testing.T) {
	path := writeConfig(t, "interval: 0\n")

	_, err := executeCmd(t, "validate", "-c", path)
	if err == nil {
		t.Fatal("validate command expected error for invalid config, got nil")
	}
	for _, want := range []string{"at least one url is required", "interval"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %q, got: %v", want, err)
		}
	}
}

func TestRunValidate_MissingFile(t *testing.T) {
	_, err := executeCmd(t, "validate", "-c", "/nonexistent/path/pingzy.yaml")
	if err == nil {
		t.Fatal("validate command expected error for missing file, got nil")
	}
	if !strings.Contains(err.Error(), "read config file") {
		t.Errorf("error should mention 'read config file', got: %v", err)
	}
}

func TestVersion(t *testing.T) {
	output, err := executeCmd(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(output, "pingzy dev\n") {
		t.Errorf("unexpected version output: %q", output)
	}
}
