package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	outputDir  string
}

// setupCLITestEnv writes a config file whose paths all live under a temp
// directory. baseURL points the skybox provider at a test server; empty
// leaves the packaged default in place.
func setupCLITestEnv(t *testing.T, baseURL string) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	outputDir := filepath.Join(base, "output")
	if baseURL == "" {
		baseURL = "https://skybox.invalid/api/v1"
	}

	configPath := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[paths]
output_dir = %q
history_db = %q
log_dir = %q

[runner]
provider = "skybox"
poll_interval = 1
item_delay = 0
wait_timeout = 5

[skybox]
api_key = "test-key"
base_url = %q
style_id = 9

[logging]
format = "console"
level = "error"
`, outputDir, filepath.Join(base, "history.db"), filepath.Join(base, "logs"), baseURL)

	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &cliTestEnv{baseDir: base, configPath: configPath, outputDir: outputDir}
}

func writeCatalog(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "catalog.md")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if configPath != "" {
		args = append([]string{"--config", configPath}, args...)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

const testCatalog = "# SECTION 1: Environments\n" +
	"\n" +
	"## 1.1 Ruins\n" +
	"\n" +
	"### ENV01 - Sunken Temple\n" +
	"**Style**: overgrown\n" +
	"```\n" +
	"A sunken temple wrapped in vines under green light\n" +
	"```\n" +
	"\n" +
	"### ENV02 - Broken Causeway\n" +
	"```\n" +
	"A shattered stone causeway over mist\n" +
	"```\n" +
	"\n" +
	"### ENV03 - No Prompt Yet\n" +
	"**Status**: draft\n"
