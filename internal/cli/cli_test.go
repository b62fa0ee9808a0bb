package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/woxQAQ/sqlcursor/internal/config"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// run executes the root command with a quiet config that loads no add-ons
// and keeps compiled guests in memory.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	cfg := writeFile(t, dir, "config.yaml", `
log_level: error
addon_paths: [`+filepath.Join(dir, "addons")+`]
wasm:
  cache_dir: ""
`)

	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", cfg}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestResolveCommand(t *testing.T) {
	file := writeFile(t, t.TempDir(), "report.sql", "SELECT 1;\n\nSELECT a\nFROM orders o\nWHERE x")

	out, err := run(t, "resolve", file, "--line", "3", "--col", "2")
	require.NoError(t, err)

	var res struct {
		StartLine   int      `json:"startLine"`
		EndLine     int      `json:"endLine"`
		Text        string   `json:"text"`
		Identifiers []string `json:"identifiers"`
		TableRefs   []struct {
			Name  string `json:"name"`
			Alias string `json:"alias"`
		} `json:"tableRefs"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))

	assert.Equal(t, 3, res.StartLine)
	assert.Equal(t, 5, res.EndLine)
	assert.Equal(t, "SELECT a\nFROM orders o\nWHERE x", res.Text)
	assert.Contains(t, res.Identifiers, "orders")
	require.Len(t, res.TableRefs, 1)
	assert.Equal(t, "orders", res.TableRefs[0].Name)
	assert.Equal(t, "o", res.TableRefs[0].Alias)
}

func TestResolveCommandOffset(t *testing.T) {
	file := writeFile(t, t.TempDir(), "report.sql", "SELECT 1;\nSELECT 2;")

	out, err := run(t, "resolve", file, "--offset", "12")
	require.NoError(t, err)

	var res struct {
		Text string `json:"text"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "SELECT 2;", res.Text)
}

func TestResolveCommandMissingFile(t *testing.T) {
	_, err := run(t, "resolve", filepath.Join(t.TempDir(), "missing.sql"))
	assert.Error(t, err)
}

func TestCompleteCommand(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "report.sql", "SELECT * FROM ")
	snapshot := writeFile(t, dir, "catalog.yaml", `
relations:
  - schema: public
    name: orders
    columns:
      - {name: id, type: integer}
`)

	out, err := run(t, "complete", file, "--offset", "14", "--catalog", snapshot, "--items")
	require.NoError(t, err)

	var res struct {
		StartLine  int `json:"startLine"`
		Candidates []struct {
			Label    string `json:"label"`
			Category string `json:"category"`
		} `json:"candidates"`
		Items []struct {
			Label string `json:"label"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))

	assert.Equal(t, 1, res.StartLine)
	require.NotEmpty(t, res.Candidates)
	assert.Equal(t, "orders", res.Candidates[0].Label)
	assert.Equal(t, "table", res.Candidates[0].Category)
	require.Len(t, res.Items, len(res.Candidates))
}

func TestInvalidLogLevel(t *testing.T) {
	file := writeFile(t, t.TempDir(), "report.sql", "SELECT 1")

	_, err := run(t, "--log-level", "loud", "resolve", file)
	assert.ErrorContains(t, err, "invalid log level")
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "sqlcursor "+Version)
}

func TestRuntimeConfig(t *testing.T) {
	rc := runtimeConfig(config.WasmConfig{MemoryPages: 16, MaxInstances: 2, ExecutionTimeout: 3})

	assert.Equal(t, uint32(16), rc.MemoryPages)
	assert.Equal(t, 2, rc.MaxInstances)
	assert.Equal(t, "3s", rc.ExecutionTimeout.String())
}
