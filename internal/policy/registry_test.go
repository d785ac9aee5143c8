package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	reg := Default()

	assert.True(t, reg.IsWarningMethod("warning"))
	assert.False(t, reg.IsWarningMethod("info"))
	assert.False(t, reg.IsWarningMethod("error"))
	assert.NotEmpty(t, reg.Alternatives())

	assert.True(t, reg.IsExecMethod("execute"))
	assert.True(t, reg.IsExecMethod("execute_async"))
	assert.False(t, reg.IsExecMethod("run"))
}

func TestToolForFirstToken(t *testing.T) {
	reg := Default()

	tool, ok := reg.ToolFor("ip addr show")
	require.True(t, ok)
	assert.Equal(t, "Ip", tool.Class)

	// Case-insensitive on the command token.
	_, ok = reg.ToolFor("IP addr show")
	assert.True(t, ok)

	// Only the first token participates.
	_, ok = reg.ToolFor("cat /etc/ip")
	assert.True(t, ok)

	_, ok = reg.ToolFor("nonexistent-command --flag")
	assert.False(t, ok)

	_, ok = reg.ToolFor("")
	assert.False(t, ok)

	_, ok = reg.ToolFor("   ")
	assert.False(t, ok)
}

func TestParseCustomRules(t *testing.T) {
	data := []byte(`
version: 1
logging:
  methods: [warning, warn]
  alternatives: ["fail(...)"]
execution:
  methods: [execute]
  tools:
    MyCmd:
      class: MyTool
      description: wraps mycmd
`)
	reg, err := Parse(data)
	require.NoError(t, err)

	assert.True(t, reg.IsWarningMethod("warn"))
	assert.False(t, reg.IsExecMethod("execute_async"))

	// Table keys normalize to lowercase.
	tool, ok := reg.ToolFor("mycmd --version")
	require.True(t, ok)
	assert.Equal(t, "MyTool", tool.Class)
}

func TestParseRejectsEmptyRules(t *testing.T) {
	_, err := Parse([]byte("version: 1\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("{not yaml"))
	assert.Error(t, err)
}

func TestLoadFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, defaultRules, 0o644))

	reg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, reg.IsExecMethod("execute"))

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestToolsSorted(t *testing.T) {
	reg := Default()
	keys := reg.Tools()
	require.NotEmpty(t, keys)
	assert.IsIncreasing(t, keys)

	tool, ok := reg.Tool(keys[0])
	assert.True(t, ok)
	assert.NotEmpty(t, tool.Class)
}
