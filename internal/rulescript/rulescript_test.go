package rulescript

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/larch/internal/classify"
	"github.com/jward/larch/internal/pysrc"
)

const sleepRule = `
for _, scope := range scopes {
    if scope["role"] != "test_method" {
        continue
    }
    for _, c := range scope["calls"] {
        if c["method"] == "sleep" {
            emit({
                "message": "sleep in test method " + scope["qualified"],
                "line": c["line"],
                "col": c["col"],
                "scope": scope["qualified"],
                "method": c["method"],
            })
        }
    }
}
`

func writeScript(t *testing.T, dir, name, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
}

func analyzed(t *testing.T, path, src string) (*pysrc.SourceUnit, []*classify.FunctionScope) {
	t.Helper()
	unit, err := pysrc.Parse(context.Background(), path, []byte(src))
	require.NoError(t, err)
	t.Cleanup(unit.Close)
	require.Nil(t, unit.Err)
	return unit, classify.New(classify.DefaultConfig()).FileScopes(unit)
}

func TestRunEmitsFindings(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "no-sleep.risor", sleepRule)

	unit, scopes := analyzed(t, "testsuites/net.py", `
class T(TestSuite):
    def test_it(self, node):
        time.sleep(30)
        node.execute("uname -r")

    def _helper(self):
        time.sleep(1)
`)

	findings, err := NewRunner(dir).Run(context.Background(), unit, scopes)
	require.NoError(t, err)
	require.Len(t, findings, 1, "helper scope is exempt")

	f := findings[0]
	assert.Equal(t, "no-sleep", f.Rule)
	assert.Equal(t, "testsuites/net.py", f.Path)
	assert.Equal(t, "T.test_it", f.Scope)
	assert.Equal(t, "sleep", f.Method)
	assert.Equal(t, 4, f.Line)
	assert.Contains(t, f.Message, "T.test_it")
}

func TestRunNoScripts(t *testing.T) {
	unit, scopes := analyzed(t, "testsuites/net.py", `
class T(TestSuite):
    def test_it(self):
        pass
`)
	findings, err := NewRunner(t.TempDir()).Run(context.Background(), unit, scopes)
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestRunScriptErrorSkipsScriptOnly(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "a-broken.risor", `undefined_function()`)
	writeScript(t, dir, "b-sleep.risor", sleepRule)

	unit, scopes := analyzed(t, "testsuites/net.py", `
class T(TestSuite):
    def test_it(self):
        time.sleep(5)
`)

	findings, err := NewRunner(dir).Run(context.Background(), unit, scopes)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "b-sleep", findings[0].Rule)
}

func TestRunEmitValidation(t *testing.T) {
	dir := t.TempDir()
	// Missing message is a script error; the run itself still succeeds.
	writeScript(t, dir, "bad-emit.risor", `emit({"line": 1})`)

	unit, scopes := analyzed(t, "testsuites/net.py", `
class T(TestSuite):
    def test_it(self):
        pass
`)
	findings, err := NewRunner(dir).Run(context.Background(), unit, scopes)
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestRuleOverrideInEmit(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "anything.risor", `emit({"message": "m", "rule": "custom-rule"})`)

	unit, scopes := analyzed(t, "testsuites/net.py", `
class T(TestSuite):
    def test_it(self):
        pass
`)
	findings, err := NewRunner(dir).Run(context.Background(), unit, scopes)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "custom-rule", findings[0].Rule)
}

func TestScriptsSortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "b.risor", "")
	writeScript(t, dir, "a.risor", "")
	writeScript(t, dir, "notes.txt", "ignored")

	paths, err := NewRunner(dir).Scripts()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.risor", "b.risor"}, paths)
}

func TestRunnerFromFS(t *testing.T) {
	fsys := os.DirFS(func() string {
		dir := t.TempDir()
		writeScript(t, dir, "no-sleep.risor", sleepRule)
		return dir
	}())

	unit, scopes := analyzed(t, "testsuites/net.py", `
class T(TestSuite):
    def test_it(self):
        time.sleep(2)
`)
	findings, err := NewRunner("", WithFS(fsys)).Run(context.Background(), unit, scopes)
	require.NoError(t, err)
	require.Len(t, findings, 1)
}
