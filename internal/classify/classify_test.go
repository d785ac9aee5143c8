package classify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/larch/internal/pysrc"
)

func parseFile(t *testing.T, path, src string) *pysrc.SourceUnit {
	t.Helper()
	unit, err := pysrc.Parse(context.Background(), path, []byte(src))
	require.NoError(t, err)
	t.Cleanup(unit.Close)
	require.Nil(t, unit.Err, "fixture must parse cleanly")
	return unit
}

// byQualified flattens the scope tree into a lookup by qualified name.
func byQualified(scopes []*FunctionScope) map[string]*FunctionScope {
	out := map[string]*FunctionScope{}
	var add func(s *FunctionScope)
	add = func(s *FunctionScope) {
		out[s.Qualified] = s
		for _, c := range s.Children {
			add(c)
		}
	}
	for _, s := range scopes {
		add(s)
	}
	return out
}

func TestClassifySuiteByBaseName(t *testing.T) {
	unit := parseFile(t, "repo/cases/net.py", `
class NetworkTests(TestSuite):
    def test_ping(self):
        pass

    def verify_routes(self):
        pass

    def helper(self):
        pass

    def _check(self):
        pass

    def before_case(self):
        pass
`)
	scopes := New(DefaultConfig()).FileScopes(unit)
	m := byQualified(scopes)

	assert.Equal(t, RoleTestMethod, m["NetworkTests.test_ping"].Role)
	assert.Equal(t, RoleTestMethod, m["NetworkTests.verify_routes"].Role)
	assert.Equal(t, RoleOther, m["NetworkTests.helper"].Role)
	assert.Equal(t, RolePrivateHelper, m["NetworkTests._check"].Role)
	assert.Equal(t, RoleLifecycleHook, m["NetworkTests.before_case"].Role)
}

func TestClassifyTransitiveBase(t *testing.T) {
	unit := parseFile(t, "repo/cases/net.py", `
class Base(TestSuite):
    pass

class Derived(Base):
    def test_it(self):
        pass
`)
	m := byQualified(New(DefaultConfig()).FileScopes(unit))
	assert.Equal(t, RoleTestMethod, m["Derived.test_it"].Role)
}

func TestClassifyQualifiedAndSubscriptBases(t *testing.T) {
	unit := parseFile(t, "repo/cases/net.py", `
class A(suites.TestSuite):
    def test_a(self):
        pass

class B(TestSuite[int]):
    def test_b(self):
        pass
`)
	m := byQualified(New(DefaultConfig()).FileScopes(unit))
	assert.Equal(t, RoleTestMethod, m["A.test_a"].Role)
	assert.Equal(t, RoleTestMethod, m["B.test_b"].Role)
}

func TestClassifyUnknownBaseOutsideTestDir(t *testing.T) {
	unit := parseFile(t, "repo/lib/net.py", `
class Unrelated(SomethingElse):
    def test_it(self):
        pass
`)
	m := byQualified(New(DefaultConfig()).FileScopes(unit))
	assert.Equal(t, RoleOther, m["Unrelated.test_it"].Role)
}

func TestClassifyTestDirFallback(t *testing.T) {
	// Base class not locally visible, but the file lives under testsuites/.
	unit := parseFile(t, "repo/testsuites/net.py", `
class NetworkTests(ImportedBase):
    def test_ping(self):
        pass
`)
	m := byQualified(New(DefaultConfig()).FileScopes(unit))
	assert.Equal(t, RoleTestMethod, m["NetworkTests.test_ping"].Role)
}

func TestClassifyToolPathWinsOverEverything(t *testing.T) {
	unit := parseFile(t, "repo/tools/ip.py", `
class Ip(TestSuite):
    def test_something(self):
        pass

    def before_case(self):
        pass

def _internal():
    pass
`)
	m := byQualified(New(DefaultConfig()).FileScopes(unit))
	assert.Equal(t, RoleToolImpl, m["Ip.test_something"].Role)
	assert.Equal(t, RoleToolImpl, m["Ip.before_case"].Role)
	assert.Equal(t, RoleToolImpl, m["_internal"].Role)
}

func TestClassifyUnderscoreBeforeLifecycle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LifecycleHooks = append(cfg.LifecycleHooks, "_setup")
	unit := parseFile(t, "repo/testsuites/net.py", `
class T(TestSuite):
    def _setup(self):
        pass
`)
	m := byQualified(New(cfg).FileScopes(unit))
	assert.Equal(t, RolePrivateHelper, m["T._setup"].Role)
}

func TestClassifyFreeFunctionNeverTestMethod(t *testing.T) {
	unit := parseFile(t, "repo/testsuites/net.py", `
def test_free():
    pass
`)
	m := byQualified(New(DefaultConfig()).FileScopes(unit))
	assert.Equal(t, RoleOther, m["test_free"].Role)
}

func TestClassifyNestedDefIndependent(t *testing.T) {
	unit := parseFile(t, "repo/testsuites/net.py", `
class T(TestSuite):
    def test_outer(self):
        def test_inner():
            pass
        test_inner()
`)
	m := byQualified(New(DefaultConfig()).FileScopes(unit))

	outer := m["T.test_outer"]
	require.NotNil(t, outer)
	assert.Equal(t, RoleTestMethod, outer.Role)
	require.Len(t, outer.Children, 1)

	inner := m["T.test_outer.test_inner"]
	require.NotNil(t, inner)
	assert.Equal(t, "", inner.Class)
	assert.NotEqual(t, RoleTestMethod, inner.Role)
	assert.Equal(t, 1, inner.Depth)
}

func TestClassifyDecoratorsRecordedNotUsed(t *testing.T) {
	unit := parseFile(t, "repo/lib/net.py", `
class T(SomethingElse):
    @TestCaseMetadata(description="x")
    def test_it(self):
        pass
`)
	m := byQualified(New(DefaultConfig()).FileScopes(unit))
	s := m["T.test_it"]
	require.NotNil(t, s)
	assert.Equal(t, []string{"TestCaseMetadata"}, s.Decorators)
	// The decorator alone does not make it a test method.
	assert.Equal(t, RoleOther, s.Role)
}

func TestClassifyBaseCycleTerminates(t *testing.T) {
	unit := parseFile(t, "repo/lib/net.py", `
class A(B):
    def test_a(self):
        pass

class B(A):
    pass
`)
	m := byQualified(New(DefaultConfig()).FileScopes(unit))
	assert.Equal(t, RoleOther, m["A.test_a"].Role)
}

func TestFileScopesUnparsableUnit(t *testing.T) {
	unit, err := pysrc.Parse(context.Background(), "bad.py", []byte("def broken(:\n"))
	require.NoError(t, err)
	defer unit.Close()
	require.NotNil(t, unit.Err)

	assert.Nil(t, New(DefaultConfig()).FileScopes(unit))
}

func TestMatchAny(t *testing.T) {
	tests := []struct {
		patterns []string
		path     string
		want     bool
	}{
		{[]string{"tools"}, "tools/ip.py", true},
		{[]string{"tools"}, "lisa/tools/ip.py", true},
		{[]string{"tools"}, "toolsmith/ip.py", false},
		{[]string{"testsuites"}, "repo/testsuites/net.py", true},
		{[]string{"testsuites/*.py"}, "repo/testsuites/net.py", true},
		{[]string{"testsuites/*.py"}, "repo/testsuites/sub/net.py", false},
		{[]string{}, "anything.py", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchAny(tt.patterns, tt.path),
			"patterns=%v path=%s", tt.patterns, tt.path)
	}
}
