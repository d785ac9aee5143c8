// Package larch checks Python test sources against test-quality policies
// built on tree-sitter. It parses each file, classifies every function scope
// by role (test method, lifecycle hook, private helper, tool implementation),
// and matches policy rules against test-method bodies only, so helpers and
// framework plumbing never produce noise.
//
// # Built-in rules
//
// Two rules ship embedded:
//
//   - test-logging: a log.warning(...) call inside a test method. Tests
//     should pass, fail, or skip; warnings leave the outcome ambiguous.
//   - tool-usage: a node.execute(...) or node.execute_async(...) call whose
//     first argument is a plain string literal and whose first command token
//     has a registered tool wrapper. The finding names the wrapper to use.
//
// Only plain string literals match the tool-usage rule. F-strings with
// interpolation, concatenated strings, and variables are never matched: a
// miss is cheaper than a false positive.
//
// # Usage
//
// Create an Engine and check files:
//
//	eng, err := larch.New(larch.Config{})
//	if err != nil { ... }
//
//	ctx := context.Background()
//	report, err := eng.CheckFiles(ctx, paths)
//	for _, res := range report.Results {
//	    for _, f := range res.Findings { ... }
//	}
//
// Results are deterministic: files sorted by path, findings by position,
// regardless of how many workers analyze in parallel ([WithWorkers]).
//
// # Extending
//
// The rule registry (methods, tool table, alternatives) is YAML and can be
// replaced wholesale; see [Registry]. Custom rules are Risor scripts run per
// file via [WithRuleScripts]; they see the classified scopes and call sites
// as data and emit findings through a host function. A SQLite baseline store
// ([WithBaseline]) suppresses known findings so new code can be held to the
// policy without first fixing the backlog.
package larch
