package policy

import "sort"

// Rule identifiers for the built-in checks. Scripted rules supply their own.
const (
	RuleTestLogging = "test-logging"
	RuleToolUsage   = "tool-usage"
)

// Finding is one reported policy violation. Immutable once created; the
// report layer only sorts and formats.
type Finding struct {
	Path    string `json:"path"`
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Rule    string `json:"rule"`
	Scope   string `json:"scope"`
	Method  string `json:"method"`
	Snippet string `json:"snippet,omitempty"`
	Message string `json:"message"`

	// Tool-usage findings carry the offending command and the wrapper to
	// use instead.
	Command       string `json:"command,omitempty"`
	SuggestedTool string `json:"suggested_tool,omitempty"`

	// Logging findings carry the acceptable alternatives.
	Alternatives []string `json:"alternatives,omitempty"`

	// Suppressed marks a finding present in the recorded baseline. It is
	// reported but does not gate.
	Suppressed bool `json:"suppressed,omitempty"`
}

// SortFindings orders findings ascending by line, then column. Output must
// be stable across runs and across any file-processing order.
func SortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Line != findings[j].Line {
			return findings[i].Line < findings[j].Line
		}
		return findings[i].Col < findings[j].Col
	})
}
