package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jward/larch"
)

// outputReport writes the report to w in the requested format.
func outputReport(w io.Writer, report *larch.Report, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	formatReportText(w, report)
	return nil
}

// formatReportText renders findings as "path:line:col: [rule] message" lines
// with suggestion details indented underneath, followed by a summary.
func formatReportText(w io.Writer, report *larch.Report) {
	for _, res := range report.Results {
		if res.ParseErr != nil {
			fmt.Fprintf(w, "%s: parse error at line %d: %s\n",
				res.Path, res.ParseErr.Line, res.ParseErr.Msg)
			continue
		}
		for _, f := range res.Findings {
			suffix := ""
			if f.Suppressed {
				suffix = " (suppressed by baseline)"
			}
			fmt.Fprintf(w, "%s:%d:%d: [%s] %s%s\n",
				f.Path, f.Line, f.Col, f.Rule, f.Message, suffix)
			if len(f.Alternatives) > 0 {
				fmt.Fprintf(w, "    use one of: %s\n", strings.Join(f.Alternatives, ", "))
			}
			if f.Snippet != "" {
				fmt.Fprintf(w, "    > %s\n", f.Snippet)
			}
		}
	}

	total := report.TotalFindings()
	active := report.ActiveFindings()
	switch {
	case total == 0:
		fmt.Fprintf(w, "Checked %d file(s): no findings.\n", len(report.Results))
	case active == total:
		fmt.Fprintf(w, "Checked %d file(s): %d finding(s).\n", len(report.Results), total)
	default:
		fmt.Fprintf(w, "Checked %d file(s): %d finding(s), %d suppressed by baseline.\n",
			len(report.Results), total, total-active)
	}

	if active > 0 {
		writeGuidance(w, report)
	}
}

// writeGuidance appends remediation notes for the rules that produced
// active findings.
func writeGuidance(w io.Writer, report *larch.Report) {
	rules := map[string]bool{}
	for _, f := range report.Findings() {
		if !f.Suppressed {
			rules[f.Rule] = true
		}
	}
	if rules[larch.RuleTestLogging] {
		fmt.Fprint(w, "\nTest methods should not log at warning level: a test passes, fails,\n"+
			"or skips, and warnings blur that signal. Prefer info/debug logging,\n"+
			"assertions, or a skip.\n")
	}
	if rules[larch.RuleToolUsage] {
		fmt.Fprint(w, "\nTest methods should use tool wrappers instead of raw execute calls.\n"+
			"Wrappers give consistent error handling and install checks, e.g.:\n"+
			"    ip = node.tools[Ip]\n"+
			"    result = ip.run(\"addr show\")\n")
	}
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
