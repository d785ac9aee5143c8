package larch

import (
	"sort"

	"github.com/jward/larch/internal/policy"
	"github.com/jward/larch/internal/pysrc"
)

// FileResult holds the analysis outcome for a single file. ParseErr is set
// when the source could not be parsed; a file with a parse error has no
// findings but does not abort the batch.
type FileResult struct {
	Path     string            `json:"path"`
	Findings []policy.Finding  `json:"findings,omitempty"`
	ParseErr *pysrc.ParseError `json:"parse_error,omitempty"`
}

// Report is the outcome of a CheckFiles run. Results are sorted by path and
// each file's findings by (line, col), so identical inputs produce identical
// reports.
type Report struct {
	Results []FileResult `json:"results"`
}

// TotalFindings counts findings across all files, suppressed ones included.
func (r *Report) TotalFindings() int {
	n := 0
	for _, res := range r.Results {
		n += len(res.Findings)
	}
	return n
}

// ActiveFindings counts findings not suppressed by the baseline.
func (r *Report) ActiveFindings() int {
	n := 0
	for _, res := range r.Results {
		for _, f := range res.Findings {
			if !f.Suppressed {
				n++
			}
		}
	}
	return n
}

// ParseFailures returns the paths of files that could not be parsed.
func (r *Report) ParseFailures() []string {
	var paths []string
	for _, res := range r.Results {
		if res.ParseErr != nil {
			paths = append(paths, res.Path)
		}
	}
	return paths
}

// Findings returns every finding in report order.
func (r *Report) Findings() []policy.Finding {
	var all []policy.Finding
	for _, res := range r.Results {
		all = append(all, res.Findings...)
	}
	return all
}

func (r *Report) sort() {
	sort.Slice(r.Results, func(i, j int) bool {
		return r.Results[i].Path < r.Results[j].Path
	})
}
