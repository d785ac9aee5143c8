// Package discover finds changed files for the checker. The analysis core
// never walks the filesystem or computes diffs itself; the CLI hands it a
// path list produced here — from a unified diff supplied by CI, or from git
// directly.
package discover

import (
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/jward/larch/internal/classify"
)

// FromDiff extracts changed file names from a unified diff. Deleted files
// are skipped; names are new-side, with the conventional a/ b/ prefixes
// stripped.
func FromDiff(r io.Reader) ([]string, error) {
	reader := diff.NewMultiFileDiffReader(r)
	var paths []string
	for {
		fd, err := reader.ReadFile()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse diff: %w", err)
		}
		name := stripDiffPrefix(fd.NewName)
		if name == "" || name == "/dev/null" {
			continue
		}
		paths = append(paths, name)
	}
	sort.Strings(paths)
	return paths, nil
}

func stripDiffPrefix(name string) string {
	if strings.HasPrefix(name, "a/") || strings.HasPrefix(name, "b/") {
		return name[2:]
	}
	return name
}

// FromGit lists files changed relative to baseRef using git diff.
// Deleted files are excluded; paths are repo-relative.
func FromGit(dir, baseRef string) ([]string, error) {
	cmd := exec.Command("git", "diff", "--name-only", "--diff-filter=d", baseRef)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git diff: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			paths = append(paths, line)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// FilterTests keeps Python files matching the configured test-directory
// patterns. With no patterns, every Python file passes.
func FilterTests(paths []string, testGlobs []string) []string {
	var kept []string
	for _, p := range paths {
		if !strings.HasSuffix(p, ".py") {
			continue
		}
		if len(testGlobs) > 0 && !classify.MatchAny(testGlobs, p) {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}
