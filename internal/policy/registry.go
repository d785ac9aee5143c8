package policy

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

// ToolSuggestion names the wrapper to use instead of a raw execution call.
type ToolSuggestion struct {
	Class       string `yaml:"class"`
	Description string `yaml:"description"`
}

// rulesFile is the on-disk shape of a rules document.
type rulesFile struct {
	Version int `yaml:"version"`
	Logging struct {
		Methods      []string `yaml:"methods"`
		Alternatives []string `yaml:"alternatives"`
	} `yaml:"logging"`
	Execution struct {
		Methods []string                  `yaml:"methods"`
		Tools   map[string]ToolSuggestion `yaml:"tools"`
	} `yaml:"execution"`
}

// Registry holds the two violation-pattern tables. Read-only once loaded;
// coverage grows by editing the rules document, never the matcher.
type Registry struct {
	warningMethods map[string]bool
	alternatives   []string
	execMethods    map[string]bool
	tools          map[string]ToolSuggestion // key: lowercase command token
}

// Parse builds a Registry from YAML rules data.
func Parse(data []byte) (*Registry, error) {
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if len(f.Logging.Methods) == 0 && len(f.Execution.Methods) == 0 {
		return nil, fmt.Errorf("parse rules: no patterns defined")
	}
	r := &Registry{
		warningMethods: make(map[string]bool, len(f.Logging.Methods)),
		alternatives:   f.Logging.Alternatives,
		execMethods:    make(map[string]bool, len(f.Execution.Methods)),
		tools:          make(map[string]ToolSuggestion, len(f.Execution.Tools)),
	}
	for _, m := range f.Logging.Methods {
		r.warningMethods[m] = true
	}
	for _, m := range f.Execution.Methods {
		r.execMethods[m] = true
	}
	for token, tool := range f.Execution.Tools {
		r.tools[strings.ToLower(token)] = tool
	}
	return r, nil
}

// Load reads a rules document from disk.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	return Parse(data)
}

// Default returns the registry built from the embedded rules document.
func Default() *Registry {
	r, err := Parse(defaultRules)
	if err != nil {
		// The embedded document ships with the binary; failing to parse it
		// is a build defect, not a runtime condition.
		panic(fmt.Sprintf("policy: embedded rules invalid: %v", err))
	}
	return r
}

// IsWarningMethod reports whether method is an ambiguous warning-level call.
func (r *Registry) IsWarningMethod(method string) bool {
	return r.warningMethods[method]
}

// Alternatives returns the remediation suggestions for logging findings.
func (r *Registry) Alternatives() []string {
	return r.alternatives
}

// IsExecMethod reports whether method is a raw command-execution entry point.
func (r *Registry) IsExecMethod(method string) bool {
	return r.execMethods[method]
}

// ToolFor matches the leading token of command against the wrapper table.
// Matching is case-insensitive and purely lexical: the first
// whitespace-delimited token either is a table key or there is no match.
func (r *Registry) ToolFor(command string) (ToolSuggestion, bool) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ToolSuggestion{}, false
	}
	tool, ok := r.tools[strings.ToLower(fields[0])]
	return tool, ok
}

// Tools returns the wrapper table keys in sorted order, for auditing.
func (r *Registry) Tools() []string {
	keys := make([]string, 0, len(r.tools))
	for k := range r.tools {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Tool returns the suggestion for a table key.
func (r *Registry) Tool(token string) (ToolSuggestion, bool) {
	tool, ok := r.tools[strings.ToLower(token)]
	return tool, ok
}
