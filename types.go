package larch

import (
	"github.com/jward/larch/internal/baseline"
	"github.com/jward/larch/internal/classify"
	"github.com/jward/larch/internal/policy"
	"github.com/jward/larch/internal/pysrc"
)

// Public type aliases for internal types used in the Engine API. These are
// Go type aliases (=) — identical to the internal types at compile time.
// External consumers use these names; no conversion is needed.

type Finding = policy.Finding
type Registry = policy.Registry
type ToolSuggestion = policy.ToolSuggestion
type Role = classify.Role
type FunctionScope = classify.FunctionScope
type ClassifyConfig = classify.Config
type SourceUnit = pysrc.SourceUnit
type ParseError = pysrc.ParseError
type BaselineStore = baseline.Store

// Rule identifiers for the built-in checks.
const (
	RuleTestLogging = policy.RuleTestLogging
	RuleToolUsage   = policy.RuleToolUsage
)

// Scope roles.
const (
	RoleTestMethod    = classify.RoleTestMethod
	RoleLifecycleHook = classify.RoleLifecycleHook
	RolePrivateHelper = classify.RolePrivateHelper
	RoleToolImpl      = classify.RoleToolImpl
	RoleOther         = classify.RoleOther
)
