package model

import (
	"fmt"
	"strings"
)

// Target selects which subset of workspace members a command applies to.
//
// Workspace maps to a single workspace-wide flag of the build tool, while
// AllPackages is the concatenation of Crates and Examples.
type Target string

const (
	// TargetWorkspace runs the build tool once with --workspace.
	TargetWorkspace Target = "workspace"

	// TargetCrates enumerates every member outside the examples directory.
	TargetCrates Target = "crates"

	// TargetExamples enumerates every member under the examples directory.
	TargetExamples Target = "examples"

	// TargetAllPackages is Crates followed by Examples.
	TargetAllPackages Target = "all-packages"
)

// String returns the flag spelling of the target.
func (t Target) String() string {
	return string(t)
}

// IsValid reports whether t is one of the defined targets.
func (t Target) IsValid() bool {
	switch t {
	case TargetWorkspace, TargetCrates, TargetExamples, TargetAllPackages:
		return true
	default:
		return false
	}
}

// ParseTarget converts a flag value to a Target. Matching is case-insensitive.
func ParseTarget(s string) (Target, error) {
	t := Target(strings.ToLower(s))
	if !t.IsValid() {
		return "", fmt.Errorf("invalid target: %q (valid: workspace, crates, examples, all-packages)", s)
	}
	return t, nil
}

// ExecContext describes the execution constraints of the build, such as
// whether the standard library is available. Handlers receive it as passive
// metadata; the dispatcher never interprets it.
type ExecContext string

const (
	// ContextStd is the default: the standard library is available.
	ContextStd ExecContext = "std"

	// ContextNoStd marks constrained builds without the standard library.
	ContextNoStd ExecContext = "no-std"

	// ContextAll covers both std and no-std builds.
	ContextAll ExecContext = "all"
)

// String returns the flag spelling of the context.
func (c ExecContext) String() string {
	return string(c)
}

// IsValid reports whether c is one of the defined contexts.
func (c ExecContext) IsValid() bool {
	switch c {
	case ContextStd, ContextNoStd, ContextAll:
		return true
	default:
		return false
	}
}

// ParseExecContext converts a flag value to an ExecContext.
func ParseExecContext(s string) (ExecContext, error) {
	c := ExecContext(strings.ToLower(s))
	if !c.IsValid() {
		return "", fmt.Errorf("invalid context: %q (valid: std, no-std, all)", s)
	}
	return c, nil
}

// Profile selects the build profile whose artifacts a command inspects.
type Profile string

const (
	ProfileDebug   Profile = "debug"
	ProfileRelease Profile = "release"
	ProfileAll     Profile = "all"
)

// String returns the flag spelling of the profile.
func (p Profile) String() string {
	return string(p)
}

// IsValid reports whether p is one of the defined profiles.
func (p Profile) IsValid() bool {
	switch p {
	case ProfileDebug, ProfileRelease, ProfileAll:
		return true
	default:
		return false
	}
}

// ParseProfile converts a flag value to a Profile.
func ParseProfile(s string) (Profile, error) {
	p := Profile(strings.ToLower(s))
	if !p.IsValid() {
		return "", fmt.Errorf("invalid profile: %q (valid: debug, release, all)", s)
	}
	return p, nil
}
