// Package target expands a target selector and its include/exclude lists
// into the ordered list of members a command runs against.
package target

import (
	"strings"

	"github.com/spf13/pflag"

	"github.com/mmr-tortoise/xtask/pkg/model"
	"github.com/mmr-tortoise/xtask/pkg/process"
	"github.com/mmr-tortoise/xtask/pkg/workspace"
)

// WarnIgnoredFilters is logged when --target workspace is combined with
// --exclude or --only.
const WarnIgnoredFilters = "--target workspace ignores the arguments --exclude and --only. Use --target all-packages instead."

// Member is one entry of a resolved target list. The workspace pseudo
// member stands for the whole workspace.
type Member struct {
	workspace.Member

	// Workspace marks the pseudo member of TargetWorkspace.
	Workspace bool
}

// WorkspaceMember is the single pseudo member TargetWorkspace resolves to.
var WorkspaceMember = Member{
	Member:    workspace.Member{Name: "workspace", Path: "."},
	Workspace: true,
}

// PackageArgs returns the build tool flags selecting this member.
func (m Member) PackageArgs() []string {
	if m.Workspace {
		return []string{"--workspace"}
	}
	return []string{"-p", m.Name}
}

// Label is the human readable name used in log groups.
func (m Member) Label() string {
	if m.Workspace {
		return "workspace"
	}
	return m.Name
}

// Source provides the members a Selection resolves against.
type Source interface {
	Crates() []workspace.Member
	Examples() []workspace.Member
}

// Selection is the target part of a command's arguments. Commands embed it
// by value and bind its flags with BindFlags.
type Selection struct {
	Target  model.Target
	Exclude []string
	Only    []string
}

// BindFlags registers --target, --exclude and --only on fs.
func (s *Selection) BindFlags(fs *pflag.FlagSet) {
	s.Target = model.TargetWorkspace
	fs.VarP(&targetValue{target: &s.Target}, "target", "t", "Target to run against: workspace, crates, examples, all-packages")
	fs.StringSliceVarP(&s.Exclude, "exclude", "x", nil, "Comma-separated list of members to exclude")
	fs.StringSliceVarP(&s.Only, "only", "n", nil, "Comma-separated list of members to run against, in order")
}

// Validate rejects selections combining --exclude and --only. It runs
// before anything is resolved.
func (s Selection) Validate() error {
	s = s.normalized()
	if !s.Target.IsValid() {
		return model.UsageErrorf("invalid target %q", s.Target)
	}
	if len(process.SplitList(s.Exclude)) > 0 && len(process.SplitList(s.Only)) > 0 {
		return model.NewCLIError(model.ExitUsageError, "--exclude and --only are mutually exclusive")
	}
	return nil
}

// normalized defaults an unset target to workspace.
func (s Selection) normalized() Selection {
	if s.Target == "" {
		s.Target = model.TargetWorkspace
	}
	return s
}

// IgnoresFilters reports whether filters were given that the workspace
// target will ignore.
func (s Selection) IgnoresFilters() bool {
	s = s.normalized()
	return s.Target == model.TargetWorkspace && (len(s.Exclude) > 0 || len(s.Only) > 0)
}

// Resolve expands s against src.
//
// The workspace target resolves to WorkspaceMember regardless of the
// filters and never touches src. Otherwise members are enumerated crates
// first, then examples. With --only the result is exactly the named
// members in the order given, and an unknown name is a usage error. With
// --exclude the named members are removed and the rest keep their order.
// An empty result is not an error.
func Resolve(src Source, s Selection) ([]Member, error) {
	s = s.normalized()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if s.Target == model.TargetWorkspace {
		return []Member{WorkspaceMember}, nil
	}

	candidates := enumerate(src, s.Target)

	if only := process.SplitList(s.Only); len(only) > 0 {
		byName := make(map[string]workspace.Member, len(candidates))
		for _, m := range candidates {
			byName[m.Name] = m
		}

		var unknown []string
		seen := make(map[string]bool, len(only))
		resolved := make([]Member, 0, len(only))
		for _, name := range only {
			if seen[name] {
				continue
			}
			seen[name] = true
			m, ok := byName[name]
			if !ok {
				unknown = append(unknown, name)
				continue
			}
			resolved = append(resolved, Member{Member: m})
		}
		if len(unknown) > 0 {
			return nil, model.UsageErrorf("unknown %s member(s) in --only: %s", s.Target, strings.Join(unknown, ", "))
		}
		return resolved, nil
	}

	skip := make(map[string]bool)
	for _, name := range process.SplitList(s.Exclude) {
		skip[name] = true
	}
	resolved := make([]Member, 0, len(candidates))
	for _, m := range candidates {
		if !skip[m.Name] {
			resolved = append(resolved, Member{Member: m})
		}
	}
	return resolved, nil
}

// enumerate lists the members of a non-workspace target without duplicates.
func enumerate(src Source, t model.Target) []workspace.Member {
	var groups [][]workspace.Member
	switch t {
	case model.TargetCrates:
		groups = [][]workspace.Member{src.Crates()}
	case model.TargetExamples:
		groups = [][]workspace.Member{src.Examples()}
	case model.TargetAllPackages:
		groups = [][]workspace.Member{src.Crates(), src.Examples()}
	}

	seen := make(map[string]bool)
	var out []workspace.Member
	for _, group := range groups {
		for _, m := range group {
			if seen[m.Name] {
				continue
			}
			seen[m.Name] = true
			out = append(out, m)
		}
	}
	return out
}

// targetValue adapts model.Target to pflag.Value.
type targetValue struct {
	target *model.Target
}

func (v *targetValue) String() string {
	if v.target == nil {
		return ""
	}
	return v.target.String()
}

func (v *targetValue) Set(s string) error {
	t, err := model.ParseTarget(s)
	if err != nil {
		return err
	}
	*v.target = t
	return nil
}

func (v *targetValue) Type() string {
	return "target"
}
