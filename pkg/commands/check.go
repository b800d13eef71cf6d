package commands

import (
	"context"

	"github.com/spf13/pflag"

	"github.com/mmr-tortoise/xtask/pkg/cargo"
	"github.com/mmr-tortoise/xtask/pkg/process"
	"github.com/mmr-tortoise/xtask/pkg/target"
	"github.com/mmr-tortoise/xtask/pkg/xtask"
)

// checkOperations are the sub-checks "check all" runs, in order.
var checkOperations = []string{OpAudit, OpFormat, OpLint, OpTypos}

// CheckArgs are the arguments of the check command.
type CheckArgs struct {
	target.Selection
	FeatureArgs

	IgnoreAudit bool
	IgnoreTypos bool
}

func (a *CheckArgs) bindFlags(fs *pflag.FlagSet) {
	a.Selection.BindFlags(fs)
	a.FeatureArgs.BindFlags(fs)
	fs.BoolVar(&a.IgnoreAudit, "ignore-audit", false, "Report audit failures as warnings")
	fs.BoolVar(&a.IgnoreTypos, "ignore-typos", false, "Report typos failures as warnings")
}

// Check returns the check command.
func Check() xtask.Command {
	valid := append([]string{OpAll}, checkOperations...)
	return xtask.Command{
		Name:      "check",
		Short:     "Run audit, format, lint and typos checks",
		Long:      "Run the repository checks. Without a sub-command every check runs in order and the first failure stops the run.",
		ValidArgs: valid,
		Args:      xtask.SubcommandArgs(valid...),
		Bind: func(fs *pflag.FlagSet) xtask.Handler {
			var args CheckArgs
			args.bindFlags(fs)
			return func(ctx context.Context, rt *xtask.Runtime, pos []string) error {
				return HandleCheck(ctx, rt, xtask.Subcommand(pos, OpAll), args)
			}
		},
	}
}

// HandleCheck runs one check, or every check in order for OpAll. The first
// failing check stops the run. Targets are resolved before any check starts.
func HandleCheck(ctx context.Context, rt *xtask.Runtime, op string, args CheckArgs) error {
	if op != OpAll && !contains(checkOperations, op) {
		return unknownOperation("check", op)
	}
	members, err := resolveFor(rt, op, args.Selection)
	if err != nil {
		return err
	}

	if op == OpAll {
		steps := make([]step, 0, len(checkOperations))
		for _, sub := range checkOperations {
			steps = append(steps, step{name: sub, run: func(ctx context.Context) error {
				return runCheck(ctx, rt, sub, members, args)
			}})
		}
		return runSequence(ctx, steps)
	}
	return runCheck(ctx, rt, op, members, args)
}

func runCheck(ctx context.Context, rt *xtask.Runtime, op string, members []target.Member, args CheckArgs) error {
	switch op {
	case OpAudit:
		return tolerate(rt, args.IgnoreAudit, "--ignore-audit", runAudit(ctx, rt, false))
	case OpFormat:
		return runFormat(ctx, rt, members, false)
	case OpLint:
		return runLint(ctx, rt, members, args.FeatureArgs, false)
	default:
		return tolerate(rt, args.IgnoreTypos, "--ignore-typos", runTypos(ctx, rt, false))
	}
}

// resolveFor validates sel and, when op touches workspace members, expands
// it. Audit and typos run on the whole tree and need no members.
func resolveFor(rt *xtask.Runtime, op string, sel target.Selection) ([]target.Member, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	if op == OpAudit || op == OpTypos {
		return nil, nil
	}
	return rt.Resolve(sel)
}

// The helpers below are shared with fix; fix selects the rewriting variant.

func runAudit(ctx context.Context, rt *xtask.Runtime, fix bool) error {
	if err := ensurePlugin(ctx, rt, cargo.Plugin{Crate: "cargo-audit", Features: []string{"fix"}}); err != nil {
		return err
	}
	args := []string{"audit", "-q", "--color", "always"}
	if fix {
		args = append(args, "fix")
	}
	return rt.Step(ctx, "Audit Rust Dependencies", rt.Tool(args...))
}

func runFormat(ctx context.Context, rt *xtask.Runtime, members []target.Member, fix bool) error {
	return rt.ForEach(ctx, "Format", members, func(m target.Member) process.Cmd {
		args := []string{"fmt"}
		if !fix {
			args = append(args, "--check")
		}
		// cargo fmt formats every member without a package flag.
		if !m.Workspace {
			args = append(args, m.PackageArgs()...)
		}
		return rt.Tool(args...)
	})
}

func runLint(ctx context.Context, rt *xtask.Runtime, members []target.Member, features FeatureArgs, fix bool) error {
	return rt.ForEach(ctx, "Lint", members, func(m target.Member) process.Cmd {
		args := []string{"clippy", "--no-deps"}
		if fix {
			args = append(args, "--fix", "--allow-dirty", "--allow-staged")
			if m.Workspace {
				args = append(args, "--allow-no-vcs")
			}
		}
		args = append(args, "--color=always")
		args = append(args, m.PackageArgs()...)
		args = append(args, features.Args()...)
		return rt.Tool(append(args, "--", "--deny", "warnings")...)
	})
}

func runTypos(ctx context.Context, rt *xtask.Runtime, fix bool) error {
	if err := ensurePluginOutsideCI(ctx, rt, cargo.Plugin{Crate: "typos-cli"}); err != nil {
		return err
	}
	var args []string
	if fix {
		args = []string{"--write-changes", "--color", "always"}
	}
	return rt.Step(ctx, "Typos", external(rt, "typos", args...))
}
