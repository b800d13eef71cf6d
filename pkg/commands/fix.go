package commands

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/mmr-tortoise/xtask/pkg/git"
	"github.com/mmr-tortoise/xtask/pkg/model"
	"github.com/mmr-tortoise/xtask/pkg/target"
	"github.com/mmr-tortoise/xtask/pkg/xtask"
)

const fixPrompt = "This will run the checks with autofix mode enabled."

// FixArgs are the arguments of the fix command.
type FixArgs struct {
	target.Selection
	FeatureArgs

	// Yes skips the confirmation prompt.
	Yes bool
}

// Fix returns the fix command.
func Fix() xtask.Command {
	valid := append([]string{OpAll}, checkOperations...)
	return xtask.Command{
		Name:      "fix",
		Short:     "Apply automatic fixes for audit, format, lint and typos",
		Long:      "Apply automatic fixes. Without a sub-command every fixer runs, failures are collected and reported at the end.",
		ValidArgs: valid,
		Args:      xtask.SubcommandArgs(valid...),
		Bind: func(fs *pflag.FlagSet) xtask.Handler {
			var args FixArgs
			args.Selection.BindFlags(fs)
			args.FeatureArgs.BindFlags(fs)
			fs.BoolVarP(&args.Yes, "yes", "y", false, "Do not ask for confirmation")
			return func(ctx context.Context, rt *xtask.Runtime, pos []string) error {
				return HandleFix(ctx, rt, xtask.Subcommand(pos, OpAll), args)
			}
		},
	}
}

// HandleFix resolves the targets, asks for confirmation, then runs one fixer
// or, for OpAll, every fixer regardless of earlier failures.
func HandleFix(ctx context.Context, rt *xtask.Runtime, op string, args FixArgs) error {
	if op != OpAll && !contains(checkOperations, op) {
		return unknownOperation("fix", op)
	}
	members, err := resolveFor(rt, op, args.Selection)
	if err != nil {
		return err
	}

	if !args.Yes {
		ok, err := confirm(rt, fixPrompt)
		if err != nil {
			return err
		}
		if !ok {
			rt.Log.Info("fix cancelled")
			return nil
		}
	}

	if dirty, err := git.IsDirty(rt.Root); err != nil {
		rt.Log.Debug("could not inspect the working tree", "error", err)
	} else if dirty {
		rt.Log.Warn("the working tree has uncommitted changes, fixes will be mixed with them")
	}

	if op == OpAll {
		steps := make([]step, 0, len(checkOperations))
		for _, sub := range checkOperations {
			steps = append(steps, step{name: sub, run: func(ctx context.Context) error {
				return runFix(ctx, rt, sub, members, args)
			}})
		}
		return runBestEffort(ctx, rt, steps)
	}
	return runFix(ctx, rt, op, members, args)
}

func runFix(ctx context.Context, rt *xtask.Runtime, op string, members []target.Member, args FixArgs) error {
	switch op {
	case OpAudit:
		return runAudit(ctx, rt, true)
	case OpFormat:
		return runFormat(ctx, rt, members, true)
	case OpLint:
		return runLint(ctx, rt, members, args.FeatureArgs, true)
	default:
		return runTypos(ctx, rt, true)
	}
}

// confirm asks a yes/no question on the runtime's terminal. Without a
// terminal there is nobody to ask and the command is refused.
func confirm(rt *xtask.Runtime, prompt string) (bool, error) {
	if !rt.Interactive {
		return false, model.UsageErrorf("%s Pass --yes to run it non-interactively.", prompt)
	}

	fmt.Fprintf(rt.Stderr, "%s Continue? [y/N] ", prompt)
	line, err := bufio.NewReader(rt.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return false, nil
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
