package commands

import (
	"context"

	"github.com/spf13/pflag"

	"github.com/mmr-tortoise/xtask/pkg/cargo"
	"github.com/mmr-tortoise/xtask/pkg/model"
	"github.com/mmr-tortoise/xtask/pkg/process"
	"github.com/mmr-tortoise/xtask/pkg/xtask"
)

// Sub-operations of the coverage command.
const (
	OpCoverageGenerate = "generate"
	OpCoverageInstall  = "install"
)

// CoverageArgs are the arguments of the coverage command.
type CoverageArgs struct {
	// Profile selects the target/<profile> directory holding the
	// instrumented binaries. ProfileAll searches all of target/.
	Profile string

	// Ignore lists path globs left out of the report, on top of
	// coverage.ignore from the configuration.
	Ignore []string
}

// Coverage returns the coverage command.
func Coverage() xtask.Command {
	valid := []string{OpCoverageGenerate, OpCoverageInstall}
	return xtask.Command{
		Name:  "coverage",
		Short: "Install the coverage tooling or generate an lcov report",
		Long: `Generate an lcov report with grcov from the profiles written by an
instrumented run, for instance "xtask --enable-coverage test".`,
		ValidArgs: valid,
		Args:      xtask.SubcommandArgs(valid...),
		Bind: func(fs *pflag.FlagSet) xtask.Handler {
			var args CoverageArgs
			fs.StringVarP(&args.Profile, "profile", "p", model.ProfileDebug.String(), "Build profile: debug, release, all")
			fs.StringSliceVar(&args.Ignore, "ignore", nil, "Comma-separated path globs to leave out of the report")
			return func(ctx context.Context, rt *xtask.Runtime, pos []string) error {
				return HandleCoverage(ctx, rt, xtask.Subcommand(pos, OpCoverageGenerate), args)
			}
		},
	}
}

// HandleCoverage installs grcov and llvm-tools or generates lcov.info.
func HandleCoverage(ctx context.Context, rt *xtask.Runtime, op string, args CoverageArgs) error {
	switch op {
	case OpCoverageInstall:
		if err := rt.Step(ctx, "Install llvm-tools", external(rt, "rustup", "component", "add", "llvm-tools-preview")); err != nil {
			return err
		}
		return ensurePluginOutsideCI(ctx, rt, cargo.Plugin{Crate: "grcov"})
	case OpCoverageGenerate:
		cmd, err := grcovCommand(rt, args)
		if err != nil {
			return err
		}
		return rt.Step(ctx, "Grcov", cmd)
	default:
		return unknownOperation("coverage", op)
	}
}

func grcovCommand(rt *xtask.Runtime, args CoverageArgs) (process.Cmd, error) {
	profile := model.ProfileDebug
	if args.Profile != "" {
		p, err := model.ParseProfile(args.Profile)
		if err != nil {
			return process.Cmd{}, model.WrapCLIError(model.ExitUsageError, "invalid --profile", err)
		}
		profile = p
	}

	binaryPath := "./target/" + profile.String() + "/"
	if profile == model.ProfileAll {
		binaryPath = "./target/"
	}

	cmdArgs := []string{
		".",
		"--binary-path", binaryPath,
		"-s", ".",
		"-t", "lcov",
		"-o", "lcov.info",
		"--branch",
		"--ignore-not-existing",
	}
	ignore := append(append([]string(nil), rt.Config.Coverage.Ignore...), process.SplitList(args.Ignore)...)
	for _, glob := range ignore {
		cmdArgs = append(cmdArgs, "--ignore", glob)
	}
	return external(rt, "grcov", cmdArgs...), nil
}
