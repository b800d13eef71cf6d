package commands

import (
	"context"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/mmr-tortoise/xtask/pkg/model"
	"github.com/mmr-tortoise/xtask/pkg/process"
	"github.com/mmr-tortoise/xtask/pkg/target"
	"github.com/mmr-tortoise/xtask/pkg/xtask"
)

// testOperations are the suites "test all" runs, in order.
var testOperations = []string{OpUnit, OpIntegration}

// TestArgs are the arguments of the test command.
type TestArgs struct {
	target.Selection
	FeatureArgs

	// Test names the integration test target. Empty runs every target.
	Test string

	// Jobs limits parallel compilation jobs. Zero leaves cargo's default.
	Jobs int

	// Threads limits test harness threads. Zero leaves the default.
	Threads int

	Release   bool
	NoCapture bool

	// Force allows running tests against the production environment.
	Force bool

	// HarnessArgs are forwarded to the test binaries after the built-in
	// harness options, e.g. --ignored.
	HarnessArgs []string
}

// Test returns the test command.
func Test() xtask.Command {
	valid := append([]string{OpAll}, testOperations...)
	return xtask.Command{
		Name:  "test",
		Short: "Run unit and integration tests",
		Example: `  xtask test unit --target crates --only demo-core
  xtask -e test test integration --test api --nocapture
  xtask test unit -- --ignored`,
		ValidArgs:   valid,
		Args:        xtask.SubcommandArgs(valid...),
		Passthrough: true,
		Bind: func(fs *pflag.FlagSet) xtask.Handler {
			var args TestArgs
			args.Selection.BindFlags(fs)
			args.FeatureArgs.BindFlags(fs)
			fs.StringVar(&args.Test, "test", "", "Integration test target to run (default: all)")
			fs.IntVar(&args.Jobs, "compilation-jobs", 0, "Number of parallel compilation jobs")
			fs.IntVar(&args.Threads, "test-threads", 0, "Number of test harness threads")
			fs.BoolVar(&args.Release, "release", false, "Test with the release profile")
			fs.BoolVar(&args.NoCapture, "nocapture", false, "Show the output of passing tests")
			fs.BoolVarP(&args.Force, "force", "f", false, "Allow running tests against production")
			return func(ctx context.Context, rt *xtask.Runtime, pos []string) error {
				pos, args.HarnessArgs = process.SplitArgs(pos)
				return HandleTest(ctx, rt, xtask.Subcommand(pos, OpAll), args)
			}
		},
	}
}

// HandleTest runs one test suite, or both for OpAll, stopping at the first
// failure.
func HandleTest(ctx context.Context, rt *xtask.Runtime, op string, args TestArgs) error {
	if op != OpAll && !contains(testOperations, op) {
		return unknownOperation("test", op)
	}
	if err := args.Validate(); err != nil {
		return err
	}
	if rt.Environment.IsProduction() && !args.Force {
		return model.UsageErrorf("refusing to run tests against the %s environment, pass --force to run them anyway", rt.Environment)
	}
	members, err := rt.Resolve(args.Selection)
	if err != nil {
		return err
	}

	switch op {
	case OpAll:
		return runSequence(ctx, []step{
			{name: OpUnit, run: func(ctx context.Context) error { return runUnitTests(ctx, rt, members, args) }},
			{name: OpIntegration, run: func(ctx context.Context) error { return runIntegrationTests(ctx, rt, members, args) }},
		})
	case OpUnit:
		return runUnitTests(ctx, rt, members, args)
	default:
		return runIntegrationTests(ctx, rt, members, args)
	}
}

func runUnitTests(ctx context.Context, rt *xtask.Runtime, members []target.Member, args TestArgs) error {
	return rt.ForEach(ctx, "Unit Tests", members, func(m target.Member) process.Cmd {
		cmdArgs := append([]string{"test"}, m.PackageArgs()...)
		cmdArgs = append(cmdArgs, "--lib", "--bins", "--examples", "--color", "always")
		cmd := rt.Tool(append(cmdArgs, args.optional()...)...)
		cmd.Tolerate = []process.Tolerance{{
			Pattern: "no library targets found",
			Warning: "No library found to test for in " + m.Label() + ".",
		}}
		return cmd
	})
}

func runIntegrationTests(ctx context.Context, rt *xtask.Runtime, members []target.Member, args TestArgs) error {
	name := args.Test
	if name == "" {
		name = "*"
	}
	return rt.ForEach(ctx, "Integration Tests", members, func(m target.Member) process.Cmd {
		cmdArgs := append([]string{"test"}, m.PackageArgs()...)
		cmdArgs = append(cmdArgs, "--test", name, "--color", "always")
		cmd := rt.Tool(append(cmdArgs, args.optional()...)...)
		cmd.Tolerate = []process.Tolerance{{
			Pattern: "no test target matches pattern",
			Warning: "No integration tests matching " + name + " in " + m.Label() + ".",
		}}
		return cmd
	})
}

// optional returns the cargo options followed by the test harness options.
func (a TestArgs) optional() []string {
	args := a.FeatureArgs.Args()
	if a.Release {
		args = append(args, "--release")
	}
	if a.Jobs > 0 {
		args = append(args, "--jobs", strconv.Itoa(a.Jobs))
	}

	args = append(args, "--", "--color=always")
	if a.Threads > 0 {
		args = append(args, "--test-threads", strconv.Itoa(a.Threads))
	}
	if a.NoCapture {
		args = append(args, "--nocapture")
	}
	return append(args, a.HarnessArgs...)
}
