package commands

import (
	"context"
	"sort"

	"github.com/spf13/pflag"

	"github.com/mmr-tortoise/xtask/pkg/cargo"
	"github.com/mmr-tortoise/xtask/pkg/xtask"
)

const OpNightlyChecks = "nightly-checks"

// sanitizerFlags maps each sanitizer check to its RUSTFLAGS.
var sanitizerFlags = map[string]string{
	"address-sanitizer":             "-Zsanitizer=address",
	"control-flow-integrity":        "-Zsanitizer=cfi -Clto -Ccodegen-units=1",
	"hw-address-sanitizer":          "-Zsanitizer=hwaddress -Ctarget-feature=+tagged-globals",
	"kernel-control-flow-integrity": "-Zsanitizer=kcfi",
	"leak-sanitizer":                "-Zsanitizer=leak",
	"memory-sanitizer":              "-Zsanitizer=memory -Zsanitizer-memory-track-origins",
	"mem-tag-sanitizer":             "-Zsanitizer=memtag -Ctarget-feature=+mte",
	"safe-stack":                    "-Zsanitizer=safestack",
	"shadow-call-stack":             "-Zsanitizer=shadow-call-stack",
	"thread-sanitizer":              "-Zsanitizer=thread",
}

// vulnerabilityDefaults are the checks "vulnerabilities all" runs.
var vulnerabilityDefaults = []string{
	"address-sanitizer",
	"leak-sanitizer",
	"memory-sanitizer",
	"thread-sanitizer",
	"control-flow-integrity",
	"safe-stack",
}

func vulnerabilityOperations() []string {
	ops := make([]string, 0, len(sanitizerFlags)+2)
	for name := range sanitizerFlags {
		ops = append(ops, name)
	}
	ops = append(ops, OpNightlyChecks)
	sort.Strings(ops)
	return append([]string{OpAll}, ops...)
}

// Vulnerabilities returns the vulnerabilities command.
func Vulnerabilities() xtask.Command {
	valid := vulnerabilityOperations()
	return xtask.Command{
		Name:      "vulnerabilities",
		Short:     "Run sanitizers and nightly-only checks (requires a nightly toolchain)",
		ValidArgs: valid,
		Args:      xtask.SubcommandArgs(valid...),
		Bind: func(*pflag.FlagSet) xtask.Handler {
			return func(ctx context.Context, rt *xtask.Runtime, pos []string) error {
				return HandleVulnerabilities(ctx, rt, xtask.Subcommand(pos, OpAll))
			}
		},
	}
}

// HandleVulnerabilities runs one check, or the default set for OpAll,
// stopping at the first failure.
func HandleVulnerabilities(ctx context.Context, rt *xtask.Runtime, op string) error {
	var host string
	hostTriple := func(ctx context.Context) (string, error) {
		if host != "" {
			return host, nil
		}
		h, err := cargo.HostTriple(ctx, rt.Runner)
		host = h
		return h, err
	}

	check := func(name string) step {
		return step{name: name, run: func(ctx context.Context) error {
			if name == OpNightlyChecks {
				return runNightlyChecks(ctx, rt)
			}
			triple, err := hostTriple(ctx)
			if err != nil {
				return err
			}
			return runSanitizer(ctx, rt, name, triple)
		}}
	}

	switch {
	case op == OpAll:
		steps := make([]step, 0, len(vulnerabilityDefaults))
		for _, name := range vulnerabilityDefaults {
			steps = append(steps, check(name))
		}
		return runSequence(ctx, steps)
	case op == OpNightlyChecks:
		return check(op).run(ctx)
	default:
		if _, ok := sanitizerFlags[op]; !ok {
			return unknownOperation("vulnerabilities", op)
		}
		return check(op).run(ctx)
	}
}

func runSanitizer(ctx context.Context, rt *xtask.Runtime, name, host string) error {
	cmd := rt.Tool("+nightly", "test", "--target", host, "-Zbuild-std", "--color", "always")
	env := map[string]string{}
	for k, v := range cmd.Env {
		env[k] = v
	}
	env["RUSTFLAGS"] = sanitizerFlags[name]
	env["RUSTDOCFLAGS"] = sanitizerFlags[name]
	cmd.Env = env
	return rt.Step(ctx, "Vulnerabilities: "+name, cmd)
}

func runNightlyChecks(ctx context.Context, rt *xtask.Runtime) error {
	if err := ensurePlugin(ctx, rt, cargo.Plugin{Crate: "cargo-careful"}); err != nil {
		return err
	}
	return rt.Step(ctx, "Vulnerabilities: nightly checks", rt.Tool("+nightly", "careful", "test"))
}
