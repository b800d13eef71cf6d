package commands

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mmr-tortoise/xtask/pkg/cargo"
	"github.com/mmr-tortoise/xtask/pkg/model"
	"github.com/mmr-tortoise/xtask/pkg/workspace"
	"github.com/mmr-tortoise/xtask/pkg/xtask"
)

// TokenEnv holds the crates.io API token used by publish.
const TokenEnv = "CRATES_IO_API_TOKEN"

// PublishArgs are the arguments of the publish command.
type PublishArgs struct {
	// Name is the crate to publish.
	Name string

	DryRunOnly bool

	// CargoToml is the manifest whose version is compared with the tag.
	// Empty uses the version reported by cargo pkgid.
	CargoToml string

	ValidateTagVersion bool

	// Tag is the git tag to validate. Empty falls back to INPUT_TAG, then
	// REF_NAME.
	Tag string
}

// Publish returns the publish command.
func Publish() xtask.Command {
	return xtask.Command{
		Name:  "publish",
		Short: "Publish a crate to crates.io unless that version is already published",
		Example: `  xtask publish demo-core --dry-run-only
  xtask publish demo-core -V --tag v0.4.0`,
		Args: cobra.ExactArgs(1),
		Bind: func(fs *pflag.FlagSet) xtask.Handler {
			var args PublishArgs
			fs.BoolVar(&args.DryRunOnly, "dry-run-only", false, "Only run cargo publish --dry-run")
			fs.StringVar(&args.CargoToml, "cargo-toml", "", "Cargo.toml whose version is validated against the tag")
			fs.BoolVarP(&args.ValidateTagVersion, "validate-tag-version", "V", false, "Fail unless the git tag matches the crate version")
			fs.StringVar(&args.Tag, "tag", "", "Git tag to validate (default: $INPUT_TAG or $REF_NAME)")
			return func(ctx context.Context, rt *xtask.Runtime, pos []string) error {
				args.Name = pos[0]
				return HandlePublish(ctx, rt, args)
			}
		},
	}
}

// HandlePublish publishes a crate when its local version is not on
// crates.io yet. A dry run always precedes the real publish.
func HandlePublish(ctx context.Context, rt *xtask.Runtime, args PublishArgs) error {
	name := strings.TrimSpace(args.Name)
	if name == "" {
		return model.UsageErrorf("publish needs a crate name")
	}

	if args.ValidateTagVersion {
		if err := ensureTagVersion(ctx, rt, name, args); err != nil {
			return err
		}
	}

	defer rt.Log.Group("Publishing crate " + name)()

	local, err := localVersion(ctx, rt, name)
	if err != nil {
		return err
	}
	rt.Log.Info("local version", "crate", name, "version", local)

	out, err := rt.Runner.Output(ctx, rt.Tool("search", name, "--limit", "1"))
	if err != nil {
		return err
	}
	if remote := cargo.ParseSearchVersion(out, name); remote == "" {
		rt.Log.Info("this is the first version to be published on crates.io", "crate", name)
	} else {
		rt.Log.Info("found remote version", "crate", name, "version", remote)
		if remote == local {
			rt.Log.Info("remote version is up to date, skipping publishing", "crate", name)
			return nil
		}
	}

	if err := rt.Runner.Run(ctx, rt.Tool("publish", "-p", name, "--dry-run")); err != nil {
		return err
	}
	if args.DryRunOnly {
		return nil
	}

	token := os.Getenv(TokenEnv)
	if token == "" {
		return model.UsageErrorf("%s must be set to publish %s", TokenEnv, name)
	}
	cmd := rt.Tool("publish", "-p", name, "--token", token)
	cmd.Redact = []string{token}
	if err := rt.Runner.Run(ctx, cmd); err != nil {
		return err
	}
	rt.Log.Success("published " + name + " " + local)
	return nil
}

func localVersion(ctx context.Context, rt *xtask.Runtime, name string) (string, error) {
	out, err := rt.Runner.Output(ctx, rt.Tool("pkgid", "-p", name))
	if err != nil {
		return "", err
	}
	version, err := cargo.ParsePkgIDVersion(out)
	if err != nil {
		return "", model.WrapCLIError(model.ExitGeneralError, "failed to read the local version of "+name, err)
	}
	return version, nil
}

// ensureTagVersion fails unless the git tag names the crate's version.
func ensureTagVersion(ctx context.Context, rt *xtask.Runtime, name string, args PublishArgs) error {
	defer rt.Log.Group("Validating Git tag vs Cargo.toml version")()

	tag, err := tagVersion(args.Tag)
	if err != nil {
		return err
	}

	var version string
	if args.CargoToml != "" {
		manifest := args.CargoToml
		if !filepath.IsAbs(manifest) {
			manifest = filepath.Join(rt.Root, manifest)
		}
		version, err = workspace.PackageVersion(manifest, rt.Root)
		if err != nil {
			return model.WrapCLIError(model.ExitUsageError, "failed to read the crate version", err)
		}
		if strings.Contains(version, "+") {
			return model.UsageErrorf("%s declares version %s, build metadata is not allowed", manifest, version)
		}
	} else if version, err = localVersion(ctx, rt, name); err != nil {
		return err
	}

	rt.Log.Info("comparing versions", "tag", tag, "cargo_toml", version)
	if tag != version {
		return model.UsageErrorf("Git tag version (%s) does not match Cargo.toml version (%s)", tag, version)
	}
	rt.Log.Info("versions match")
	return nil
}

// tagVersion returns the explicit tag, INPUT_TAG or REF_NAME, without a
// leading v.
func tagVersion(explicit string) (string, error) {
	raw := explicit
	for _, key := range []string{"INPUT_TAG", "REF_NAME"} {
		if raw != "" {
			break
		}
		raw = os.Getenv(key)
	}
	if raw == "" {
		return "", model.UsageErrorf("no Git tag provided, pass --tag or set INPUT_TAG/REF_NAME")
	}
	return stripLeadingV(raw), nil
}

func stripLeadingV(s string) string {
	if strings.HasPrefix(s, "v") || strings.HasPrefix(s, "V") {
		return s[1:]
	}
	return s
}
