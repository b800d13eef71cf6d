// Package xtask is the framework behind an xtask binary: the command
// registry, the root cobra command with its global flags, and the runtime
// each handler receives.
//
// An embedding repository builds its own binary by listing the commands it
// opts into:
//
//	func main() {
//		xtask.Run(xtask.Config{
//			Commands: append(commands.Defaults(), deployCommand()),
//		})
//	}
package xtask

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mmr-tortoise/xtask/pkg/config"
	"github.com/mmr-tortoise/xtask/pkg/envfile"
	"github.com/mmr-tortoise/xtask/pkg/git"
	"github.com/mmr-tortoise/xtask/pkg/logging"
	"github.com/mmr-tortoise/xtask/pkg/model"
	"github.com/mmr-tortoise/xtask/pkg/process"
)

// Version, Commit and Date are set at build time via ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// handlerAnnotation marks cobra commands built from a registered Command.
// Only those get a runtime; help and completion do not need one.
const handlerAnnotation = "xtask.handler"

// Config describes the binary an embedding repository builds.
type Config struct {
	// Name is the binary name shown in help output. Defaults to "xtask".
	Name  string
	Short string
	Long  string

	// Commands is the explicit, ordered list of commands to expose.
	Commands []Command

	// Runner replaces the process runner. Nil spawns real processes.
	Runner process.Runner

	// Stdin, Stdout and Stderr default to the process streams.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "xtask"
	}
	if c.Short == "" {
		c.Short = "Repository task runner for cargo workspaces"
	}
	if c.Stdin == nil {
		c.Stdin = os.Stdin
	}
	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}
	if c.Stderr == nil {
		c.Stderr = os.Stderr
	}
	return c
}

// globalFlags holds the persistent flags of the root command.
type globalFlags struct {
	context     string
	environment string
	envIndex    int
	coverage    bool
	directory   string
	configPath  string
	verbose     bool
}

// app is one parse of the command line: its flags, and the runtime built
// from them once a handler is about to run.
type app struct {
	cfg     Config
	flags   globalFlags
	rt      *Runtime
	started time.Time
}

// newRootCommand creates the root command with one subcommand per
// registered command.
func (a *app) newRootCommand(reg *Registry) *cobra.Command {
	root := &cobra.Command{
		Use:           a.cfg.Name,
		Short:         a.cfg.Short,
		Long:          a.cfg.Long,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			msg := fmt.Sprintf("unknown command %q for %q", args[0], cmd.Name())
			if suggestions := cmd.SuggestionsFor(args[0]); len(suggestions) > 0 {
				msg += fmt.Sprintf(" (did you mean %q?)", suggestions[0])
			}
			return model.NewCLIError(model.ExitUsageError, msg)
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if _, ok := cmd.Annotations[handlerAnnotation]; !ok {
				return nil
			}
			return a.setup()
		},
	}
	root.SetFlagErrorFunc(flagUsageError)

	pf := root.PersistentFlags()
	pf.StringVarP(&a.flags.context, "context", "c", model.ContextStd.String(), "Execution context: std, no-std, all")
	pf.StringVarP(&a.flags.environment, "environment", "e", string(model.EnvDevelopment), "Environment: development, staging, test, production")
	pf.IntVarP(&a.flags.envIndex, "env-index", "i", model.MinEnvIndex, "Environment index (1-255)")
	pf.BoolVar(&a.flags.coverage, "enable-coverage", false, "Instrument builds for source-based coverage")
	pf.StringVarP(&a.flags.directory, "directory", "C", "", "Repository root (default: git top-level of the current directory)")
	pf.StringVar(&a.flags.configPath, "config", "", "Path to the xtask configuration file")
	pf.BoolVarP(&a.flags.verbose, "verbose", "v", false, "Enable debug logging")

	for _, c := range reg.Commands() {
		sub := c.cobraCommand(func() *Runtime { return a.rt })
		sub.Annotations = map[string]string{handlerAnnotation: c.Name}
		root.AddCommand(sub)
	}
	return root
}

// setup builds the runtime: global flags, repository root, configuration,
// then environment files.
func (a *app) setup() error {
	log := logging.New(a.cfg.Stderr, a.flags.verbose)

	env, err := model.ParseEnvironment(a.flags.environment, a.flags.envIndex)
	if err != nil {
		return model.WrapCLIError(model.ExitUsageError, "invalid --environment", err)
	}
	execCtx, err := model.ParseExecContext(a.flags.context)
	if err != nil {
		return model.WrapCLIError(model.ExitUsageError, "invalid --context", err)
	}

	root, err := a.resolveRoot()
	if err != nil {
		return err
	}

	cfg, err := config.Discover(root, a.flags.configPath)
	if err != nil {
		return err
	}
	if cfg.Path != "" {
		log.Debug("loaded configuration", "file", cfg.Path)
	}

	if _, err := envfile.Load(cfg.EnvPath(root), env, log); err != nil {
		return err
	}

	runner := a.cfg.Runner
	if runner == nil {
		runner = &process.Exec{Stdout: a.cfg.Stdout, Stderr: a.cfg.Stderr, Log: log}
	}

	a.rt = &Runtime{
		Environment: env,
		Context:     execCtx,
		Coverage:    a.flags.coverage,
		Root:        root,
		Config:      cfg,
		Runner:      runner,
		Log:         log,
		Stdin:       a.cfg.Stdin,
		Stdout:      a.cfg.Stdout,
		Stderr:      a.cfg.Stderr,
		Interactive: isTerminal(a.cfg.Stdin),
	}
	a.started = time.Now()
	log.Debug("runtime ready", "root", root, "environment", env, "context", execCtx, "coverage", a.flags.coverage)
	return nil
}

func (a *app) resolveRoot() (string, error) {
	if a.flags.directory != "" {
		abs, err := filepath.Abs(a.flags.directory)
		if err != nil {
			return "", model.WrapCLIError(model.ExitUsageError, "invalid --directory", err)
		}
		if info, err := os.Stat(abs); err != nil || !info.IsDir() {
			return "", model.UsageErrorf("--directory %s is not a directory", abs)
		}
		return abs, nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", model.WrapCLIError(model.ExitGeneralError, "failed to determine the working directory", err)
	}
	return git.RepoRootOr(wd), nil
}

// finish runs registered cleanups and reports the elapsed time.
func (a *app) finish() {
	if a.rt == nil {
		return
	}
	a.rt.runCleanups()
	a.rt.Log.Info("Time elapsed for the current execution", "elapsed", logging.FormatDuration(time.Since(a.started)))
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
