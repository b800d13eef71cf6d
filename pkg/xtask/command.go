package xtask

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mmr-tortoise/xtask/pkg/model"
)

// Handler runs one command. args holds the positional arguments left after
// flag parsing.
type Handler func(ctx context.Context, rt *Runtime, args []string) error

// Command is one entry of the registration table an embedding binary hands
// to Run. The base commands live in package commands; repositories add
// their own by building a Command the same way.
type Command struct {
	// Name is the subcommand name typed on the command line.
	Name string

	Short   string
	Long    string
	Example string
	Aliases []string

	// Args validates positional arguments. Nil accepts none.
	Args cobra.PositionalArgs

	// ValidArgs feeds shell completion for sub-operations such as
	// "check lint".
	ValidArgs []string

	// Passthrough keeps arguments after "--" out of Args validation and
	// hands them to the handler behind a literal "--", ready for
	// process.SplitArgs.
	Passthrough bool

	// Bind declares the command's flags on fs and returns the handler that
	// reads them. It is called once per parsed command line.
	Bind func(fs *pflag.FlagSet) Handler
}

// Registry is the ordered, immutable-after-startup set of commands.
type Registry struct {
	order    []string
	commands map[string]Command
}

// NewRegistry registers cmds in order.
func NewRegistry(cmds ...Command) (*Registry, error) {
	r := &Registry{commands: make(map[string]Command, len(cmds))}
	for _, c := range cmds {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds c. Names and aliases must be unique and non-empty.
func (r *Registry) Register(c Command) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("command name must not be empty")
	}
	if c.Bind == nil {
		return fmt.Errorf("command %q has no Bind function", c.Name)
	}
	for _, name := range append([]string{c.Name}, c.Aliases...) {
		if _, ok := r.lookup(name); ok {
			return fmt.Errorf("command %q is registered twice", name)
		}
	}
	r.order = append(r.order, c.Name)
	r.commands[c.Name] = c
	return nil
}

// Lookup finds a command by name or alias.
func (r *Registry) Lookup(name string) (Command, bool) {
	return r.lookup(name)
}

func (r *Registry) lookup(name string) (Command, bool) {
	if c, ok := r.commands[name]; ok {
		return c, true
	}
	for _, c := range r.commands {
		for _, alias := range c.Aliases {
			if alias == name {
				return c, true
			}
		}
	}
	return Command{}, false
}

// Names returns command names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Commands returns commands in registration order.
func (r *Registry) Commands() []Command {
	out := make([]Command, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.commands[name])
	}
	return out
}

// Dispatch runs the command called name with argv (flags and positional
// arguments, without the command name) against an already built runtime.
// Embedders use it to delegate to a registered command after adjusting its
// arguments.
func (r *Registry) Dispatch(ctx context.Context, rt *Runtime, name string, argv []string) error {
	c, ok := r.Lookup(name)
	if !ok {
		return model.UsageErrorf("unknown command %q", name)
	}
	cmd := c.cobraCommand(func() *Runtime { return rt })
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	cmd.SetArgs(argv)
	cmd.SetFlagErrorFunc(flagUsageError)
	return cmd.ExecuteContext(ctx)
}

// cobraCommand turns c into a cobra command whose handler receives the
// runtime returned by current at execution time.
func (c Command) cobraCommand(current func() *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:       c.use(),
		Short:     c.Short,
		Long:      c.Long,
		Example:   c.Example,
		Aliases:   c.Aliases,
		ValidArgs: c.ValidArgs,
		Args:      usageArgs(c.Args, c.Passthrough),
	}
	handler := c.Bind(cmd.Flags())
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if dash := cmd.ArgsLenAtDash(); dash >= 0 && c.Passthrough {
			args = append(append(append([]string{}, args[:dash]...), "--"), args[dash:]...)
		}
		return handler(cmd.Context(), current(), args)
	}
	return cmd
}

func (c Command) use() string {
	if len(c.ValidArgs) > 0 {
		return fmt.Sprintf("%s [%s]", c.Name, strings.Join(c.ValidArgs, "|"))
	}
	return c.Name
}

// usageArgs wraps a positional validator so its failures exit with
// ExitUsageError. With passthrough only the arguments before "--" are
// validated.
func usageArgs(validate cobra.PositionalArgs, passthrough bool) cobra.PositionalArgs {
	if validate == nil {
		validate = cobra.NoArgs
	}
	return func(cmd *cobra.Command, args []string) error {
		if dash := cmd.ArgsLenAtDash(); passthrough && dash >= 0 {
			args = args[:dash]
		}
		if err := validate(cmd, args); err != nil {
			return model.WrapCLIError(model.ExitUsageError, "invalid arguments for "+cmd.Name(), err)
		}
		return nil
	}
}

func flagUsageError(cmd *cobra.Command, err error) error {
	return model.WrapCLIError(model.ExitUsageError, "invalid flags for "+cmd.Name(), err)
}

// SubcommandArgs accepts at most one positional argument from valid.
func SubcommandArgs(valid ...string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) > 1 {
			return fmt.Errorf("accepts at most one of %s, received %d arguments", strings.Join(valid, ", "), len(args))
		}
		if len(args) == 1 && !contains(valid, args[0]) {
			return fmt.Errorf("unknown sub-command %q (valid: %s)", args[0], strings.Join(valid, ", "))
		}
		return nil
	}
}

// Subcommand returns args[0] or fallback when no positional argument was given.
func Subcommand(args []string, fallback string) string {
	if len(args) == 0 {
		return fallback
	}
	return args[0]
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
