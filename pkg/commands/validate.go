package commands

import (
	"context"

	"github.com/spf13/pflag"

	"github.com/mmr-tortoise/xtask/pkg/model"
	"github.com/mmr-tortoise/xtask/pkg/target"
	"github.com/mmr-tortoise/xtask/pkg/xtask"
)

// ValidateArgs are the arguments of the validate command.
type ValidateArgs struct {
	IgnoreAudit bool
	IgnoreTypos bool
}

// Validate returns the validate command.
func Validate() xtask.Command {
	return xtask.Command{
		Name:  "validate",
		Short: "Run every check then every test on the workspace, as CI does",
		Bind: func(fs *pflag.FlagSet) xtask.Handler {
			var args ValidateArgs
			fs.BoolVar(&args.IgnoreAudit, "ignore-audit", false, "Report audit failures as warnings")
			fs.BoolVar(&args.IgnoreTypos, "ignore-typos", false, "Report typos failures as warnings")
			return func(ctx context.Context, rt *xtask.Runtime, _ []string) error {
				return HandleValidate(ctx, rt, args)
			}
		},
	}
}

// HandleValidate runs check all then test all on the whole workspace and
// stops at the first failure.
func HandleValidate(ctx context.Context, rt *xtask.Runtime, args ValidateArgs) error {
	ws := target.Selection{Target: model.TargetWorkspace}

	if err := HandleCheck(ctx, rt, OpAll, CheckArgs{
		Selection:   ws,
		IgnoreAudit: args.IgnoreAudit,
		IgnoreTypos: args.IgnoreTypos,
	}); err != nil {
		return err
	}
	return HandleTest(ctx, rt, OpAll, TestArgs{Selection: ws})
}
