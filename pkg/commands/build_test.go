package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/xtask/pkg/model"
	"github.com/mmr-tortoise/xtask/pkg/process"
	"github.com/mmr-tortoise/xtask/pkg/process/processtest"
	"github.com/mmr-tortoise/xtask/pkg/target"
)

func TestHandleBuild(t *testing.T) {
	root := newWorkspace(t)

	tests := []struct {
		name    string
		args    BuildArgs
		want    []string
		wantErr model.ExitCode
	}{
		{
			name: "workspace",
			args: BuildArgs{},
			want: []string{"cargo build --workspace --color always"},
		},
		{
			name: "workspace ignores filters",
			args: BuildArgs{Selection: target.Selection{Target: model.TargetWorkspace, Only: []string{"zzz"}}},
			want: []string{"cargo build --workspace --color always"},
		},
		{
			name: "crates with exclude",
			args: BuildArgs{Selection: target.Selection{Target: model.TargetCrates, Exclude: []string{"b"}}, Release: true},
			want: []string{
				"cargo build -p a --color always --release",
				"cargo build -p c --color always --release",
			},
		},
		{
			name: "only keeps the given order",
			args: BuildArgs{Selection: target.Selection{Target: model.TargetAllPackages, Only: []string{"c", "a"}}},
			want: []string{
				"cargo build -p c --color always",
				"cargo build -p a --color always",
			},
		},
		{
			name: "no examples is nothing to do",
			args: BuildArgs{Selection: target.Selection{Target: model.TargetExamples}},
		},
		{
			name:    "unknown only name",
			args:    BuildArgs{Selection: target.Selection{Target: model.TargetCrates, Only: []string{"a", "zzz"}}},
			wantErr: model.ExitUsageError,
		},
		{
			name:    "exclude and only",
			args:    BuildArgs{Selection: target.Selection{Target: model.TargetCrates, Exclude: []string{"a"}, Only: []string{"b"}}},
			wantErr: model.ExitUsageError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := processtest.NewRecorder()
			rt := newRuntime(t, root, rec)

			err := HandleBuild(context.Background(), rt, tt.args)
			if tt.wantErr != 0 {
				assert.Equal(t, tt.wantErr, process.ExitCodeOf(err))
				assert.Empty(t, rec.Lines(), "usage errors are reported before any process starts")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.Lines())
		})
	}
}

func TestHandleBuild_StopsAtFirstFailure(t *testing.T) {
	rec := processtest.NewRecorder().Fail("cargo build -p a", exitFailure("cargo build -p a --color always", 101))
	rt := newRuntime(t, newWorkspace(t), rec)

	err := HandleBuild(context.Background(), rt, BuildArgs{Selection: target.Selection{Target: model.TargetCrates}})
	assert.Equal(t, model.ExitCode(101), process.ExitCodeOf(err))
	assert.Equal(t, []string{"cargo build -p a --color always"}, rec.Lines())
}

func TestHandleBuild_Contexts(t *testing.T) {
	tests := []struct {
		name        string
		context     model.ExecContext
		noStdTarget string
		want        []string
	}{
		{name: "std", context: model.ContextStd, noStdTarget: "thumbv7em-none-eabihf", want: []string{
			"cargo build --workspace --color always",
		}},
		{name: "no-std", context: model.ContextNoStd, noStdTarget: "thumbv7em-none-eabihf", want: []string{
			"cargo build --workspace --color always --target thumbv7em-none-eabihf",
		}},
		{name: "no-std without a configured target", context: model.ContextNoStd, want: []string{
			"cargo build --workspace --color always",
		}},
		{name: "all", context: model.ContextAll, noStdTarget: "thumbv7em-none-eabihf", want: []string{
			"cargo build --workspace --color always",
			"cargo build --workspace --color always --target thumbv7em-none-eabihf",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := processtest.NewRecorder()
			rt := newRuntime(t, "", rec)
			rt.Context = tt.context
			rt.Config.NoStdTarget = tt.noStdTarget

			require.NoError(t, HandleBuild(context.Background(), rt, BuildArgs{}))
			assert.Equal(t, tt.want, rec.Lines())
		})
	}
}

func TestHandleBuild_Coverage(t *testing.T) {
	rec := processtest.NewRecorder()
	rt := newRuntime(t, "", rec)
	rt.Coverage = true

	require.NoError(t, HandleBuild(context.Background(), rt, BuildArgs{}))
	require.Len(t, rec.Commands(), 1)
	assert.Contains(t, rec.Commands()[0].Env["RUSTFLAGS"], "-Cinstrument-coverage")
	assert.Equal(t, rt.Root, rec.Commands()[0].Dir)
}

func TestHandleCompile(t *testing.T) {
	rec := processtest.NewRecorder()
	rt := newRuntime(t, newWorkspace(t), rec)

	err := HandleCompile(context.Background(), rt, CompileArgs{Selection: target.Selection{Target: model.TargetCrates, Only: []string{"b"}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"cargo check -p b --color always"}, rec.Lines())
}

func TestHandleClean(t *testing.T) {
	root := newWorkspace(t)

	tests := []struct {
		name     string
		args     CleanArgs
		want     []string
		wantCode model.ExitCode
	}{
		{
			name: "workspace",
			want: []string{"cargo clean --color always"},
		},
		{
			name: "crates with exclude",
			args: CleanArgs{Selection: target.Selection{Target: model.TargetCrates, Exclude: []string{"b"}}},
			want: []string{"cargo clean -p a --color always", "cargo clean -p c --color always"},
		},
		{
			name: "all packages without examples",
			args: CleanArgs{Selection: target.Selection{Target: model.TargetAllPackages, Only: []string{"c"}}},
			want: []string{"cargo clean -p c --color always"},
		},
		{
			name:     "unknown only name",
			args:     CleanArgs{Selection: target.Selection{Target: model.TargetCrates, Only: []string{"z"}}},
			wantCode: model.ExitUsageError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := processtest.NewRecorder()
			rt := newRuntime(t, root, rec)

			err := HandleClean(context.Background(), rt, tt.args)
			assert.Equal(t, tt.wantCode, process.ExitCodeOf(err))
			if len(tt.want) == 0 {
				assert.Empty(t, rec.Lines())
			} else {
				assert.Equal(t, tt.want, rec.Lines())
			}
		})
	}
}
