package envfile

import (
	"errors"
	"os"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gotest.tools/v3/env"
	"gotest.tools/v3/fs"

	"github.com/mmr-tortoise/xtask/pkg/logging"
	"github.com/mmr-tortoise/xtask/pkg/model"
)

// unsetAfter removes keys from the process environment when the test ends.
func unsetAfter(t *testing.T, keys ...string) {
	t.Helper()
	t.Cleanup(func() {
		for _, k := range keys {
			_ = os.Unsetenv(k)
		}
	})
}

func TestFiles(t *testing.T) {
	tests := []struct {
		name string
		env  model.Environment
		want []string
	}{
		{name: "development", env: model.DefaultEnvironment(), want: []string{".env", ".env.dev", ".env.dev.secrets"}},
		{name: "production", env: model.Environment{Name: model.EnvProduction, Index: 1}, want: []string{".env", ".env.prod", ".env.prod.secrets"}},
		{name: "indexed staging", env: model.Environment{Name: model.EnvStaging, Index: 2}, want: []string{".env", ".env.stag2", ".env.stag2.secrets"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Files(tt.env))
		})
	}
}

func TestRead_LaterFilesOverride(t *testing.T) {
	dir := fs.NewDir(t, "env",
		fs.WithFile(".env", "XTASK_TEST_SHARED=base\nXTASK_TEST_BASE_ONLY=1\n"),
		fs.WithFile(".env.dev", "XTASK_TEST_SHARED=dev\n"),
		fs.WithFile(".env.dev.secrets", "XTASK_TEST_TOKEN=\"s3cr3t\"\n"),
		fs.WithFile(".env.prod", "XTASK_TEST_SHARED=prod\n"),
	)

	vars, loaded, err := Read(dir.Path(), model.DefaultEnvironment(), logging.Discard())
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"XTASK_TEST_SHARED":    "dev",
		"XTASK_TEST_BASE_ONLY": "1",
		"XTASK_TEST_TOKEN":     "s3cr3t",
	}, vars)
	assert.Equal(t, []string{dir.Join(".env"), dir.Join(".env.dev"), dir.Join(".env.dev.secrets")}, loaded)
}

func TestRead_MissingFilesAreSkipped(t *testing.T) {
	vars, loaded, err := Read(t.TempDir(), model.DefaultEnvironment(), logging.Discard())
	require.NoError(t, err)
	assert.Empty(t, vars)
	assert.Empty(t, loaded)
}

func TestRead_MalformedFileIsUsageError(t *testing.T) {
	dir := fs.NewDir(t, "env", fs.WithFile(".env.dev", "BAD-KEY=1\n"))

	_, _, err := Read(dir.Path(), model.DefaultEnvironment(), logging.Discard())
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitUsageError, cliErr.Code)
	assert.Contains(t, cliErr.Message, ".env.dev")
}

func TestLoad_DoesNotOverrideProcessEnvironment(t *testing.T) {
	env.Patch(t, "XTASK_TEST_PRESET", "from-shell")
	unsetAfter(t, "XTASK_TEST_FRESH")

	dir := fs.NewDir(t, "env",
		fs.WithFile(".env", "XTASK_TEST_PRESET=from-file\nXTASK_TEST_FRESH=from-file\n"),
	)

	loaded, err := Load(dir.Path(), model.DefaultEnvironment(), logging.Discard())
	require.NoError(t, err)
	assert.Len(t, loaded, 1)

	assert.Equal(t, "from-shell", os.Getenv("XTASK_TEST_PRESET"))
	assert.Equal(t, "from-file", os.Getenv("XTASK_TEST_FRESH"))
}

func TestMerge(t *testing.T) {
	dir := fs.NewDir(t, "env",
		fs.WithFile(".env", "B=1\nA=base\n"),
		fs.WithFile(".env.test.secrets", "A=secret\n"),
	)
	out := dir.Join("merged.env")

	err := Merge(dir.Path(), model.Environment{Name: model.EnvTest, Index: 1}, out, logging.Discard())
	require.NoError(t, err)

	merged, err := godotenv.Read(out)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "secret", "B": "1"}, merged)
}
