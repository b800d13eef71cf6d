// Package envfile sources dotenv files selected by the deployment
// environment.
//
// For an environment with file suffix "dev" the files are, in order:
//
//	.env
//	.env.dev
//	.env.dev.secrets
//
// Later files override earlier ones. Variables already set in the process
// environment before loading always win over file contents.
package envfile

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/mmr-tortoise/xtask/pkg/logging"
	"github.com/mmr-tortoise/xtask/pkg/model"
)

// Files returns the dotenv file names for env, in load order.
func Files(env model.Environment) []string {
	suffix := env.FileSuffix()
	return []string{
		".env",
		".env." + suffix,
		".env." + suffix + ".secrets",
	}
}

// Read parses every existing file for env in dir and returns the merged
// variables with later files taking precedence, plus the paths that were
// read. Missing files are skipped; a malformed file is a usage error.
func Read(dir string, env model.Environment, log *logging.Logger) (map[string]string, []string, error) {
	merged := make(map[string]string)
	var loaded []string

	for _, name := range Files(env) {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			log.Debug("environment file not found, skipping", "file", path)
			continue
		}

		vars, err := godotenv.Read(path)
		if err != nil {
			return nil, nil, model.WrapCLIError(model.ExitUsageError,
				"malformed environment file "+path, errors.WithStack(err))
		}
		for k, v := range vars {
			merged[k] = v
		}
		loaded = append(loaded, path)
	}

	return merged, loaded, nil
}

// Load reads the files for env and exports their variables into the
// process environment without overriding variables that were already set.
// It returns the paths that were loaded.
func Load(dir string, env model.Environment, log *logging.Logger) ([]string, error) {
	vars, loaded, err := Read(dir, env, log)
	if err != nil {
		return nil, err
	}

	for _, key := range sortedKeys(vars) {
		if _, exists := os.LookupEnv(key); exists {
			log.Debug("keeping variable from the process environment", "key", key)
			continue
		}
		if err := os.Setenv(key, vars[key]); err != nil {
			return nil, errors.Wrapf(err, "failed to export %s", key)
		}
	}

	for _, path := range loaded {
		log.Info("loaded environment file", "file", path)
	}
	return loaded, nil
}

// Merge writes the merged variables for env into out, sorted by key, so
// that tools taking a single --env-file see the same values as xtask.
func Merge(dir string, env model.Environment, out string, log *logging.Logger) error {
	vars, _, err := Read(dir, env, log)
	if err != nil {
		return err
	}
	if err := godotenv.Write(vars, out); err != nil {
		return errors.Wrapf(err, "failed to write merged environment file %s", out)
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
