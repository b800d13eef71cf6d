package model

import (
	"fmt"
	"strconv"
	"strings"
)

// EnvironmentName is a named deployment profile. It only selects which
// environment files are sourced; command logic treats it as opaque, with the
// single exception of test refusing to run against production unless forced.
type EnvironmentName string

const (
	EnvDevelopment EnvironmentName = "development"
	EnvStaging     EnvironmentName = "staging"
	EnvTest        EnvironmentName = "test"
	EnvProduction  EnvironmentName = "production"
)

// MinEnvIndex and MaxEnvIndex bound the environment index flag.
const (
	MinEnvIndex = 1
	MaxEnvIndex = 255
)

// envAliases maps every accepted spelling to its canonical name.
var envAliases = map[string]EnvironmentName{
	"development": EnvDevelopment,
	"dev":         EnvDevelopment,
	"d":           EnvDevelopment,
	"staging":     EnvStaging,
	"stag":        EnvStaging,
	"s":           EnvStaging,
	"test":        EnvTest,
	"t":           EnvTest,
	"production":  EnvProduction,
	"prod":        EnvProduction,
	"p":           EnvProduction,
}

// Environment pairs a deployment profile with an index, so that several
// instances of the same profile (dev1, dev2, ...) can coexist.
type Environment struct {
	Name  EnvironmentName
	Index int
}

// DefaultEnvironment is development with index 1.
func DefaultEnvironment() Environment {
	return Environment{Name: EnvDevelopment, Index: MinEnvIndex}
}

// ParseEnvironment resolves a name or alias and validates the index.
func ParseEnvironment(name string, index int) (Environment, error) {
	canonical, ok := envAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Environment{}, fmt.Errorf("invalid environment: %q (valid: development, staging, test, production)", name)
	}
	if index < MinEnvIndex || index > MaxEnvIndex {
		return Environment{}, fmt.Errorf("invalid environment index: %d (valid: %d-%d)", index, MinEnvIndex, MaxEnvIndex)
	}
	return Environment{Name: canonical, Index: index}, nil
}

// Medium returns the short spelling used in file names (dev, stag, test, prod).
func (e Environment) Medium() string {
	switch e.Name {
	case EnvDevelopment:
		return "dev"
	case EnvStaging:
		return "stag"
	case EnvTest:
		return "test"
	case EnvProduction:
		return "prod"
	default:
		return string(e.Name)
	}
}

// FileSuffix is Medium followed by the index when the index is not 1.
func (e Environment) FileSuffix() string {
	if e.Index <= MinEnvIndex {
		return e.Medium()
	}
	return e.Medium() + strconv.Itoa(e.Index)
}

// IsProduction reports whether e targets the production profile.
func (e Environment) IsProduction() bool {
	return e.Name == EnvProduction
}

// String renders the environment as name or name#index.
func (e Environment) String() string {
	if e.Index <= MinEnvIndex {
		return string(e.Name)
	}
	return fmt.Sprintf("%s#%d", e.Name, e.Index)
}
