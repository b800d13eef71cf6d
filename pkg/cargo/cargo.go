// Package cargo holds helpers around the cargo CLI that several commands
// share: making sure a cargo plugin is installed and parsing the textual
// output of cargo queries.
package cargo

import (
	"bufio"
	"context"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/mmr-tortoise/xtask/pkg/logging"
	"github.com/mmr-tortoise/xtask/pkg/process"
)

// Plugin describes a cargo-installable tool.
type Plugin struct {
	// Crate is the crate passed to cargo install.
	Crate string

	// Version pins the installed version. Empty installs the latest.
	Version string

	// Features enables optional crate features.
	Features []string

	// Locked passes --locked to cargo install.
	Locked bool
}

// InstallArgs returns the cargo install argument vector for p.
func (p Plugin) InstallArgs() []string {
	args := []string{"install", p.Crate}
	if p.Locked {
		args = append(args, "--locked")
	}
	if len(p.Features) > 0 {
		args = append(args, "--features", strings.Join(p.Features, ","))
	}
	if p.Version != "" {
		args = append(args, "--version", p.Version)
	}
	return args
}

// Installed parses `cargo install --list` output and reports whether crate
// is listed. Crate lines are unindented and start with "<crate> v<version>".
func Installed(list, crate string) bool {
	scanner := bufio.NewScanner(strings.NewReader(list))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || line[0] == ' ' || line[0] == '\t' {
			continue
		}
		name, _, _ := strings.Cut(line, " ")
		if name == crate {
			return true
		}
	}
	return false
}

// EnsureInstalled installs p with cargo unless it is already listed by
// cargo install --list.
func EnsureInstalled(ctx context.Context, runner process.Runner, tool string, p Plugin, log *logging.Logger) error {
	list, err := runner.Output(ctx, process.Cmd{Name: tool, Args: []string{"install", "--list"}})
	if err != nil {
		return err
	}
	if Installed(list, p.Crate) {
		log.Debug("cargo plugin already installed", "crate", p.Crate)
		return nil
	}

	log.Info("installing cargo plugin", "crate", p.Crate, "version", p.Version)
	return runner.Run(ctx, process.Cmd{Name: tool, Args: p.InstallArgs()})
}

var searchRegex = regexp.MustCompile(`([a-zA-Z0-9_-]+)\s*=\s*"(\d+\.\d+\.\d+[^"]*)"`)

// ParseSearchVersion extracts the published version of crate from
// `cargo search <crate> --limit 1` output. It returns "" when the crate is
// not published.
func ParseSearchVersion(output, crate string) string {
	for _, m := range searchRegex.FindAllStringSubmatch(process.StripANSI(output), -1) {
		if m[1] == crate {
			return m[2]
		}
	}
	return ""
}

// ParsePkgIDVersion extracts the version from `cargo pkgid` output such as
// "path+file:///repo/crates/core#demo-core@0.3.1" or
// "path+file:///repo/crates/core#0.3.1". The older "#name:version" form is
// accepted too.
func ParsePkgIDVersion(output string) (string, error) {
	id := strings.TrimSpace(process.StripANSI(output))
	_, fragment, ok := strings.Cut(id, "#")
	if !ok || fragment == "" {
		return "", errors.Errorf("unexpected cargo pkgid output %q", id)
	}
	if _, version, ok := strings.Cut(fragment, "@"); ok {
		fragment = version
	} else if _, version, ok := strings.Cut(fragment, ":"); ok {
		fragment = version
	}
	if fragment == "" {
		return "", errors.Errorf("unexpected cargo pkgid output %q", id)
	}
	return fragment, nil
}

// ParseHostTriple extracts the host target triple from `rustc -vV`.
func ParseHostTriple(output string) (string, error) {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		if host, ok := strings.CutPrefix(strings.TrimSpace(scanner.Text()), "host:"); ok {
			return strings.TrimSpace(host), nil
		}
	}
	return "", errors.New("rustc -vV did not report a host triple")
}

// HostTriple asks rustc for the host target triple.
func HostTriple(ctx context.Context, runner process.Runner) (string, error) {
	out, err := runner.Output(ctx, process.Cmd{Name: "rustc", Args: []string{"-vV"}})
	if err != nil {
		return "", err
	}
	return ParseHostTriple(out)
}
