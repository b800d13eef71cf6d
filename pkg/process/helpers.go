package process

import (
	"fmt"
	"math/rand"
	"net"
	"regexp"
	"strings"
)

// Port range RandomPort draws from.
const (
	MinRandomPort = 3000
	MaxRandomPort = 9999
)

var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// StripANSI removes SGR colour sequences, which cargo emits when invoked
// with --color always.
func StripANSI(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// SplitArgs splits a raw argument list at the first "--". The part after the
// separator is forwarded to the tool under test, e.g. test binary flags.
func SplitArgs(args []string) (before, after []string) {
	for i, arg := range args {
		if arg == "--" {
			return args[:i], args[i+1:]
		}
	}
	return args, nil
}

// SplitList splits a comma separated flag value, trimming blanks and
// dropping empty items.
func SplitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

// IsPortAvailable reports whether a TCP listener can bind port on all
// interfaces right now.
func IsPortAvailable(port int) bool {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	_ = listener.Close()
	return true
}

// RandomPort returns a TCP port between MinRandomPort and MaxRandomPort that
// was free when probed. Commands that start throwaway services for
// integration tests use it to avoid collisions between parallel runs.
func RandomPort() (int, error) {
	span := MaxRandomPort - MinRandomPort + 1
	start := rand.Intn(span)
	for i := 0; i < span; i++ {
		port := MinRandomPort + (start+i)%span
		if IsPortAvailable(port) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available tcp port in range %d-%d", MinRandomPort, MaxRandomPort)
}
