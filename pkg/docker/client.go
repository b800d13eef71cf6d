// Package docker talks to the Docker Engine for the docker command.
//
// The Engine API client is used for queries (daemon ping, listing the
// containers of a compose project). Mutating operations such as compose up
// or image builds go through the docker CLI via process.Runner, so their
// output streams to the terminal like any other tool.
package docker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/pkg/errors"

	"github.com/mmr-tortoise/xtask/pkg/model"
)

// defaultPingTimeout bounds Ping. Docker Desktop on macOS can take a few
// seconds to answer.
const defaultPingTimeout = 5 * time.Second

// Engine is the subset of *client.Client xtask calls. Tests provide fakes.
type Engine interface {
	Ping(ctx context.Context) (types.Ping, error)
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	Close() error
}

// Client wraps an Engine with socket detection and CLIError mapping.
type Client struct {
	engine Engine
}

// NewClient connects to the daemon named by DOCKER_HOST or, when unset,
// to the platform's default socket.
func NewClient() (*Client, error) {
	if host := os.Getenv("DOCKER_HOST"); host != "" {
		return newClientWithHost(host)
	}

	host, err := detectDockerHost()
	if err != nil {
		return nil, model.WrapCLIError(model.ExitDockerNotRunning, "Docker socket not found", err)
	}
	return newClientWithHost(host)
}

// NewClientWithEngine wraps an existing Engine.
func NewClientWithEngine(engine Engine) *Client {
	return &Client{engine: engine}
}

func newClientWithHost(host string) (*Client, error) {
	c, err := client.NewClientWithOpts(
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitDockerNotRunning,
			fmt.Sprintf("failed to create Docker client for host %q", host), err)
	}
	return &Client{engine: c}, nil
}

// windowsPipe is Docker Desktop's Engine endpoint on Windows.
const windowsPipe = "npipe:////./pipe/docker_engine"

// detectDockerHost returns the first Engine endpoint present on this
// machine. On Windows the named pipe is returned unprobed and Ping reports
// a stopped daemon.
func detectDockerHost() (string, error) {
	if runtime.GOOS == "windows" {
		return windowsPipe, nil
	}
	return detectUnixSocket(socketCandidates(runtime.GOOS))
}

// socketCandidates lists the unix sockets the daemon listens on, most
// common first. Docker Desktop on macOS also exposes a per-user socket.
func socketCandidates(goos string) []string {
	paths := []string{"/var/run/docker.sock"}
	if goos == "darwin" {
		if home, err := os.UserHomeDir(); err == nil {
			paths = append(paths, filepath.Join(home, ".docker", "run", "docker.sock"))
		}
	}
	return paths
}

func detectUnixSocket(paths []string) (string, error) {
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && info.Mode()&os.ModeSocket != 0 {
			return "unix://" + p, nil
		}
	}
	return "", errors.Errorf("no Docker socket at %s", strings.Join(paths, ", "))
}

// Ping checks that the daemon answers within defaultPingTimeout.
func (c *Client) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if _, err := c.engine.Ping(pingCtx); err != nil {
		return model.WrapCLIError(model.ExitDockerNotRunning, "Docker daemon is not responding, is Docker running?", err)
	}
	return nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	if c.engine == nil {
		return nil
	}
	return c.engine.Close()
}
