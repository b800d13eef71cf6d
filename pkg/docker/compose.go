package docker

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"

	"github.com/mmr-tortoise/xtask/pkg/model"
)

// Labels docker compose sets on every container it creates.
const (
	LabelComposeProject = "com.docker.compose.project"
	LabelComposeService = "com.docker.compose.service"
)

// Compose identifies a compose project and the files defining it.
type Compose struct {
	Project string
	Files   []string

	// EnvFile is passed as --env-file when set.
	EnvFile string
}

// baseArgs returns "compose -f f1 -f f2 -p project [--env-file e]".
func (c Compose) baseArgs() []string {
	args := make([]string, 0, len(c.Files)*2+5)
	args = append(args, "compose")
	for _, f := range c.Files {
		args = append(args, "-f", f)
	}
	args = append(args, "-p", c.Project)
	if c.EnvFile != "" {
		args = append(args, "--env-file", c.EnvFile)
	}
	return args
}

// UpArgs returns the docker arguments starting the project detached.
func (c Compose) UpArgs(build bool, services []string) []string {
	args := append(c.baseArgs(), "up", "-d")
	if build {
		args = append(args, "--build")
	}
	return append(args, services...)
}

// DownArgs returns the docker arguments stopping and removing the project.
func (c Compose) DownArgs(removeVolumes bool) []string {
	args := append(c.baseArgs(), "down")
	if removeVolumes {
		args = append(args, "-v")
	}
	return args
}

// Build describes a docker build invocation.
type Build struct {
	Dockerfile string
	ContextDir string
	Image      string
	Tag        string
	BuildArgs  []string
	Labels     map[string]string
}

// Args returns the docker arguments for the build.
func (b Build) Args() []string {
	tag := b.Tag
	if tag == "" {
		tag = "latest"
	}
	args := []string{"build", "--file=" + b.Dockerfile, fmt.Sprintf("--tag=%s:%s", b.Image, tag)}
	for _, arg := range b.BuildArgs {
		args = append(args, "--build-arg="+arg)
	}
	keys := make([]string, 0, len(b.Labels))
	for k := range b.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, fmt.Sprintf("--label=%s=%s", k, b.Labels[k]))
	}
	return append(args, b.ContextDir)
}

// ContainerInfo is the part of a container listing xtask reports.
type ContainerInfo struct {
	ID      string
	Name    string
	Service string
	Image   string
	State   string
	Status  string
}

// ListProjectContainers returns every container of a compose project,
// stopped ones included, sorted by service then name.
func (c *Client) ListProjectContainers(ctx context.Context, project string) ([]ContainerInfo, error) {
	summaries, err := c.engine.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", LabelComposeProject+"="+project)),
	})
	if err != nil {
		return nil, model.WrapCLIError(model.ExitDockerNotRunning, "failed to list Docker containers", err)
	}

	result := make([]ContainerInfo, 0, len(summaries))
	for _, s := range summaries {
		result = append(result, summaryToInfo(s))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Service != result[j].Service {
			return result[i].Service < result[j].Service
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

func summaryToInfo(s container.Summary) ContainerInfo {
	name := ""
	if len(s.Names) > 0 {
		name = strings.TrimPrefix(s.Names[0], "/")
	}
	id := s.ID
	if len(id) > 12 {
		id = id[:12]
	}
	return ContainerInfo{
		ID:      id,
		Name:    name,
		Service: s.Labels[LabelComposeService],
		Image:   s.Image,
		State:   string(s.State),
		Status:  s.Status,
	}
}

// FormatContainers writes a fixed-width table of containers to w.
//
//	SERVICE    NAME                 STATE     STATUS
//	postgres   xtask-postgres-1     running   Up 3 minutes
func FormatContainers(w io.Writer, project string, containers []ContainerInfo) {
	if len(containers) == 0 {
		fmt.Fprintf(w, "No containers found for compose project %q.\n", project)
		return
	}

	fmt.Fprintf(w, "%-15s %-30s %-10s %s\n", "SERVICE", "NAME", "STATE", "STATUS")
	for _, c := range containers {
		service := c.Service
		if service == "" {
			service = "-"
		}
		fmt.Fprintf(w, "%-15s %-30s %-10s %s\n", service, c.Name, c.State, c.Status)
	}
}
