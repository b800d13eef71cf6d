package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/mmr-tortoise/xtask/pkg/docker"
	"github.com/mmr-tortoise/xtask/pkg/envfile"
	"github.com/mmr-tortoise/xtask/pkg/git"
	"github.com/mmr-tortoise/xtask/pkg/model"
	"github.com/mmr-tortoise/xtask/pkg/process"
	"github.com/mmr-tortoise/xtask/pkg/xtask"
)

const (
	// OpDockerUp starts the compose stack detached. It is the default.
	OpDockerUp = "up"

	// OpDockerDown stops the compose stack and removes its volumes.
	OpDockerDown = "down"

	// OpDockerBuild builds an image with the source revision label.
	OpDockerBuild = "build"

	// OpDockerStatus lists the containers of the compose project.
	OpDockerStatus = "status"
)

// labelRevision is the OCI annotation recording the source commit.
const labelRevision = "org.opencontainers.image.revision"

// connectDocker opens the Engine API client. Tests replace it.
var connectDocker = docker.NewClient

// DockerArgs are the arguments of the docker command.
type DockerArgs struct {
	// Project and Files override docker.project and docker.compose_files.
	Project string
	Files   []string

	// Build rebuilds images on up.
	Build    bool
	Services []string

	// Volumes removes named volumes on down.
	Volumes bool

	Image      string
	Tag        string
	BuildArgs  []string
	ContextDir string
	Dockerfile string

	// State filters status output: running, exited, or all.
	State string
	JSON  bool
}

// Docker returns the docker command.
func Docker() xtask.Command {
	valid := []string{OpDockerUp, OpDockerDown, OpDockerBuild, OpDockerStatus}
	return xtask.Command{
		Name:  "docker",
		Short: "Manage the repository's compose stack and build images",
		Long: `Manage the compose stack used by integration tests and build images.

"up" merges the environment files of the selected environment into one
env file passed to docker compose, so services see the same variables as
xtask itself.`,
		Example: `  xtask -e test docker up --build
  xtask docker status --json
  xtask docker build --image ghcr.io/acme/app --tag v1.2.0 --build-arg RUST_VERSION=1.82`,
		ValidArgs: valid,
		Args:      xtask.SubcommandArgs(valid...),
		Bind: func(fs *pflag.FlagSet) xtask.Handler {
			var args DockerArgs
			fs.StringVar(&args.Project, "project", "", "Compose project name (default: docker.project)")
			fs.StringSliceVar(&args.Files, "file", nil, "Compose files (default: docker.compose_files)")
			fs.BoolVar(&args.Build, "build", false, "Build images before starting containers")
			fs.StringSliceVar(&args.Services, "services", nil, "Comma-separated services to start (default: all)")
			fs.BoolVar(&args.Volumes, "volumes", false, "Remove named volumes on down")
			fs.StringVar(&args.Image, "image", "", "Image name to build")
			fs.StringVar(&args.Tag, "tag", "latest", "Image tag")
			fs.StringArrayVar(&args.BuildArgs, "build-arg", nil, "Build argument KEY=VALUE, repeatable")
			fs.StringVar(&args.ContextDir, "context-dir", "", "Build context directory (default: repository root)")
			fs.StringVar(&args.Dockerfile, "dockerfile", "Dockerfile", "Dockerfile path, relative to the context directory")
			fs.StringVar(&args.State, "state", "all", "Filter status by container state: running, exited, all")
			fs.BoolVar(&args.JSON, "json", false, "Print status as JSON")
			return func(ctx context.Context, rt *xtask.Runtime, pos []string) error {
				return HandleDocker(ctx, rt, xtask.Subcommand(pos, OpDockerUp), args)
			}
		},
	}
}

// HandleDocker runs one docker operation.
func HandleDocker(ctx context.Context, rt *xtask.Runtime, op string, args DockerArgs) error {
	compose := docker.Compose{Project: args.Project, Files: process.SplitList(args.Files)}
	if compose.Project == "" {
		compose.Project = rt.Config.Docker.Project
	}
	if len(compose.Files) == 0 {
		compose.Files = rt.Config.Docker.ComposeFiles
	}

	switch op {
	case OpDockerUp:
		return dockerUp(ctx, rt, compose, args)
	case OpDockerDown:
		return rt.Step(ctx, "Docker compose down", external(rt, "docker", compose.DownArgs(args.Volumes)...))
	case OpDockerBuild:
		return dockerBuild(ctx, rt, args)
	case OpDockerStatus:
		return dockerStatus(ctx, rt, compose.Project, args)
	default:
		return unknownOperation("docker", op)
	}
}

func dockerUp(ctx context.Context, rt *xtask.Runtime, compose docker.Compose, args DockerArgs) error {
	client, err := connectDocker()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()
	if err := client.Ping(ctx); err != nil {
		return err
	}

	f, err := os.CreateTemp("", "xtask-"+compose.Project+"-*.env")
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to create the merged env file", err)
	}
	_ = f.Close()
	rt.OnExit(func() { _ = os.Remove(f.Name()) })

	if err := envfile.Merge(rt.Config.EnvPath(rt.Root), rt.Environment, f.Name(), rt.Log); err != nil {
		return err
	}
	compose.EnvFile = f.Name()

	services := process.SplitList(args.Services)
	return rt.Step(ctx, "Docker compose up", external(rt, "docker", compose.UpArgs(args.Build, services)...))
}

func dockerBuild(ctx context.Context, rt *xtask.Runtime, args DockerArgs) error {
	if args.Image == "" {
		return model.UsageErrorf("docker build needs --image")
	}

	contextDir := args.ContextDir
	if contextDir == "" {
		contextDir = rt.Root
	}
	dockerfile := args.Dockerfile
	if dockerfile == "" {
		dockerfile = "Dockerfile"
	}
	if !filepath.IsAbs(dockerfile) {
		dockerfile = filepath.Join(contextDir, dockerfile)
	}

	build := docker.Build{
		Dockerfile: dockerfile,
		ContextDir: contextDir,
		Image:      args.Image,
		Tag:        args.Tag,
		BuildArgs:  args.BuildArgs,
	}
	if commit, err := git.CurrentCommit(rt.Root); err == nil {
		build.Labels = map[string]string{labelRevision: commit}
	} else {
		rt.Log.Debug("building without a revision label", "error", err)
	}
	return rt.Step(ctx, "Docker build "+args.Image, external(rt, "docker", build.Args()...))
}

type containerJSON struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Service string `json:"service"`
	Image   string `json:"image"`
	State   string `json:"state"`
	Status  string `json:"status"`
}

func dockerStatus(ctx context.Context, rt *xtask.Runtime, project string, args DockerArgs) error {
	state := args.State
	if state == "" {
		state = "all"
	}
	if state != "all" && state != "running" && state != "exited" {
		return model.UsageErrorf("invalid state filter %q: valid values are running, exited, all", state)
	}

	client, err := connectDocker()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	containers, err := client.ListProjectContainers(ctx, project)
	if err != nil {
		return err
	}
	if state != "all" {
		filtered := make([]docker.ContainerInfo, 0, len(containers))
		for _, c := range containers {
			if c.State == state {
				filtered = append(filtered, c)
			}
		}
		containers = filtered
	}

	if !args.JSON {
		docker.FormatContainers(rt.Stdout, project, containers)
		return nil
	}

	result := struct {
		Project    string          `json:"project"`
		Containers []containerJSON `json:"containers"`
	}{Project: project, Containers: make([]containerJSON, 0, len(containers))}
	for _, c := range containers {
		result.Containers = append(result.Containers, containerJSON(c))
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(rt.Stdout, string(data))
	return err
}
