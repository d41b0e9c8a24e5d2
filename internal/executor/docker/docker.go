// Package docker runs snippets in pre-warmed, network-less containers on the
// local Docker daemon. One pool is kept per distinct runtime image.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/sakif/codecraft/internal/apperror"
	"github.com/sakif/codecraft/internal/executor"
)

var _ executor.Executor = (*Executor)(nil)

// Executor implements the executor.Executor interface using Docker.
type Executor struct {
	cli    *client.Client
	config Config
	logger *slog.Logger
	pools  map[string]*Pool // keyed by image
}

// New connects to the daemon, pulls every runtime image and starts a pool
// for each of them.
func New(cfg Config, logger *slog.Logger) (*Executor, error) {
	if len(cfg.Runtimes) == 0 {
		return nil, fmt.Errorf("docker: no language runtimes configured")
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker: creating client: %w", err)
	}

	exec := &Executor{
		cli:    cli,
		config: cfg,
		logger: logger,
		pools:  make(map[string]*Pool),
	}

	for _, img := range cfg.images() {
		if err := exec.pull(img); err != nil {
			exec.Close()
			return nil, err
		}
		pool := NewPool(cli, img, cfg, logger)
		pool.Start()
		exec.pools[img] = pool
	}

	return exec, nil
}

func (e *Executor) pull(img string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	e.logger.Info("ensuring docker image is available", slog.String("image", img))
	reader, err := e.cli.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("docker: pulling %s: %w", img, err)
	}
	defer reader.Close()
	// Read everything to block until the pull is complete
	io.Copy(io.Discard, reader)
	e.logger.Info("docker image is ready", slog.String("image", img))
	return nil
}

// Close shuts down every pool and the docker client.
func (e *Executor) Close() error {
	for _, p := range e.pools {
		p.Stop()
	}
	return e.cli.Close()
}

// Execute runs req.Code with the runtime configured for req.Language.
// req.Version is ignored: the image pins the version.
func (e *Executor) Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	start := time.Now()

	rt, ok := e.config.Runtimes[strings.ToLower(req.Language)]
	if !ok {
		return nil, apperror.ValidationFailed("language",
			fmt.Sprintf("%s cannot run on the docker sandbox", req.Language))
	}
	pool := e.pools[rt.Image]

	// Get a pre-warmed container ID from the pool
	containerID, err := pool.GetContainer(ctx)
	if err != nil {
		return nil, apperror.Unavailable("sandbox", fmt.Errorf("waiting for container: %w", err))
	}

	// Containers are single-use.
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := e.cli.ContainerRemove(cleanupCtx, containerID, container.RemoveOptions{
			Force: true,
		})
		if err != nil {
			e.logger.Error("failed to remove container", slog.String("id", containerID), slog.String("error", err.Error()))
		}
	}()

	executeCtx, executeCancel := context.WithTimeout(ctx, e.config.Timeout)
	defer executeCancel()

	cmd := append(append([]string(nil), rt.Command...), req.Code)
	execResp, err := e.cli.ContainerExecCreate(executeCtx, containerID, container.ExecOptions{
		AttachStdout: true,
		AttachStderr: true,
		Cmd:          cmd,
	})
	if err != nil {
		return nil, apperror.Unavailable("sandbox", fmt.Errorf("creating exec: %w", err))
	}

	attachResp, err := e.cli.ContainerExecAttach(executeCtx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, apperror.Unavailable("sandbox", fmt.Errorf("attaching to exec: %w", err))
	}
	defer attachResp.Close()

	var stdout, stderr bytes.Buffer

	done := make(chan struct{})
	go func() {
		// stdcopy demultiplexes the attached stream into stdout and stderr.
		_, _ = stdcopy.StdCopy(&stdout, &stderr, attachResp.Reader)
		close(done)
	}()

	var finalExitCode int

	select {
	case <-done:
		inspectResp, err := e.cli.ContainerExecInspect(ctx, execResp.ID)
		if err == nil {
			finalExitCode = inspectResp.ExitCode
		}
	case <-executeCtx.Done():
		// Closing the hijacked connection unblocks StdCopy; wait for it so
		// the buffers are not read while still being written.
		attachResp.Close()
		<-done
		finalExitCode = executor.ExitTimeout
		stderr.WriteString("\nExecution timed out.\n")
	}

	return &executor.ExecutionResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Output:   stdout.String() + stderr.String(),
		ExitCode: finalExitCode,
		Duration: time.Since(start),
	}, nil
}
