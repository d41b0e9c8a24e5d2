package docker

import (
	"time"

	"github.com/sakif/codecraft/internal/config"
)

// Runtime is the image and interpreter prefix for one language. The code is
// appended to Command as the final argument.
type Runtime struct {
	Image   string
	Command []string
}

// Config holds the configuration for Docker execution.
type Config struct {
	// Runtimes maps a language tag to the container that runs it.
	Runtimes map[string]Runtime
	// MemoryLimit is the maximum amount of memory the container can use (in bytes).
	MemoryLimit int64
	// CPULimit is the number of CPUs the container can use.
	CPULimit float64
	// Timeout is the maximum amount of time the execution can take.
	Timeout time.Duration
	// PoolSize is the number of pre-warmed containers kept per image.
	PoolSize int
}

// DefaultConfig provides sensible limits and no runtimes; fill Runtimes
// from the language catalogue with RuntimesFromCatalogue.
func DefaultConfig() Config {
	return Config{
		Runtimes: map[string]Runtime{},
		// 128 MB memory limit
		MemoryLimit: 128 * 1024 * 1024,
		// 0.5 CPU shares
		CPULimit: 0.5,
		// 5 second default timeout
		Timeout:  5 * time.Second,
		PoolSize: 2,
	}
}

// RuntimesFromCatalogue keeps the catalogue languages that declare a docker
// image. Languages without one can only run on the remote sandbox.
func RuntimesFromCatalogue(c *config.Catalogue) map[string]Runtime {
	runtimes := make(map[string]Runtime)
	for _, l := range c.Languages {
		if l.Docker == nil || l.Docker.Image == "" {
			continue
		}
		runtimes[l.Tag] = Runtime{
			Image:   l.Docker.Image,
			Command: append([]string(nil), l.Docker.Command...),
		}
	}
	return runtimes
}

// images returns the distinct images across all runtimes.
func (c Config) images() []string {
	seen := make(map[string]bool)
	var out []string
	for _, rt := range c.Runtimes {
		if !seen[rt.Image] {
			seen[rt.Image] = true
			out = append(out, rt.Image)
		}
	}
	return out
}
