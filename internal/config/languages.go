package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed languages.yaml
var defaultLanguages []byte

// Runtime names a sandbox runtime and version for a language.
type Runtime struct {
	Language string `yaml:"language"`
	Version  string `yaml:"version"`
}

// DockerRuntime is the image and interpreter prefix used by the
// self-hosted sandbox. The code is appended as the last argument.
type DockerRuntime struct {
	Image   string   `yaml:"image"`
	Command []string `yaml:"command"`
}

// Language is one entry of the catalogue.
type Language struct {
	Tag     string         `yaml:"tag"`
	Name    string         `yaml:"name"`
	Free    bool           `yaml:"free"`
	Runtime Runtime        `yaml:"runtime"`
	Docker  *DockerRuntime `yaml:"docker,omitempty"`
}

// Catalogue is the set of languages the sandbox knows how to run.
type Catalogue struct {
	Languages []Language `yaml:"languages"`
}

// LoadCatalogue reads the catalogue from path, or the embedded default
// when path is empty.
func LoadCatalogue(path string) (*Catalogue, error) {
	data := defaultLanguages
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading languages file: %w", err)
		}
		data = b
	}
	return ParseCatalogue(data)
}

// ParseCatalogue decodes and validates a YAML catalogue.
func ParseCatalogue(data []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parsing languages: %w", err)
	}
	if len(c.Languages) == 0 {
		return nil, fmt.Errorf("config: languages catalogue is empty")
	}

	seen := make(map[string]bool, len(c.Languages))
	for i := range c.Languages {
		l := &c.Languages[i]
		l.Tag = strings.ToLower(strings.TrimSpace(l.Tag))
		if l.Tag == "" {
			return nil, fmt.Errorf("config: language #%d has no tag", i+1)
		}
		if seen[l.Tag] {
			return nil, fmt.Errorf("config: language %q listed twice", l.Tag)
		}
		seen[l.Tag] = true
		if l.Runtime.Language == "" {
			l.Runtime.Language = l.Tag
		}
	}
	return &c, nil
}

// Lookup finds a language by tag (case-insensitive).
func (c *Catalogue) Lookup(tag string) (Language, bool) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	for _, l := range c.Languages {
		if l.Tag == tag {
			return l, true
		}
	}
	return Language{}, false
}

// FreeTags lists the tags flagged free, in catalogue order.
func (c *Catalogue) FreeTags() []string {
	var tags []string
	for _, l := range c.Languages {
		if l.Free {
			tags = append(tags, l.Tag)
		}
	}
	return tags
}
