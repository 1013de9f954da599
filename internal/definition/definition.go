// Package definition loads container definitions from a directory of YAML
// files, one file per container id.
package definition

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultShell = "/bin/sh"
	defaultUser  = "root"
)

// Definition is the parsed, validated content of one definition file.
type Definition struct {
	ID          string
	Name        string
	Description string
	Box         string
	Shell       string
	User        string
	Requires    []string
	Actions     map[string]StepList
	Ports       []Port
	Mountpoints []Mountpoint
	Variables   map[string]string
	Files       map[string]string
}

// Port is one host-to-container forwarding declaration. From is the port
// inside the container, To the port on the host.
type Port struct {
	Device   string `yaml:"device"`
	Protocol string `yaml:"protocol"`
	From     int    `yaml:"from"`
	To       int    `yaml:"to"`
	Comment  string `yaml:"comment"`
}

// Mountpoint is one named bind mount from the host into the container.
type Mountpoint struct {
	Name   string
	Source string
	Path   string
}

type rawDefinition struct {
	Name        string              `yaml:"name"`
	Description string              `yaml:"description"`
	Box         string              `yaml:"box"`
	Shell       string              `yaml:"shell"`
	User        string              `yaml:"user"`
	Requires    []string            `yaml:"requires"`
	Actions     map[string]StepList `yaml:"actions"`
	Ports       []Port              `yaml:"ports"`
	Mountpoints map[string]struct {
		Source string `yaml:"source"`
		Path   string `yaml:"path"`
	} `yaml:"mountpoints"`
	Variables map[string]string `yaml:"variables"`
	Files     map[string]string `yaml:"files"`
}

// Load reads and validates the definition for id at path.
func Load(path, id string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definition: %w", err)
	}

	var raw rawDefinition
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	def := &Definition{
		ID:          id,
		Name:        strings.TrimSpace(raw.Name),
		Description: strings.TrimSpace(raw.Description),
		Box:         strings.TrimSpace(raw.Box),
		Shell:       raw.Shell,
		User:        raw.User,
		Requires:    raw.Requires,
		Actions:     raw.Actions,
		Ports:       raw.Ports,
		Variables:   raw.Variables,
		Files:       raw.Files,
	}
	if def.Name == "" {
		return nil, fmt.Errorf("missing required attribute %q", "name")
	}
	if def.Description == "" {
		return nil, fmt.Errorf("missing required attribute %q", "description")
	}
	if def.Box == "" {
		return nil, fmt.Errorf("missing required attribute %q", "box")
	}
	if def.Shell == "" {
		def.Shell = defaultShell
	}
	if def.User == "" {
		def.User = defaultUser
	}
	for i := range def.Ports {
		p := &def.Ports[i]
		if p.Device == "" || p.Protocol == "" {
			return nil, fmt.Errorf("port %d: device and protocol are required", i)
		}
		if p.From <= 0 || p.To <= 0 {
			return nil, fmt.Errorf("port %d: from and to must be positive", i)
		}
		if p.Comment == "" {
			p.Comment = def.Name
		}
	}
	for name, mp := range raw.Mountpoints {
		if mp.Source == "" || mp.Path == "" {
			return nil, fmt.Errorf("mountpoint %q: source and path are required", name)
		}
		def.Mountpoints = append(def.Mountpoints, Mountpoint{Name: name, Source: mp.Source, Path: mp.Path})
	}
	// Map iteration order is random; keep mounts reproducible.
	slices.SortFunc(def.Mountpoints, func(a, b Mountpoint) int {
		return strings.Compare(a.Name, b.Name)
	})
	return def, nil
}

// PathFor returns the definition file path for id, preferring .yaml over
// .yml when both exist.
func PathFor(dir, id string) (string, bool) {
	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(dir, id+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// List returns the sorted ids of every definition file in dir.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read definitions directory: %w", err)
	}
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		ids = append(ids, strings.TrimSuffix(entry.Name(), ext))
	}
	slices.Sort(ids)
	return slices.Compact(ids), nil
}

// Variables reads the optional global variables file, shaped
// {variables: {key: value}}. A missing file is an empty scope.
func Variables(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read variables file: %w", err)
	}

	var raw struct {
		Variables map[string]string `yaml:"variables"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if raw.Variables == nil {
		return map[string]string{}, nil
	}
	return raw.Variables, nil
}
