// Copyright 2026 The Envhatch Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/envhatch/envhatch/lib/declaration"
)

// EnvConfigPath is the environment variable naming the config file.
const EnvConfigPath = "ENVHATCH_CONFIG"

// Config is the mount daemon configuration. At least one provider
// section must be present.
type Config struct {
	// Environment configures the ordinary-variable directory.
	Environment *ProviderConfig `yaml:"environment,omitempty"`

	// Secrets configures the placeholder directory.
	Secrets *ProviderConfig `yaml:"secrets,omitempty"`

	// Mount holds settings shared by both mounts.
	Mount MountConfig `yaml:"mount"`
}

// ProviderConfig configures one provider and its mount.
type ProviderConfig struct {
	// Declarations is the path to the declaration file. Supports a
	// leading ~ and ${VAR} expansion. The file may be absent; the
	// directory is then empty.
	Declarations string `yaml:"declarations"`

	// Mountpoint is where the directory is mounted for the guest.
	Mountpoint string `yaml:"mountpoint"`
}

// MountConfig holds mount settings shared by both directories.
type MountConfig struct {
	// AllowOther permits other users to access the mounts. Required
	// when the guest runtime runs under a different UID.
	AllowOther bool `yaml:"allow_other"`

	// FsName is the filesystem name shown in /proc/mounts. Defaults
	// to "envhatch".
	FsName string `yaml:"fs_name"`
}

// Load reads the config file named by ENVHATCH_CONFIG.
func Load() (*Config, error) {
	path := os.Getenv(EnvConfigPath)
	if path == "" {
		return nil, fmt.Errorf("%s is not set", EnvConfigPath)
	}
	return LoadFile(path)
}

// LoadFile reads and validates the config file at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(declaration.ExpandHome(path))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var loaded Config
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	loaded.expandPaths()
	if err := loaded.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return &loaded, nil
}

// Validate checks that the configuration is complete.
func (c *Config) Validate() error {
	if c.Environment == nil && c.Secrets == nil {
		return fmt.Errorf("at least one provider section (environment, secrets) is required")
	}
	if err := c.Environment.validate("environment"); err != nil {
		return err
	}
	if err := c.Secrets.validate("secrets"); err != nil {
		return err
	}
	return nil
}

func (p *ProviderConfig) validate(section string) error {
	if p == nil {
		return nil
	}
	if p.Declarations == "" {
		return fmt.Errorf("%s.declarations is required", section)
	}
	if p.Mountpoint == "" {
		return fmt.Errorf("%s.mountpoint is required", section)
	}
	return nil
}

// expandPaths applies ~ and ${VAR} expansion to all path fields.
func (c *Config) expandPaths() {
	if c.Environment != nil {
		c.Environment.Declarations = expandPath(c.Environment.Declarations)
		c.Environment.Mountpoint = expandPath(c.Environment.Mountpoint)
	}
	if c.Secrets != nil {
		c.Secrets.Declarations = expandPath(c.Secrets.Declarations)
		c.Secrets.Mountpoint = expandPath(c.Secrets.Mountpoint)
	}
}

// variablePattern matches ${VAR} references in path fields.
var variablePattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandPath expands a leading ~ and ${VAR} references. Unset
// variables expand to the empty string.
func expandPath(path string) string {
	expanded := variablePattern.ReplaceAllStringFunc(path, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
	return declaration.ExpandHome(expanded)
}
