// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package config

import (
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
)

// DefaultConfigFile is the name the config probe paths are checked for.
var DefaultConfigFile = "cnharvest.yml"

// DefaultTableFile is the subnet reference table probed next to the
// loaded config.
var DefaultTableFile = "subnets.csv"

// AppFs is the file abstraction used to load configs, tests swap it for
// a memory backed fs.
var AppFs = afero.NewOsFs()

var (
	// Path is the currently loaded config location
	// or default if no config exists
	Path string
	// Source tracks where Path came from
	Source string
	// UserProvidedPath is set through the --config flag
	UserProvidedPath string
	// LoadedConfig is true once a config file was read successfully
	LoadedConfig bool
)

// HomePath returns the user-level config location, whether or not a
// config exists there yet.
func HomePath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "cnharvest", DefaultConfigFile), nil
}

// autodetectConfig probes the default locations and returns the first
// config that exists. The home config always wins over the system one.
func autodetectConfig() string {
	homeConfig, err := HomePath()
	if err == nil && ProbeFile(homeConfig) {
		return homeConfig
	}

	// the pre-XDG location directly in the home directory
	if home, err := homedir.Dir(); err == nil {
		oldConfig := filepath.Join(home, "."+DefaultConfigFile)
		if ProbeFile(oldConfig) {
			return oldConfig
		}
	}

	systemConfig := filepath.Join("/etc", "opt", "cnharvest", DefaultConfigFile)
	if ProbeFile(systemConfig) {
		return systemConfig
	}

	// nothing found, writes will land in the home location
	if homeConfig != "" {
		return homeConfig
	}
	return DefaultConfigFile
}

// ProbeFile tests if a readable regular file exists at path.
func ProbeFile(path string) bool {
	stat, err := AppFs.Stat(path)
	if err != nil || stat.IsDir() {
		return false
	}
	f, err := AppFs.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// ProbeDir tests if a directory exists at path.
func ProbeDir(path string) bool {
	stat, err := AppFs.Stat(path)
	if err != nil {
		return false
	}
	return stat.IsDir()
}

// ReferenceTablePath returns the subnet reference table that sits next
// to the loaded config file, if one exists.
func ReferenceTablePath(configPath string) (string, bool) {
	if configPath == "" {
		return "", false
	}
	path := filepath.Join(filepath.Dir(configPath), DefaultTableFile)
	return path, ProbeFile(path)
}
