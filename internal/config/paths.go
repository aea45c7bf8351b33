package config

import (
	"os"
	"path/filepath"
)

const (
	// EnvConfigPath names an explicit config file
	EnvConfigPath = "VALUESTREAM_CONFIG"
	// ConfigFileName is looked up in the working directory
	ConfigFileName = "valuestream.yaml"
	// ConfigDirName is the directory under XDG and /etc
	ConfigDirName = "valuestream"

	configBaseName = "config"
)

// SearchPaths lists candidate config files in priority order:
// $VALUESTREAM_CONFIG, ./valuestream.yaml, $XDG_CONFIG_HOME/valuestream,
// ~/.config/valuestream and /etc/valuestream. Each directory is tried with
// both .yaml and .yml.
func SearchPaths() []string {
	var paths []string
	if p := os.Getenv(EnvConfigPath); p != "" {
		paths = append(paths, p)
	}
	paths = append(paths, ConfigFileName, ConfigDirName+".yml")

	for _, dir := range configDirs() {
		paths = append(paths,
			filepath.Join(dir, configBaseName+".yaml"),
			filepath.Join(dir, configBaseName+".yml"))
	}
	return paths
}

// FindConfigPath returns the first existing entry of SearchPaths, made
// absolute, or "" when there is none
func FindConfigPath() string {
	for _, p := range SearchPaths() {
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			return abs
		}
		return p
	}
	return ""
}

// DefaultConfigPath is where a new config file is written: the first user
// config directory, else the working directory
func DefaultConfigPath() string {
	dirs := configDirs()
	if len(dirs) > 1 {
		return filepath.Join(dirs[0], configBaseName+".yaml")
	}
	return ConfigFileName
}

// EnsureConfigDir creates the directory holding configPath
func EnsureConfigDir(configPath string) error {
	return os.MkdirAll(filepath.Dir(configPath), 0755)
}

// configDirs returns the user directories followed by the system one
func configDirs() []string {
	var dirs []string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		dirs = append(dirs, filepath.Join(xdg, ConfigDirName))
	}
	if home := os.Getenv("HOME"); home != "" {
		dirs = append(dirs, filepath.Join(home, ".config", ConfigDirName))
	}
	return append(dirs, filepath.Join("/etc", ConfigDirName))
}
