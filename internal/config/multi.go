package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const DefaultLabel = "Default"

var ErrNoConfig = errors.New("no config selected")

// ConfigRoot is MANGAMIRROR_CONFIG_DIR when set, else the platform config
// directory.
func ConfigRoot() string {
	if dir := os.Getenv(EnvPrefix + "CONFIG_DIR"); dir != "" {
		return dir
	}

	// Windows
	if appdata := os.Getenv("APPDATA"); appdata != "" {
		return filepath.Join(appdata, "mangamirror")
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "mangamirror")
	}

	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "mangamirror")
}

func ConfigsDir() string {
	return filepath.Join(ConfigRoot(), "profiles")
}

func CurrentLabelFile() string {
	return filepath.Join(ConfigRoot(), "current_profile")
}

func ProfilePath(label string) string {
	return filepath.Join(ConfigsDir(), label+".yaml")
}

func ensureDirs() error {
	return os.MkdirAll(ConfigsDir(), 0700)
}

func CurrentLabel() (string, error) {
	b, err := os.ReadFile(CurrentLabelFile())
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoConfig
	}
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(b)), nil
}

func ActiveConfigPath() (string, error) {
	label, err := CurrentLabel()
	if err != nil {
		return "", err
	}
	if label == "" {
		return "", ErrNoConfig
	}

	return ProfilePath(label), nil
}

type ConfigInfo struct {
	Label  string
	Path   string
	Active bool
}

// ListConfigs returns every profile sorted by label.
func ListConfigs() ([]ConfigInfo, error) {
	if err := ensureDirs(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(ConfigsDir())
	if err != nil {
		return nil, err
	}

	activeLabel, _ := CurrentLabel()
	var out []ConfigInfo
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}

		label := strings.TrimSuffix(name, ".yaml")
		out = append(out, ConfigInfo{
			Label:  label,
			Path:   filepath.Join(ConfigsDir(), name),
			Active: label == activeLabel,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

// SwitchConfig makes label the active profile. Typical use is one profile
// per deployment (local, staging, prod).
func SwitchConfig(label string) error {
	if strings.TrimSpace(label) == "" {
		return errors.New("label cannot be empty")
	}
	if err := ensureDirs(); err != nil {
		return err
	}

	if _, err := os.Stat(ProfilePath(label)); err != nil {
		return fmt.Errorf("profile %q does not exist", label)
	}

	return os.WriteFile(CurrentLabelFile(), []byte(label), 0600)
}

// InitConfig writes cfg as profile label and activates it. An existing
// profile is left alone and os.ErrExist returned.
func InitConfig(label string, cfg *Config) (string, error) {
	if strings.TrimSpace(label) == "" {
		label = DefaultLabel
	}
	if err := ensureDirs(); err != nil {
		return "", err
	}

	path := ProfilePath(label)
	if _, err := os.Stat(path); err == nil {
		return path, os.ErrExist
	}

	if err := SaveYAML(cfg, path); err != nil {
		return "", err
	}

	return path, os.WriteFile(CurrentLabelFile(), []byte(label), 0600)
}
