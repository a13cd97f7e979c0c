// Package configuration loads the node's YAML configuration. A base
// application.yml is always read; when it names a profile, the matching
// application-<profile>.yml is layered on top.
package configuration

import (
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"quorumkv/internal/configuration/util"
)

const baseConfigName = "application"

func Load(configDir string) (*Properties, error) {
	cfg, err := loadBaseConfig(configDir)
	if err != nil {
		return nil, err
	}

	if cfg.App.Profile != "" {
		if err := loadProfileConfig(configDir, cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func loadBaseConfig(configDir string) (*Properties, error) {
	raw, err := util.LoadAndExpandYaml(configDir, baseConfigName)
	if err != nil {
		return nil, err
	}

	cfg := &Properties{}
	if err := yaml.Unmarshal([]byte(raw), cfg); err != nil {
		return nil, fmt.Errorf("parse base config: %w", err)
	}

	return cfg, nil
}

func loadProfileConfig(configDir string, cfg *Properties) error {
	name := fmt.Sprintf("%s-%s", baseConfigName, cfg.App.Profile)
	raw, err := util.LoadAndExpandYaml(configDir, name)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal([]byte(raw), cfg); err != nil {
		return fmt.Errorf("parse profile config %q: %w", cfg.App.Profile, err)
	}

	slog.Debug("applied profile config", "profile", cfg.App.Profile)
	return nil
}
