// Package config models hrflow.yml.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"hrflow/internal/domain"
)

// Limits are the workplace ceilings enforced by the engine.
type Limits struct {
	TeamJoinLimit      int `yaml:"team_join_limit"`
	TeamMaxSize        int `yaml:"team_max_size"`
	VacanciesMaxCount  int `yaml:"vacancies_max_count"`
	VacancyTagMaxCount int `yaml:"vacancy_tag_max_count"`
}

type Config struct {
	Workplace struct {
		// Role granted to a freshly invited member. Historically this
		// flapped between "none" and "observer" (the same empty
		// capability set); it is configuration so the product can decide.
		InviteDefaultRole string `yaml:"invite_default_role"`
	} `yaml:"workplace"`
	Limits Limits `yaml:"limits"`
	Server struct {
		Addr                  string `yaml:"addr"`
		BasePath              string `yaml:"base_path"`
		AllowLegacyUserHeader bool   `yaml:"allow_legacy_user_header"`
	} `yaml:"server"`
}

// Default returns the stock configuration.
func Default() *Config {
	var cfg Config
	cfg.Workplace.InviteDefaultRole = "observer"
	cfg.Limits = Limits{
		TeamJoinLimit:      10,
		TeamMaxSize:        20,
		VacanciesMaxCount:  100,
		VacancyTagMaxCount: 10,
	}
	cfg.Server.Addr = "127.0.0.1:8080"
	cfg.Server.BasePath = "/v0"
	return &cfg
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Limits.TeamJoinLimit <= 0 {
		return fmt.Errorf("limits.team_join_limit must be positive")
	}
	if c.Limits.TeamMaxSize <= 0 {
		return fmt.Errorf("limits.team_max_size must be positive")
	}
	if c.Limits.VacanciesMaxCount <= 0 {
		return fmt.Errorf("limits.vacancies_max_count must be positive")
	}
	if c.Limits.VacancyTagMaxCount <= 0 {
		return fmt.Errorf("limits.vacancy_tag_max_count must be positive")
	}
	if _, err := domain.ParseRole(c.Workplace.InviteDefaultRole); err != nil {
		return fmt.Errorf("workplace.invite_default_role: %w", err)
	}
	return nil
}

// InviteRole returns the parsed default role for invited members.
func (c *Config) InviteRole() domain.Permission {
	role, err := domain.ParseRole(c.Workplace.InviteDefaultRole)
	if err != nil {
		return domain.RoleObserver
	}
	return role
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "hrflow.yml")
}

// Load reads config from the workspace, falling back to defaults when the
// file does not exist.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes. Omitted
// sections keep their defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}
