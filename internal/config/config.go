// Package config provides configuration loading and validation for the
// gitgate daemon.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/xeipuuv/gojsonschema"

	"github.com/forgeline/gitgate/pkg/workspace"
)

// Sentinel validation errors.
var (
	ErrUnknownProject   = errors.New("unknown project")
	ErrInvalidProjects  = errors.New("invalid project configuration")
	ErrDuplicateProject = errors.New("duplicate project name")
	ErrInvalidInterval  = errors.New("poll interval must be positive")
)

// Default configuration values.
const (
	defaultStateDir     = "/var/lib/gitgate/state"
	defaultWorkspaceDir = "/var/lib/gitgate/workspaces"
	defaultChangelogDir = "/var/lib/gitgate/changelogs"
	defaultDiagAddr     = ":9090"
)

// Config holds all configuration for the gitgate daemon.
type Config struct {
	StateDir     string            `mapstructure:"state_dir"`
	WorkspaceDir string            `mapstructure:"workspace_dir"`
	ChangelogDir string            `mapstructure:"changelog_dir"`
	PollInterval time.Duration     `mapstructure:"poll_interval"`
	Diagnostics  DiagnosticsConfig `mapstructure:"diagnostics"`
	Logging      LoggingConfig     `mapstructure:"logging"`
	Projects     []Project         `mapstructure:"projects"`
}

// DiagnosticsConfig holds the health and metrics endpoint configuration.
type DiagnosticsConfig struct {
	Addr    string `mapstructure:"addr"`
	Enabled bool   `mapstructure:"enabled"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Project describes one repository to poll and check out.
type Project struct {
	Name        string            `mapstructure:"name"`
	Source      string            `mapstructure:"source"`
	Branch      string            `mapstructure:"branch"`
	Clean       bool              `mapstructure:"clean"`
	Merge       bool              `mapstructure:"merge"`
	MergeTarget string            `mapstructure:"merge_target"`
	BrowserURL  string            `mapstructure:"browser_url"`
	Parameters  map[string]string `mapstructure:"parameters"`
}

// projectsSchema constrains the projects document: every project needs a
// name, a source and a branch, and an enabled merge requires a merge target.
const projectsSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["name", "source", "branch"],
		"properties": {
			"name": {"type": "string", "minLength": 1, "pattern": "^[A-Za-z0-9._-]+$"},
			"source": {"type": "string", "minLength": 1},
			"branch": {"type": "string", "minLength": 1},
			"clean": {"type": "boolean"},
			"merge": {"type": "boolean"},
			"merge_target": {"type": "string"},
			"browser_url": {"type": "string"},
			"parameters": {"type": "object", "additionalProperties": {"type": "string"}}
		},
		"if": {
			"properties": {"merge": {"const": true}},
			"required": ["merge"]
		},
		"then": {"required": ["merge_target"]}
	}
}`

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("gitgate")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("/etc/gitgate")
	}

	viperCfg.SetEnvPrefix("GITGATE")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	validateErr := validateProjects(viperCfg.Get("projects"))
	if validateErr != nil {
		return nil, validateErr
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	checkErr := validateConfig(&config)
	if checkErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", checkErr)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("state_dir", defaultStateDir)
	viperCfg.SetDefault("workspace_dir", defaultWorkspaceDir)
	viperCfg.SetDefault("changelog_dir", defaultChangelogDir)
	viperCfg.SetDefault("poll_interval", "1m")

	viperCfg.SetDefault("diagnostics.enabled", false)
	viperCfg.SetDefault("diagnostics.addr", defaultDiagAddr)

	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", "json")
}

// validateProjects checks the raw projects document against the schema
// before unmarshalling, so violations report the offending field instead of
// a decode error.
func validateProjects(raw any) error {
	if raw == nil {
		return nil
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(projectsSchema),
		gojsonschema.NewGoLoader(raw),
	)
	if err != nil {
		return fmt.Errorf("validate projects: %w", err)
	}

	if result.Valid() {
		return nil
	}

	var details []string

	for _, verr := range result.Errors() {
		details = append(details, fmt.Sprintf("%s: %s", verr.Field(), verr.Description()))
	}

	return fmt.Errorf("%w: %s", ErrInvalidProjects, strings.Join(details, "; "))
}

// validateConfig validates cross-field constraints.
func validateConfig(config *Config) error {
	if config.PollInterval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, config.PollInterval)
	}

	seen := make(map[string]bool, len(config.Projects))

	for _, project := range config.Projects {
		if seen[project.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateProject, project.Name)
		}

		seen[project.Name] = true
	}

	return nil
}

// Lookup finds a project by name.
func (c *Config) Lookup(name string) (Project, error) {
	for _, project := range c.Projects {
		if project.Name == name {
			return project, nil
		}
	}

	return Project{}, fmt.Errorf("%w: %s", ErrUnknownProject, name)
}

// Workspace converts the project to the repository configuration consumed
// by the synchronizer.
func (p Project) Workspace() workspace.Config {
	return workspace.Config{
		Source:      p.Source,
		Branch:      p.Branch,
		Clean:       p.Clean,
		Merge:       p.Merge,
		MergeTarget: p.MergeTarget,
		BrowserURL:  p.BrowserURL,
	}
}
