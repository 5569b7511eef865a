/*
Package config manages TOML config for texserve.
*/
package config

import (
	"os"
	"path/filepath"

	"github.com/bastiangx/texserve/internal/utils"
	"github.com/bastiangx/texserve/pkg/citation"
	"github.com/bastiangx/texserve/pkg/engine"
	"github.com/bastiangx/texserve/pkg/fuzzy"
	"github.com/bastiangx/texserve/pkg/packages"
	"github.com/bastiangx/texserve/pkg/prefix"
	"github.com/charmbracelet/log"
)

// FileName is the config file inside the config directory.
const FileName = "config.toml"

// Config holds the entire config structure
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Completion CompletionConfig `toml:"completion"`
	Citation   CitationConfig   `toml:"citation"`
	Packages   PackagesConfig   `toml:"packages"`
	CLI        CliConfig        `toml:"cli"`
}

// ServerConfig has server related options.
type ServerConfig struct {
	MaxLimit                 int    `toml:"max_limit"`
	MinPrefix                int    `toml:"min_prefix"`
	UserCompletions          string `toml:"user_completions"`
	DisableForScope          string `toml:"disable_for_scope"`
	EnableDefaultCompletions bool   `toml:"enable_default_completions"`
	StateFile                string `toml:"state_file"`
	WatchUserCompletions     bool   `toml:"watch_user_completions"`
}

// CompletionConfig holds the general completion options.
type CompletionConfig struct {
	CommandRegex  string          `toml:"command_regex"`
	SymbolRegex   string          `toml:"symbol_regex"`
	ExemptMarker  string          `toml:"exempt_marker"`
	EnabledGroups map[string]bool `toml:"enabled_groups"`
}

// CitationConfig holds bibliography completion options.
type CitationConfig struct {
	Enabled bool   `toml:"enabled"`
	Regex   string `toml:"regex"`
	Format  string `toml:"format"`
}

// PackagesConfig holds package completion options.
type PackagesConfig struct {
	Enabled         bool   `toml:"enabled"`
	Regex           string `toml:"regex"`
	SearchCommand   string `toml:"search_command"`
	MetadataCommand string `toml:"metadata_command"`
}

// CliConfig holds cli interface options.
type CliConfig struct {
	DefaultLimit  int      `toml:"default_limit"`
	DefaultScopes []string `toml:"default_scopes"`
}

// GetConfigDir returns the config directory with fallback priority:
// 1. the platform config dir (~/.config/texserve, %APPDATA%\texserve)
// 2. ~/.texserve
// 3. the temp dir
// 4. the executable dir
func GetConfigDir() (string, error) {
	path, err := GetDefaultConfigPath()
	if err != nil {
		return "", err
	}
	return filepath.Dir(path), nil
}

// GetDefaultConfigPath returns the default path for config.toml
func GetDefaultConfigPath() (string, error) {
	resolver, err := utils.NewPathResolver()
	if err != nil {
		log.Errorf("Failed to resolve config location: %v", err)
		return "", err
	}
	return resolver.GetConfigPath(FileName)
}

// LoadConfigWithPriority loads config with priority:
// 1. Custom path from --config flag
// 2. Default path: [UserConfigDir]/texserve/config.toml
// 3. Builtin defaults
func LoadConfigWithPriority(customConfigPath string) (*Config, string, error) {
	if customConfigPath != "" {
		customConfigPath = utils.ExpandHome(customConfigPath)
		if _, statErr := os.Stat(customConfigPath); statErr == nil {
			config, err := LoadConfig(customConfigPath)
			if err != nil {
				log.Warnf("Failed to load custom config from %s: %v. Trying default path...", customConfigPath, err)
			} else {
				log.Debugf("Loaded config from custom path: %s", customConfigPath)
				return config, customConfigPath, nil
			}
		} else {
			log.Warnf("Custom config file not found at %s: %v. Trying default path...", customConfigPath, statErr)
		}
	}
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		log.Warnf("Failed to determine default config path: %v. Using built-in defaults...", err)
		return DefaultConfig(), "", nil
	}

	config, err := InitConfig(defaultPath)
	if err != nil {
		log.Warnf("Failed to load/create config at default path %s: %v. Using builtin defaults...", defaultPath, err)
		return DefaultConfig(), "", nil
	}
	log.Debugf("Loaded config from default path: %s", defaultPath)
	return config, defaultPath, nil
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			MaxLimit:                 fuzzy.DefaultMaxResults,
			MinPrefix:                2,
			UserCompletions:          "",
			DisableForScope:          ".text.tex.latex .comment",
			EnableDefaultCompletions: true,
			StateFile:                "state.msgpack",
			WatchUserCompletions:     true,
		},
		Completion: CompletionConfig{
			CommandRegex:  prefix.DefaultCommandPattern,
			SymbolRegex:   prefix.DefaultSymbolPattern,
			ExemptMarker:  prefix.DefaultExemptMarker,
			EnabledGroups: map[string]bool{},
		},
		Citation: CitationConfig{
			Enabled: true,
			Regex:   prefix.DefaultCitationPattern,
			Format:  citation.DefaultFormat,
		},
		Packages: PackagesConfig{
			Enabled:         true,
			Regex:           prefix.DefaultPackagePattern,
			SearchCommand:   packages.DefaultSearchCommand,
			MetadataCommand: packages.DefaultMetadataCommand,
		},
		CLI: CliConfig{
			DefaultLimit:  24,
			DefaultScopes: []string{"text.tex.latex"},
		},
	}
}

// InitConfig loads config from file or creates default if missing
func InitConfig(configPath string) (*Config, error) {
	configDir := filepath.Dir(configPath)

	if err := utils.EnsureDir(configDir); err != nil {
		log.Warnf("Failed to create config directory %s: %v. Using built-in defaults...", configDir, err)
		return DefaultConfig(), nil
	}

	if !utils.FileExists(configPath) {
		config := DefaultConfig()
		if err := SaveConfig(config, configPath); err != nil {
			log.Warnf("Failed to create default config file at %s: %v. Using built-in defaults...", configPath, err)
			return DefaultConfig(), nil
		}
		log.Debugf("Created default config file at: %s", configPath)
		return config, nil
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		log.Warnf("Failed to load config from %s: %v. Using built-in defaults...", configPath, err)
		return DefaultConfig(), nil
	}
	return config, nil
}

// LoadConfig loads from a TOML file
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if err := utils.LoadTOMLFile(configPath, config); err != nil {
		return tryPartialParse(configPath)
	}
	if config.Completion.EnabledGroups == nil {
		config.Completion.EnabledGroups = map[string]bool{}
	}
	return config, nil
}

// tryPartialParse attempts to parse a TOML file
func tryPartialParse(configPath string) (*Config, error) {
	config := DefaultConfig()

	tempConfig, err := utils.ParseTOMLWithRecovery(configPath)
	if err != nil {
		log.Warnf("Could not parse any valid configuration from %s: %v. Using all defaults.", configPath, err)
		return config, nil
	}

	if section, ok := utils.ExtractSection(tempConfig, "server"); ok {
		extractServerConfig(section, &config.Server)
	}
	if section, ok := utils.ExtractSection(tempConfig, "completion"); ok {
		extractCompletionConfig(section, &config.Completion)
	}
	if section, ok := utils.ExtractSection(tempConfig, "citation"); ok {
		extractCitationConfig(section, &config.Citation)
	}
	if section, ok := utils.ExtractSection(tempConfig, "packages"); ok {
		extractPackagesConfig(section, &config.Packages)
	}
	if section, ok := utils.ExtractSection(tempConfig, "cli"); ok {
		extractCliConfig(section, &config.CLI)
	}
	return config, nil
}

func extractServerConfig(data map[string]any, server *ServerConfig) {
	if val, ok := utils.ExtractInt64(data, "max_limit"); ok {
		server.MaxLimit = val
	}
	if val, ok := utils.ExtractInt64(data, "min_prefix"); ok {
		server.MinPrefix = val
	}
	if val, ok := utils.ExtractString(data, "user_completions"); ok {
		server.UserCompletions = val
	}
	if val, ok := utils.ExtractString(data, "disable_for_scope"); ok {
		server.DisableForScope = val
	}
	if val, ok := utils.ExtractBool(data, "enable_default_completions"); ok {
		server.EnableDefaultCompletions = val
	}
	if val, ok := utils.ExtractString(data, "state_file"); ok {
		server.StateFile = val
	}
	if val, ok := utils.ExtractBool(data, "watch_user_completions"); ok {
		server.WatchUserCompletions = val
	}
}

func extractCompletionConfig(data map[string]any, completion *CompletionConfig) {
	if val, ok := utils.ExtractString(data, "command_regex"); ok {
		completion.CommandRegex = val
	}
	if val, ok := utils.ExtractString(data, "symbol_regex"); ok {
		completion.SymbolRegex = val
	}
	if val, ok := utils.ExtractString(data, "exempt_marker"); ok {
		completion.ExemptMarker = val
	}
	if val, ok := utils.ExtractBoolMap(data, "enabled_groups"); ok {
		completion.EnabledGroups = val
	}
}

func extractCitationConfig(data map[string]any, cite *CitationConfig) {
	if val, ok := utils.ExtractBool(data, "enabled"); ok {
		cite.Enabled = val
	}
	if val, ok := utils.ExtractString(data, "regex"); ok {
		cite.Regex = val
	}
	if val, ok := utils.ExtractString(data, "format"); ok {
		cite.Format = val
	}
}

func extractPackagesConfig(data map[string]any, pkgs *PackagesConfig) {
	if val, ok := utils.ExtractBool(data, "enabled"); ok {
		pkgs.Enabled = val
	}
	if val, ok := utils.ExtractString(data, "regex"); ok {
		pkgs.Regex = val
	}
	if val, ok := utils.ExtractString(data, "search_command"); ok {
		pkgs.SearchCommand = val
	}
	if val, ok := utils.ExtractString(data, "metadata_command"); ok {
		pkgs.MetadataCommand = val
	}
}

func extractCliConfig(data map[string]any, cli *CliConfig) {
	if val, ok := utils.ExtractInt64(data, "default_limit"); ok {
		cli.DefaultLimit = val
	}
	if val, ok := utils.ExtractStrings(data, "default_scopes"); ok {
		cli.DefaultScopes = val
	}
}

// RebuildConfigFile force creates a new config.toml at default
func RebuildConfigFile() error {
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		return err
	}
	if err := utils.EnsureDir(filepath.Dir(defaultPath)); err != nil {
		return err
	}
	return utils.SaveTOMLFile(DefaultConfig(), defaultPath)
}

// GetActiveConfigPath returns the absolute path of loaded config file
func GetActiveConfigPath(configPath string) string {
	if configPath == "" {
		if defaultPath, err := GetDefaultConfigPath(); err == nil {
			return defaultPath
		}
		return "unknown"
	}
	return utils.GetAbsolutePath(configPath)
}

// SaveConfig saves into a TOML file
func SaveConfig(config *Config, configPath string) error {
	return utils.SaveTOMLFile(config, configPath)
}

// ResolvePath resolves a path from the config file: "~" expands to the home
// directory and relative paths are taken from configDir.
func ResolvePath(configDir, path string) string {
	if path == "" {
		return ""
	}
	if resolved, ok := utils.ResolveAgainst(configDir, path); ok {
		return resolved
	}
	return path
}

// Engine converts the file config to the engine's runtime config. Relative
// paths resolve against configDir.
func (c *Config) Engine(configDir string) engine.Config {
	cfg := engine.DefaultConfig()

	cfg.MaxResults = c.Server.MaxLimit
	cfg.MinPrefixLength = c.Server.MinPrefix
	cfg.UserCompletionsPath = ResolvePath(configDir, c.Server.UserCompletions)
	cfg.DisableForScope = c.Server.DisableForScope
	cfg.EnableBuiltins = c.Server.EnableDefaultCompletions
	cfg.WatchUserCompletions = c.Server.WatchUserCompletions

	cfg.Patterns = prefix.Patterns{
		Package:      c.Packages.Regex,
		Citation:     c.Citation.Regex,
		Command:      c.Completion.CommandRegex,
		Symbol:       c.Completion.SymbolRegex,
		ExemptMarker: c.Completion.ExemptMarker,
	}
	cfg.EnabledGroups = make(map[string]bool, len(c.Completion.EnabledGroups))
	for id, on := range c.Completion.EnabledGroups {
		cfg.EnabledGroups[id] = on
	}

	cfg.CitationsEnabled = c.Citation.Enabled
	cfg.CitationFormat = c.Citation.Format

	cfg.PackagesEnabled = c.Packages.Enabled
	cfg.PackageSearchCommand = c.Packages.SearchCommand
	cfg.PackageMetadataCommand = c.Packages.MetadataCommand
	return cfg
}

// Update changes server values and saves to file
func (c *Config) Update(configPath string, maxLimit, minPrefix *int, userCompletions *string) error {
	server := &c.Server
	if maxLimit != nil {
		server.MaxLimit = *maxLimit
	}
	if minPrefix != nil {
		server.MinPrefix = *minPrefix
	}
	if userCompletions != nil {
		server.UserCompletions = *userCompletions
	}
	return SaveConfig(c, configPath)
}
