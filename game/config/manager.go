package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/wricardo/tilematch/game/engine"
	"github.com/wricardo/tilematch/game/service"
)

var (
	ErrConfigNotFound = service.ErrConfigNotFound
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// Extensions lists the file types the manager reads, in lookup order
var Extensions = []string{".json", ".yaml", ".yml"}

// DefaultName is the config used when a session names none
const DefaultName = "classic"

// Manager handles board configuration loading and caching
type Manager struct {
	configDir     string
	defaultConfig *engine.Config
	configs       map[string]*engine.Config
	mu            sync.RWMutex
}

// NewManager creates a new configuration manager
func NewManager(configDir string) (*Manager, error) {
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("config directory does not exist: %s", configDir)
	}

	m := &Manager{
		configDir: configDir,
		configs:   make(map[string]*engine.Config),
	}

	m.defaultConfig = m.loadDefaultConfig()
	return m, nil
}

// configID strips a known extension from name
func configID(name string) string {
	for _, ext := range Extensions {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext)
		}
	}
	return name
}

// LoadConfig loads a configuration by name, with or without its extension
func (m *Manager) LoadConfig(name string) (*engine.Config, error) {
	id := configID(name)
	if id == "" || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return nil, ErrConfigNotFound
	}

	m.mu.RLock()
	if config, exists := m.configs[id]; exists {
		m.mu.RUnlock()
		return config, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if config, exists := m.configs[id]; exists {
		return config, nil
	}

	path, err := m.findFile(name)
	if err != nil {
		return nil, err
	}

	config, err := readConfig(path)
	if err != nil {
		return nil, err
	}
	if config.Name == "" {
		config.Name = id
	}

	m.configs[id] = config
	return config, nil
}

// findFile resolves name to a file in the config directory. A name that
// already carries an extension is used as is.
func (m *Manager) findFile(name string) (string, error) {
	candidates := []string{name}
	if configID(name) == name {
		candidates = candidates[:0]
		for _, ext := range Extensions {
			candidates = append(candidates, name+ext)
		}
	}
	for _, c := range candidates {
		path := filepath.Join(m.configDir, c)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", ErrConfigNotFound
}

// readConfig parses one config file. Timing and rule fields missing from the
// file take the engine defaults; the grid size must always be given.
func readConfig(path string) (*engine.Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("match_size", engine.DefaultMatchSize)
	v.SetDefault("token_types", engine.DefaultTokenTypes)
	v.SetDefault("fall_ms_per_cell", engine.DefaultFallMillisPerCell)
	v.SetDefault("shrink_ms", engine.DefaultShrinkMillis)
	v.SetDefault("swap_ms_per_cell", engine.DefaultSwapMillisPerCell)
	v.SetDefault("mode", string(engine.ModeTap))
	v.SetDefault("no_match_policy", string(engine.PolicyRevert))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", filepath.Base(path), err)
	}

	var config engine.Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", filepath.Base(path), err)
	}
	config.ApplyDefaults()

	if err := engine.ValidateConfig(&config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &config, nil
}

// ListConfigs returns information about all valid configurations
func (m *Manager) ListConfigs() ([]*service.ConfigInfo, error) {
	entries, err := os.ReadDir(m.configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	var configs []*service.ConfigInfo
	seen := make(map[string]bool)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id := configID(entry.Name())
		if id == entry.Name() || seen[id] {
			continue
		}

		config, err := m.LoadConfig(entry.Name())
		if err != nil {
			// Skip invalid configs
			continue
		}
		seen[id] = true

		configs = append(configs, &service.ConfigInfo{
			Filename:    entry.Name(),
			ConfigID:    id,
			Name:        config.Name,
			Description: config.Description,
			GridX:       config.GridX,
			GridY:       config.GridY,
			MatchSize:   config.MatchSize,
			TokenTypes:  config.TokenTypes,
			Mode:        config.Mode,
		})
	}

	sort.Slice(configs, func(i, j int) bool { return configs[i].ConfigID < configs[j].ConfigID })
	return configs, nil
}

// GetDefault returns the default configuration
func (m *Manager) GetDefault() *engine.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultConfig
}

// SetDefault sets the default configuration by name
func (m *Manager) SetDefault(name string) error {
	config, err := m.LoadConfig(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultConfig = config
	return nil
}

// RefreshCache drops every cached configuration and reloads the default
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	m.configs = make(map[string]*engine.Config)
	m.mu.Unlock()

	def := m.loadDefaultConfig()

	m.mu.Lock()
	m.defaultConfig = def
	m.mu.Unlock()
}

// loadDefaultConfig picks classic, then the first valid file, then the
// built-in engine default.
func (m *Manager) loadDefaultConfig() *engine.Config {
	if config, err := m.LoadConfig(DefaultName); err == nil {
		return config
	}

	configs, err := m.ListConfigs()
	if err == nil && len(configs) > 0 {
		if config, err := m.LoadConfig(configs[0].Filename); err == nil {
			return config
		}
	}

	return engine.DefaultConfig()
}

// SaveConfig validates config and writes it to disk. Names ending in .yaml or
// .yml are written as YAML, everything else as JSON.
func (m *Manager) SaveConfig(name string, config *engine.Config) error {
	if config == nil {
		return fmt.Errorf("%w: config is required", ErrInvalidConfig)
	}
	id := configID(name)
	if id == "" || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return fmt.Errorf("%w: bad config name %q", ErrInvalidConfig, name)
	}

	cfg := *config
	cfg.ApplyDefaults()
	if err := engine.ValidateConfig(&cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	filename := name
	if id == name {
		filename = name + ".json"
	}
	configPath := filepath.Join(m.configDir, filename)

	data, err := json.MarshalIndent(&cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if ext := filepath.Ext(filename); ext == ".yaml" || ext == ".yml" {
		if err := writeYAML(configPath, data); err != nil {
			return err
		}
	} else if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	m.mu.Lock()
	m.configs[id] = &cfg
	m.mu.Unlock()

	return nil
}

// writeYAML re-encodes the JSON form of a config through viper so the YAML
// keys match the JSON ones.
func writeYAML(path string, data []byte) error {
	var settings map[string]interface{}
	if err := json.Unmarshal(data, &settings); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	v := viper.New()
	if err := v.MergeConfigMap(settings); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
