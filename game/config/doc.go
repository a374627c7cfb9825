// Package config loads board configurations from a directory of JSON or YAML
// files.
//
// Each file describes one board: its size, the minimum group size that
// counts as a match, how many token types are dealt, animation timings and
// whether the board is played by tapping groups or by swapping neighbours.
// Fields missing from a file fall back to the engine defaults, except the
// grid size which must always be present.
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Load a configuration, with or without its extension
//	boardConfig, err := manager.LoadConfig("swap")
//
//	// classic when present, else the first valid file, else the built-in default
//	defaultConfig := manager.GetDefault()
//
//	configs, err := manager.ListConfigs()
//
// Configurations are cached after the first load. RefreshCache drops the
// cache so edited files are read again.
package config
