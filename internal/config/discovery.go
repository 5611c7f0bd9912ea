package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// DiscoverBots loads every bot under dir. A subdirectory is a bot when it
// holds a bot.yaml; dir/default.yaml, when present, is merged underneath
// each one. When only is non-empty, bots are kept only if their name or
// directory name is listed. Two bots with the same name are an error.
func DiscoverBots(dir string, only []string, logger *slog.Logger) ([]*BotConfig, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "config", "bots_dir", dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read bots directory: %v", ErrConfiguration, err)
	}

	defaults, err := readYAMLMap(filepath.Join(dir, DefaultsFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfiguration, DefaultsFile, err)
	}

	var bots []*BotConfig
	seen := make(map[string]string)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		botDir := filepath.Join(dir, entry.Name())
		raw, err := readYAMLMap(filepath.Join(botDir, BotFile))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				log.Warn("Not loading directory: missing "+BotFile, "directory", entry.Name())
				continue
			}
			return nil, fmt.Errorf("%w: %s: %v", ErrConfiguration, filepath.Join(entry.Name(), BotFile), err)
		}

		cfg, err := newBotConfig(botDir, mergeBotMaps(defaults, raw))
		if err != nil {
			return nil, err
		}
		if len(only) > 0 && !slices.Contains(only, cfg.Name) && !slices.Contains(only, entry.Name()) {
			continue
		}
		if other, dup := seen[cfg.Name]; dup {
			return nil, fmt.Errorf("%w: two different bots are configured with the same name %q (%s and %s)",
				ErrConfiguration, cfg.Name, other, entry.Name())
		}
		seen[cfg.Name] = entry.Name()
		bots = append(bots, cfg)
	}

	if len(only) > 0 {
		for _, want := range only {
			if !matchesAny(bots, want) {
				return nil, fmt.Errorf("%w: no bot named %q in %s", ErrConfiguration, want, dir)
			}
		}
	}

	log.Debug("Discovered bots", "count", len(bots))
	return bots, nil
}

func matchesAny(bots []*BotConfig, want string) bool {
	for _, b := range bots {
		if b.Name == want || filepath.Base(b.Directory) == want {
			return true
		}
	}
	return false
}

func newBotConfig(dir string, raw map[string]any) (*BotConfig, error) {
	opts := Options(raw)
	cfg := &BotConfig{
		Name:                opts.String("name", filepath.Base(dir)),
		Generator:           opts.String("generator", ""),
		Directory:           dir,
		Schedule:            raw["schedule"],
		StateUpdateSchedule: raw["state_update_schedule"],
		Publish:             map[string]Options{},
		Options:             opts,
	}

	if publish, ok := raw["publish"]; ok && publish != nil {
		services, ok := publish.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: bot %s: publish must be a mapping of service to settings", ErrConfiguration, cfg.Name)
		}
		for service, block := range services {
			switch b := block.(type) {
			case nil:
				cfg.Publish[service] = Options{}
			case map[string]any:
				cfg.Publish[service] = Options(b)
			default:
				return nil, fmt.Errorf("%w: bot %s: publish.%s must be a mapping", ErrConfiguration, cfg.Name, service)
			}
		}
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: bot in %s: %s", ErrConfiguration, dir, describe(err))
	}
	return cfg, nil
}

// mergeBotMaps lays bot over defaults. Publisher blocks are merged per
// service, and only for services the bot itself lists: defaults can share
// credentials but never add a publisher to a bot.
func mergeBotMaps(defaults, bot map[string]any) map[string]any {
	merged := maps.Clone(defaults)
	if merged == nil {
		merged = map[string]any{}
	}
	delete(merged, "publish")
	delete(merged, "name")
	maps.Copy(merged, bot)

	botPublish, ok := bot["publish"].(map[string]any)
	if !ok {
		return merged
	}
	defaultPublish, _ := defaults["publish"].(map[string]any)

	publish := make(map[string]any, len(botPublish))
	for service, block := range botPublish {
		base, _ := defaultPublish[service].(map[string]any)
		own, isMap := block.(map[string]any)
		switch {
		case block == nil && base != nil:
			publish[service] = maps.Clone(base)
		case isMap && base != nil:
			combined := maps.Clone(base)
			maps.Copy(combined, own)
			publish[service] = combined
		default:
			publish[service] = block
		}
	}
	merged["publish"] = publish
	return merged
}

func readYAMLMap(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	return out, nil
}
