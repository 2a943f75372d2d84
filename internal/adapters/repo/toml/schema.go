package toml

import "fmt"

const currentSchemaVersion = 1

type fileSchema struct {
	Version    int            `toml:"version"`
	UpdatedAt  string         `toml:"updated_at,omitempty"`
	Defaults   *optionsSchema `toml:"defaults,omitempty"`
	KnownHosts []string       `toml:"known_hosts,omitempty"`
	Devices    []deviceSchema `toml:"devices,omitempty"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported settings schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type deviceSchema struct {
	ID      string        `toml:"id"`
	Options optionsSchema `toml:"options"`
}

type optionsSchema struct {
	MaxSize       int  `toml:"max_size"`
	BitRate       int  `toml:"bit_rate"`
	MaxFPS        int  `toml:"max_fps"`
	AlwaysOnTop   bool `toml:"always_on_top"`
	StayAwake     bool `toml:"stay_awake"`
	TurnScreenOff bool `toml:"turn_screen_off"`
}
