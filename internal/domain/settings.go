package domain

import (
	"sort"
	"strings"
	"time"
)

type Settings struct {
	DefaultOptions MirrorOptions
	DeviceOptions  map[DeviceID]MirrorOptions
	KnownHosts     []string
	UpdatedAt      time.Time
}

func DefaultSettings() Settings {
	return Settings{
		DefaultOptions: DefaultMirrorOptions(),
		DeviceOptions:  map[DeviceID]MirrorOptions{},
	}
}

func (s Settings) OptionsFor(id DeviceID) MirrorOptions {
	if opts, ok := s.DeviceOptions[id]; ok {
		return opts
	}

	return s.DefaultOptions
}

func (s *Settings) RememberHost(host string) bool {
	if s == nil {
		return false
	}

	trimmed := strings.TrimSpace(host)
	if trimmed == "" {
		return false
	}
	for _, known := range s.KnownHosts {
		if known == trimmed {
			return false
		}
	}

	s.KnownHosts = append(s.KnownHosts, trimmed)
	sort.Strings(s.KnownHosts)
	return true
}

func (s *Settings) ForgetHost(host string) bool {
	if s == nil {
		return false
	}

	trimmed := strings.TrimSpace(host)
	for i, known := range s.KnownHosts {
		if known == trimmed {
			s.KnownHosts = append(s.KnownHosts[:i], s.KnownHosts[i+1:]...)
			return true
		}
	}

	return false
}
