package domain

import "fmt"

const (
	DefaultMaxSize = 1920
	DefaultBitRate = 8_000_000
	DefaultMaxFPS  = 60
)

// MirrorOptions tunes a mirroring session. Zero numeric fields leave the
// mirroring tool's own default in place.
type MirrorOptions struct {
	MaxSize       int
	BitRate       int
	MaxFPS        int
	AlwaysOnTop   bool
	StayAwake     bool
	TurnScreenOff bool
}

func DefaultMirrorOptions() MirrorOptions {
	return MirrorOptions{
		MaxSize:   DefaultMaxSize,
		BitRate:   DefaultBitRate,
		MaxFPS:    DefaultMaxFPS,
		StayAwake: true,
	}
}

func (o MirrorOptions) Validate() error {
	if o.MaxSize < 0 {
		return fmt.Errorf("max size must not be negative")
	}
	if o.BitRate < 0 {
		return fmt.Errorf("bit rate must not be negative")
	}
	if o.MaxFPS < 0 {
		return fmt.Errorf("max fps must not be negative")
	}

	return nil
}
