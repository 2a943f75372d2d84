package application

import "github.com/bnema/mirrorctl/internal/domain"

type StartMirroringCommand struct {
	DeviceID domain.DeviceID
	// Options overrides the stored options for this start only.
	Options *domain.MirrorOptions
}

type SetOptionsCommand struct {
	// DeviceID scopes the options to one device; empty updates the defaults.
	DeviceID domain.DeviceID
	Options  domain.MirrorOptions
}
