package application

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/bnema/mirrorctl/internal/domain"
)

type DeviceDelta struct {
	Added         []domain.DeviceID
	Removed       []domain.DeviceID
	StatusChanged []domain.DeviceID
	Updated       []domain.DeviceID
	// Initial is set for the first snapshot applied to an empty registry.
	Initial bool
}

func (d DeviceDelta) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.StatusChanged) == 0 && len(d.Updated) == 0
}

// DeviceRegistry holds the last device scan. It is only ever swapped wholesale.
type DeviceRegistry struct {
	log zerolog.Logger

	mu        sync.RWMutex
	devices   map[domain.DeviceID]domain.Device
	order     []domain.DeviceID
	populated bool
	listeners []func(DeviceDelta)
}

func NewDeviceRegistry(log zerolog.Logger) *DeviceRegistry {
	return &DeviceRegistry{
		log:     log.With().Str("component", "device_registry").Logger(),
		devices: map[domain.DeviceID]domain.Device{},
	}
}

// OnChange registers fn to receive every non-empty delta produced by Replace.
func (r *DeviceRegistry) OnChange(fn func(DeviceDelta)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.listeners = append(r.listeners, fn)
}

func (r *DeviceRegistry) Replace(devices []domain.Device) DeviceDelta {
	next := make(map[domain.DeviceID]domain.Device, len(devices))
	order := make([]domain.DeviceID, 0, len(devices))
	for _, device := range devices {
		if err := device.Validate(); err != nil {
			r.log.Warn().Err(err).Msg("dropping device without id from scan")
			continue
		}
		if _, dup := next[device.ID]; dup {
			r.log.Warn().Str("device_id", string(device.ID)).Msg("duplicate device in scan, keeping last entry")
		} else {
			order = append(order, device.ID)
		}
		next[device.ID] = device
	}

	r.mu.Lock()
	prev := r.devices
	delta := diffDevices(prev, next)
	delta.Initial = !r.populated
	r.devices = next
	r.order = order
	r.populated = true
	listeners := append([]func(DeviceDelta){}, r.listeners...)
	r.mu.Unlock()

	if !delta.Empty() {
		for _, fn := range listeners {
			fn(delta)
		}
	}

	return delta
}

func (r *DeviceRegistry) Get(id domain.DeviceID) (domain.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	device, ok := r.devices[id]
	return device, ok
}

// List returns the devices in scan order.
func (r *DeviceRegistry) List() []domain.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Device, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.devices[id])
	}

	return out
}

func (r *DeviceRegistry) Populated() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.populated
}

func diffDevices(prev, next map[domain.DeviceID]domain.Device) DeviceDelta {
	var delta DeviceDelta
	for id, device := range next {
		old, ok := prev[id]
		switch {
		case !ok:
			delta.Added = append(delta.Added, id)
		case old.Status != device.Status:
			delta.StatusChanged = append(delta.StatusChanged, id)
		case old != device:
			delta.Updated = append(delta.Updated, id)
		}
	}
	for id := range prev {
		if _, ok := next[id]; !ok {
			delta.Removed = append(delta.Removed, id)
		}
	}

	sortDeviceIDs(delta.Added)
	sortDeviceIDs(delta.Removed)
	sortDeviceIDs(delta.StatusChanged)
	sortDeviceIDs(delta.Updated)
	return delta
}

func sortDeviceIDs(ids []domain.DeviceID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
