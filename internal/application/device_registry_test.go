package application

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/mirrorctl/internal/domain"
)

func TestDeviceRegistryReplaceReflectsLastSnapshot(t *testing.T) {
	t.Parallel()

	r := NewDeviceRegistry(testLog)
	r.Replace([]domain.Device{connected("a"), connected("b")})
	r.Replace([]domain.Device{connected("c")})

	_, ok := r.Get("a")
	assert.False(t, ok)
	_, ok = r.Get("b")
	assert.False(t, ok)
	got, ok := r.Get("c")
	require.True(t, ok)
	assert.Equal(t, connected("c"), got)
	assert.Equal(t, []domain.Device{connected("c")}, r.List())

	r.Replace(nil)
	assert.Empty(t, r.List())
	assert.True(t, r.Populated())
}

func TestDeviceRegistryReplaceComputesDelta(t *testing.T) {
	t.Parallel()

	r := NewDeviceRegistry(testLog)
	initial := r.Replace([]domain.Device{connected("a"), connected("b"), connected("c")})
	assert.True(t, initial.Initial)
	assert.Equal(t, []domain.DeviceID{"a", "b", "c"}, initial.Added)

	unauthorized := connected("b")
	unauthorized.Status = domain.DeviceUnauthorized
	renamed := connected("c")
	renamed.Name = "Tablet"

	delta := r.Replace([]domain.Device{unauthorized, renamed, connected("d")})

	assert.False(t, delta.Initial)
	assert.Equal(t, []domain.DeviceID{"d"}, delta.Added)
	assert.Equal(t, []domain.DeviceID{"a"}, delta.Removed)
	assert.Equal(t, []domain.DeviceID{"b"}, delta.StatusChanged)
	assert.Equal(t, []domain.DeviceID{"c"}, delta.Updated)
}

func TestDeviceRegistryOnChangeOnlyForNonEmptyDelta(t *testing.T) {
	t.Parallel()

	r := NewDeviceRegistry(testLog)
	var deltas []DeviceDelta
	r.OnChange(func(d DeviceDelta) { deltas = append(deltas, d) })

	r.Replace([]domain.Device{connected("a")})
	r.Replace([]domain.Device{connected("a")})
	r.Replace(nil)

	require.Len(t, deltas, 2)
	assert.Equal(t, []domain.DeviceID{"a"}, deltas[0].Added)
	assert.Equal(t, []domain.DeviceID{"a"}, deltas[1].Removed)
}

func TestDeviceRegistryDropsInvalidAndDuplicateDevices(t *testing.T) {
	t.Parallel()

	r := NewDeviceRegistry(testLog)
	second := connected("a")
	second.Name = "Second"

	r.Replace([]domain.Device{connected("a"), {ID: ""}, second})

	list := r.List()
	require.Len(t, list, 1)
	assert.Equal(t, "Second", list[0].Name)
}
