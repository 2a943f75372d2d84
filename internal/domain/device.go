package domain

import (
	"fmt"
	"strings"
)

type DeviceID string

type ConnectionType string

const (
	ConnectionUSB      ConnectionType = "USB"
	ConnectionWireless ConnectionType = "Wireless"
)

type DeviceStatus string

const (
	DeviceConnected    DeviceStatus = "Connected"
	DeviceDisconnected DeviceStatus = "Disconnected"
	DeviceUnauthorized DeviceStatus = "Unauthorized"
	DeviceOffline      DeviceStatus = "Offline"
)

type Device struct {
	ID             DeviceID
	Name           string
	Model          string
	ConnectionType ConnectionType
	Status         DeviceStatus
	// IPAddress is only set for wireless devices.
	IPAddress string
}

func (d Device) Validate() error {
	if strings.TrimSpace(string(d.ID)) == "" {
		return fmt.Errorf("device id is required")
	}

	return nil
}

func (d Device) IsConnected() bool {
	return d.Status == DeviceConnected
}

func (d Device) IsWireless() bool {
	return d.ConnectionType == ConnectionWireless
}

func (d Device) DisplayName() string {
	if name := strings.TrimSpace(d.Name); name != "" {
		return name
	}

	return string(d.ID)
}
