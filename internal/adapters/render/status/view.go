package status

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/mirrorctl/internal/application"
	"github.com/bnema/mirrorctl/internal/domain"
)

type RenderOptions struct {
	Now        time.Time
	StaleAfter time.Duration
	// Devices limits the output to these ids when non-empty.
	Devices       []domain.DeviceID
	Notifications []domain.Notification
}

// View renders a snapshot without going through a bubbletea program.
func View(snapshot application.Snapshot, opts RenderOptions) string {
	return renderView(snapshot, opts, newStyles())
}

func renderView(snapshot application.Snapshot, opts RenderOptions, s styles) string {
	devices := filterDevices(snapshot.Devices, opts.Devices)

	header := fmt.Sprintf("devices: %d  sessions: %d  started: %d", len(devices), snapshot.Stats.ActiveSessions, snapshot.Stats.TotalStarted)
	lines := []string{
		s.title.Render("Android Mirroring"),
		s.header.Render(header),
	}
	if warning := staleLine(snapshot, opts, s); warning != "" {
		lines = append(lines, warning)
	}

	if len(devices) == 0 {
		lines = append(lines, s.empty.Render("No devices found."))
	}
	for _, device := range devices {
		lines = append(lines, s.section.Render(renderDevice(snapshot, device, opts, s)))
	}

	if orphans := orphanSessions(snapshot, opts.Devices); len(orphans) > 0 {
		block := []string{s.key.Render("sessions without a device:")}
		for _, view := range orphans {
			block = append(block, sessionLine(view, opts.Now, s))
		}
		lines = append(lines, s.section.Render(lipgloss.JoinVertical(lipgloss.Left, block...)))
	}

	if len(opts.Notifications) > 0 {
		block := []string{s.key.Render("events:")}
		for _, n := range opts.Notifications {
			block = append(block, renderNotification(n, s))
		}
		lines = append(lines, s.section.Render(lipgloss.JoinVertical(lipgloss.Left, block...)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderDevice(snapshot application.Snapshot, device domain.Device, opts RenderOptions, s styles) string {
	title := lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.device.Render(deviceTitle(device)),
		" ",
		deviceStatusStyle(device.Status, s).Render(string(device.Status)),
	)
	parts := []string{title, s.detail.Render(connectionLine(device))}

	if view, ok := snapshot.SessionForDevice(device.ID); ok {
		parts = append(parts, sessionLine(view, opts.Now, s))
	} else {
		parts = append(parts, s.empty.Render("not mirroring"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func deviceTitle(device domain.Device) string {
	name := strings.TrimSpace(device.DisplayName())
	if name == string(device.ID) {
		return name
	}

	return fmt.Sprintf("%s (%s)", name, device.ID)
}

func connectionLine(device domain.Device) string {
	if device.IsWireless() && device.IPAddress != "" {
		return fmt.Sprintf("connection: %s %s", device.ConnectionType, device.IPAddress)
	}

	return fmt.Sprintf("connection: %s", device.ConnectionType)
}

func sessionLine(view application.SessionView, now time.Time, s styles) string {
	label := s.key.Render("session:")
	status := sessionStatusStyle(view.Status, s).Render(string(view.Status))
	meta := s.meta.Render(fmt.Sprintf("(%s)", formatUptime(view.Session.StartedAt, now)))

	return lipgloss.JoinHorizontal(lipgloss.Top, label, " ", string(view.Session.ID), " ", status, " ", meta)
}

func staleLine(snapshot application.Snapshot, opts RenderOptions, s styles) string {
	if snapshot.LastError != "" {
		return s.warning.Render("[refresh failing] " + snapshot.LastError)
	}
	if opts.Now.IsZero() || opts.StaleAfter <= 0 || snapshot.UpdatedAt.IsZero() {
		return ""
	}
	if opts.Now.Sub(snapshot.UpdatedAt) > opts.StaleAfter {
		return s.warning.Render(fmt.Sprintf("[stale] last refresh %s ago", formatDuration(opts.Now.Sub(snapshot.UpdatedAt))))
	}

	return ""
}

// RenderNotification formats one notification as a single styled line.
func RenderNotification(n domain.Notification) string {
	return renderNotification(n, newStyles())
}

func renderNotification(n domain.Notification, s styles) string {
	style := s.info
	marker := "-"
	switch n.Level {
	case domain.LevelSuccess:
		style, marker = s.success, "+"
	case domain.LevelError:
		style, marker = s.failure, "!"
	}

	line := fmt.Sprintf("%s %s", marker, n.Message)
	if !n.At.IsZero() {
		line = fmt.Sprintf("%s %s", n.At.Local().Format("15:04:05"), line)
	}
	if n.ErrorKind != "" && n.ErrorKind != domain.KindUnknown {
		line += fmt.Sprintf(" [%s]", n.ErrorKind)
	}

	return style.Render(line)
}

func deviceStatusStyle(status domain.DeviceStatus, s styles) lipgloss.Style {
	switch status {
	case domain.DeviceConnected:
		return s.connected
	case domain.DeviceUnauthorized:
		return s.attention
	default:
		return s.inactive
	}
}

func sessionStatusStyle(status domain.SessionStatus, s styles) lipgloss.Style {
	switch status {
	case domain.SessionRunning:
		return s.running
	case domain.SessionError:
		return s.failure
	default:
		return s.inactive
	}
}

func filterDevices(devices []domain.Device, only []domain.DeviceID) []domain.Device {
	if len(only) == 0 {
		return devices
	}

	wanted := make(map[domain.DeviceID]struct{}, len(only))
	for _, id := range only {
		wanted[id] = struct{}{}
	}

	out := make([]domain.Device, 0, len(only))
	for _, device := range devices {
		if _, ok := wanted[device.ID]; ok {
			out = append(out, device)
		}
	}

	return out
}

func orphanSessions(snapshot application.Snapshot, only []domain.DeviceID) []application.SessionView {
	var out []application.SessionView
	for _, view := range snapshot.Sessions {
		if view.Device != nil {
			continue
		}
		if len(only) > 0 && !containsDevice(only, view.Session.DeviceID) {
			continue
		}
		out = append(out, view)
	}

	return out
}

func containsDevice(ids []domain.DeviceID, id domain.DeviceID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}

	return false
}

func formatUptime(startedAt, now time.Time) string {
	if startedAt.IsZero() {
		return "started at unknown time"
	}
	if now.IsZero() {
		return "started " + startedAt.Format(time.RFC3339)
	}
	if startedAt.After(now) {
		return "just started"
	}

	return "up " + formatDuration(now.Sub(startedAt))
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(math.Floor(d.Seconds())))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(math.Floor(d.Minutes())))
	case d < 24*time.Hour:
		hours := int(math.Floor(d.Hours()))
		minutes := int(math.Floor(d.Minutes())) - hours*60
		return fmt.Sprintf("%dh%02dm", hours, minutes)
	default:
		return fmt.Sprintf("%dd", int(math.Floor(d.Hours()/24)))
	}
}
