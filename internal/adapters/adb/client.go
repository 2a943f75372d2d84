package adb

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/bnema/mirrorctl/internal/domain"
)

var ErrUnavailable = fmt.Errorf("adb command unavailable: %w", domain.ErrTransport)

type runFunc func(ctx context.Context, args ...string) (stdout string, stderr string, err error)

// Entry is one line of `adb devices -l`.
type Entry struct {
	Serial  string
	State   string
	Model   string
	Product string
	Device  string
}

type Client struct {
	path string
	run  runFunc
}

func NewClient(path string) *Client {
	if strings.TrimSpace(path) == "" {
		path = "adb"
	}

	c := &Client{path: path}
	c.run = c.runADB
	return c
}

func (c *Client) Path() string {
	return c.path
}

func (c *Client) StartServer(ctx context.Context) error {
	_, stderr, err := c.run(ctx, "start-server")
	if err != nil {
		return formatError("start-server", err, stderr)
	}

	return nil
}

func (c *Client) Devices(ctx context.Context) ([]Entry, error) {
	stdout, stderr, err := c.run(ctx, "devices", "-l")
	if err != nil {
		return nil, formatError("devices", err, stderr)
	}

	return ParseDevices(stdout), nil
}

// ParseDevices reads the output of `adb devices -l`, skipping the banner and
// daemon status lines.
func ParseDevices(out string) []Entry {
	var entries []Entry
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		entry := Entry{Serial: fields[0], State: fields[1]}
		for _, field := range fields[2:] {
			key, value, ok := strings.Cut(field, ":")
			if !ok {
				continue
			}
			switch key {
			case "model":
				entry.Model = strings.ReplaceAll(value, "_", " ")
			case "product":
				entry.Product = value
			case "device":
				entry.Device = value
			}
		}
		entries = append(entries, entry)
	}

	return entries
}

func (c *Client) Model(ctx context.Context, serial string) (string, error) {
	stdout, stderr, err := c.run(ctx, "-s", serial, "shell", "getprop", "ro.product.model")
	if err != nil {
		return "", formatError("getprop", err, stderr)
	}

	return strings.TrimSpace(stdout), nil
}

// Connect returns adb's own report, which callers inspect to decide success.
func (c *Client) Connect(ctx context.Context, address string) (string, error) {
	stdout, stderr, err := c.run(ctx, "connect", address)
	if err != nil {
		return "", formatError("connect", err, stderr)
	}

	return strings.TrimSpace(stdout), nil
}

func (c *Client) Disconnect(ctx context.Context, serial string) (string, error) {
	stdout, stderr, err := c.run(ctx, "disconnect", serial)
	if err != nil {
		return "", formatError("disconnect", err, stderr)
	}

	return strings.TrimSpace(stdout), nil
}

func (c *Client) TCPIP(ctx context.Context, serial string, port int) error {
	_, stderr, err := c.run(ctx, "-s", serial, "tcpip", strconv.Itoa(port))
	if err != nil {
		return formatError("tcpip", err, stderr)
	}

	return nil
}

// DeviceIP reads the device's address from its routing table, falling back to
// the wlan0 interface.
func (c *Client) DeviceIP(ctx context.Context, serial string) (string, error) {
	stdout, _, err := c.run(ctx, "-s", serial, "shell", "ip", "route")
	if err == nil {
		if ip := parseRouteSource(stdout); ip != "" {
			return ip, nil
		}
	}

	stdout, stderr, err := c.run(ctx, "-s", serial, "shell", "ip", "-f", "inet", "addr", "show", "wlan0")
	if err != nil {
		return "", formatError("ip addr", err, stderr)
	}
	if ip := parseInetAddr(stdout); ip != "" {
		return ip, nil
	}

	return "", fmt.Errorf("adb ip: no wireless address found on %s: %w", serial, domain.ErrRejected)
}

func (c *Client) Version(ctx context.Context) (string, error) {
	stdout, stderr, err := c.run(ctx, "version")
	if err != nil {
		return "", formatError("version", err, stderr)
	}

	line, _, _ := strings.Cut(strings.TrimSpace(stdout), "\n")
	return strings.TrimSpace(line), nil
}

func parseRouteSource(out string) string {
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		for i := 0; i+1 < len(fields); i++ {
			if fields[i] == "src" {
				return fields[i+1]
			}
		}
	}

	return ""
}

func parseInetAddr(out string) string {
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[0] == "inet" {
			ip, _, _ := strings.Cut(fields[1], "/")
			return ip
		}
	}

	return ""
}

func (c *Client) runADB(ctx context.Context, args ...string) (string, string, error) {
	path, err := exec.LookPath(c.path)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", "", ErrUnavailable
		}
		return "", "", fmt.Errorf("locate adb: %w: %w", err, domain.ErrTransport)
	}

	cmd := exec.CommandContext(ctx, path, args...)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	return stdout.String(), strings.TrimSpace(stderr.String()), err
}

// formatError classifies a failed adb invocation. Daemon and context
// failures are transport problems; everything else is adb refusing the request.
func formatError(op string, err error, stderr string) error {
	kind := domain.ErrRejected
	switch {
	case errors.Is(err, domain.ErrTransport):
		kind = nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		kind = domain.ErrTransport
	case strings.Contains(stderr, "daemon"), strings.Contains(stderr, "cannot connect to"):
		kind = domain.ErrTransport
	}

	msg := fmt.Sprintf("adb %s", op)
	if stderr != "" {
		msg = fmt.Sprintf("adb %s: %s", op, stderr)
	}
	if kind == nil {
		return fmt.Errorf("%s: %w", msg, err)
	}

	return fmt.Errorf("%s: %w: %w", msg, err, kind)
}
