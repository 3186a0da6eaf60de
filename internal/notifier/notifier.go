// Package notifier delivers local device notifications to the mimamori tray
// companion over its loopback webhook.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/julianstephens/mimamori/internal/constants"
)

var (
	userConfigDirFunc = os.UserConfigDir
	findProcessFunc   = ps.FindProcess
)

var (
	ErrTrayNotRunning    = errors.New("mimamori-tray is not running")
	ErrMalformedLockfile = errors.New("lockfile is malformed")
)

// Notification is a single local notification. Tag lets the tray collapse
// repeated notifications for the same alert.
type Notification struct {
	Title string
	Body  string
	Tag   string
}

type webhookPayload struct {
	Title      string `json:"title"`
	Text       string `json:"text"`
	Tag        string `json:"tag,omitempty"`
	DurationMs uint32 `json:"duration_ms"`
}

// endpoint is the parsed content of the tray lockfile: "port|pid|secret".
type endpoint struct {
	Port   int
	PID    int
	Secret string
}

type Notifier struct {
	lockfilePath string
	client       *http.Client
}

// New returns a notifier that locates the tray through the default lockfile.
func New() *Notifier {
	return &Notifier{client: &http.Client{Timeout: 5 * time.Second}}
}

// NewWithLockfile returns a notifier bound to an explicit lockfile path.
func NewWithLockfile(path string) *Notifier {
	n := New()
	n.lockfilePath = path
	return n
}

// Notify posts n to the running tray companion.
func (n *Notifier) Notify(ctx context.Context, msg Notification) error {
	path := n.lockfilePath
	if path == "" {
		dir, err := TrayConfigDir()
		if err != nil {
			return err
		}
		path = filepath.Join(dir, constants.NotifierLockfileName)
	}

	ep, err := locateTray(path)
	if err != nil {
		return err
	}

	title := msg.Title
	if title == "" {
		title = constants.NotificationTitle
	}
	return n.post(ctx, ep, webhookPayload{
		Title:      title,
		Text:       msg.Body,
		Tag:        msg.Tag,
		DurationMs: constants.NotificationDurationMs,
	})
}

// Available reports whether a tray companion is running and reachable through its lockfile.
func (n *Notifier) Available() error {
	path := n.lockfilePath
	if path == "" {
		dir, err := TrayConfigDir()
		if err != nil {
			return err
		}
		path = filepath.Join(dir, constants.NotifierLockfileName)
	}
	_, err := locateTray(path)
	return err
}

// TrayConfigDir returns the directory holding the tray lockfile. The tray may
// override it with "lockfile_dir" in its settings.json.
func TrayConfigDir() (string, error) {
	configDir, err := userConfigDirFunc()
	if err != nil {
		return "", fmt.Errorf("failed to get user config dir: %w", err)
	}
	trayDir := filepath.Join(configDir, constants.TrayAppIdentifier)

	data, err := os.ReadFile(filepath.Join(trayDir, "settings.json"))
	if err != nil {
		return trayDir, nil
	}
	var store struct {
		Settings struct {
			LockfileDir string `json:"lockfile_dir"`
		} `json:"settings"`
	}
	if err := json.Unmarshal(data, &store); err == nil && store.Settings.LockfileDir != "" {
		return store.Settings.LockfileDir, nil
	}
	return trayDir, nil
}

func parseLockfile(content string) (endpoint, error) {
	parts := strings.Split(strings.TrimSpace(content), "|")
	if len(parts) != 3 {
		return endpoint{}, ErrMalformedLockfile
	}

	port, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return endpoint{}, fmt.Errorf("%w: invalid port %q", ErrMalformedLockfile, parts[0])
	}
	if port < 1 || port > 65535 {
		return endpoint{}, fmt.Errorf("%w: port %d is outside valid range (1-65535)", ErrMalformedLockfile, port)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return endpoint{}, fmt.Errorf("%w: invalid process ID %q", ErrMalformedLockfile, parts[1])
	}

	secret := strings.TrimSpace(parts[2])
	if secret == "" {
		return endpoint{}, fmt.Errorf("%w: secret is empty", ErrMalformedLockfile)
	}

	return endpoint{Port: port, PID: pid, Secret: secret}, nil
}

func locateTray(lockfilePath string) (endpoint, error) {
	content, err := os.ReadFile(lockfilePath)
	if err != nil {
		return endpoint{}, ErrTrayNotRunning
	}

	ep, err := parseLockfile(string(content))
	if err != nil {
		return endpoint{}, err
	}

	process, err := findProcessFunc(ep.PID)
	if err != nil || process == nil {
		return endpoint{}, fmt.Errorf("%w: no process with PID %d", ErrTrayNotRunning, ep.PID)
	}
	if !strings.HasPrefix(process.Executable(), constants.TrayAppExecutable) {
		return endpoint{}, fmt.Errorf("%w: PID %d is %s", ErrTrayNotRunning, ep.PID, process.Executable())
	}

	return ep, nil
}

func (n *Notifier) post(ctx context.Context, ep endpoint, payload webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	url := fmt.Sprintf("http://127.0.0.1:%d", ep.Port)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Mimamori-Secret", ep.Secret)

	res, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach tray: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
	return fmt.Errorf("notification failed with status %d: %s", res.StatusCode, strings.TrimSpace(string(msg)))
}
