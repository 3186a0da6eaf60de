package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	ps "github.com/mitchellh/go-ps"

	"github.com/julianstephens/mimamori/internal/constants"
)

type mockProcess struct {
	pid        int
	executable string
}

func (m *mockProcess) Pid() int           { return m.pid }
func (m *mockProcess) PPid() int          { return 0 }
func (m *mockProcess) Executable() string { return m.executable }

func withProcess(t *testing.T, executable string) {
	t.Helper()
	old := findProcessFunc
	t.Cleanup(func() { findProcessFunc = old })
	findProcessFunc = func(pid int) (ps.Process, error) {
		if executable == "" {
			return nil, nil
		}
		return &mockProcess{pid: pid, executable: executable}, nil
	}
}

func TestTrayConfigDir(t *testing.T) {
	tempDir := t.TempDir()
	old := userConfigDirFunc
	t.Cleanup(func() { userConfigDirFunc = old })
	userConfigDirFunc = func() (string, error) { return tempDir, nil }

	want := filepath.Join(tempDir, constants.TrayAppIdentifier)
	dir, err := TrayConfigDir()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dir != want {
		t.Errorf("expected %s, got %s", want, dir)
	}

	if err := os.MkdirAll(want, 0755); err != nil {
		t.Fatal(err)
	}
	custom := "/custom/mimamori/dir"
	settings := fmt.Sprintf(`{"settings": {"lockfile_dir": %q}}`, custom)
	if err := os.WriteFile(filepath.Join(want, "settings.json"), []byte(settings), 0644); err != nil {
		t.Fatal(err)
	}

	dir, err = TrayConfigDir()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dir != custom {
		t.Errorf("expected %s, got %s", custom, dir)
	}
}

func TestParseLockfile(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"two parts", "8080|12345", "malformed"},
		{"garbage", "invalid", "malformed"},
		{"empty secret", "8080|12345|", "secret"},
		{"empty port", "|12345|s3cret", "port"},
		{"port out of range", "99999|12345|s3cret", "range"},
		{"bad pid", "8080|abc|s3cret", "process ID"},
		{"valid", "8080|12345|s3cret\n", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep, err := parseLockfile(tt.content)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if ep.Port != 8080 || ep.PID != 12345 || ep.Secret != "s3cret" {
					t.Errorf("parsed %+v", ep)
				}
				return
			}
			if !errors.Is(err, ErrMalformedLockfile) {
				t.Errorf("expected ErrMalformedLockfile, got %v", err)
			}
			if err != nil && !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLocateTray(t *testing.T) {
	lockfile := filepath.Join(t.TempDir(), constants.NotifierLockfileName)

	if _, err := locateTray(lockfile); !errors.Is(err, ErrTrayNotRunning) {
		t.Errorf("missing lockfile: expected ErrTrayNotRunning, got %v", err)
	}

	if err := os.WriteFile(lockfile, []byte("8080|12345|s3cret"), 0644); err != nil {
		t.Fatal(err)
	}

	withProcess(t, "")
	if _, err := locateTray(lockfile); !errors.Is(err, ErrTrayNotRunning) {
		t.Errorf("no process: expected ErrTrayNotRunning, got %v", err)
	}

	withProcess(t, "other-app")
	if _, err := locateTray(lockfile); !errors.Is(err, ErrTrayNotRunning) {
		t.Errorf("wrong executable: expected ErrTrayNotRunning, got %v", err)
	}

	withProcess(t, constants.TrayAppExecutable)
	ep, err := locateTray(lockfile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.Port != 8080 || ep.Secret != "s3cret" {
		t.Errorf("unexpected endpoint %+v", ep)
	}
}

func TestNotify(t *testing.T) {
	var got webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get("X-Mimamori-Secret") != "test-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("Unauthorized"))
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if got.Text == "fail" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	parts := strings.Split(server.URL, ":")
	port, _ := strconv.Atoi(parts[len(parts)-1])

	writeLock := func(secret string) *Notifier {
		path := filepath.Join(t.TempDir(), constants.NotifierLockfileName)
		content := fmt.Sprintf("%d|4242|%s", port, secret)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		return NewWithLockfile(path)
	}
	withProcess(t, constants.TrayAppExecutable)
	ctx := context.Background()

	n := writeLock("test-secret")
	if err := n.Available(); err != nil {
		t.Fatalf("Available: %v", err)
	}
	err := n.Notify(ctx, Notification{Body: "hello", Tag: "alert-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Title != constants.NotificationTitle || got.Tag != "alert-1" || got.DurationMs != constants.NotificationDurationMs {
		t.Errorf("unexpected payload %+v", got)
	}

	if err := writeLock("wrong-secret").Notify(ctx, Notification{Body: "hello"}); err == nil {
		t.Error("expected error for wrong secret")
	}

	if err := n.Notify(ctx, Notification{Body: "fail"}); err == nil {
		t.Error("expected error for server failure")
	}
}
