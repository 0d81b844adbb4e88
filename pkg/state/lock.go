package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	runLockDirName   = ".run.lock"
	runLockOwnerFile = "owner.json"
)

// ErrLocked is returned when another run holds the data directory
var ErrLocked = errors.New("data directory is locked")

// RunLock marks a data directory as in use by one process. It detects a
// concurrent run; it does not wait for one to finish.
type RunLock struct {
	lockDir string
}

// LockOwner describes the process holding a RunLock
type LockOwner struct {
	PID       int    `json:"pid"`
	CreatedAt string `json:"created_at"`
	Hostname  string `json:"hostname,omitempty"`
}

func AcquireRunLock(dir string) (RunLock, error) {
	target := strings.TrimSpace(dir)
	if target == "" {
		return RunLock{}, fmt.Errorf("data directory is required")
	}
	if err := os.MkdirAll(target, 0755); err != nil {
		return RunLock{}, fmt.Errorf("create data directory %s: %w", target, err)
	}

	lockDir := filepath.Join(target, runLockDirName)
	if err := os.Mkdir(lockDir, 0755); err != nil {
		if os.IsExist(err) {
			if owner, readErr := ReadLockOwner(target); readErr == nil && owner.PID > 0 {
				return RunLock{}, fmt.Errorf("%w: %s (pid=%d created_at=%s host=%s)",
					ErrLocked, target, owner.PID, owner.CreatedAt, owner.Hostname)
			}
			return RunLock{}, fmt.Errorf("%w: %s", ErrLocked, target)
		}
		return RunLock{}, fmt.Errorf("acquire run lock for %s: %w", target, err)
	}

	owner := LockOwner{
		PID:       os.Getpid(),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Hostname:  hostnameOrUnknown(),
	}
	data, err := json.MarshalIndent(owner, "", "  ")
	if err == nil {
		err = os.WriteFile(filepath.Join(lockDir, runLockOwnerFile), data, 0644)
	}
	if err != nil {
		_ = os.RemoveAll(lockDir)
		return RunLock{}, fmt.Errorf("write run lock owner for %s: %w", target, err)
	}

	return RunLock{lockDir: lockDir}, nil
}

// ReadLockOwner returns the owner recorded in dir's lock
func ReadLockOwner(dir string) (LockOwner, error) {
	var owner LockOwner
	data, err := os.ReadFile(filepath.Join(dir, runLockDirName, runLockOwnerFile))
	if err != nil {
		return owner, err
	}
	err = json.Unmarshal(data, &owner)
	return owner, err
}

func (l RunLock) Release() error {
	if strings.TrimSpace(l.lockDir) == "" {
		return nil
	}
	_ = os.Remove(filepath.Join(l.lockDir, runLockOwnerFile))
	if err := os.Remove(l.lockDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release run lock %s: %w", l.lockDir, err)
	}
	return nil
}

func hostnameOrUnknown() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "unknown"
	}
	return host
}
