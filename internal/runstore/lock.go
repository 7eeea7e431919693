package runstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	outputLockDirName   = ".autoclipper.lock"
	outputLockOwnerFile = "owner.json"
)

// ErrLocked is wrapped by AcquireOutputLock when another run holds the
// directory.
var ErrLocked = errors.New("output directory is locked")

type OutputLock struct {
	lockDir string
}

// LockOwner describes the run currently holding an output directory.
type LockOwner struct {
	PID       int    `json:"pid"`
	CreatedAt string `json:"created_at"`
	Hostname  string `json:"hostname,omitempty"`
	RunID     string `json:"run_id,omitempty"`
}

// AcquireOutputLock claims outputDir for one run. The lock is a directory so
// creation is atomic on every platform; a stale lock left by a crash must be
// removed by hand (see `autoclipper status`).
func AcquireOutputLock(outputDir, runID string) (OutputLock, error) {
	target := strings.TrimSpace(outputDir)
	if target == "" {
		return OutputLock{}, fmt.Errorf("output directory is required")
	}
	if err := Mkdir(target); err != nil {
		return OutputLock{}, err
	}

	lockDir := LockPath(target)
	if err := os.Mkdir(lockDir, 0o755); err != nil {
		if os.IsExist(err) {
			if owner, readErr := ReadLockOwner(target); readErr == nil && owner.PID > 0 && owner.CreatedAt != "" {
				return OutputLock{}, fmt.Errorf(
					"%w: %s (pid=%d created_at=%s host=%s)",
					ErrLocked, target, owner.PID, owner.CreatedAt, owner.Hostname,
				)
			}
			return OutputLock{}, fmt.Errorf("%w: %s", ErrLocked, target)
		}
		return OutputLock{}, fmt.Errorf("acquire output lock for %s: %w", target, err)
	}

	owner := LockOwner{
		PID:       os.Getpid(),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Hostname:  hostnameOrUnknown(),
		RunID:     runID,
	}
	if err := WriteJSON(filepath.Join(lockDir, outputLockOwnerFile), owner); err != nil {
		_ = os.RemoveAll(lockDir)
		return OutputLock{}, fmt.Errorf("write output lock owner for %s: %w", target, err)
	}

	return OutputLock{lockDir: lockDir}, nil
}

func (l OutputLock) Release() error {
	if strings.TrimSpace(l.lockDir) == "" {
		return nil
	}
	_ = os.Remove(filepath.Join(l.lockDir, outputLockOwnerFile))
	if err := os.Remove(l.lockDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release output lock %s: %w", l.lockDir, err)
	}
	return nil
}

func LockPath(outputDir string) string {
	return filepath.Join(outputDir, outputLockDirName)
}

func ReadLockOwner(outputDir string) (LockOwner, error) {
	var owner LockOwner
	if err := ReadJSON(filepath.Join(LockPath(outputDir), outputLockOwnerFile), &owner); err != nil {
		return LockOwner{}, err
	}
	return owner, nil
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
