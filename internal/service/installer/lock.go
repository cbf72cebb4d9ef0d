package installer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/foolean/cumulus-dm/internal/logger"
)

const (
	// lockFilename marks that an install is running right now to avoid
	// parallel execution against the same machine.
	lockFilename = "cumulus-dm-install.lock"

	// lockLifetime is the period after which a leftover lock is treated
	// as possibly stale and checked against live processes.
	lockLifetime = 30 * time.Second

	// toolExecutableBase is the executable name a live installer runs under.
	toolExecutableBase = "cumulus-dm"
)

// LockPath returns the location of the machine-wide install lock.
func LockPath() string {
	return filepath.Join(os.TempDir(), lockFilename)
}

// IsInstallerRunningNow checks presence of the install lock and attempts
// recovery if it looks stale. A stale lock is removed only when no other
// installer process is alive.
func IsInstallerRunningNow(ctx context.Context) bool {
	logger.Debug(ctx, "Checking for the presence of an install lock")

	fileInfo, err := os.Stat(LockPath())
	if err == nil {
		if time.Since(fileInfo.ModTime()) <= lockLifetime {
			return true
		}

		logger.Info(ctx, "The install lock is stale, checking for a live installer")

		if anotherInstallerAlive() {
			return true
		}

		if err = os.Remove(LockPath()); err != nil {
			return true
		}

		return false
	}

	if errors.Is(err, os.ErrNotExist) {
		logger.Debug(ctx, "Install lock not found, continuing")
		return false
	}

	logger.Infof(ctx, "Unable to read install lock: %v", err)

	return false
}

// acquireLock creates the install lock file.
func acquireLock() error {
	lock, err := os.Create(LockPath())
	if err != nil {
		return err
	}

	return lock.Close()
}

// releaseLock removes the install lock if it exists.
func releaseLock() {
	if _, err := os.Stat(LockPath()); err == nil {
		_ = os.Remove(LockPath())
	}
}

// anotherInstallerAlive reports whether a cumulus-dm process other than
// this one is currently running.
func anotherInstallerAlive() bool {
	processList, err := ps.Processes()
	if err != nil {
		// Without a process listing the lock cannot be proven stale.
		return true
	}

	thisProcessID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() == toolExecutable() {
			return true
		}
	}

	return false
}

// toolExecutable returns the platform-specific installer executable name.
func toolExecutable() string {
	return toolExecutableBase + getExecutableExtension()
}

// getExecutableExtension returns ".exe" on Windows and "" elsewhere.
func getExecutableExtension() string {
	if strings.Contains(strings.ToLower(runtime.GOOS), "windows") {
		return ".exe"
	}

	return ""
}
