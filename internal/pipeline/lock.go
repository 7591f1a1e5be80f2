package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"jobflow/internal/models"
)

const (
	lockPollInterval  = 300 * time.Millisecond
	lockStaleAfter    = 10 * time.Minute
	lockHeartbeatTick = time.Minute
)

// ErrLockTimeout is returned when another run holds the lock for the
// whole acquisition window.
var ErrLockTimeout = errors.New("another run holds the pipeline lock")

// LockInfo is the lock file payload. The pid is diagnostic only;
// staleness is judged purely by file age so a lock left behind on one
// machine can be reclaimed from another that shares the state directory.
type LockInfo struct {
	PID        int    `json:"pid"`
	AcquiredAt string `json:"acquiredAt"`
}

// Lock is a held pipeline lock. Release it when the run finishes; a
// heartbeat keeps the file fresh for long runs so it is never mistaken
// for a leftover.
type Lock struct {
	path  string
	alive int32
}

// AcquireLock takes the lock file exclusively, polling until timeout.
// A lock file older than ten minutes is presumed abandoned, deleted and
// re-contested. On timeout it fails closed: two concurrent runs
// corrupting the state files is strictly worse than one refusing to start.
func AcquireLock(path string, timeout time.Duration) (*Lock, error) {
	if path == "" {
		return nil, errors.New("lock path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			payload, _ := json.Marshal(LockInfo{
				PID:        os.Getpid(),
				AcquiredAt: models.Timestamp(time.Now()),
			})
			_, _ = f.Write(append(payload, '\n'))
			_ = f.Close()

			l := &Lock{path: path, alive: 1}
			go l.heartbeat()
			return l, nil
		}

		if fi, statErr := os.Stat(path); statErr == nil && time.Since(fi.ModTime()) > lockStaleAfter {
			_ = os.Remove(path)
			continue
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w (lock file %s)", ErrLockTimeout, path)
		}
		time.Sleep(lockPollInterval)
	}
}

// Release stops the heartbeat and removes the lock file. Safe on nil.
func (l *Lock) Release() {
	if l == nil {
		return
	}
	atomic.StoreInt32(&l.alive, 0)
	_ = os.Remove(l.path)
}

func (l *Lock) heartbeat() {
	t := time.NewTicker(lockHeartbeatTick)
	defer t.Stop()
	for atomic.LoadInt32(&l.alive) == 1 {
		<-t.C
		now := time.Now()
		_ = os.Chtimes(l.path, now, now)
	}
}

// InspectLock reads the lock file without contending for it, for status
// output. Returns a nil info when no lock is held.
func InspectLock(path string) (*LockInfo, time.Duration, error) {
	fi, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}

	info := &LockInfo{}
	if data, readErr := os.ReadFile(path); readErr == nil {
		_ = json.Unmarshal(data, info)
	}
	return info, time.Since(fi.ModTime()), nil
}

// LockStale reports whether a lock of the given age would be reclaimed.
func LockStale(age time.Duration) bool {
	return age > lockStaleAfter
}
