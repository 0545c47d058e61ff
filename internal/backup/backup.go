// Package backup writes periodic snapshots of the event collection to a
// directory and prunes old ones.
package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"eventcal/internal/fsutil"
	appLog "eventcal/internal/log"
)

const (
	filePrefix = "events-"
	fileSuffix = ".json"
	// Sorts lexically in time order.
	stampLayout = "20060102T150405.000Z"
)

// Source produces the bytes to back up.
type Source interface {
	Snapshot() ([]byte, error)
}

// Scheduler runs snapshots on a cron schedule.
type Scheduler struct {
	cron *cron.Cron
	src  Source
	dir  string
	keep int
	now  func() time.Time
}

// NewScheduler returns a Scheduler writing into dir and keeping the
// newest keep snapshots. keep < 1 is treated as 1.
func NewScheduler(src Source, dir string, keep int) *Scheduler {
	if keep < 1 {
		keep = 1
	}
	return &Scheduler{
		cron: cron.New(),
		src:  src,
		dir:  dir,
		keep: keep,
		now:  time.Now,
	}
}

// Start schedules snapshots with a standard 5-field cron spec and starts
// the cron runner.
func (s *Scheduler) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, func() {
		if _, err := s.RunOnce(); err != nil {
			appLog.Error("backup: snapshot failed", err, "dir", s.dir)
		}
	}); err != nil {
		return fmt.Errorf("schedule backup %q: %w", spec, err)
	}
	s.cron.Start()
	appLog.Info("backup scheduler started", "cron", spec, "dir", s.dir, "keep", s.keep)
	return nil
}

// Stop waits for a running snapshot to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	appLog.Info("backup scheduler stopped")
}

// RunOnce writes one snapshot and prunes old ones. It returns the path
// written.
func (s *Scheduler) RunOnce() (string, error) {
	data, err := s.src.Snapshot()
	if err != nil {
		return "", fmt.Errorf("take snapshot: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	name := filePrefix + s.now().UTC().Format(stampLayout) + fileSuffix
	path := filepath.Join(s.dir, name)
	if err := fsutil.WriteFileAtomic(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	appLog.Info("backup written", "path", path, "bytes", len(data))

	if err := s.prune(); err != nil {
		appLog.Error("backup: prune failed", err, "dir", s.dir)
	}
	return path, nil
}

// List returns the snapshot paths in dir, oldest first.
func (s *Scheduler) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read backup dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		out = append(out, filepath.Join(s.dir, name))
	}
	sort.Strings(out)
	return out, nil
}

func (s *Scheduler) prune() error {
	files, err := s.List()
	if err != nil {
		return err
	}
	for len(files) > s.keep {
		if err := os.Remove(files[0]); err != nil {
			return fmt.Errorf("remove %s: %w", files[0], err)
		}
		appLog.Debug("backup pruned", "path", files[0])
		files = files[1:]
	}
	return nil
}
