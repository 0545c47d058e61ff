package backup

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type staticSource struct {
	data []byte
	err  error
}

func (s staticSource) Snapshot() ([]byte, error) {
	return s.data, s.err
}

func newTestScheduler(t *testing.T, src Source, keep int) (*Scheduler, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "backup")
	s := NewScheduler(src, dir, keep)
	base := time.Date(2024, 6, 15, 3, 0, 0, 0, time.UTC)
	n := 0
	s.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Minute)
	}
	return s, dir
}

func TestRunOnceWritesSnapshot(t *testing.T) {
	s, dir := newTestScheduler(t, staticSource{data: []byte(`[{"id":"a"}]`)}, 3)

	path, err := s.RunOnce()
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("written outside backup dir: %s", path)
	}
	if got := filepath.Base(path); got != "events-20240615T030100.000Z.json" {
		t.Errorf("name = %s", got)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if string(data) != `[{"id":"a"}]` {
		t.Errorf("content = %s", data)
	}
}

func TestRunOnceKeepsNewest(t *testing.T) {
	s, dir := newTestScheduler(t, staticSource{data: []byte(`[]`)}, 2)
	// Unrelated files are left alone.
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	var written []string
	for i := 0; i < 4; i++ {
		p, err := s.RunOnce()
		if err != nil {
			t.Fatalf("RunOnce %d: %v", i, err)
		}
		written = append(written, p)
	}

	got, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0] != written[2] || got[1] != written[3] {
		t.Errorf("kept %v, want the last two of %v", got, written)
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Errorf("unrelated file removed: %v", err)
	}
}

func TestRunOnceSourceError(t *testing.T) {
	boom := errors.New("boom")
	s, dir := newTestScheduler(t, staticSource{err: boom}, 1)
	if _, err := s.RunOnce(); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("backup dir created despite failed snapshot")
	}
}

func TestStartRejectsBadSpec(t *testing.T) {
	s, _ := newTestScheduler(t, staticSource{}, 1)
	if err := s.Start("not a cron spec"); err == nil {
		t.Fatal("expected an error")
	}
}

func TestStartStop(t *testing.T) {
	s, _ := newTestScheduler(t, staticSource{data: []byte(`[]`)}, 1)
	if err := s.Start("@every 1h"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop()
}
