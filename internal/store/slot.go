package store

import (
	"errors"
	"io/fs"
	"os"
	"sync"

	"eventcal/internal/fsutil"
)

// ErrSlotEmpty is returned by Slot.Read when nothing has been persisted yet.
var ErrSlotEmpty = errors.New("slot is empty")

// Slot is a single persisted key-value location holding the serialized
// event collection.
type Slot interface {
	Read() ([]byte, error)
	Write(data []byte) error
	// Name identifies the slot in log lines.
	Name() string
}

// FileSlot persists the collection as one JSON file.
type FileSlot struct {
	path string
}

func NewFileSlot(path string) *FileSlot {
	return &FileSlot{path: path}
}

func (s *FileSlot) Name() string {
	return "file:" + s.path
}

func (s *FileSlot) Path() string {
	return s.path
}

func (s *FileSlot) Read() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrSlotEmpty
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrSlotEmpty
	}
	return data, nil
}

func (s *FileSlot) Write(data []byte) error {
	return fsutil.WriteFileAtomic(s.path, data, 0o600)
}

// MemorySlot keeps the collection in process memory. WriteErr, when set,
// is returned from every Write so tests can simulate quota failures.
type MemorySlot struct {
	mu       sync.Mutex
	data     []byte
	WriteErr error
	writes   int
}

func NewMemorySlot(initial []byte) *MemorySlot {
	return &MemorySlot{data: initial}
}

func (s *MemorySlot) Name() string {
	return "memory"
}

func (s *MemorySlot) Read() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.data) == 0 {
		return nil, ErrSlotEmpty
	}
	return append([]byte(nil), s.data...), nil
}

func (s *MemorySlot) Write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.WriteErr != nil {
		return s.WriteErr
	}
	s.data = append([]byte(nil), data...)
	return nil
}

// Writes counts Write calls, failed ones included.
func (s *MemorySlot) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
