package segment

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rzbill/rollq/internal/rollcycle"
)

const (
	segmentExt = ".seg"
	lockName   = "writer.lock"
)

// fileMagic opens every segment file; the trailing byte versions the layout.
var fileMagic = []byte("ROLLQSG\x01")

// FileOptions configures a file-backed store.
type FileOptions struct {
	// Dir is the segment directory, one per queue.
	Dir string
	// Policy supplies the segment name format.
	Policy rollcycle.Policy
	// EpochMillis anchors cycle numbering.
	EpochMillis int64
	// ReadOnly opens the store without taking the writer lock; every
	// mutating call fails with ErrReadOnly and nothing is ever created.
	ReadOnly bool
}

// FileStore keeps one data file per cycle in a directory.
type FileStore struct {
	dir      string
	policy   rollcycle.Policy
	epoch    int64
	readOnly bool
	lock     *dirLock
}

// NewFileStore opens a segment directory. Writable stores create the
// directory and take an exclusive writer lock; read-only stores touch
// nothing and tolerate the directory not existing yet.
func NewFileStore(opts FileOptions) (*FileStore, error) {
	if opts.Dir == "" {
		return nil, errors.New("segment: FileOptions.Dir is required")
	}
	s := &FileStore{
		dir:      opts.Dir,
		policy:   opts.Policy,
		epoch:    opts.EpochMillis,
		readOnly: opts.ReadOnly,
	}
	if opts.ReadOnly {
		return s, nil
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("segment: create dir: %w", err)
	}
	lock, err := acquireDirLock(filepath.Join(opts.Dir, lockName))
	if err != nil {
		return nil, err
	}
	s.lock = lock
	return s, nil
}

// ReadOnly implements Store.
func (s *FileStore) ReadOnly() bool { return s.readOnly }

func (s *FileStore) segmentPath(cycle int64) string {
	return filepath.Join(s.dir, s.policy.SegmentName(cycle, s.epoch)+segmentExt)
}

// OpenOrCreate implements Store.
func (s *FileStore) OpenOrCreate(cycle int64) (Handle, error) {
	if s.readOnly {
		return nil, ErrReadOnly
	}
	path := s.segmentPath(cycle)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("segment: open %s: %w", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("segment: stat %s: %w", path, err)
	}
	if fi.Size() == 0 {
		if _, err := f.WriteAt(fileMagic, 0); err != nil {
			f.Close()
			return nil, fmt.Errorf("segment: write header %s: %w", path, err)
		}
	} else if err := checkFileMagic(f, path); err != nil {
		f.Close()
		return nil, err
	}
	return &fileHandle{f: f, cycle: cycle, readOnly: false}, nil
}

// OpenExisting implements Store.
func (s *FileStore) OpenExisting(cycle int64) (Handle, error) {
	path := s.segmentPath(cycle)
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: cycle %d", ErrNotFound, cycle)
		}
		return nil, fmt.Errorf("segment: open %s: %w", path, err)
	}
	if err := checkFileMagic(f, path); err != nil {
		f.Close()
		return nil, err
	}
	return &fileHandle{f: f, cycle: cycle, readOnly: true}, nil
}

// ListCycles implements Store. Files that do not parse under the store's
// policy are skipped; they belong to other policies sharing the directory.
func (s *FileStore) ListCycles() ([]int64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && s.readOnly {
			return nil, nil
		}
		return nil, fmt.Errorf("segment: read dir: %w", err)
	}
	var cycles []int64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), segmentExt) {
			continue
		}
		base := strings.TrimSuffix(e.Name(), segmentExt)
		cycle, err := s.policy.ParseSegmentName(base, s.epoch)
		if err != nil {
			continue
		}
		cycles = append(cycles, cycle)
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i] < cycles[j] })
	return cycles, nil
}

// Close implements Store.
func (s *FileStore) Close() error {
	if s.lock != nil {
		err := s.lock.release()
		s.lock = nil
		return err
	}
	return nil
}

func checkFileMagic(f *os.File, path string) error {
	hdr := make([]byte, len(fileMagic))
	if _, err := io.ReadFull(io.NewSectionReader(f, 0, int64(len(hdr))), hdr); err != nil {
		return fmt.Errorf("segment: read header %s: %w", path, err)
	}
	for i := range hdr {
		if hdr[i] != fileMagic[i] {
			return fmt.Errorf("segment: %s is not a rollq segment file", path)
		}
	}
	return nil
}

type fileHandle struct {
	f        *os.File
	cycle    int64
	readOnly bool
}

func (h *fileHandle) Cycle() int64 { return h.cycle }

func (h *fileHandle) DataStart() int64 { return int64(len(fileMagic)) }

func (h *fileHandle) Len() (int64, error) {
	fi, err := h.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("segment: stat: %w", err)
	}
	return fi.Size(), nil
}

func (h *fileHandle) ReadAt(p []byte, off int64) (int, error) {
	return h.f.ReadAt(p, off)
}

func (h *fileHandle) AppendAt(off int64, p []byte) (int64, error) {
	if h.readOnly {
		return 0, ErrReadOnly
	}
	end, err := h.Len()
	if err != nil {
		return 0, err
	}
	if off != end {
		return 0, fmt.Errorf("%w: off %d, end %d", ErrStaleAppend, off, end)
	}
	if _, err := h.f.WriteAt(p, off); err != nil {
		return 0, fmt.Errorf("segment: write: %w", err)
	}
	return off + int64(len(p)), nil
}

func (h *fileHandle) Sync() error {
	if h.readOnly {
		return nil
	}
	return h.f.Sync()
}

func (h *fileHandle) Close() error { return h.f.Close() }
