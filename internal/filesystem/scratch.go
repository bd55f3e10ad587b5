package filesystem

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"media-porter/internal/logging"
)

// ErrNoOutput is returned when a scratch directory holds no finished file.
var ErrNoOutput = errors.New("no output file produced")

// partialSuffixes mark files the extraction backend leaves behind while a
// download or merge is still in progress.
var partialSuffixes = []string{".part", ".ytdl", ".temp", ".tmp"}

// Scratch is a temporary directory owned by exactly one download. It is
// created empty and removed by Release on every exit path.
type Scratch struct {
	dir   string
	retry RetryConfig

	once       sync.Once
	releaseErr error
}

// NewScratch creates a fresh directory under root. An empty root uses the OS
// temp directory. prefix is embedded in the directory name for debugging.
func NewScratch(root, prefix string) (*Scratch, error) {
	start := time.Now()
	dir, err := os.MkdirTemp(root, prefix+"-*")
	observe().ObserveOperation("mkdir", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("create scratch directory: %w", err)
	}

	observe().ObserveScratchDirs(1)
	logging.Debug("Scratch directory created: %s", dir)

	return &Scratch{dir: dir, retry: DefaultRetryConfig()}, nil
}

// Path returns the absolute path of the scratch directory.
func (s *Scratch) Path() string {
	return s.dir
}

// FindOutput returns the path of the finished file in the scratch directory.
// Partial downloads are ignored. When several files remain, one whose
// extension matches ext wins, then the largest.
func (s *Scratch) FindOutput(ext string) (string, error) {
	entries, err := ReadDirWithRetry(s.dir, s.retry)
	if err != nil {
		return "", fmt.Errorf("list scratch directory: %w", err)
	}

	ext = "." + strings.TrimPrefix(strings.ToLower(ext), ".")

	var (
		best      string
		bestSize  int64
		bestMatch bool
	)
	for _, entry := range entries {
		if !entry.Type().IsRegular() || isPartial(entry.Name()) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		match := strings.EqualFold(filepath.Ext(entry.Name()), ext)
		switch {
		case best == "":
		case match && !bestMatch:
		case match == bestMatch && info.Size() > bestSize:
		default:
			continue
		}

		best, bestSize, bestMatch = entry.Name(), info.Size(), match
	}

	if best == "" {
		return "", ErrNoOutput
	}
	return filepath.Join(s.dir, best), nil
}

// ReadOutput locates the finished file and reads it fully into memory.
// It returns the file's base name together with its contents.
func (s *Scratch) ReadOutput(ext string) (string, []byte, error) {
	path, err := s.FindOutput(ext)
	if err != nil {
		return "", nil, err
	}

	data, err := ReadFileWithRetry(path, s.retry)
	if err != nil {
		return "", nil, err
	}

	return filepath.Base(path), data, nil
}

// Release removes the scratch directory and everything in it. It is safe to
// call more than once; later calls return the first result.
func (s *Scratch) Release() error {
	s.once.Do(func() {
		start := time.Now()
		err := os.RemoveAll(s.dir)
		observe().ObserveOperation("remove", time.Since(start).Seconds(), err)
		if err != nil {
			logging.Warn("failed to remove scratch directory %s: %v", s.dir, err)
			s.releaseErr = err
			return
		}
		observe().ObserveScratchDirs(-1)
		logging.Debug("Scratch directory removed: %s", s.dir)
	})
	return s.releaseErr
}

func isPartial(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range partialSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	// Fragmented downloads leave "<name>.part-Frag<N>" files.
	return strings.Contains(lower, ".part-frag")
}
