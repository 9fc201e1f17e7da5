package dlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// rotatingFile is an append-only log file that can be moved away and
// reopened while handlers keep writing to it.
type rotatingFile struct {
	mu   sync.Mutex
	path string
	file *os.File
}

func openRotating(path string) (*rotatingFile, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return &rotatingFile{path: path, file: file}, nil
}

func (r *rotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return 0, os.ErrClosed
	}
	return r.file.Write(p)
}

// moveTo renames the file into dir and starts a fresh one at the old path.
func (r *rotatingFile) moveTo(dir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return os.ErrClosed
	}
	if err := r.file.Close(); err != nil {
		return err
	}
	target := filepath.Join(dir, filepath.Base(r.path))
	renameErr := os.Rename(r.path, target)
	file, err := os.OpenFile(r.path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		r.file = nil
		return err
	}
	r.file = file
	return renameErr
}

func (r *rotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// Archiver moves the current log files into Dir/<yesterday>[-n].
type Archiver struct {
	Dir   string
	files []*rotatingFile
	now   func() time.Time
}

func (a *Archiver) Process() {
	if _, err := a.archive(); err != nil {
		Error("Failed to archive logs", "dir", a.Dir, "err", err)
	}
}

func (a *Archiver) archive() (string, error) {
	now := time.Now
	if a.now != nil {
		now = a.now
	}
	yesterday := now().AddDate(0, 0, -1).Format("2006-01-02")
	base := filepath.Join(a.Dir, yesterday)

	target := base
	err := os.Mkdir(target, 0755)
	for counter := 1; os.IsExist(err); counter++ {
		target = base + "-" + strconv.Itoa(counter)
		err = os.Mkdir(target, 0755)
	}
	if err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}

	for _, f := range a.files {
		if err := f.moveTo(target); err != nil {
			return target, fmt.Errorf("archive %s: %w", f.path, err)
		}
	}
	Info("Archived logs", "dir", target)
	return target, nil
}
