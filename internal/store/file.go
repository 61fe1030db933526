package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/j-veylop/parkinfusion/internal/logger"
)

// FileEventType identifies what happened to the backing file.
type FileEventType int

const (
	// EventReloaded is sent after the file was changed by another process and re-read.
	EventReloaded FileEventType = iota
	// EventError is sent when the watcher or a reload fails.
	EventError
)

// FileEvent is emitted by FileKV's watcher.
type FileEvent struct {
	Type  FileEventType
	Error error
}

// FileKV stores all keys in a single JSON object file. Writes go through a
// temp file and rename; changes made by other processes (a sync client
// dropping in a newer copy, for instance) are picked up by an fsnotify watcher.
type FileKV struct {
	mu            sync.RWMutex
	data          map[string]string
	filePath      string
	lastWritten   []byte
	watcher       *fsnotify.Watcher
	eventChan     chan FileEvent
	stopChan      chan struct{}
	debounceTimer *time.Timer
}

// NewFile opens (or creates) the JSON store at filePath and starts watching it.
func NewFile(filePath string) (*FileKV, error) {
	f := &FileKV{
		data:      make(map[string]string),
		filePath:  filePath,
		eventChan: make(chan FileEvent, 16),
		stopChan:  make(chan struct{}),
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	if err := f.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load data file: %w", err)
		}
		f.mu.Lock()
		err = f.saveLocked()
		f.mu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("failed to create data file: %w", err)
		}
	}

	if err := f.startWatcher(); err != nil {
		return nil, fmt.Errorf("failed to start file watcher: %w", err)
	}

	return f, nil
}

// Events returns the channel of watcher events.
func (f *FileKV) Events() <-chan FileEvent {
	return f.eventChan
}

// Path returns the backing file path.
func (f *FileKV) Path() string {
	return f.filePath
}

func (f *FileKV) Get(_ context.Context, key string) (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	v, ok := f.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (f *FileKV) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, existed := f.data[key]
	f.data[key] = value
	if err := f.saveLocked(); err != nil {
		// Rollback
		if existed {
			f.data[key] = prev
		} else {
			delete(f.data, key)
		}
		return err
	}
	return nil
}

func (f *FileKV) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, existed := f.data[key]
	if !existed {
		return nil
	}
	delete(f.data, key)
	if err := f.saveLocked(); err != nil {
		f.data[key] = prev
		return err
	}
	return nil
}

// load reads the JSON file into memory.
func (f *FileKV) load() error {
	raw, err := os.ReadFile(f.filePath)
	if err != nil {
		return err
	}

	data, err := decodeFile(raw)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.data = data
	f.lastWritten = raw
	f.mu.Unlock()
	return nil
}

func decodeFile(raw []byte) (map[string]string, error) {
	data := make(map[string]string)
	if len(bytes.TrimSpace(raw)) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse data file: %w", err)
	}
	return data, nil
}

// saveLocked writes the map to disk (must hold lock).
func (f *FileKV) saveLocked() error {
	raw, err := json.MarshalIndent(f.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	// Write to temp file first, then rename
	tmpFile := f.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpFile, f.filePath); err != nil {
		if removeErr := os.Remove(tmpFile); removeErr != nil {
			logger.Error("failed to remove temp file", "error", removeErr)
		}
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	f.lastWritten = raw
	return nil
}

// startWatcher starts the file system watcher.
func (f *FileKV) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	f.watcher = watcher

	// Watch the directory to catch the rename-into-place pattern
	if err := watcher.Add(filepath.Dir(f.filePath)); err != nil {
		if closeErr := watcher.Close(); closeErr != nil {
			logger.Error("failed to close watcher", "error", closeErr)
		}
		return err
	}

	go f.watchLoop()
	return nil
}

// watchLoop handles file system events with debouncing.
func (f *FileKV) watchLoop() {
	const debounceInterval = 100 * time.Millisecond

	for {
		select {
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != filepath.Base(f.filePath) {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				f.mu.Lock()
				if f.debounceTimer != nil {
					f.debounceTimer.Stop()
				}
				f.debounceTimer = time.AfterFunc(debounceInterval, f.handleFileChange)
				f.mu.Unlock()
			}

		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.sendEvent(FileEvent{Type: EventError, Error: err})

		case <-f.stopChan:
			return
		}
	}
}

// handleFileChange reloads the map after an external change. Our own writes
// also trigger the watcher; those are recognised by content and ignored.
func (f *FileKV) handleFileChange() {
	raw, err := os.ReadFile(f.filePath)
	if err != nil {
		f.sendEvent(FileEvent{Type: EventError, Error: err})
		return
	}

	f.mu.Lock()
	if bytes.Equal(raw, f.lastWritten) {
		f.mu.Unlock()
		return
	}
	data, err := decodeFile(raw)
	if err != nil {
		f.mu.Unlock()
		logger.Warn("ignoring unreadable data file change", "path", f.filePath, "error", err)
		f.sendEvent(FileEvent{Type: EventError, Error: err})
		return
	}
	f.data = data
	f.lastWritten = raw
	f.mu.Unlock()

	logger.Info("data file reloaded after external change", "path", f.filePath, "keys", len(data))
	f.sendEvent(FileEvent{Type: EventReloaded})
}

// sendEvent sends an event to the event channel non-blocking.
func (f *FileKV) sendEvent(event FileEvent) {
	select {
	case f.eventChan <- event:
	default:
		// Channel full, drop oldest event
		select {
		case <-f.eventChan:
		default:
		}
		select {
		case f.eventChan <- event:
		default:
		}
	}
}

// Close stops the file watcher and cleans up resources.
func (f *FileKV) Close() error {
	close(f.stopChan)

	f.mu.Lock()
	if f.debounceTimer != nil {
		f.debounceTimer.Stop()
	}
	f.mu.Unlock()

	if f.watcher != nil {
		return f.watcher.Close()
	}
	return nil
}
