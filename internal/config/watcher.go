package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

const defaultReloadDebounce = 150 * time.Millisecond

// Watcher reloads the configuration file when it changes on disk.
type Watcher struct {
	path     string
	onChange func(*Config)
	debounce time.Duration
	fs       *fsnotify.Watcher
	lastHash string
}

// NewWatcher watches the directory holding path so editors that replace the
// file on save are still observed. onChange receives every successfully
// reloaded configuration whose content changed.
func NewWatcher(path string, onChange func(*Config)) (*Watcher, error) {
	resolved, err := expandUserPath(path)
	if err != nil {
		return nil, err
	}
	if resolved == "" {
		return nil, fmt.Errorf("config watcher: path is required")
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	if err := fs.Add(filepath.Dir(abs)); err != nil {
		_ = fs.Close()
		return nil, fmt.Errorf("config watcher: watch %s: %w", filepath.Dir(abs), err)
	}
	w := &Watcher{
		path:     abs,
		onChange: onChange,
		debounce: defaultReloadDebounce,
		fs:       fs,
	}
	w.lastHash, _ = fileHash(abs)
	return w, nil
}

// Run blocks until ctx is done, reloading the file after each burst of writes.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() {
		if errClose := w.fs.Close(); errClose != nil {
			log.Debugf("config watcher: close: %v", errClose)
		}
	}()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			log.Warnf("config watcher: %v", err)
		case <-fire:
			fire = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	hash, err := fileHash(w.path)
	if err != nil {
		log.Warnf("config watcher: read %s: %v", w.path, err)
		return
	}
	if hash == w.lastHash {
		return
	}
	cfg, err := LoadConfig(w.path)
	if err != nil {
		log.Warnf("config watcher: keeping previous configuration: %v", err)
		return
	}
	w.lastHash = hash
	log.WithField("path", w.path).Info("configuration reloaded")
	for _, warning := range cfg.Warnings() {
		log.Warn(warning)
	}
	if w.onChange != nil {
		w.onChange(cfg)
	}
}

func fileHash(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
