package identity

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch starts recording changes other processes make to the store's file,
// such as `jarvis users forget`. Nothing is applied until Refresh, so the
// store is only ever modified by its caller.
func (s *FileStore) Watch() error {
	if s.watcher != nil {
		return nil
	}
	w, err := fsnotify.NewBufferedWatcher(32)
	if err != nil {
		return fmt.Errorf("identity: create watcher: %w", err)
	}

	// save 用 rename 替换文件, 所以监听目录而不是文件本身
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		w.Close()
		return fmt.Errorf("identity: create %s: %w", dir, err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("identity: watch %s: %w", dir, err)
	}
	s.watcher = w
	return nil
}

// Refresh drains the changes seen since the last call without blocking
// and reloads the file when any of them touched it. It reports whether the
// store was reloaded.
func (s *FileStore) Refresh() bool {
	if s.watcher == nil {
		return false
	}
	target := filepath.Clean(s.path)
	changed := false
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				s.watcher = nil
				return s.reloadIf(changed)
			}
			if filepath.Clean(ev.Name) == target && ev.Op != fsnotify.Chmod {
				changed = true
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				s.watcher = nil
				return s.reloadIf(changed)
			}
			// 事件队列溢出时无法知道漏了什么, 直接重新加载
			s.log.Warn("identity: watcher error", "err", err)
			changed = true
		default:
			return s.reloadIf(changed)
		}
	}
}

func (s *FileStore) reloadIf(changed bool) bool {
	if changed {
		s.Reload()
	}
	return changed
}

// Close stops watching the file.
func (s *FileStore) Close() error {
	if s.watcher == nil {
		return nil
	}
	err := s.watcher.Close()
	s.watcher = nil
	return err
}

// Reload replaces the in-memory users with the file contents. A removed
// file empties the store; an unreadable one keeps the current users. The
// current user is cleared when it is no longer enrolled.
func (s *FileStore) Reload() {
	users, err := readUsers(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		users = make(map[string]User)
	case err != nil:
		// 写到一半的文件, 等下一个事件
		s.log.Warn("identity: reload failed", "path", s.path, "err", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = users
	if _, ok := s.users[s.current]; !ok {
		s.current = ""
	}
	s.log.Info("identity: users reloaded", "count", len(s.users))
}
