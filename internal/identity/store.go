package identity

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"jarvis/internal/audio"
)

// DefaultThreshold is the similarity an utterance needs to be attributed
// to a known user.
const DefaultThreshold = 60

// User is one enrolled voice.
type User struct {
	Name            string   `yaml:"name"`
	Features        Features `yaml:"features"`
	RegisteredCount int      `yaml:"registered_count"`
}

type fileData struct {
	Users map[string]User `yaml:"users"`
}

// FileStore keeps enrolled users in a YAML file.
type FileStore struct {
	path string
	log  *slog.Logger

	mu      sync.Mutex
	users   map[string]User
	current string

	// set by Watch; used only from the goroutine that calls Refresh
	watcher *fsnotify.Watcher
}

// Open loads the store at path. A missing file is an empty store; an
// unreadable one is logged and replaced on the next enrollment.
func Open(path string, log *slog.Logger) *FileStore {
	if log == nil {
		log = slog.Default()
	}
	s := &FileStore{path: path, log: log, users: make(map[string]User)}

	users, err := readUsers(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Info("identity: creating new user store", "path", path)
	case err != nil:
		log.Warn("identity: failed to read user store", "path", path, "err", err)
	default:
		s.users = users
		log.Info("identity: users loaded", "count", len(s.users))
	}
	return s
}

func readUsers(path string) (map[string]User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fd fileData
	if err := yaml.Unmarshal(data, &fd); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	users := make(map[string]User, len(fd.Users))
	for name, u := range fd.Users {
		users[name] = u
	}
	return users, nil
}

// Enroll registers name with the voice in utt, or refreshes it, and saves
// the store. The user becomes the current user.
func (s *FileStore) Enroll(name string, utt *audio.Utterance) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("identity: name is required")
	}
	if utt.Empty() {
		return errors.New("identity: no audio to enroll")
	}
	f, _ := ExtractFeatures(utt.Samples)

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.users[name]
	s.users[name] = User{Name: name, Features: f, RegisteredCount: prev.RegisteredCount + 1}
	if err := s.save(); err != nil {
		return err
	}
	s.current = name
	s.log.Info("identity: user registered", "name", name, "count", prev.RegisteredCount+1)
	return nil
}

// Identify returns the best matching user when its score reaches
// threshold, and sets the current user accordingly. Ties go to the name
// that sorts first.
func (s *FileStore) Identify(utt *audio.Utterance, threshold float64) (string, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.users) == 0 || utt.Empty() {
		return "", 0
	}
	f, _ := ExtractFeatures(utt.Samples)

	best, bestScore := "", 0.0
	for _, name := range s.sortedNames() {
		if score := Similarity(f, s.users[name].Features); score > bestScore {
			best, bestScore = name, score
		}
	}
	s.log.Debug("identity: best match", "name", best, "score", fmt.Sprintf("%.1f", bestScore))

	if bestScore >= threshold {
		s.current = best
		return best, bestScore
	}
	s.current = ""
	return "", 0
}

// Current returns the last identified or enrolled user, or "".
func (s *FileStore) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Users returns the enrolled users sorted by name.
func (s *FileStore) Users() []User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]User, 0, len(s.users))
	for _, name := range s.sortedNames() {
		out = append(out, s.users[name])
	}
	return out
}

// Forget removes name from the store. It reports whether name was known.
func (s *FileStore) Forget(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[name]; !ok {
		return false, nil
	}
	delete(s.users, name)
	if s.current == name {
		s.current = ""
	}
	return true, s.save()
}

// Greeting returns the form of address for name, or for the current user
// when name is empty.
func (s *FileStore) Greeting(name string) string {
	if name == "" {
		name = s.Current()
	}
	return Address(name)
}

// Address is "señor" followed by name when there is one.
func Address(name string) string {
	if name == "" {
		return "señor"
	}
	return "señor " + name
}

func (s *FileStore) sortedNames() []string {
	names := make([]string, 0, len(s.users))
	for name := range s.users {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// save replaces the file atomically. Callers hold mu.
func (s *FileStore) save() error {
	data, err := yaml.Marshal(fileData{Users: s.users})
	if err != nil {
		return fmt.Errorf("identity: encode users: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("identity: create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".users-*.yaml")
	if err != nil {
		return fmt.Errorf("identity: save users: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("identity: save users: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("identity: save users: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("identity: save users: %w", err)
	}
	return nil
}
