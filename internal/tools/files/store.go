// Package files implements the project file tools over an in-memory
// store. The store is the agent's working copy of the project; syncing
// it to the sandbox is the transport's job, not the tools'.
package files

import (
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// Store holds project files keyed by absolute path. All methods are
// safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	files map[string]string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{files: make(map[string]string)}
}

// Seed loads an initial file set, replacing the current contents.
func (s *Store) Seed(files map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = make(map[string]string, len(files))
	for path, content := range files {
		s.files[normalize(path)] = content
	}
}

// Write stores content at path, returning true when the path already
// existed.
func (s *Store) Write(path, content string) bool {
	path = normalize(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.files[path]
	s.files[path] = content
	return existed
}

// Read returns the content at path.
func (s *Store) Read(path string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.files[normalize(path)]
	return content, ok
}

// Delete removes path, reporting whether it existed.
func (s *Store) Delete(path string) bool {
	path = normalize(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.files[path]
	delete(s.files, path)
	return existed
}

// Lookup resolves path to a stored file, falling back to a
// case-insensitive basename match when the exact path is absent. The
// agent frequently guesses casing or directories wrong; a unique
// basename match is almost always the file it meant. Returns the
// resolved path, the content, and whether the path had to be corrected.
func (s *Store) Lookup(path string) (resolved, content string, corrected, found bool) {
	path = normalize(path)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.files[path]; ok {
		return path, c, false, true
	}

	base := strings.ToLower(basename(path))
	var matches []string
	for candidate := range s.files {
		if strings.ToLower(basename(candidate)) == base {
			matches = append(matches, candidate)
		}
	}
	// Only an unambiguous match is trusted.
	if len(matches) == 1 {
		return matches[0], s.files[matches[0]], true, true
	}
	return "", "", false, false
}

// Paths returns all stored paths, sorted.
func (s *Store) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, 0, len(s.files))
	for path := range s.files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Match returns the sorted paths matching a doublestar pattern,
// optionally restricted to a directory prefix.
func (s *Store) Match(dir, pattern string) []string {
	dir = normalizeDir(dir)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for path := range s.files {
		if dir != "" && !strings.HasPrefix(path, dir) {
			continue
		}
		if pattern != "" {
			relative := strings.TrimPrefix(path, dir)
			relative = strings.TrimPrefix(relative, "/")
			if ok, err := doublestar.Match(pattern, relative); err != nil || !ok {
				continue
			}
		}
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of stored files.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

func normalize(path string) string {
	if path == "" || strings.HasPrefix(path, "/") {
		return path
	}
	return "/" + path
}

func normalizeDir(dir string) string {
	if dir == "" || dir == "/" {
		return ""
	}
	dir = normalize(dir)
	return strings.TrimSuffix(dir, "/")
}

func basename(path string) string {
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
