package urlstate

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ParamAgentID is the query parameter holding the tracked agent.
const ParamAgentID = "agent_id"

// Store is the selection the console tracks. Set records a new entry in the
// back/forward history; Back and Forward move through it. Changes delivers
// values set by someone else, never the store's own writes.
type Store interface {
	Get() string
	Set(agentID string) error
	Changes() <-chan string
	Back() (string, bool)
	Forward() (string, bool)
}

// Encode renders agentID as a query string. An empty id encodes to "".
func Encode(agentID string) string {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return ""
	}
	v := url.Values{}
	v.Set(ParamAgentID, agentID)
	return v.Encode()
}

// Decode reads agent_id from a query string. A leading URL or "?" is
// tolerated so a pasted dashboard link works too.
func Decode(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '?'); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.IndexByte(s, '#'); i >= 0 {
		s = s[:i]
	}
	v, err := url.ParseQuery(s)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(v.Get(ParamAgentID))
}

// history is a browser-style back/forward stack.
type history struct {
	entries []string
	index   int
}

func (h *history) current() string {
	if len(h.entries) == 0 {
		return ""
	}
	return h.entries[h.index]
}

// push records v after the current entry and drops any forward entries.
// It reports false when v is already current.
func (h *history) push(v string) bool {
	if len(h.entries) > 0 && h.current() == v {
		return false
	}
	if len(h.entries) > 0 {
		h.entries = h.entries[:h.index+1]
	}
	h.entries = append(h.entries, v)
	h.index = len(h.entries) - 1
	return true
}

func (h *history) back() (string, bool) {
	if h.index == 0 || len(h.entries) == 0 {
		return "", false
	}
	h.index--
	return h.entries[h.index], true
}

func (h *history) forward() (string, bool) {
	if h.index >= len(h.entries)-1 {
		return "", false
	}
	h.index++
	return h.entries[h.index], true
}

// emitLatest delivers v on a 1-slot channel, replacing an undelivered value.
func emitLatest(ch chan string, v string) {
	select {
	case ch <- v:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.Mutex
	hist    history
	changes chan string
}

// NewMemoryStore returns a store starting at agentID ("" for none).
func NewMemoryStore(agentID string) *MemoryStore {
	s := &MemoryStore{changes: make(chan string, 1)}
	s.hist.push(strings.TrimSpace(agentID))
	return s
}

func (s *MemoryStore) Get() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.current()
}

func (s *MemoryStore) Set(agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hist.push(strings.TrimSpace(agentID))
	return nil
}

func (s *MemoryStore) Changes() <-chan string {
	return s.changes
}

func (s *MemoryStore) Back() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.back()
}

func (s *MemoryStore) Forward() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.forward()
}

// Push simulates an external edit: the value becomes current and is
// delivered on Changes.
func (s *MemoryStore) Push(agentID string) {
	agentID = strings.TrimSpace(agentID)
	s.mu.Lock()
	changed := s.hist.push(agentID)
	s.mu.Unlock()
	if changed {
		emitLatest(s.changes, agentID)
	}
}

// FileStore keeps the selection in a file as a query string. Edits made by
// other processes are picked up by a stateWatcher and delivered on Changes.
type FileStore struct {
	path    string
	mu      sync.Mutex
	hist    history
	changes chan string
	watcher *stateWatcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// OpenFileStore reads path (a missing file means no selection) and starts
// watching it. initial, when non-empty, overrides the file's value and is
// written back.
func OpenFileStore(path, initial string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	current, err := readState(path)
	if err != nil {
		return nil, err
	}
	s := &FileStore{
		path:    path,
		changes: make(chan string, 1),
		done:    make(chan struct{}),
	}
	s.hist.push(current)
	if initial = strings.TrimSpace(initial); initial != "" && initial != current {
		s.hist.push(initial)
		if err := s.write(initial); err != nil {
			return nil, err
		}
	}

	w, err := watchState(path, s.hist.current())
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	s.watcher = w
	s.wg.Add(1)
	go s.loop()
	return s, nil
}

// Path is the state file location.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Get() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.current()
}

func (s *FileStore) Set(agentID string) error {
	agentID = strings.TrimSpace(agentID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hist.push(agentID) {
		return nil
	}
	return s.write(agentID)
}

func (s *FileStore) Changes() <-chan string {
	return s.changes
}

func (s *FileStore) Back() (string, bool) {
	return s.move((*history).back)
}

func (s *FileStore) Forward() (string, bool) {
	return s.move((*history).forward)
}

func (s *FileStore) move(step func(*history) (string, bool)) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := step(&s.hist)
	if !ok {
		return "", false
	}
	if err := s.write(v); err != nil {
		log.Printf("urlstate: %v", err)
	}
	return v, true
}

// Close stops watching the file.
func (s *FileStore) Close() error {
	close(s.done)
	err := s.watcher.Close()
	s.wg.Wait()
	return err
}

func (s *FileStore) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case id := <-s.watcher.IDs():
			s.mu.Lock()
			changed := s.hist.push(id)
			s.mu.Unlock()
			// Our own writes leave the current entry unchanged.
			if changed {
				emitLatest(s.changes, id)
			}
		}
	}
}

func (s *FileStore) write(agentID string) error {
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(Encode(agentID)+"\n"), 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

func readState(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read state %s: %w", path, err)
	}
	return Decode(string(data)), nil
}

// Load returns the agent id recorded at path without watching it. A missing
// file yields "".
func Load(path string) (string, error) {
	return readState(path)
}
