package a2a

import "sync"

// Store is the in-memory, user-scoped A2A task store.
type Store struct {
	mu    sync.Mutex
	tasks map[string]map[string]*TaskSnapshot // user -> task id -> snapshot
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{tasks: make(map[string]map[string]*TaskSnapshot)}
}

// Put records or replaces a task snapshot for user.
func (s *Store) Put(user string, snap *TaskSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tasks[user] == nil {
		s.tasks[user] = make(map[string]*TaskSnapshot)
	}
	s.tasks[user][snap.TaskID] = snap
}

// Get returns the snapshot for (user, taskID), if present.
func (s *Store) Get(user, taskID string) (*TaskSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.tasks[user]
	if !ok {
		return nil, false
	}
	snap, ok := byID[taskID]
	return snap, ok
}

// All returns every snapshot stored for user.
func (s *Store) All(user string) []*TaskSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID := s.tasks[user]
	out := make([]*TaskSnapshot, 0, len(byID))
	for _, snap := range byID {
		out = append(out, snap)
	}
	return out
}

// Filter returns the stored snapshots for user that pass every given
// filter: task id in ids (if ids is non-empty), endpoint equal (if
// non-empty), and service name equal (if non-empty).
func (s *Store) Filter(user string, ids []string, endpoint, serviceName string) []*TaskSnapshot {
	idSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	byID := s.tasks[user]
	var out []*TaskSnapshot
	for _, snap := range byID {
		if len(idSet) > 0 && !idSet[snap.TaskID] {
			continue
		}
		if endpoint != "" && snap.Endpoint != endpoint {
			continue
		}
		if serviceName != "" && snap.ServiceName != serviceName {
			continue
		}
		out = append(out, snap)
	}
	return out
}
