package smt

import "sync"

type branch struct {
	left, right H256
}

// MemoryStore is a NodeStore held in maps.
type MemoryStore struct {
	mu       sync.RWMutex
	branches map[H256]branch
	leaves   map[H256]H256
	root     H256
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		branches: make(map[H256]branch),
		leaves:   make(map[H256]H256),
	}
}

func (m *MemoryStore) GetBranch(hash H256) (H256, H256, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.branches[hash]
	return b.left, b.right, ok, nil
}

func (m *MemoryStore) PutBranch(hash, left, right H256) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.branches[hash] = branch{left: left, right: right}
	return nil
}

func (m *MemoryStore) GetLeaf(key H256) (H256, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.leaves[key], nil
}

func (m *MemoryStore) PutLeaf(key, value H256) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if value == Zero {
		delete(m.leaves, key)
		return nil
	}
	m.leaves[key] = value
	return nil
}

func (m *MemoryStore) Root() (H256, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.root, nil
}

func (m *MemoryStore) SetRoot(root H256) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.root = root
	return nil
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.leaves)
}
