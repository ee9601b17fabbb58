package api

import (
	"sync"

	"github.com/google/uuid"
)

// DefaultStoreCapacity bounds how many generations are kept for retrieval.
const DefaultStoreCapacity = 256

// GenerationStore keeps the most recent generation results in memory. When
// full, the oldest entry is evicted.
type GenerationStore struct {
	mu       sync.Mutex
	capacity int
	order    []string
	items    map[string]GenerateResponse
}

func NewGenerationStore(capacity int) *GenerationStore {
	if capacity <= 0 {
		capacity = DefaultStoreCapacity
	}
	return &GenerationStore{
		capacity: capacity,
		items:    make(map[string]GenerateResponse),
	}
}

func (s *GenerationStore) Put(resp GenerateResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[resp.ID]; !ok {
		s.order = append(s.order, resp.ID)
	}
	s.items[resp.ID] = resp
	for len(s.order) > s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.items, oldest)
	}
}

func (s *GenerationStore) Get(id string) (GenerateResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp, ok := s.items[id]
	return resp, ok
}

func (s *GenerationStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *GenerationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func newGenerationID() string {
	return "gen_" + uuid.NewString()
}

func newCompletionID() string {
	return "chatcmpl-" + uuid.NewString()
}
