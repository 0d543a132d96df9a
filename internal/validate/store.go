package validate

import (
	"math"
	"sync"

	"github.com/vrulab/rigsync/internal/signal"
)

// MemoryStore — хранилище аннотаций в памяти (тесты и запуск без внешнего
// хранилища). Настоящее хранилище — внешний коллаборатор за AnnotationStore.
type MemoryStore struct {
	mu   sync.RWMutex
	anns map[string][]signal.Annotation // по видео
}

// NewMemoryStore создаёт пустое хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{anns: make(map[string][]signal.Annotation)}
}

// Add добавляет аннотацию.
func (m *MemoryStore) Add(a signal.Annotation) {
	m.mu.Lock()
	m.anns[a.VideoID] = append(m.anns[a.VideoID], a)
	m.mu.Unlock()
}

// FindAt возвращает аннотации видео в окне допуска вокруг метки времени.
func (m *MemoryStore) FindAt(videoID string, ts float64, toleranceMs float64) []signal.Annotation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []signal.Annotation
	tol := toleranceMs / 1000
	for _, a := range m.anns[videoID] {
		if math.Abs(a.Timestamp-ts) <= tol {
			out = append(out, a)
		}
	}
	return out
}
