package pipeline

import (
	"math/rand/v2"
	"sync"
	"time"
)

// RandomSource источник случайных чисел для резервного риска.
// IntN возвращает число в [0, n).
type RandomSource interface {
	IntN(n int) int
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRandomSource создает потокобезопасный PCG-генератор.
// Нулевой seed означает инициализацию от текущего времени.
func NewRandomSource(seed uint64) RandomSource {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed>>1|1))}
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}
