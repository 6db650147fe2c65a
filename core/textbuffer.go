package orchestration

import (
	"strings"
	"sync"
)

// explanationBuffer decouples the explanation producer from the pacer: the
// producer appends deltas as they arrive, the pacer consumes them at its own
// rate. Completion and clearing both wake a blocked consumer.
type explanationBuffer struct {
	mu             sync.Mutex
	chunks         []string
	chunksConsumed int
	textComplete   bool
	updateSignal   chan struct{}
	done           chan struct{}
	cleared        bool
}

func newExplanationBuffer() *explanationBuffer {
	return &explanationBuffer{
		updateSignal: make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
}

func (b *explanationBuffer) AddChunk(chunk string) {
	b.mu.Lock()
	b.chunks = append(b.chunks, chunk)
	b.mu.Unlock()
	b.signalUpdate()
}

func (b *explanationBuffer) TextComplete() {
	b.mu.Lock()
	if !b.textComplete {
		b.textComplete = true
		close(b.done)
	}
	b.mu.Unlock()
	b.signalUpdate()
}

// Done is closed once the producer has delivered the full text.
func (b *explanationBuffer) Done() <-chan struct{} {
	return b.done
}

func (b *explanationBuffer) Chunks(yield func(string) bool) {
	for {
		b.mu.Lock()
		if b.cleared {
			b.mu.Unlock()
			return
		}

		if b.chunksConsumed < len(b.chunks) {
			chunk := b.chunks[b.chunksConsumed]
			b.chunksConsumed++
			b.mu.Unlock()
			if !yield(chunk) {
				return
			}
			continue
		}

		if b.textComplete {
			b.mu.Unlock()
			return
		}

		b.mu.Unlock()
		<-b.updateSignal
	}
}

func (b *explanationBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return strings.Join(b.chunks, "")
}

func (b *explanationBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.chunks)
}

func (b *explanationBuffer) Clear() {
	b.mu.Lock()
	b.cleared = true
	b.mu.Unlock()
	b.signalUpdate()
}

func (b *explanationBuffer) signalUpdate() {
	select {
	case b.updateSignal <- struct{}{}:
	default:
	}
}
