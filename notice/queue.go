package notice

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultQueueSize bounds a Queue created with a non-positive size.
const DefaultQueueSize = 16

// Queue buffers notices until a page drains them. When full, the oldest
// notice is dropped so Notify never blocks.
type Queue struct {
	mu      sync.Mutex
	size    int
	pending []Notice
}

var _ Notifier = (*Queue)(nil)

// NewQueue returns a queue holding at most size notices.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{size: size}
}

func (q *Queue) Notify(n Notice) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == q.size {
		q.pending = q.pending[1:]
	}
	q.pending = append(q.pending, n)
}

// Drain returns and removes every pending notice, oldest first.
func (q *Queue) Drain() []Notice {
	q.mu.Lock()
	defer q.mu.Unlock()

	drained := q.pending
	q.pending = nil
	return drained
}

// Len returns the number of pending notices.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// LogNotifier writes notices to a zerolog logger.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier logs through the global logger.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: log.Logger}
}

// NewLogNotifierWith logs through logger.
func NewLogNotifierWith(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(n Notice) {
	event := l.logger.Info()
	if n.Kind == ServiceDegraded {
		event = l.logger.Warn()
	}
	event = event.Str("notice_id", n.ID).Stringer("kind", n.Kind)
	if n.Remaining > 0 {
		event = event.Dur("remaining", n.Remaining)
	}
	event.Msg("session notice")
}
