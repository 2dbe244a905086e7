package broadcast

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/promptflow/internal/domain"
	"github.com/shaiso/promptflow/internal/telemetry"
)

const defaultBufferSize = 64

// Option настраивает Broadcaster.
type Option func(*Broadcaster)

// WithBufferSize задаёт размер буфера канала подписчика.
func WithBufferSize(size int) Option {
	return func(b *Broadcaster) {
		if size > 0 {
			b.bufferSize = size
		}
	}
}

// WithLogger задаёт логгер для сообщений о потерянных событиях.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Broadcaster) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// Broadcaster рассылает события прогресса подписчикам по ID job.
//
// Publish вызывается из разных воркеров одновременно, поэтому реестр
// защищён RWMutex. Publish никогда не блокируется: если буфер подписчика
// полон, событие для него отбрасывается. Финальное событие job
// закрывает все подписки этого job.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID]map[*subscriber]struct{}
	bufferSize  int
	logger      *slog.Logger
}

type subscriber struct {
	ch     chan domain.ProgressEvent
	once   sync.Once
	closed bool // защищён Broadcaster.mu
}

// Subscription — активная подписка на события одного job.
type Subscription struct {
	// Events закрывается после финального события job или Close.
	Events <-chan domain.ProgressEvent

	cancel func()
}

// Close отменяет подписку. Повторный вызов безопасен.
func (s *Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// New создаёт Broadcaster.
func New(opts ...Option) *Broadcaster {
	b := &Broadcaster{
		subscribers: make(map[uuid.UUID]map[*subscriber]struct{}),
		bufferSize:  defaultBufferSize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Subscribe подписывается на события job.
func (b *Broadcaster) Subscribe(jobID uuid.UUID) *Subscription {
	sub := &subscriber{ch: make(chan domain.ProgressEvent, b.bufferSize)}

	b.mu.Lock()
	if b.subscribers[jobID] == nil {
		b.subscribers[jobID] = make(map[*subscriber]struct{})
	}
	b.subscribers[jobID][sub] = struct{}{}
	b.mu.Unlock()

	return &Subscription{
		Events: sub.ch,
		cancel: func() { b.remove(jobID, sub) },
	}
}

// Publish рассылает событие подписчикам его job.
func (b *Broadcaster) Publish(event domain.ProgressEvent) {
	if event.IsTerminal() {
		b.publishTerminal(event)
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers[event.JobID] {
		b.deliver(sub, event)
	}
}

// publishTerminal доставляет финальное событие и закрывает подписки job.
func (b *Broadcaster) publishTerminal(event domain.ProgressEvent) {
	b.mu.Lock()
	subs := b.subscribers[event.JobID]
	delete(b.subscribers, event.JobID)
	for sub := range subs {
		b.deliver(sub, event)
		sub.close()
	}
	b.mu.Unlock()
}

// deliver отправляет событие без блокировки. Вызывается под b.mu.
func (b *Broadcaster) deliver(sub *subscriber, event domain.ProgressEvent) {
	if sub.closed {
		return
	}
	select {
	case sub.ch <- event:
	default:
		telemetry.BroadcastDropped.Inc()
		b.logger.Debug("progress event dropped",
			"job_id", event.JobID,
			"type", event.Type,
			"task_id", event.TaskID,
		)
	}
}

// remove удаляет подписчика и закрывает его канал.
func (b *Broadcaster) remove(jobID uuid.UUID, sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subs := b.subscribers[jobID]; subs != nil {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.subscribers, jobID)
		}
	}
	sub.close()
}

// close закрывает канал подписчика один раз. Вызывается под b.mu.
func (s *subscriber) close() {
	s.once.Do(func() {
		s.closed = true
		close(s.ch)
	})
}

// SubscriberCount возвращает количество подписчиков job.
func (b *Broadcaster) SubscriberCount(jobID uuid.UUID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[jobID])
}

// HandleEvent позволяет использовать Broadcaster как приёмник событий jobs.
func (b *Broadcaster) HandleEvent(event domain.ProgressEvent) {
	b.Publish(event)
}
