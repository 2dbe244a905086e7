package jobs

import "github.com/shaiso/promptflow/internal/domain"

// EventSink принимает события прогресса job.
//
// Реализации: broadcast.Broadcaster (подписчики в процессе)
// и mq.EventPublisher (пересылка событий в API через RabbitMQ).
type EventSink interface {
	HandleEvent(event domain.ProgressEvent)
}

// SinkFunc — функция как EventSink.
type SinkFunc func(event domain.ProgressEvent)

// HandleEvent вызывает f.
func (f SinkFunc) HandleEvent(event domain.ProgressEvent) {
	f(event)
}

// MultiSink рассылает событие нескольким приёмникам по порядку.
type MultiSink []EventSink

// HandleEvent передаёт событие каждому приёмнику.
func (m MultiSink) HandleEvent(event domain.ProgressEvent) {
	for _, sink := range m {
		if sink != nil {
			sink.HandleEvent(event)
		}
	}
}

// discardSink игнорирует события.
type discardSink struct{}

func (discardSink) HandleEvent(domain.ProgressEvent) {}
