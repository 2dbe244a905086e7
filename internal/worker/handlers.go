package worker

import (
	"context"

	"github.com/shaiso/promptflow/internal/mq"
)

// handleJobPending обрабатывает событие о новом job из очереди jobs.pending.
//
// Сообщение подтверждается сразу после передачи job в пул: состояние
// job хранится в БД, и потерянный job найдёт polling.
func (w *Worker) handleJobPending(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.JobPendingPayload](&delivery.Message)
	if err != nil {
		w.logger.Error("failed to parse job.pending payload", "error", err)
		// Повтор не поможет — ack
		return nil
	}

	w.logger.Debug("received job.pending event", "job_id", payload.JobID)

	if !w.dispatch(ctx, payload.JobID) {
		return ctx.Err()
	}
	return nil
}
