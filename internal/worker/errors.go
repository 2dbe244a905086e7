package worker

import "errors"

// ErrWorkerStopped — воркер уже остановлен и не может быть запущен снова.
var ErrWorkerStopped = errors.New("worker stopped")
