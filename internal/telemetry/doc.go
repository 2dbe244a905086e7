// Package telemetry — логирование и метрики promptflow.
//
// logging.go настраивает slog (JSON или text) и добавляет к логгеру
// job_id, task_id и workflow_id. metrics.go объявляет Prometheus-метрики
// очереди job, задач, broadcaster и HTTP API; бинарники отдают их на /metrics.
package telemetry
