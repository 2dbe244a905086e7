// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go      — Handler с DI (очередь job, источник событий, runner, logger)
//   - routes.go       — регистрация маршрутов
//   - middleware.go   — middleware (logging, recovery, metrics)
//   - response.go     — унифицированные JSON-ответы и обработка ошибок
//   - dto.go          — Data Transfer Objects (request/response)
//   - job_handler.go  — обработчики для /jobs
//   - events.go       — SSE-поток событий прогресса /jobs/{id}/events
//   - task_handler.go — синхронное выполнение задачи и проверка workflow
//
// API принимает workflow на асинхронное выполнение, отдаёт состояние
// job и поток событий прогресса.
package api
