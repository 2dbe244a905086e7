// Package cli реализует инструмент командной строки PromptFlow.
//
// # Обзор
//
// CLI работает с API через HTTP. Из внутренних пакетов используются
// только domain (типы workflow, job и событий) и engine (разбор файлов
// и локальная проверка workflow без сервера).
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для API. Разбирает обёртки ответов ({"data": ...} и
// {"error": {...}}) и читает SSE-поток событий job.
//
//	client := cli.NewClient("http://localhost:8080")
//	id, err := client.SubmitJob(cli.SubmitJobRequest{Workflow: wf})
//
// ## Output
//
// Форматирование вывода: таблицы (text/tabwriter) по умолчанию,
// JSON с флагом --json. Данные идут в stdout, сообщения в stderr:
//
//	promptflow job status <id> --json | jq .progress
//
// ## Commands
//
//   - job: submit, status, stop, watch
//   - task: run
//   - workflow: validate
//
// Workflow и задачи читаются из JSON или YAML файлов (по расширению).
package cli
