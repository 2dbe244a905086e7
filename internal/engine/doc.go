// Package engine содержит структурную часть движка workflow.
//
// Включает:
//   - parser.go   — разбор workflow (JSON/YAML) и компиляция в план
//   - dag.go      — граф зависимостей и топологическая сортировка (Кан)
//   - template.go — поиск по пути через точку и подстановка {{ key }}
//
// Engine отвечает за понимание структуры workflow и порядок выполнения
// задач. Само выполнение задач — в пакете executor.
package engine
