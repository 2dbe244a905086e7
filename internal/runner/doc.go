// Package runner выполняет workflow целиком.
//
// Runner компилирует workflow (engine), затем по порядку вызывает
// executor для каждой задачи и складывает результаты в data store.
// Асинхронное выполнение с повторами — в пакете jobs.
package runner
