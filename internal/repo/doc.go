// Package repo хранит job и библиотеку промптов в PostgreSQL (pgx).
//
// Схема — migrations/001_init.sql.
package repo
