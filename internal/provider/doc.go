// Package provider описывает доступ движка к языковым моделям.
//
// Provider — интерфейс возможностей (текст, текст с источниками,
// анализ изображения). Реализации:
//   - Echo    — возвращает промпт, для тестов и локального запуска
//   - Gateway — HTTP-клиент шлюза моделей
//
// Выбор реализации — New по конфигурации (kind: echo | gateway).
package provider
