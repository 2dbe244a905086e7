// Package config загружает конфигурацию promptflow через viper.
//
// Источники по возрастанию приоритета: значения по умолчанию,
// файл promptflow.yaml (., ./config, /etc/promptflow), переменные
// окружения PROMPTFLOW_<SECTION>_<KEY>. Для совместимости с
// docker-compose поддерживаются DB_URL, RABBITMQ_URL, LOG_LEVEL,
// LOG_FORMAT, API_PORT и WORKER_PORT.
package config
