// PromptFlow CLI — отправка workflow, отслеживание job и проверка
// определений через HTTP API.
//
// Использование:
//
//	promptflow [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	job       Отправка и отслеживание job
//	task      Выполнение отдельной задачи
//	workflow  Проверка workflow
package main

import (
	"fmt"
	"os"

	"github.com/shaiso/promptflow/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	if err := cli.NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
