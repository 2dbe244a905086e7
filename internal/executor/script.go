package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/robertkrimen/otto"

	"github.com/shaiso/promptflow/internal/domain"
)

// errInterrupted — значение паники, которым прерывается VM по таймауту.
var errInterrupted = errors.New("script interrupted")

// scriptWrapper оборачивает тело функции.
//
// Входы передаются JSON-строкой и разбираются внутри VM, поэтому скрипт
// работает с копией и не может изменить data store. Результат тоже
// возвращается через JSON, чтобы в Go попадали только map[string]any,
// []any, float64, string, bool и nil.
const scriptWrapper = `(function () {
var __result = (function (inputs) {
%s
})(JSON.parse(__inputs));
return __result === undefined ? undefined : JSON.stringify(__result);
})()`

// runScript выполняет тело TEXT_MANIPULATION в отдельной VM otto.
//
// У VM нет доступа к файлам, сети и процессу; console.log пишет в лог.
// Выполнение прерывается по таймауту или отмене ctx.
func (e *Executor) runScript(ctx context.Context, task *domain.Task, body string, inputs map[string]any) (result any, err error) {
	encoded, err := json.Marshal(inputs)
	if err != nil {
		return nil, fmt.Errorf("%w: encode inputs: %v", ErrScript, err)
	}

	vm := otto.New()
	vm.Interrupt = make(chan func(), 1)

	if err := vm.Set("__inputs", string(encoded)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScript, err)
	}
	if err := e.installConsole(vm, task); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScript, err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.scriptTimeout)
	defer cancel()

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt <- func() { panic(errInterrupted) }
		case <-done:
		}
	}()

	defer func() {
		if caught := recover(); caught != nil {
			if caught != errInterrupted {
				panic(caught)
			}
			result = nil
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				err = fmt.Errorf("%w after %s", ErrScriptTimeout, e.scriptTimeout)
			} else {
				err = fmt.Errorf("%w: %v", ErrScript, ctx.Err())
			}
		}
	}()

	value, err := vm.Run(fmt.Sprintf(scriptWrapper, body))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrScript, scriptMessage(err))
	}

	if value.IsUndefined() || value.IsNull() {
		return nil, nil
	}

	raw, err := value.ToString()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScript, err)
	}

	var out any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("%w: decode result: %v", ErrScript, err)
	}
	return out, nil
}

// installConsole заменяет console на вывод в лог.
func (e *Executor) installConsole(vm *otto.Otto, task *domain.Task) error {
	console, err := vm.Object(`({})`)
	if err != nil {
		return err
	}

	logFn := func(call otto.FunctionCall) otto.Value {
		parts := make([]string, 0, len(call.ArgumentList))
		for _, arg := range call.ArgumentList {
			parts = append(parts, arg.String())
		}
		e.logger.Debug("function body log",
			"task_id", task.ID,
			"message", strings.Join(parts, " "),
		)
		return otto.UndefinedValue()
	}

	for _, name := range []string{"log", "info", "warn", "error", "debug"} {
		if err := console.Set(name, logFn); err != nil {
			return err
		}
	}
	return vm.Set("console", console)
}

// scriptMessage возвращает текст исключения без стека.
func scriptMessage(err error) string {
	var ottoErr *otto.Error
	if errors.As(err, &ottoErr) {
		return ottoErr.Error()
	}
	return err.Error()
}
