package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/shaiso/promptflow/internal/domain"
)

// Output управляет форматированием вывода CLI.
type Output struct {
	jsonMode bool
	w        io.Writer // stdout для данных
	errW     io.Writer // stderr для сообщений
}

// NewOutput создаёт Output. Если jsonMode=true, данные выводятся в JSON.
func NewOutput(jsonMode bool) *Output {
	return NewOutputTo(os.Stdout, os.Stderr, jsonMode)
}

// NewOutputTo создаёт Output с заданными потоками.
func NewOutputTo(w, errW io.Writer, jsonMode bool) *Output {
	return &Output{
		jsonMode: jsonMode,
		w:        w,
		errW:     errW,
	}
}

// Print выводит данные: таблицу или JSON в зависимости от режима.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
		return
	}
	o.Table(headers, rows)
}

// Table выводит данные в виде таблицы через tabwriter.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))

	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
}

// JSON выводит данные в формате JSON с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// Value выводит произвольный результат: строку как есть, остальное как JSON.
func (o *Output) Value(v any) {
	if s, ok := v.(string); ok && !o.jsonMode {
		fmt.Fprintln(o.w, s)
		return
	}
	o.JSON(v)
}

// Event выводит событие прогресса одной строкой (или JSON-строкой).
func (o *Output) Event(ev domain.ProgressEvent) {
	if o.jsonMode {
		_ = json.NewEncoder(o.w).Encode(ev)
		return
	}

	line := fmt.Sprintf("%s  %-9s", ev.Timestamp.Format("15:04:05"), ev.Type)
	if ev.TaskID != "" {
		line += "  " + ev.TaskID
		if ev.TaskName != "" && ev.TaskName != ev.TaskID {
			line += " (" + ev.TaskName + ")"
		}
	} else {
		line += "  job " + string(ev.Status)
	}
	if ev.Error != "" {
		line += ": " + ev.Error
	}
	fmt.Fprintln(o.w, line)
}

// Success выводит сообщение об успехе в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, msg)
}

// Error выводит сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	fmt.Fprintln(o.errW, "Error: "+msg)
}
