package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// placeholderRe находит {{ key }} внутри строки.
	placeholderRe = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

	// singlePlaceholderRe — строка целиком состоит из одного плейсхолдера.
	singlePlaceholderRe = regexp.MustCompile(`^\{\{\s*([^{}]+?)\s*\}\}$`)
)

// Lookup ищет значение в data store по пути через точку ("userInput.text").
//
// Проходит по вложенным map слева направо; для срезов сегмент
// трактуется как индекс ("items.0.name"). Возвращает false на первом
// отсутствующем звене. Найденный nil считается найденным значением.
func Lookup(store map[string]any, path string) (any, bool) {
	path = strings.TrimSpace(path)
	if path == "" || store == nil {
		return nil, false
	}

	var current any = store
	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			value, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = value

		case map[string]string:
			value, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = value

		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]

		default:
			return nil, false
		}
	}

	return current, true
}

// Resolve подставляет значения из store в шаблон.
//
// Если шаблон (без пробелов по краям) состоит ровно из одного
// плейсхолдера, возвращается само значение без преобразования в строку,
// так сохраняются объекты, числа и изображения. Если ключ не найден,
// возвращается исходный шаблон.
//
// Иначе работает как Interpolate. Второе значение — ключи, которые
// не нашлись в store.
func Resolve(tmpl string, store map[string]any) (any, []string) {
	if m := singlePlaceholderRe.FindStringSubmatch(strings.TrimSpace(tmpl)); m != nil {
		key := strings.TrimSpace(m[1])
		if value, ok := Lookup(store, key); ok {
			return value, nil
		}
		return tmpl, []string{key}
	}

	return Interpolate(tmpl, store)
}

// Interpolate заменяет каждый {{ key }} строковым представлением значения.
//
// Объекты и массивы превращаются в JSON с отступом в два пробела,
// остальные значения приводятся к строке. Ненайденные плейсхолдеры
// остаются в тексте как есть и возвращаются списком.
func Interpolate(tmpl string, store map[string]any) (string, []string) {
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	var missing []string
	out := placeholderRe.ReplaceAllStringFunc(tmpl, func(match string) string {
		key := strings.TrimSpace(placeholderRe.FindStringSubmatch(match)[1])
		value, ok := Lookup(store, key)
		if !ok {
			missing = append(missing, key)
			return match
		}
		return Stringify(value)
	})

	return out, missing
}

// Stringify приводит значение к строке так, как его увидит модель в промпте.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v)
	case json.Number:
		return v.String()
	default:
		return prettyJSON(v)
	}
}

// prettyJSON сериализует значение с отступом, без экранирования HTML.
func prettyJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// Merge возвращает новый map: store, поверх которого положены inputs.
// При совпадении ключей побеждают inputs.
func Merge(store, inputs map[string]any) map[string]any {
	merged := make(map[string]any, len(store)+len(inputs))
	for k, v := range store {
		merged[k] = v
	}
	for k, v := range inputs {
		merged[k] = v
	}
	return merged
}

// SimplifiedName возвращает последний сегмент пути ("userInput.text" → "text").
func SimplifiedName(path string) string {
	path = strings.TrimSpace(path)
	if i := strings.LastIndex(path, "."); i >= 0 {
		return path[i+1:]
	}
	return path
}
