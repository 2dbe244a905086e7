package engine

import (
	"reflect"
	"testing"
)

func TestLookup(t *testing.T) {
	store := map[string]any{
		"userInput": map[string]any{
			"text": "hello",
			"meta": map[string]any{"lang": "en"},
		},
		"items": []any{
			map[string]any{"name": "first"},
		},
		"empty": nil,
	}

	tests := []struct {
		name  string
		path  string
		want  any
		found bool
	}{
		{"top level", "userInput", store["userInput"], true},
		{"nested", "userInput.text", "hello", true},
		{"deep", "userInput.meta.lang", "en", true},
		{"array index", "items.0.name", "first", true},
		{"array out of range", "items.3.name", nil, false},
		{"missing leaf", "userInput.image", nil, false},
		{"missing link", "nope.text", nil, false},
		{"through scalar", "userInput.text.length", nil, false},
		{"explicit nil", "empty", nil, true},
		{"empty path", "", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := Lookup(store, tt.path)
			if found != tt.found {
				t.Fatalf("Lookup(%q) found = %v, want %v", tt.path, found, tt.found)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Lookup(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestResolve_SinglePlaceholderKeepsRawValue(t *testing.T) {
	store := map[string]any{"a": map[string]any{"b": 5}}

	got, missing := Resolve("{{a.b}}", store)
	if got != 5 {
		t.Errorf("expected raw int 5, got %#v", got)
	}
	if len(missing) != 0 {
		t.Errorf("unexpected missing keys: %v", missing)
	}

	image := map[string]any{"base64": "AAAA", "type": "image/png"}
	got, _ = Resolve("  {{ userInput.image }} ", map[string]any{
		"userInput": map[string]any{"image": image},
	})
	if !reflect.DeepEqual(got, image) {
		t.Errorf("expected image object, got %#v", got)
	}
}

func TestResolve_MixedText(t *testing.T) {
	store := map[string]any{"a": map[string]any{"b": 5}}

	got, _ := Resolve("x={{a.b}}", store)
	if got != "x=5" {
		t.Errorf("expected %q, got %#v", "x=5", got)
	}
}

func TestResolve_MissingKeyLeavesTemplate(t *testing.T) {
	got, missing := Resolve("{{missing}}", map[string]any{})
	if got != "{{missing}}" {
		t.Errorf("expected literal template, got %#v", got)
	}
	if !reflect.DeepEqual(missing, []string{"missing"}) {
		t.Errorf("expected missing [missing], got %v", missing)
	}
}

func TestInterpolate(t *testing.T) {
	store := map[string]any{
		"name":  "Ada",
		"count": float64(3),
		"ratio": 1.5,
		"ok":    true,
		"none":  nil,
		"obj":   map[string]any{"k": "v"},
		"list":  []any{"a", "b"},
	}

	tests := []struct {
		name     string
		template string
		want     string
		missing  []string
	}{
		{"no placeholders", "plain text", "plain text", nil},
		{"string", "Hi {{name}}!", "Hi Ada!", nil},
		{"spaces inside braces", "Hi {{ name }}!", "Hi Ada!", nil},
		{"integral float", "n={{count}}", "n=3", nil},
		{"fraction", "r={{ratio}}", "r=1.5", nil},
		{"bool", "{{ok}}/{{ok}}", "true/true", nil},
		{"null", "v={{none}}", "v=null", nil},
		{"object", "o={{obj}}", "o={\n  \"k\": \"v\"\n}", nil},
		{"array", "l={{list}}", "l=[\n  \"a\",\n  \"b\"\n]", nil},
		{"missing kept", "a {{nope}} b {{name}}", "a {{nope}} b Ada", []string{"nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, missing := Interpolate(tt.template, store)
			if got != tt.want {
				t.Errorf("Interpolate(%q) = %q, want %q", tt.template, got, tt.want)
			}
			if !reflect.DeepEqual(missing, tt.missing) {
				t.Errorf("missing = %v, want %v", missing, tt.missing)
			}
		})
	}
}

func TestMerge_InputsWin(t *testing.T) {
	store := map[string]any{"text": "store", "other": 1}
	inputs := map[string]any{"text": "input"}

	merged := Merge(store, inputs)
	if merged["text"] != "input" {
		t.Errorf("expected inputs to win, got %v", merged["text"])
	}
	if merged["other"] != 1 {
		t.Errorf("expected store key to survive")
	}
	if store["text"] != "store" {
		t.Error("Merge must not modify store")
	}
}

func TestSimplifiedName(t *testing.T) {
	tests := map[string]string{
		"userInput.text": "text",
		"a.b.c":          "c",
		"plain":          "plain",
	}
	for in, want := range tests {
		if got := SimplifiedName(in); got != want {
			t.Errorf("SimplifiedName(%q) = %q, want %q", in, got, want)
		}
	}
}
