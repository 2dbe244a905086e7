package engine

import (
	"errors"
	"reflect"
	"testing"

	"github.com/shaiso/promptflow/internal/domain"
)

func task(id string, deps ...string) *domain.Task {
	return &domain.Task{
		ID:           id,
		Name:         "Task " + id,
		Dependencies: deps,
		OutputKey:    id,
		Spec:         domain.DataInputSpec{StaticValue: id},
	}
}

func orderIDs(tasks []*domain.Task) []string {
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	return ids
}

func TestSort_SimpleChain(t *testing.T) {
	result := Sort([]*domain.Task{
		task("C", "B"),
		task("A"),
		task("B", "A"),
	})

	if !result.OK() {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}

	got := orderIDs(result.Order)
	want := []string{"A", "B", "C"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected order %v, got %v", want, got)
	}
}

func TestSort_Diamond(t *testing.T) {
	// A → B → D
	// A → C → D
	tasks := []*domain.Task{
		task("A"),
		task("B", "A"),
		task("C", "A"),
		task("D", "B", "C"),
	}

	dag, _ := BuildDAG(tasks)
	if dag.Size() != 4 {
		t.Errorf("expected 4 nodes, got %d", dag.Size())
	}
	if len(dag.GetNode("D").DependsOn) != 2 {
		t.Errorf("node D should have 2 dependencies, got %d", len(dag.GetNode("D").DependsOn))
	}
	if dag.GetNode("A").InDegree != 0 {
		t.Error("A should have inDegree 0")
	}

	result := Sort(tasks)
	got := orderIDs(result.Order)
	want := []string{"A", "B", "C", "D"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected order %v, got %v", want, got)
	}
}

func TestSort_TopologicalValidity(t *testing.T) {
	tests := []struct {
		name  string
		tasks []*domain.Task
	}{
		{
			name:  "independent",
			tasks: []*domain.Task{task("x"), task("y"), task("z")},
		},
		{
			name: "reverse declared chain",
			tasks: []*domain.Task{
				task("e", "d"), task("d", "c"), task("c", "b"), task("b", "a"), task("a"),
			},
		},
		{
			name: "wide fan in",
			tasks: []*domain.Task{
				task("sink", "s1", "s2", "s3"),
				task("s3", "root"), task("s2", "root"), task("s1", "root"),
				task("root"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Sort(tt.tasks)
			if !result.OK() {
				t.Fatalf("unexpected errors: %v", result.Errors)
			}
			if len(result.Order) != len(tt.tasks) {
				t.Fatalf("expected %d tasks in order, got %d", len(tt.tasks), len(result.Order))
			}

			pos := make(map[string]int)
			for i, tk := range result.Order {
				pos[tk.ID] = i
			}
			for _, tk := range tt.tasks {
				for _, dep := range tk.Dependencies {
					if pos[dep] >= pos[tk.ID] {
						t.Errorf("task %s placed before its dependency %s", tk.ID, dep)
					}
				}
			}
		})
	}
}

func TestSort_DeterministicTieBreak(t *testing.T) {
	build := func() []*domain.Task {
		return []*domain.Task{
			task("b"), task("a"), task("d", "a"), task("c", "b"),
		}
	}

	first := orderIDs(Sort(build()).Order)
	second := orderIDs(Sort(build()).Order)

	want := []string{"b", "a", "c", "d"}
	if !reflect.DeepEqual(first, want) {
		t.Errorf("expected order %v, got %v", want, first)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("order is not stable: %v vs %v", first, second)
	}
}

func TestSort_Cycle(t *testing.T) {
	tests := []struct {
		name  string
		tasks []*domain.Task
	}{
		{
			name:  "two nodes",
			tasks: []*domain.Task{task("A", "B"), task("B", "A")},
		},
		{
			name:  "three nodes",
			tasks: []*domain.Task{task("A", "C"), task("B", "A"), task("C", "B")},
		},
		{
			name:  "self dependency",
			tasks: []*domain.Task{task("A", "A")},
		},
		{
			name:  "cycle behind valid root",
			tasks: []*domain.Task{task("root"), task("X", "root", "Y"), task("Y", "X")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Sort(tt.tasks)
			if len(result.Order) != 0 {
				t.Errorf("expected empty order, got %v", orderIDs(result.Order))
			}

			found := false
			for _, err := range result.Errors {
				if errors.Is(err, ErrCyclicDependency) {
					found = true
				}
			}
			if !found {
				t.Errorf("expected ErrCyclicDependency, got %v", result.Errors)
			}
		})
	}
}

func TestSort_CycleListsOnlyCycleMembers(t *testing.T) {
	result := Sort([]*domain.Task{
		task("a", "b"),
		task("b", "a"),
		task("c", "a"),
		task("d", "c"),
	})

	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 error, got %v", result.Errors)
	}

	var vErr *ValidationError
	if !errors.As(result.Errors[0], &vErr) {
		t.Fatalf("expected ValidationError, got %T", result.Errors[0])
	}
	if want := "cycle detected among tasks: a, b"; vErr.Message != want {
		t.Errorf("expected message %q, got %q", want, vErr.Message)
	}
}

func TestSort_MissingDependency(t *testing.T) {
	result := Sort([]*domain.Task{
		task("A"),
		task("B", "A", "ghost"),
		task("C", "B"),
	})

	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 error, got %d: %v", len(result.Errors), result.Errors)
	}

	var vErr *ValidationError
	if !errors.As(result.Errors[0], &vErr) {
		t.Fatalf("expected ValidationError, got %T", result.Errors[0])
	}
	if vErr.TaskID != "B" {
		t.Errorf("expected TaskID B, got %s", vErr.TaskID)
	}
	if !errors.Is(vErr, ErrMissingDependency) {
		t.Errorf("expected ErrMissingDependency, got %v", vErr.Err)
	}
	if want := `task "Task B" depends on unknown task "ghost"`; vErr.Message != want {
		t.Errorf("expected message %q, got %q", want, vErr.Message)
	}

	// Остальные задачи всё равно упорядочены
	got := orderIDs(result.Order)
	if !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Errorf("unexpected order %v", got)
	}
}

func TestSort_DuplicateDependencyIsFeedback(t *testing.T) {
	tasks := []*domain.Task{task("A"), task("B", "A", "A")}

	result := Sort(tasks)
	if !result.OK() {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Feedback) != 1 {
		t.Errorf("expected 1 feedback entry, got %v", result.Feedback)
	}

	dag, _ := BuildDAG(tasks)
	if dag.GetNode("B").InDegree != 1 {
		t.Errorf("expected inDegree 1 for B, got %d", dag.GetNode("B").InDegree)
	}
}

func TestSort_DuplicateTaskID(t *testing.T) {
	result := Sort([]*domain.Task{task("A"), task("A")})

	found := false
	for _, err := range result.Errors {
		if errors.Is(err, ErrDuplicateTaskID) {
			found = true
		}
	}
	if !found {
		t.Errorf("expected ErrDuplicateTaskID, got %v", result.Errors)
	}
}

func TestSort_Empty(t *testing.T) {
	result := Sort(nil)
	if !result.OK() {
		t.Errorf("unexpected errors: %v", result.Errors)
	}
	if len(result.Order) != 0 {
		t.Errorf("expected empty order")
	}
}
