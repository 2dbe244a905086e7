package engine

import (
	"fmt"
	"strings"

	"github.com/shaiso/promptflow/internal/domain"
)

// Node — узел в DAG.
type Node struct {
	// Task — задача, которой соответствует узел.
	Task *domain.Task

	// ID — идентификатор узла (совпадает с Task.ID).
	ID string

	// Index — позиция задачи во входном списке.
	Index int

	// InDegree — количество входящих рёбер (зависимостей).
	InDegree int

	// DependsOn — узлы, от которых зависит этот узел.
	DependsOn []*Node

	// Dependents — узлы, которые зависят от этого узла.
	// Порядок совпадает с порядком задач во входном списке.
	Dependents []*Node
}

// DAG — граф зависимостей задач workflow.
type DAG struct {
	// Nodes — все узлы графа (taskID → Node).
	Nodes map[string]*Node

	// RootNodes — узлы без зависимостей в порядке объявления.
	RootNodes []*Node

	// ordered — узлы в порядке объявления.
	ordered []*Node
}

// SortResult — результат сортировки задач.
type SortResult struct {
	// Order — порядок выполнения. Пустой, если найден цикл.
	Order []*domain.Task

	// Errors — структурные ошибки (*ValidationError). Любая ошибка фатальна.
	Errors []error

	// Feedback — нефатальные замечания (например, повторная зависимость).
	Feedback []string
}

// OK возвращает true, если ошибок нет.
func (r *SortResult) OK() bool {
	return len(r.Errors) == 0
}

// Sort упорядочивает задачи топологически (алгоритм Кана).
//
// Ссылка на несуществующую задачу даёт ошибку для этой задачи,
// но сортировка остальных продолжается. При цикле Order пустой,
// а в Errors есть ошибка с ErrCyclicDependency.
//
// Среди готовых задач первой идёт та, что раньше объявлена,
// поэтому одинаковый вход всегда даёт одинаковый порядок.
func Sort(tasks []*domain.Task) *SortResult {
	return sortTasks(tasks, nil)
}

// sortTasks — Sort, в котором ссылки на ID из rejected не считаются
// ошибкой: эти задачи объявлены, но не прошли проверку полей.
func sortTasks(tasks []*domain.Task, rejected map[string]struct{}) *SortResult {
	dag, result := buildDAG(tasks, rejected)

	order, err := dag.topologicalSort()
	if err != nil {
		result.Errors = append(result.Errors, err)
		return result
	}

	result.Order = make([]*domain.Task, 0, len(order))
	for _, node := range order {
		result.Order = append(result.Order, node.Task)
	}
	return result
}

// BuildDAG строит граф из задач.
//
// Возвращает граф и SortResult с ошибками и замечаниями,
// найденными при связывании (Order не заполняется).
func BuildDAG(tasks []*domain.Task) (*DAG, *SortResult) {
	return buildDAG(tasks, nil)
}

func buildDAG(tasks []*domain.Task, rejected map[string]struct{}) (*DAG, *SortResult) {
	dag := &DAG{
		Nodes:     make(map[string]*Node, len(tasks)),
		RootNodes: make([]*Node, 0),
		ordered:   make([]*Node, 0, len(tasks)),
	}
	result := &SortResult{}

	// Первый проход: создаём узлы
	for i, task := range tasks {
		if _, exists := dag.Nodes[task.ID]; exists {
			result.Errors = append(result.Errors, NewValidationError(task.ID, "id",
				fmt.Sprintf("duplicate task id: %s", task.ID), ErrDuplicateTaskID))
			continue
		}
		node := &Node{
			Task:       task,
			ID:         task.ID,
			Index:      i,
			DependsOn:  make([]*Node, 0),
			Dependents: make([]*Node, 0),
		}
		dag.Nodes[task.ID] = node
		dag.ordered = append(dag.ordered, node)
	}

	// Второй проход: связываем узлы по зависимостям
	for _, node := range dag.ordered {
		for _, depID := range node.Task.Dependencies {
			depNode, exists := dag.Nodes[depID]
			if !exists {
				if _, ok := rejected[depID]; ok {
					continue
				}
				result.Errors = append(result.Errors, NewValidationError(node.ID, "dependencies",
					fmt.Sprintf("task %q depends on unknown task %q", node.Task.DisplayName(), depID),
					ErrMissingDependency))
				continue
			}
			if !dag.addEdge(depNode, node) {
				result.Feedback = append(result.Feedback,
					fmt.Sprintf("task %q lists dependency %q more than once", node.Task.DisplayName(), depID))
			}
		}
	}

	dag.findRootNodes()
	return dag, result
}

// addEdge добавляет ребро между узлами.
// Возвращает false, если ребро уже было (InDegree не увеличивается дважды).
func (d *DAG) addEdge(from, to *Node) bool {
	for _, dep := range to.DependsOn {
		if dep.ID == from.ID {
			return false
		}
	}
	from.Dependents = append(from.Dependents, to)
	to.DependsOn = append(to.DependsOn, from)
	to.InDegree++
	return true
}

// findRootNodes находит узлы без входящих рёбер.
func (d *DAG) findRootNodes() {
	d.RootNodes = make([]*Node, 0)
	for _, node := range d.ordered {
		if node.InDegree == 0 {
			d.RootNodes = append(d.RootNodes, node)
		}
	}
}

// topologicalSort выполняет топологическую сортировку (алгоритм Кана).
// Возвращает ошибку, если обнаружен цикл.
func (d *DAG) topologicalSort() ([]*Node, error) {
	// Копируем inDegree, чтобы не модифицировать оригинал
	inDegree := make(map[string]int, len(d.Nodes))
	for id, node := range d.Nodes {
		inDegree[id] = node.InDegree
	}

	// FIFO-очередь узлов с inDegree = 0
	queue := make([]*Node, len(d.RootNodes))
	copy(queue, d.RootNodes)

	order := make([]*Node, 0, len(d.ordered))

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		for _, dependent := range node.Dependents {
			inDegree[dependent.ID]--
			if inDegree[dependent.ID] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	// Если не все узлы обработаны — есть цикл
	if len(order) != len(d.ordered) {
		stuck := make(map[string]bool, len(d.ordered)-len(order))
		for _, node := range d.ordered {
			if inDegree[node.ID] > 0 {
				stuck[node.ID] = true
			}
		}

		// Узлы ниже цикла тоже остаются с inDegree > 0; в ошибку идут
		// только те, что достижимы сами из себя.
		cyclic := make([]string, 0, len(stuck))
		for _, node := range d.ordered {
			if stuck[node.ID] && reachesItself(node, stuck) {
				cyclic = append(cyclic, node.ID)
			}
		}
		return nil, NewValidationError("", "dependencies",
			fmt.Sprintf("cycle detected among tasks: %s", strings.Join(cyclic, ", ")),
			ErrCyclicDependency)
	}

	return order, nil
}

// reachesItself проверяет, есть ли путь из start обратно в start
// по узлам из within.
func reachesItself(start *Node, within map[string]bool) bool {
	visited := make(map[string]bool)
	stack := append([]*Node(nil), start.Dependents...)
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node.ID == start.ID {
			return true
		}
		if visited[node.ID] || !within[node.ID] {
			continue
		}
		visited[node.ID] = true
		stack = append(stack, node.Dependents...)
	}
	return false
}

// GetNode возвращает узел по ID.
func (d *DAG) GetNode(id string) *Node {
	return d.Nodes[id]
}

// Size возвращает количество узлов в DAG.
func (d *DAG) Size() int {
	return len(d.Nodes)
}
