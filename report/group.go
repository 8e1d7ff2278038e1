package report

import (
	"context"
	"sort"

	"github.com/GoCodeAlone/taskboard/entity"
	"github.com/GoCodeAlone/taskboard/task"
)

// grouping parameterizes groupJoin: keys fans a task out to zero or more
// group keys, coll is where keys are joined, shape builds one output row.
type grouping[T any] struct {
	keys  func(*task.Task) []string
	coll  entity.Collection
	shape func(doc entity.Document, count int) T
}

// groupJoin counts tasks per key, joins every key to its document in g.coll
// and reshapes each group. Keys that do not join are dropped. Rows are
// ordered by count descending, then by document name.
func groupJoin[T any](ctx context.Context, src Source, tasks []*task.Task, g grouping[T]) ([]T, error) {
	counts := make(map[string]int)
	var order []string
	for _, t := range tasks {
		seen := make(map[string]bool)
		for _, k := range g.keys(t) {
			if k == "" || seen[k] {
				continue
			}
			seen[k] = true
			if _, ok := counts[k]; !ok {
				order = append(order, k)
			}
			counts[k]++
		}
	}
	if len(order) == 0 {
		return []T{}, nil
	}

	docs, err := src.Lookup(ctx, g.coll, order)
	if err != nil {
		return nil, err
	}

	type row struct {
		doc   entity.Document
		count int
	}
	rows := make([]row, 0, len(order))
	for _, k := range order {
		doc, ok := docs[k]
		if !ok {
			continue
		}
		rows = append(rows, row{doc: doc, count: counts[k]})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].count != rows[j].count {
			return rows[i].count > rows[j].count
		}
		return rows[i].doc.Name < rows[j].doc.Name
	})

	out := make([]T, len(rows))
	for i, r := range rows {
		out[i] = g.shape(r.doc, r.count)
	}
	return out, nil
}
