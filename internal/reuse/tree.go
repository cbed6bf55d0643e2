package reuse

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

const (
	conceptPriority     = "Priority"
	conceptUserQuestion = "User Question"
)

// Solution trees are plain JSON objects. The helpers below read them without
// assuming every key is present.

func obj(m map[string]any, key string) map[string]any {
	v, _ := m[key].(map[string]any)
	return v
}

func str(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return v
	}
}

func copyObj(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return deepCopy(m).(map[string]any)
}

// selectedTree returns the tree of a solution named by selectedTree.
func selectedTree(solution map[string]any) map[string]any {
	sel := str(solution, "selectedTree")
	trees, _ := solution["trees"].([]any)
	for _, t := range trees {
		tree, ok := t.(map[string]any)
		if ok && str(tree, "id") == sel {
			return tree
		}
	}
	return nil
}

// children follows the {Id, Next} list of a composite node.
func children(node map[string]any) []string {
	var ids []string
	for link := obj(node, "firstChild"); link != nil; link = obj(link, "Next") {
		if id := str(link, "Id"); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func collect(node map[string]any, nodes map[string]any, out []map[string]any) []map[string]any {
	out = append(out, node)
	for _, id := range children(node) {
		if child := obj(nodes, id); child != nil {
			out = collect(child, nodes, out)
		}
	}
	return out
}

func questionText(node map[string]any) string {
	return str(obj(obj(node, "params"), "Question"), "value")
}

// questionMatches reports whether q is the question text, or one of its
// semicolon separated entries.
func questionMatches(q, text string) bool {
	if strings.Contains(text, ";") {
		for _, part := range strings.Split(text, ";") {
			if part == q {
				return true
			}
		}
		return false
	}
	return q == text
}

type subTree struct {
	nodes []map[string]any
	root  string
}

// extract finds every Priority node of the tree whose two children are a
// User Question asking caseQ and an explanation strategy, and copies the
// subtree with the question rewritten to queryQ.
func extract(tree map[string]any, caseQ, queryQ string) []subTree {
	nodes := obj(tree, "nodes")
	keys := make([]string, 0, len(nodes))
	for k := range nodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []subTree
	for _, k := range keys {
		prio, _ := nodes[k].(map[string]any)
		if str(prio, "Concept") != conceptPriority {
			continue
		}
		first := obj(prio, "firstChild")
		second := obj(first, "Next")
		if second == nil || obj(second, "Next") != nil {
			continue
		}
		qNode := obj(nodes, str(first, "Id"))
		if str(qNode, "Concept") != conceptUserQuestion || !questionMatches(caseQ, questionText(qNode)) {
			continue
		}
		strategy := obj(nodes, str(second, "Id"))
		if strategy == nil {
			continue
		}
		var list []map[string]any
		for _, n := range collect(strategy, nodes, nil) {
			list = append(list, copyObj(n))
		}
		q := copyObj(qNode)
		if question := obj(obj(q, "params"), "Question"); question != nil {
			question["value"] = queryQ + ";"
		}
		list = append(list, q, copyObj(prio))
		list, root := renumber(list, str(prio, "id"))
		out = append(out, subTree{nodes: list, root: root})
	}
	return out
}

// renumber gives every node a fresh id. The first pass maps old ids to new
// ones, the second rewrites references and then the ids themselves.
func renumber(list []map[string]any, root string) ([]map[string]any, string) {
	ids := make(map[string]string, len(list))
	for _, n := range list {
		if id := str(n, "id"); id != "" {
			if _, ok := ids[id]; !ok {
				ids[id] = uuid.NewString()
			}
		}
	}
	for _, n := range list {
		rewriteRefs(n, ids)
		if id, ok := ids[str(n, "id")]; ok {
			n["id"] = id
		}
	}
	if id, ok := ids[root]; ok {
		root = id
	}
	return list, root
}

func rewriteRefs(v any, ids map[string]string) {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if s, ok := val.(string); ok {
				if id, hit := ids[s]; hit && k != "id" {
					t[k] = id
				}
				continue
			}
			rewriteRefs(val, ids)
		}
	case []any:
		for i, val := range t {
			if s, ok := val.(string); ok {
				if id, hit := ids[s]; hit {
					t[i] = id
				}
				continue
			}
			rewriteRefs(val, ids)
		}
	}
}

// emptySolution keeps only the selected tree of solution and replaces its
// root with a childless copy under fresh ids.
func emptySolution(solution map[string]any) map[string]any {
	out := copyObj(solution)
	if out == nil {
		return map[string]any{}
	}
	tree := selectedTree(out)
	if tree == nil {
		return out
	}
	treeID := uuid.NewString()
	rootID := uuid.NewString()
	root := copyObj(obj(obj(tree, "nodes"), str(tree, "root")))
	if root == nil {
		root = map[string]any{}
	}
	root["id"] = rootID
	root["firstChild"] = map[string]any{"Id": "", "Next": nil}
	tree["id"] = treeID
	tree["root"] = rootID
	tree["nodes"] = map[string]any{rootID: root}
	out["trees"] = []any{tree}
	out["selectedTree"] = treeID
	return out
}

func linkChildren(ids []string) map[string]any {
	var next any
	for i := len(ids) - 1; i >= 0; i-- {
		next = map[string]any{"Id": ids[i], "Next": next}
	}
	m, _ := next.(map[string]any)
	return m
}

// Adapt builds a solution for the query out of the subtrees of matched
// neighbour questions, hung under the root of the first neighbour's tree.
func Adapt(pairs []Pair, neighbours []Neighbour) map[string]any {
	if len(neighbours) == 0 {
		return map[string]any{}
	}
	var subs []subTree
	for _, p := range pairs {
		if p.Case.K < 0 || p.Case.K >= len(neighbours) {
			continue
		}
		tree := selectedTree(neighbours[p.Case.K].Solution)
		if tree == nil {
			continue
		}
		subs = append(subs, extract(tree, p.Case.Question, p.Query.Question)...)
	}
	solution := emptySolution(neighbours[0].Solution)
	tree := selectedTree(solution)
	if len(subs) == 0 || tree == nil {
		return solution
	}
	nodes := obj(tree, "nodes")
	root := obj(nodes, str(tree, "root"))
	roots := make([]string, 0, len(subs))
	for _, s := range subs {
		for _, n := range s.nodes {
			nodes[str(n, "id")] = n
		}
		roots = append(roots, s.root)
	}
	root["firstChild"] = linkChildren(roots)
	return solution
}
