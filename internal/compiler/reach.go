package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/scp/internal/ir"
)

// Warning is a static-analysis finding that does not stop compilation.
//
// Recursion is a warning, not an error: a program may call itself through
// a guarded branch and terminate.
type Warning struct {
	Program string   `json:"program,omitempty"`
	Path    []string `json:"path,omitempty"`
	Message string   `json:"message"`
	Level   string   `json:"level"` // "warning" or "info"
}

// Analyze runs every static analysis over progs. Warnings are returned in a
// stable order.
func Analyze(progs []*ir.Program) []Warning {
	var out []Warning
	for _, p := range progs {
		out = append(out, AnalyzeReachability(p)...)
	}
	return append(out, AnalyzeRecursion(progs)...)
}

// AnalyzeReachability reports operators no init operator can reach along
// then/else/goto/error arcs. Such operators never run.
func AnalyzeReachability(p *ir.Program) []Warning {
	byName := make(map[string]ir.Operator, len(p.Operators))
	var queue []string
	for _, op := range p.Operators {
		byName[op.Name] = op
		if op.Init {
			queue = append(queue, op.Name)
		}
	}
	seen := make(map[string]bool)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if seen[name] {
			continue
		}
		seen[name] = true
		queue = append(queue, byName[name].Successors()...)
	}

	var out []Warning
	for _, op := range p.Operators {
		if !seen[op.Name] {
			out = append(out, Warning{
				Program: p.Name,
				Path:    []string{op.Name},
				Message: fmt.Sprintf("operator %s is unreachable from any init operator", op.Name),
				Level:   "warning",
			})
		}
	}
	return out
}

// AnalyzeRecursion reports programs that can call themselves, directly or
// through other programs. It builds the call graph from program operands
// and finds its strongly connected components with Tarjan's algorithm.
func AnalyzeRecursion(progs []*ir.Program) []Warning {
	g := buildCallGraph(progs)
	var out []Warning
	for _, scc := range tarjanSCC(g) {
		if len(scc) > 1 || hasSelfLoop(scc[0], g) {
			out = append(out, sccToWarning(scc, g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path[0] < out[j].Path[0] })
	return out
}

// callGraph maps program name -> programs it references.
type callGraph map[string][]string

func buildCallGraph(progs []*ir.Program) callGraph {
	g := make(callGraph, len(progs))
	for _, p := range progs {
		g[p.Name] = []string{}
	}
	for _, p := range progs {
		seen := make(map[string]bool)
		eachOperand(p, func(_ string, o ir.Operand) {
			if o.Program == "" || seen[o.Program] {
				return
			}
			if _, ok := g[o.Program]; !ok {
				return
			}
			seen[o.Program] = true
			g[p.Name] = append(g[p.Name], o.Program)
		})
		sort.Strings(g[p.Name])
	}
	return g
}

func hasSelfLoop(node string, g callGraph) bool {
	for _, n := range g[node] {
		if n == node {
			return true
		}
	}
	return false
}

// tarjanSCC returns the strongly connected components of g. Nodes are
// visited in name order so the result is deterministic.
func tarjanSCC(g callGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sort.Strings(scc)
			sccs = append(sccs, scc)
		}
	}

	for _, node := range sortedKeys(g) {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func sccToWarning(scc []string, g callGraph) Warning {
	if len(scc) == 1 {
		name := scc[0]
		return Warning{
			Program: name,
			Path:    []string{name, name},
			Message: fmt.Sprintf("program %s calls itself", name),
			Level:   "info",
		}
	}
	path := cyclePath(scc, g)
	return Warning{
		Path:    path,
		Message: fmt.Sprintf("mutually recursive programs: %s", strings.Join(path, " -> ")),
		Level:   "warning",
	}
}

// cyclePath walks from the first SCC member along edges inside the SCC
// until it returns to the start.
func cyclePath(scc []string, g callGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}
	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)
	for {
		visited[current] = true
		next := ""
		for _, n := range g[current] {
			if members[n] && (!visited[n] || n == start) {
				next = n
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
