package templating

import (
	"sort"
	"strings"
	"sync"
	"text/template/parse"
)

// UndefinedSet collects the names of variables a template referenced but
// the variable set did not define. It is safe for concurrent use.
type UndefinedSet struct {
	mu    sync.Mutex
	names map[string]struct{}
}

// NewUndefinedSet returns an empty set.
func NewUndefinedSet() *UndefinedSet {
	return &UndefinedSet{names: make(map[string]struct{})}
}

// Add records name. A nil set ignores the call.
func (u *UndefinedSet) Add(name string) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.names[name] = struct{}{}
	u.mu.Unlock()
}

// Len returns the number of distinct names recorded.
func (u *UndefinedSet) Len() int {
	if u == nil {
		return 0
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.names)
}

// Names returns the recorded names in sorted order.
func (u *UndefinedSet) Names() []string {
	if u == nil {
		return nil
	}
	u.mu.Lock()
	out := make([]string, 0, len(u.names))
	for n := range u.names {
		out = append(out, n)
	}
	u.mu.Unlock()
	sort.Strings(out)
	return out
}

// Names of the runtime helpers that replace field chains the analyzer could
// not fully resolve. fieldFunc yields "" for a missing value so printing and
// conditionals see an empty string; itemsFunc yields nil so range treats
// the value as empty and runs its else branch.
const (
	fieldFunc = "_field"
	itemsFunc = "_items"
)

func lookupPath(base any, keys []string) (any, bool) {
	cur := base
	for _, k := range keys {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[k]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

func fieldOrEmpty(base any, keys ...string) any {
	if v, ok := lookupPath(base, keys); ok {
		return v
	}
	return ""
}

func itemsOrNil(base any, keys ...string) any {
	v, _ := lookupPath(base, keys)
	return v
}

// value is the analyzer's static knowledge of what a node evaluates to:
// either unknown, or one of a set of candidate runtime values (a range body
// sees every element of the list as a candidate dot).
type value struct {
	known bool
	cands []any
}

var unknown = value{}

func known(v ...any) value { return value{known: true, cands: v} }

type scope struct {
	dot  value
	vars map[string]value
}

func (s *scope) with(dot value) *scope {
	vars := make(map[string]value, len(s.vars))
	for k, v := range s.vars {
		vars[k] = v
	}
	return &scope{dot: dot, vars: vars}
}

// analyzer walks a parse tree against the data it will be executed with.
// Field chains over map data that miss a key are rewritten into calls of
// the lookup helpers so execution renders them empty instead of printing
// "<no value>" or failing on a nil receiver, and chains that miss in every
// candidate are reported as undefined.
type analyzer struct {
	undefined *UndefinedSet
}

func analyze(tree *parse.Tree, data map[string]any, undefined *UndefinedSet) {
	if tree == nil || tree.Root == nil {
		return
	}
	a := &analyzer{undefined: undefined}
	root := known(data)
	a.list(tree.Root, &scope{dot: root, vars: map[string]value{"$": root}})
}

func (a *analyzer) list(l *parse.ListNode, sc *scope) {
	if l == nil {
		return
	}
	for _, n := range l.Nodes {
		a.node(n, sc)
	}
}

func (a *analyzer) node(n parse.Node, sc *scope) {
	switch n := n.(type) {
	case *parse.ActionNode:
		declare(n.Pipe, sc, a.pipe(n.Pipe, sc, false))
	case *parse.IfNode:
		inner := sc.with(sc.dot)
		declare(n.Pipe, inner, a.pipe(n.Pipe, inner, false))
		a.list(n.List, inner)
		a.list(n.ElseList, sc.with(sc.dot))
	case *parse.WithNode:
		v := a.pipe(n.Pipe, sc, false)
		inner := sc.with(v)
		declare(n.Pipe, inner, v)
		a.list(n.List, inner)
		a.list(n.ElseList, sc.with(sc.dot))
	case *parse.RangeNode:
		elem := elements(a.pipe(n.Pipe, sc, true))
		inner := sc.with(elem)
		if n.Pipe != nil {
			switch len(n.Pipe.Decl) {
			case 1:
				inner.vars[n.Pipe.Decl[0].Ident[0]] = elem
			case 2:
				inner.vars[n.Pipe.Decl[0].Ident[0]] = unknown
				inner.vars[n.Pipe.Decl[1].Ident[0]] = elem
			}
		}
		a.list(n.List, inner)
		a.list(n.ElseList, sc.with(sc.dot))
	case *parse.TemplateNode:
		a.pipe(n.Pipe, sc, false)
	}
}

// declare binds variables introduced by {{$x := pipeline}}.
func declare(p *parse.PipeNode, sc *scope, v value) {
	if p == nil || p.IsAssign {
		return
	}
	for _, d := range p.Decl {
		sc.vars[d.Ident[0]] = v
	}
}

// pipeValue statically evaluates a pipeline that is a single field chain.
func (a *analyzer) pipeValue(p *parse.PipeNode, sc *scope) value {
	if p == nil || len(p.Cmds) != 1 || len(p.Cmds[0].Args) != 1 {
		return unknown
	}
	switch n := p.Cmds[0].Args[0].(type) {
	case *parse.DotNode:
		return sc.dot
	case *parse.VariableNode:
		base, ok := sc.vars[n.Ident[0]]
		if !ok {
			return unknown
		}
		v, _ := resolve(base, n.Ident[1:])
		return v
	case *parse.FieldNode:
		v, _ := resolve(sc.dot, n.Ident)
		return v
	}
	return unknown
}

// pipe analyses every command of p and returns the static value of the
// pipeline when it is a single field chain.
func (a *analyzer) pipe(p *parse.PipeNode, sc *scope, ranging bool) value {
	if p == nil {
		return unknown
	}
	result := a.pipeValue(p, sc)
	sole := len(p.Cmds) == 1 && len(p.Cmds[0].Args) == 1
	for _, cmd := range p.Cmds {
		a.oldDotVars(cmd, sc)
		for i, arg := range cmd.Args {
			cmd.Args[i] = a.arg(arg, sc, ranging && sole)
		}
	}
	return result
}

// oldDotVars reports names looked up through the backwards-compatibility
// map that it does not contain. The lookup itself already renders "".
func (a *analyzer) oldDotVars(cmd *parse.CommandNode, sc *scope) {
	if len(cmd.Args) != 3 {
		return
	}
	fn, ok := cmd.Args[0].(*parse.IdentifierNode)
	if !ok || fn.Ident != "get" {
		return
	}
	field, ok := cmd.Args[1].(*parse.FieldNode)
	if !ok || len(field.Ident) != 1 || field.Ident[0] != OldDotVarsKey {
		return
	}
	key, ok := cmd.Args[2].(*parse.StringNode)
	if !ok {
		return
	}
	v, _ := resolve(sc.dot, field.Ident)
	if !v.known {
		return
	}
	for _, c := range v.cands {
		m, ok := c.(map[string]any)
		if !ok {
			return
		}
		if _, ok := m[key.Text]; ok {
			return
		}
	}
	a.undefined.Add(key.Text)
}

func (a *analyzer) arg(n parse.Node, sc *scope, ranging bool) parse.Node {
	switch n := n.(type) {
	case *parse.FieldNode:
		_, status := resolve(sc.dot, n.Ident)
		return a.rewrite(n, &parse.DotNode{NodeType: parse.NodeDot, Pos: n.Pos}, n.Ident, strings.Join(n.Ident, "."), status, ranging)
	case *parse.VariableNode:
		base, ok := sc.vars[n.Ident[0]]
		if !ok || len(n.Ident) == 1 {
			return n
		}
		_, status := resolve(base, n.Ident[1:])
		name := strings.Join(n.Ident, ".")
		if n.Ident[0] == "$" {
			name = strings.Join(n.Ident[1:], ".")
		}
		root := &parse.VariableNode{NodeType: parse.NodeVariable, Pos: n.Pos, Ident: []string{n.Ident[0]}}
		return a.rewrite(n, root, n.Ident[1:], name, status, ranging)
	case *parse.PipeNode:
		a.pipe(n, sc, false)
	case *parse.ChainNode:
		if p, ok := n.Node.(*parse.PipeNode); ok {
			a.pipe(p, sc, false)
		}
	}
	return n
}

type resolution int

const (
	resolved   resolution = iota // present and non-nil in every candidate
	unresolved                   // not statically known
	partial                      // missing or nil in some candidates
	missing                      // absent from every candidate
)

// resolve follows keys through the candidate maps of base.
func resolve(base value, keys []string) (value, resolution) {
	if !base.known || len(base.cands) == 0 {
		return unknown, unresolved
	}
	cur := base.cands
	status := resolved
	for _, k := range keys {
		var next []any
		absent := 0
		for _, c := range cur {
			m, ok := c.(map[string]any)
			if !ok {
				return unknown, unresolved
			}
			v, ok := m[k]
			switch {
			case !ok:
				absent++
				status = partial
			case v == nil:
				status = partial
			default:
				next = append(next, v)
			}
		}
		if len(next) == 0 {
			if absent == len(cur) {
				return unknown, missing
			}
			return unknown, partial
		}
		cur = next
	}
	return known(cur...), status
}

func (a *analyzer) rewrite(orig parse.Node, root parse.Node, keys []string, name string, status resolution, ranging bool) parse.Node {
	switch status {
	case resolved, unresolved:
		return orig
	case missing:
		a.undefined.Add(name)
	}
	fn := fieldFunc
	if ranging {
		fn = itemsFunc
	}
	args := []parse.Node{parse.NewIdentifier(fn).SetPos(orig.Position()), root}
	for _, k := range keys {
		args = append(args, &parse.StringNode{NodeType: parse.NodeString, Pos: orig.Position(), Quoted: `"` + k + `"`, Text: k})
	}
	return &parse.PipeNode{
		NodeType: parse.NodePipe,
		Pos:      orig.Position(),
		Cmds:     []*parse.CommandNode{{NodeType: parse.NodeCommand, Pos: orig.Position(), Args: args}},
	}
}

// elements returns the candidate dots of a range body over v.
func elements(v value) value {
	if !v.known {
		return unknown
	}
	var out []any
	for _, c := range v.cands {
		switch c := c.(type) {
		case []any:
			out = append(out, c...)
		case map[string]any:
			for _, e := range c {
				out = append(out, e)
			}
		default:
			return unknown
		}
	}
	if len(out) == 0 {
		return unknown
	}
	return known(out...)
}
