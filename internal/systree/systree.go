// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package systree builds the system tree of machines, nodes, NUMA
// domains, and cores that defs.SystemTreeNode records reference (spec
// §3, §4.4, §9: "model the tree with arena indices... the parent field
// is an index"). Nodes can be built programmatically or imported from
// a JSON description (a SUPPLEMENTED FEATURES addition: the real
// hardware probe this would normally come from is out of scope).
package systree

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/score-p/scorep-measurement-core/internal/defs"
)

// Tree owns the system-tree nodes created through it, each backed by a
// defs.SystemTreeNodeRecord in the supplied definition manager.
type Tree struct {
	defsManager *defs.Manager
	root        defs.Handle
}

// New creates an empty tree rooted at a single machine node named name.
func New(defsManager *defs.Manager, name string) *Tree {
	t := &Tree{defsManager: defsManager}
	class := defsManager.InternString("machine")
	nameHandle := defsManager.InternString(name)
	t.root = defsManager.NewSystemTreeNode(defs.Invalid, class, nameHandle, 0)
	return t
}

// Root returns the tree's unique root node handle (spec §3: "no
// cycles... a unique root").
func (t *Tree) Root() defs.Handle { return t.root }

// AddChild creates a new node of the given class under parent
// (spec §4.4 creation sequence step: parent links via arena indices).
func (t *Tree) AddChild(parent defs.Handle, class, name string, domain uint64) defs.Handle {
	classHandle := t.defsManager.InternString(class)
	nameHandle := t.defsManager.InternString(name)
	return t.defsManager.NewSystemTreeNode(parent, classHandle, nameHandle, domain)
}

// PathFromRoot returns the node's ancestry, leaf-first, down to (and
// including) the root — the order `scorep-info system-tree` prints in
// (spec §6: "prints one node-class per line, leaf-first to root").
func (t *Tree) PathFromRoot(h defs.Handle) []defs.Handle {
	var path []defs.Handle
	for h != defs.Invalid {
		path = append(path, h)
		h = t.defsManager.SystemTreeNode(h).Parent
	}
	return path
}

// ClassName returns the class string of node h (e.g. "machine", "node",
// "numa", "core").
func (t *Tree) ClassName(h defs.Handle) string {
	return t.defsManager.String(t.defsManager.SystemTreeNode(h).Class)
}

// NodeName returns the display name of node h.
func (t *Tree) NodeName(h defs.Handle) string {
	return t.defsManager.String(t.defsManager.SystemTreeNode(h).Name)
}

// Leaves returns every node with no children, in creation order — the
// starting points `scorep-info system-tree` walks to produce its
// leaf-first dump (spec §6). The manager's pre-allocated unknown node
// is not part of the tree and is never returned.
func (t *Tree) Leaves() []defs.Handle {
	n := t.defsManager.Count(defs.KindSystemTreeNode)
	hasChild := make(map[defs.Handle]bool, n)
	all := make([]defs.Handle, 0, n)
	for i := 1; i <= n; i++ {
		h := defs.Handle(i)
		if h == t.defsManager.UnknownSystemTreeNode() {
			continue
		}
		all = append(all, h)
		if parent := t.defsManager.SystemTreeNode(h).Parent; parent != defs.Invalid {
			hasChild[parent] = true
		}
	}

	leaves := make([]defs.Handle, 0, n)
	for _, h := range all {
		if !hasChild[h] {
			leaves = append(leaves, h)
		}
	}
	return leaves
}

// jsonNode is the shape of one level of the optional JSON system-tree
// description (SUPPLEMENTED FEATURES).
type jsonNode struct {
	Class    string     `json:"class"`
	Name     string     `json:"name"`
	Domain   uint64     `json:"domain,omitempty"`
	Children []jsonNode `json:"children,omitempty"`
}

// ImportJSON replaces t's tree with one built from r's JSON
// description: a single root jsonNode, recursively expanded. Intended
// for platforms where the hardware probe that would normally populate
// the tree is out of scope (spec §1 non-goal; §9 notes the tree need
// only be "arena indices, no runtime cycles").
func ImportJSON(defsManager *defs.Manager, r io.Reader) (*Tree, error) {
	var root jsonNode
	if err := json.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("systree: invalid JSON description: %w", err)
	}

	t := &Tree{defsManager: defsManager}
	class := defsManager.InternString(root.Class)
	name := defsManager.InternString(root.Name)
	t.root = defsManager.NewSystemTreeNode(defs.Invalid, class, name, root.Domain)
	importChildren(t, t.root, root.Children)
	return t, nil
}

func importChildren(t *Tree, parent defs.Handle, children []jsonNode) {
	for _, c := range children {
		h := t.AddChild(parent, c.Class, c.Name, c.Domain)
		importChildren(t, h, c.Children)
	}
}
