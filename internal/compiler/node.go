// Copyright (c) The Nomos Authors
// SPDX-License-Identifier: MPL-2.0

package compiler

import (
	"strings"
)

// Node is a compilation target, identified by a (usually dotted) name.
// A node named foo.bar.baz matches node definitions for foo.bar.baz,
// foo.bar and foo, most specific first.
type Node struct {
	names []string
}

// NewNode builds a node from its name.
func NewNode(name string) *Node {
	name = strings.ToLower(strings.TrimSpace(name))
	parts := strings.Split(name, ".")

	var names []string
	for i := len(parts); i > 0; i-- {
		candidate := strings.Join(parts[:i], ".")
		if candidate != "" {
			names = append(names, candidate)
		}
	}
	return &Node{names: names}
}

// Name returns the most specific name.
func (n *Node) Name() string {
	if len(n.names) == 0 {
		return ""
	}
	return n.names[0]
}

// Names returns every candidate name, most specific first.
func (n *Node) Names() []string {
	return n.names
}
