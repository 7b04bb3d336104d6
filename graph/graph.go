/*
 *	Copyright 2025 The barseq Authors
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

// Package graph implements the declaration-level computation graph shared by
// the classifier module and its encoder/decoder collaborators.
//
// The main elements in the package are:
//
//   - Graph: a named collection of nodes. The classifier module declares its
//     input contract on it (see Graph.Parameter), and the encoder/decoder
//     collaborators register their computations as ops (see Graph.AddOp).
//
//   - Node: the result of an op or a declared parameter (placeholder). Each
//     node has a shape known at graph building time, which is how shape
//     mismatches are caught early instead of far downstream.
//
// The package intentionally knows nothing about how (or where) the graph is
// executed: device placement, compilation and execution backends are external
// concerns. What it guarantees is the naming and shape contract between the
// encoding pipeline, the model variables and the forward computation.
package graph

import (
	"fmt"
	"strings"

	"github.com/barseq/barseq/types/shapes"
	"github.com/gomlx/exceptions"
)

// GraphId is a unique Graph id within a process.
type GraphId int

// NodeId is a unique Node id within a Graph.
type NodeId int

// InvalidNodeId indicates a node that failed to be created.
const InvalidNodeId = NodeId(-1)

var nextGraphId GraphId

// Graph with the declared parameters (placeholders) and op nodes of a
// computation.
//
// Not safe for concurrent building: the control flow that builds graphs is
// single-threaded (the lifecycle layer serializes all graph construction).
type Graph struct {
	graphId GraphId
	name    string

	nodes []*Node

	parameters          []*Node
	parameterNameToNode map[string]*Node
}

// New constructs an empty Graph with the given name.
func New(name string) *Graph {
	g := &Graph{
		graphId:             nextGraphId,
		name:                name,
		parameterNameToNode: make(map[string]*Node),
	}
	nextGraphId++
	return g
}

// Name of the graph.
func (g *Graph) Name() string { return g.name }

// GraphId returns the unique GraphId.
func (g *Graph) GraphId() GraphId {
	g.AssertValid()
	return g.graphId
}

// AssertValid panics if the graph is nil.
func (g *Graph) AssertValid() {
	if g == nil {
		exceptions.Panicf("graph.Graph is nil")
	}
}

func (g *Graph) registerNode(node *Node) NodeId {
	id := NodeId(len(g.nodes))
	g.nodes = append(g.nodes, node)
	return id
}

// NodeById returns the node for the given id, or nil if out of range.
func (g *Graph) NodeById(id NodeId) *Node {
	g.AssertValid()
	if id < 0 || int(id) >= len(g.nodes) {
		return nil
	}
	return g.nodes[int(id)]
}

// NumNodes returns the number of nodes (parameters included) declared so far.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// Parameter declares a named input slot (placeholder) on the graph with the
// given shape. The shape may have dynamic axes (typically the batch axis).
// Parameter names must be unique within a graph: redeclaring a name panics,
// since it indicates two parts of the model are fighting over the same slot.
func (g *Graph) Parameter(name string, shape shapes.Shape) *Node {
	g.AssertValid()
	if !shape.Ok() {
		exceptions.Panicf("graph.Parameter(%q): invalid shape", name)
	}
	if _, found := g.parameterNameToNode[name]; found {
		exceptions.Panicf("graph.Parameter(%q): parameter name already declared in graph %q", name, g.name)
	}
	node := &Node{
		graph:     g,
		name:      name,
		shape:     shape.Clone(),
		parameter: true,
	}
	node.id = g.registerNode(node)
	g.parameters = append(g.parameters, node)
	g.parameterNameToNode[name] = node
	return node
}

// AddOp registers a named operation node with the given result shape and
// inputs. All inputs must belong to this same graph. The semantics of the op
// are opaque to this layer: they belong to whoever executes the graph.
func (g *Graph) AddOp(name string, shape shapes.Shape, inputs ...*Node) *Node {
	g.AssertValid()
	if !shape.Ok() {
		exceptions.Panicf("graph.AddOp(%q): invalid shape", name)
	}
	for i, input := range inputs {
		input.AssertValid()
		if input.graph != g {
			exceptions.Panicf("graph.AddOp(%q): input #%d (%q) belongs to graph %q, not to graph %q",
				name, i, input.name, input.graph.name, g.name)
		}
	}
	node := &Node{
		graph:  g,
		name:   name,
		shape:  shape.Clone(),
		inputs: inputs,
	}
	node.id = g.registerNode(node)
	return node
}

// NumParameters returns the number of parameters (placeholders) declared.
func (g *Graph) NumParameters() int {
	g.AssertValid()
	return len(g.parameters)
}

// ParameterByIndex returns the ii-th parameter, in the order of declaration.
func (g *Graph) ParameterByIndex(ii int) *Node {
	g.AssertValid()
	return g.parameters[ii]
}

// ParameterByName returns the parameter node with the given name, or nil if
// no parameter with the name was declared.
func (g *Graph) ParameterByName(name string) *Node {
	g.AssertValid()
	return g.parameterNameToNode[name]
}

// String lists the nodes of the graph, for debugging.
func (g *Graph) String() string {
	if g == nil {
		return "Graph(nil)"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Graph %q: %d nodes\n", g.name, len(g.nodes))
	for _, node := range g.nodes {
		fmt.Fprintf(&b, "\t%s\n", node)
	}
	return b.String()
}

// Node represents either a declared parameter (placeholder) or the result of
// an op in a Graph. Its shape is fixed at creation.
type Node struct {
	graph     *Graph
	id        NodeId
	name      string
	shape     shapes.Shape
	parameter bool
	inputs    []*Node
}

// AssertValid panics if the node is nil or belongs to no graph.
func (n *Node) AssertValid() {
	if n == nil {
		exceptions.Panicf("graph.Node is nil")
	}
	if n.graph == nil {
		exceptions.Panicf("graph.Node %q has no graph", n.name)
	}
}

// Graph the node belongs to.
func (n *Node) Graph() *Graph {
	n.AssertValid()
	return n.graph
}

// Id of the node within its graph.
func (n *Node) Id() NodeId { return n.id }

// Name of the node: the parameter name or the op name it was created with.
func (n *Node) Name() string { return n.name }

// Shape of the node's value.
func (n *Node) Shape() shapes.Shape { return n.shape }

// IsParameter returns whether the node is a declared parameter (placeholder).
func (n *Node) IsParameter() bool { return n.parameter }

// Inputs of the node; empty for parameters.
func (n *Node) Inputs() []*Node { return n.inputs }

// String implements stringer.
func (n *Node) String() string {
	if n == nil {
		return "Node(nil)"
	}
	kind := "op"
	if n.parameter {
		kind = "parameter"
	}
	return fmt.Sprintf("#%d %s %q: %s", n.id, kind, n.name, n.shape)
}
