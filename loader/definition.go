// Package loader decodes a YAML procedure document into a *graph.Procedure,
// the way petalflow's graph.GraphDefinition decodes a workflow document
// before the Runtime builds an executable Graph from it.
package loader

import "fmt"

// Severity levels for a Diagnostic.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Diagnostic represents a validation error or warning produced while
// checking a Definition before it is built into a graph.Procedure.
type Diagnostic struct {
	Code     string `yaml:"code"`
	Severity string `yaml:"severity"`
	Message  string `yaml:"message"`
	Path     string `yaml:"path,omitempty"`
}

// HasErrors reports whether any diagnostic has error severity.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Definition is the serializable intermediate representation of a
// procedure (spec.md §6 loader contract). A YAML document decodes
// directly into this shape; Build then constructs the executable
// *graph.Procedure from it.
type Definition struct {
	Name  string    `yaml:"name"`
	Nodes []NodeDef `yaml:"nodes"`
	Flows []FlowDef `yaml:"flows"`
}

// NodeDef is a serializable node within a Definition.
type NodeDef struct {
	Name             string `yaml:"name"`
	Script           string `yaml:"script"`
	RequireSuccessor bool   `yaml:"require_successor,omitempty"`
}

// FlowDef is a serializable edge within a Definition.
type FlowDef struct {
	Name            string `yaml:"name"`
	Source          string `yaml:"source"`
	Target          string `yaml:"target"`
	ConditionScript string `yaml:"condition,omitempty"`
}

// Validate checks structural integrity of the Definition before Build is
// attempted: duplicate names, dangling flow endpoints, and orphan nodes
// (grounded on petalflow's GraphDefinition.Validate — GR-001 dangling
// reference, GR-002 orphan warning, GR-005 duplicate ID, adapted to this
// engine's node/flow vocabulary; GR-004's cycle check does not apply here
// since a cyclic procedure is a valid, if unusual, graph — see
// graph.Procedure.Start's declared-cyclic fallback).
func (d *Definition) Validate() []Diagnostic {
	var diags []Diagnostic

	names := make(map[string]bool, len(d.Nodes))
	for i, n := range d.Nodes {
		if n.Name == "" {
			diags = append(diags, Diagnostic{Code: "LD-001", Severity: SeverityError,
				Message: "node name must not be empty", Path: fmt.Sprintf("nodes[%d].name", i)})
			continue
		}
		if names[n.Name] {
			diags = append(diags, Diagnostic{Code: "LD-002", Severity: SeverityError,
				Message: fmt.Sprintf("duplicate node name %q", n.Name), Path: fmt.Sprintf("nodes[%d].name", i)})
		}
		names[n.Name] = true
	}

	flowNames := make(map[string]bool, len(d.Flows))
	for i, f := range d.Flows {
		if f.Name == "" {
			diags = append(diags, Diagnostic{Code: "LD-003", Severity: SeverityError,
				Message: "flow name must not be empty", Path: fmt.Sprintf("flows[%d].name", i)})
			continue
		}
		if flowNames[f.Name] {
			diags = append(diags, Diagnostic{Code: "LD-004", Severity: SeverityError,
				Message: fmt.Sprintf("duplicate flow name %q", f.Name), Path: fmt.Sprintf("flows[%d].name", i)})
		}
		flowNames[f.Name] = true

		if !names[f.Source] {
			diags = append(diags, Diagnostic{Code: "LD-005", Severity: SeverityError,
				Message: fmt.Sprintf("flow %q source %q references unknown node", f.Name, f.Source),
				Path:    fmt.Sprintf("flows[%d].source", i)})
		}
		if !names[f.Target] {
			diags = append(diags, Diagnostic{Code: "LD-005", Severity: SeverityError,
				Message: fmt.Sprintf("flow %q target %q references unknown node", f.Name, f.Target),
				Path:    fmt.Sprintf("flows[%d].target", i)})
		}
	}

	if len(d.Nodes) > 1 {
		hasInbound := make(map[string]bool)
		hasOutbound := make(map[string]bool)
		for _, f := range d.Flows {
			hasOutbound[f.Source] = true
			hasInbound[f.Target] = true
		}
		for i, n := range d.Nodes {
			if !hasInbound[n.Name] && !hasOutbound[n.Name] {
				diags = append(diags, Diagnostic{Code: "LD-006", Severity: SeverityWarning,
					Message: fmt.Sprintf("node %q has no inbound or outbound flows", n.Name),
					Path:    fmt.Sprintf("nodes[%d]", i)})
			}
		}
	}

	return diags
}
