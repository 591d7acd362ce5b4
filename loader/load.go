package loader

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ronbb/donut/graph"
)

// Parse decodes a YAML document into a Definition without validating or
// building it.
func Parse(data []byte) (*Definition, error) {
	var d Definition
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("donut: parse procedure document: %w", err)
	}
	return &d, nil
}

// LoadFile reads path, parses it as a procedure Definition, validates it,
// and builds the resulting *graph.Procedure.
func LoadFile(path string) (*graph.Procedure, []Diagnostic, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path from caller
	if err != nil {
		return nil, nil, fmt.Errorf("donut: read procedure file %s: %w", path, err)
	}
	return Load(data)
}

// Load parses, validates, and builds data as a procedure Definition. It
// returns the accumulated diagnostics alongside any hard build error —
// callers that want to surface warnings (e.g. a "donut validate" command)
// should inspect diags even when err is nil.
func Load(data []byte) (*graph.Procedure, []Diagnostic, error) {
	d, err := Parse(data)
	if err != nil {
		return nil, nil, err
	}

	diags := d.Validate()
	if HasErrors(diags) {
		return nil, diags, &DiagnosticError{Diagnostics: diags}
	}

	p, err := Build(d)
	return p, diags, err
}

// Build constructs an executable *graph.Procedure from an already-valid
// Definition (spec.md §6: every Flow referenced in a Node's outgoings has
// that Node as its source_node, and symmetrically). Build assumes the
// definition passed Validate; it returns a build error instead of a
// diagnostic list for any inconsistency that slips through.
func Build(d *Definition) (*graph.Procedure, error) {
	p := graph.NewProcedure(d.Name)

	nodes := make(map[string]*graph.Node, len(d.Nodes))
	for _, nd := range d.Nodes {
		n := graph.NewNode(nd.Name, nd.Script)
		n.RequireSuccessor = nd.RequireSuccessor
		nodes[nd.Name] = n
		if err := p.AddNode(n); err != nil {
			return nil, err
		}
	}

	flows := make(map[string]*graph.Flow, len(d.Flows))
	for _, fd := range d.Flows {
		source, ok := nodes[fd.Source]
		if !ok {
			return nil, fmt.Errorf("donut: flow %q references unknown source node %q", fd.Name, fd.Source)
		}
		target, ok := nodes[fd.Target]
		if !ok {
			return nil, fmt.Errorf("donut: flow %q references unknown target node %q", fd.Name, fd.Target)
		}
		f := graph.NewFlow(fd.Name, source, target, fd.ConditionScript)
		flows[fd.Name] = f
		if err := p.AddFlow(f); err != nil {
			return nil, err
		}
	}

	for _, fd := range d.Flows {
		f := flows[fd.Name]
		source := nodes[fd.Source]
		target := nodes[fd.Target]
		source.Outgoings = append(source.Outgoings, graph.FlowExec(f))
		target.Incomings = append(target.Incomings, graph.FlowExec(f))
	}

	return p, nil
}

// DiagnosticError wraps validation diagnostics as an error.
type DiagnosticError struct {
	Diagnostics []Diagnostic
}

func (e *DiagnosticError) Error() string {
	var errs []Diagnostic
	for _, d := range e.Diagnostics {
		if d.Severity == SeverityError {
			errs = append(errs, d)
		}
	}
	if len(errs) == 1 {
		return fmt.Sprintf("donut: validation error: %s", errs[0].Message)
	}
	return fmt.Sprintf("donut: %d validation errors (first: %s)", len(errs), errs[0].Message)
}
