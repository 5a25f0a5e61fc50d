package ncd

import (
	"fmt"
	"strings"

	"github.com/joeycumines/go-ncd/value"
)

// StatementDesc is the compiled, immutable form of one statement.
type StatementDesc struct {
	// Name optionally binds the statement's exported object into the
	// process namespace.
	Name string

	// Type is the module type name, or, when ObjPath is set, the method
	// name invoked on the object the path resolves to.
	Type string

	// ObjPath is the dotted object path a method statement is invoked on,
	// empty for plain statements.
	ObjPath []string

	// Args is the statement's argument template. Nil means an empty
	// argument list.
	Args *value.Template

	// ArenaBudget bounds the statement instance's value arena, in nodes.
	// Zero means unbounded. Exhaustion surfaces as a construction failure.
	ArenaBudget int
}

func (d *StatementDesc) String() string {
	if len(d.ObjPath) > 0 {
		return strings.Join(d.ObjPath, ".") + "." + d.Type
	}
	return d.Type
}

// ProcessDesc is the compiled, immutable form of one process block: an
// ordered sequence of statements, either auto-started (top-level) or
// instantiable by name (template).
type ProcessDesc struct {
	Name       string
	Statements []StatementDesc

	// Template marks the block as callable rather than auto-started.
	Template bool
}

// Program is a compiled program: the process blocks, the template map, and
// the placeholder database mapping substitution site ids to the dotted
// variable paths resolved at statement instantiation. Programs are built
// once with [ProgramBuilder] and immutable afterwards.
type Program struct {
	processes    []*ProcessDesc
	templates    map[string]*ProcessDesc
	placeholders [][]string
}

// Processes returns every process block, in program order.
func (p *Program) Processes() []*ProcessDesc {
	return p.processes
}

// Template returns the template block registered under name.
func (p *Program) Template(name string) (*ProcessDesc, bool) {
	d, ok := p.templates[name]
	return d, ok
}

// PlaceholderPath returns the dotted variable path of a substitution site.
func (p *Program) PlaceholderPath(id int) ([]string, bool) {
	if id < 0 || id >= len(p.placeholders) {
		return nil, false
	}
	return p.placeholders[id], true
}

// ProgramBuilder accumulates compiled processes and placeholder bindings.
// It is the hand-off point from an external loader: the loader interns each
// variable reference with [ProgramBuilder.AddPlaceholder], embeds the
// returned id as a placeholder value in the statement's argument template,
// and adds the compiled blocks.
type ProgramBuilder struct {
	processes    []*ProcessDesc
	placeholders [][]string
	placeholderN map[string]int
	err          error
}

// NewProgramBuilder returns an empty builder.
func NewProgramBuilder() *ProgramBuilder {
	return &ProgramBuilder{
		placeholderN: make(map[string]int),
	}
}

// AddPlaceholder interns a dotted variable path, returning its substitution
// site id. Equal paths share an id.
func (b *ProgramBuilder) AddPlaceholder(path ...string) int {
	if len(path) == 0 {
		panic(`ncd: empty placeholder path`)
	}
	key := strings.Join(path, ".")
	if id, ok := b.placeholderN[key]; ok {
		return id
	}
	id := len(b.placeholders)
	b.placeholders = append(b.placeholders, append([]string(nil), path...))
	b.placeholderN[key] = id
	return id
}

// AddProcess adds a compiled process block. Errors are deferred to Build.
func (b *ProgramBuilder) AddProcess(desc ProcessDesc) *ProgramBuilder {
	if b.err == nil {
		b.err = b.validate(&desc)
	}
	if b.err == nil {
		d := desc
		d.Statements = append([]StatementDesc(nil), desc.Statements...)
		b.processes = append(b.processes, &d)
	}
	return b
}

func (b *ProgramBuilder) validate(desc *ProcessDesc) error {
	if desc.Name == "" {
		return fmt.Errorf(`ncd: process with empty name`)
	}
	for _, p := range b.processes {
		if p.Name == desc.Name && p.Template == desc.Template {
			return fmt.Errorf("ncd: duplicate process %q", desc.Name)
		}
	}
	for si := range desc.Statements {
		s := &desc.Statements[si]
		if s.Type == "" {
			return fmt.Errorf("ncd: process %q statement %d has empty type", desc.Name, si)
		}
		for _, seg := range s.ObjPath {
			if seg == "" {
				return fmt.Errorf("ncd: process %q statement %d has empty object path segment", desc.Name, si)
			}
		}
		if s.Args != nil {
			for _, id := range s.Args.PlaceholderIDs() {
				if id >= len(b.placeholders) {
					return fmt.Errorf("ncd: process %q statement %d references unknown placeholder %d", desc.Name, si, id)
				}
			}
		}
	}
	return nil
}

// Build finalizes the program.
func (b *ProgramBuilder) Build() (*Program, error) {
	if b.err != nil {
		return nil, b.err
	}
	p := &Program{
		processes:    b.processes,
		templates:    make(map[string]*ProcessDesc),
		placeholders: b.placeholders,
	}
	for _, d := range b.processes {
		if d.Template {
			p.templates[d.Name] = d
		}
	}
	return p, nil
}
