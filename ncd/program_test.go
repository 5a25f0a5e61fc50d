package ncd

import (
	"testing"

	"github.com/joeycumines/go-ncd/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgramBuilder_placeholderInterning(t *testing.T) {
	b := NewProgramBuilder()
	id1 := b.AddPlaceholder("a", "b")
	id2 := b.AddPlaceholder("a", "b")
	id3 := b.AddPlaceholder("a", "c")
	assert.Equal(t, id1, id2)
	assert.NotEqual(t, id1, id3)

	prog, err := b.Build()
	require.NoError(t, err)
	path, ok := prog.PlaceholderPath(id1)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, path)
	_, ok = prog.PlaceholderPath(99)
	assert.False(t, ok)
}

func TestProgramBuilder_templates(t *testing.T) {
	b := NewProgramBuilder()
	b.AddProcess(ProcessDesc{Name: "main", Statements: []StatementDesc{{Type: "x"}}})
	b.AddProcess(ProcessDesc{Name: "tmpl", Template: true, Statements: []StatementDesc{{Type: "x"}}})
	prog, err := b.Build()
	require.NoError(t, err)

	assert.Len(t, prog.Processes(), 2)
	_, ok := prog.Template("tmpl")
	assert.True(t, ok)
	_, ok = prog.Template("main")
	assert.False(t, ok)
}

func TestProgramBuilder_duplicateProcess(t *testing.T) {
	b := NewProgramBuilder()
	b.AddProcess(ProcessDesc{Name: "p", Statements: []StatementDesc{{Type: "x"}}})
	b.AddProcess(ProcessDesc{Name: "p", Statements: []StatementDesc{{Type: "x"}}})
	_, err := b.Build()
	assert.Error(t, err)
}

func TestProgramBuilder_validation(t *testing.T) {
	t.Run("empty process name", func(t *testing.T) {
		b := NewProgramBuilder()
		b.AddProcess(ProcessDesc{})
		_, err := b.Build()
		assert.Error(t, err)
	})
	t.Run("empty statement type", func(t *testing.T) {
		b := NewProgramBuilder()
		b.AddProcess(ProcessDesc{Name: "p", Statements: []StatementDesc{{}}})
		_, err := b.Build()
		assert.Error(t, err)
	})
	t.Run("empty object path segment", func(t *testing.T) {
		b := NewProgramBuilder()
		b.AddProcess(ProcessDesc{Name: "p", Statements: []StatementDesc{
			{Type: "m", ObjPath: []string{"a", ""}},
		}})
		_, err := b.Build()
		assert.Error(t, err)
	})
	t.Run("unknown placeholder", func(t *testing.T) {
		a := value.NewArena()
		l := a.NewList()
		l.ListAppend(a.NewPlaceholder(5))
		tpl, err := value.NewTemplate(l)
		require.NoError(t, err)

		b := NewProgramBuilder()
		b.AddProcess(ProcessDesc{Name: "p", Statements: []StatementDesc{
			{Type: "m", Args: tpl},
		}})
		_, err = b.Build()
		assert.Error(t, err)
	})
}

func TestProgramBuilder_descriptorsImmutable(t *testing.T) {
	stmts := []StatementDesc{{Type: "x"}}
	b := NewProgramBuilder()
	b.AddProcess(ProcessDesc{Name: "p", Statements: stmts})
	stmts[0].Type = "mutated"
	prog, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, "x", prog.Processes()[0].Statements[0].Type)
}

func TestStatementDesc_String(t *testing.T) {
	d := &StatementDesc{Type: "append", ObjPath: []string{"x", "y"}}
	assert.Equal(t, "x.y.append", d.String())
	d = &StatementDesc{Type: "var"}
	assert.Equal(t, "var", d.String())
}
