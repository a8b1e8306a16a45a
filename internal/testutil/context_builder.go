package testutil

import "github.com/hupe1980/wingman/core"

// ContextBuilder provides a fluent helper for constructing editor contexts.
// Example:
//
//	ctx := NewContextBuilder().File("main.go").Line(3).Surrounding("func main() {}").Build()
type ContextBuilder struct {
	c core.EditorContext
}

// NewContextBuilder creates an empty builder.
func NewContextBuilder() *ContextBuilder { return &ContextBuilder{} }

// File sets the file path (chainable).
func (b *ContextBuilder) File(f string) *ContextBuilder { b.c.File = core.String(f); return b }

// Line sets the cursor line (chainable).
func (b *ContextBuilder) Line(l int) *ContextBuilder { b.c.Line = core.Int(l); return b }

// Selection sets the selected text (chainable).
func (b *ContextBuilder) Selection(s string) *ContextBuilder { b.c.Selection = core.String(s); return b }

// Surrounding sets the code around the cursor (chainable).
func (b *ContextBuilder) Surrounding(s string) *ContextBuilder {
	b.c.SurroundingCode = core.String(s)
	return b
}

// Build returns the constructed context.
func (b *ContextBuilder) Build() core.EditorContext { return b.c.Clone() }
