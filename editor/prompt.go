package editor

import (
	"strconv"

	"github.com/hupe1980/wingman/core"
	"github.com/hupe1980/wingman/internal/util"
)

const preamble = "You are Wingman, a concise coding assistant focused on safe, minimal edits.\n\n" +
	"Prefer direct code answers and preserve the user's existing style."

var systemPromptTmpl = util.MustParse("system", preamble+"\n\n"+
	"{{if .HasContext}}Current editor context:\n\n"+
	"- File: {{.File}}\n\n"+
	"- Line: {{.Line}}\n\n"+
	"- Selection: {{if .Selection}}{{json .Selection}}{{else}}(none){{end}}\n\n"+
	"Surrounding code:\n```\n{{.SurroundingCode}}\n```"+
	"{{else}}No editor context is currently available.{{end}}")

var completionPromptTmpl = util.MustParse("completion",
	"Complete the code at the cursor position.\n\n"+
		"Return only the completion text with no markdown fences or explanations.\n\n"+
		"{{if .Selection}}Selected text near cursor:\n{{.Selection}}{{else}}No text is selected.{{end}}\n\n"+
		"Surrounding code:\n\n"+
		"{{.SurroundingCode}}")

type promptData struct {
	HasContext      bool
	File            string
	Line            string
	Selection       string
	SurroundingCode string
}

// HasContext reports whether any field carries a meaningful value. Empty
// strings and line 0 count as absent.
func HasContext(c core.EditorContext) bool {
	return core.Deref(c.File) != "" ||
		(c.Line != nil && *c.Line != 0) ||
		core.Deref(c.Selection) != "" ||
		core.Deref(c.SurroundingCode) != ""
}

// HasInlineContext reports whether c carries enough for an inline
// completion: a file and the code around the cursor.
func HasInlineContext(c core.EditorContext) bool {
	return core.Deref(c.File) != "" && core.Deref(c.SurroundingCode) != ""
}

// BuildSystemPrompt renders the assistant system prompt for c.
func BuildSystemPrompt(c core.EditorContext) string {
	data := promptData{
		HasContext:      HasContext(c),
		File:            orNone(c.File),
		Line:            "(none)",
		Selection:       core.Deref(c.Selection),
		SurroundingCode: orNone(c.SurroundingCode),
	}
	if c.Line != nil {
		data.Line = strconv.Itoa(*c.Line)
	}

	out, err := util.Render(systemPromptTmpl, data)
	if err != nil {
		return preamble
	}
	return out
}

// BuildCompletionPrompt renders the fill-in-the-middle prompt used by inline
// completions.
func BuildCompletionPrompt(c core.EditorContext) string {
	out, err := util.Render(completionPromptTmpl, promptData{
		Selection:       core.Deref(c.Selection),
		SurroundingCode: core.Deref(c.SurroundingCode),
	})
	if err != nil {
		return ""
	}
	return out
}

func orNone(s *string) string {
	if s == nil {
		return "(none)"
	}
	return *s
}
