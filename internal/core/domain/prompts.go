package domain

// Prompt names. They match the file names of user-editable templates.
const (
	PromptThemeLabel     = "theme_label"
	PromptChapterPlan    = "chapter_plan"
	PromptChapterOutline = "chapter_outline"
	PromptChapterContent = "chapter_content"
	PromptRAGSystem      = "rag_system"
	PromptRAGUser        = "rag_user"
)

// defaultPrompts are the built-in text/template prompt bodies.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
var defaultPrompts = map[string]string{
	PromptThemeLabel: `Below are excerpts from documents that were grouped together because they discuss a common topic.

{{.Excerpts}}

Identify the common theme. Answer in exactly this format:
Theme: <a short label of 2 to 6 words>
Description: <one sentence describing the theme>`,

	PromptChapterPlan: `You are organising a document{{if .Title}} titled "{{.Title}}"{{end}} into chapters.
{{- if .Objective}}
Objective: {{.Objective}}
{{- end}}

The following {{.Count}} themes were identified:

{{.Themes}}

Propose the most logical reading order for these themes as chapters.
List every theme exactly once, one per line, first chapter first, as:
<theme number>. <theme label>

Answer with the list only.`,

	PromptChapterOutline: `Write a short outline for chapter {{.Number}} about "{{.Label}}".
{{- if .Description}}
Theme description: {{.Description}}
{{- end}}
{{- if .PreviousSummary}}

The previous chapter ended with:
{{.PreviousSummary}}
{{- end}}

Source excerpts:
{{.Excerpts}}

Return 3 to 6 section headings, one per line, each followed by a short note.`,

	PromptChapterContent: `You are writing chapter {{.Number}}, "{{.Label}}" (part {{.Part}} of {{.Parts}}).

Outline:
{{.Outline}}
{{- if .PreviousSummary}}

Context from the previous chapter:
{{.PreviousSummary}}
{{- end}}

Sources:
{{.Context}}

Write about {{.TargetWords}} words of continuous prose for this part of the chapter.
Use only the information in the sources. Cite sources inline with their bracketed number, for example [1] or [3].
Do not repeat the chapter title.`,

	PromptRAGSystem: `You are a precise research assistant. Answer questions using only the provided context.
If the context does not contain the answer, say so. Cite sources as [Source N].`,

	PromptRAGUser: `Context:
{{.Context}}

Question: {{.Question}}

Answer:`,
}

// DefaultPrompt returns the built-in template for name.
func DefaultPrompt(name string) (string, bool) {
	p, ok := defaultPrompts[name]
	return p, ok
}

// DefaultPromptNames returns the names of all built-in prompts.
func DefaultPromptNames() []string {
	return []string{
		PromptThemeLabel,
		PromptChapterPlan,
		PromptChapterOutline,
		PromptChapterContent,
		PromptRAGSystem,
		PromptRAGUser,
	}
}
