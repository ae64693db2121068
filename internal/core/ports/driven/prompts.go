package driven

import "github.com/custodia-labs/sercha-synth/internal/core/domain"

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files, embed them in the binary,
// or fetch them from a remote configuration service.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations should return a sensible default
	// or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names used throughout the application.
// Templates use text/template syntax; the fields available to each are listed.
const (
	// PromptThemeLabel names and describes one cluster.
	// Fields: .Excerpts (numbered chunk samples).
	PromptThemeLabel = domain.PromptThemeLabel

	// PromptChapterPlan asks for a chapter ordering.
	// Fields: .Title, .Objective, .Themes (numbered theme summaries), .Count.
	PromptChapterPlan = domain.PromptChapterPlan

	// PromptChapterOutline asks for a chapter outline.
	// Fields: .Label, .Description, .Number, .Excerpts, .PreviousSummary.
	PromptChapterOutline = domain.PromptChapterOutline

	// PromptChapterContent asks for one section of chapter prose.
	// Fields: .Label, .Number, .Outline, .Context, .TargetWords, .PreviousSummary, .Part, .Parts.
	PromptChapterContent = domain.PromptChapterContent

	// PromptRAGSystem is the system prompt for question answering. No fields.
	PromptRAGSystem = domain.PromptRAGSystem

	// PromptRAGUser wraps the question and retrieved context.
	// Fields: .Context, .Question.
	PromptRAGUser = domain.PromptRAGUser
)

// PromptStoreAware is an optional interface for services that can use custom prompts.
// Services implementing this interface can have their prompt templates customised
// by injecting a PromptStore after construction.
type PromptStoreAware interface {
	// SetPromptStore sets the prompt store for loading customisable prompts.
	// If not set, the service should use hardcoded default prompts.
	SetPromptStore(store PromptStore)
}
