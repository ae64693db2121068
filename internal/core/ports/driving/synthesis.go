package driving

import (
	"context"

	"github.com/custodia-labs/sercha-synth/internal/core/domain"
)

// ChapterRequest describes one chapter to generate.
type ChapterRequest struct {
	Theme           domain.Theme
	ChapterNumber   int
	TargetLength    int
	PreviousSummary string
	MaxChunks       int
}

// BookRequest describes a full synthesis run.
type BookRequest struct {
	Themes              []domain.Theme
	Title               string
	Objective           string
	TargetChapterLength int
	MaxChunksPerChapter int
	Progress            domain.ProgressFunc
}

// SynthesisService turns themes into chapters.
type SynthesisService interface {
	// PlanChapters orders themes into a chapter sequence.
	// The input order is kept when the model's answer cannot be used.
	PlanChapters(ctx context.Context, themes []domain.Theme, title, objective string) ([]domain.Theme, error)

	// GenerateChapter writes one chapter.
	GenerateChapter(ctx context.Context, req ChapterRequest, progress domain.ProgressFunc) (*domain.Chapter, error)

	// GenerateBook plans and writes every chapter in sequence.
	// On cancellation the chapters finished so far are returned with the context error.
	GenerateBook(ctx context.Context, req BookRequest) ([]domain.Chapter, error)
}
