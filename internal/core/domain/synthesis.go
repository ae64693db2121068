package domain

import (
	"slices"
	"time"
)

// SynthesisLevel selects how long generated chapters should be.
type SynthesisLevel string

// Available synthesis levels.
const (
	SynthesisLevelShort         SynthesisLevel = "short"
	SynthesisLevelNormal        SynthesisLevel = "normal"
	SynthesisLevelComprehensive SynthesisLevel = "comprehensive"
)

// IsValid returns true if the level is recognised.
func (l SynthesisLevel) IsValid() bool {
	switch l {
	case SynthesisLevelShort, SynthesisLevelNormal, SynthesisLevelComprehensive:
		return true
	default:
		return false
	}
}

// TargetWords returns the target chapter length in words for the level.
func (l SynthesisLevel) TargetWords() int {
	switch l {
	case SynthesisLevelShort:
		return 800
	case SynthesisLevelComprehensive:
		return 3000
	default:
		return 1500
	}
}

// String returns the string representation.
func (l SynthesisLevel) String() string {
	return string(l)
}

// Description returns a human-readable description of the level.
func (l SynthesisLevel) Description() string {
	switch l {
	case SynthesisLevelShort:
		return "Short (about 800 words per chapter)"
	case SynthesisLevelNormal:
		return "Normal (about 1500 words per chapter)"
	case SynthesisLevelComprehensive:
		return "Comprehensive (about 3000 words per chapter)"
	default:
		return unknownDescription
	}
}

// AllSynthesisLevels returns all available synthesis levels.
func AllSynthesisLevels() []SynthesisLevel {
	return []SynthesisLevel{
		SynthesisLevelShort,
		SynthesisLevelNormal,
		SynthesisLevelComprehensive,
	}
}

// OutputFormat names an export format.
type OutputFormat string

// Supported output formats.
const (
	OutputFormatMarkdown OutputFormat = "markdown"
	OutputFormatJSON     OutputFormat = "json"
	OutputFormatYAML     OutputFormat = "yaml"
)

// IsValid returns true if the format is recognised.
func (f OutputFormat) IsValid() bool {
	switch f {
	case OutputFormatMarkdown, OutputFormatJSON, OutputFormatYAML:
		return true
	default:
		return false
	}
}

// Extension returns the file extension for the format, without the dot.
func (f OutputFormat) Extension() string {
	switch f {
	case OutputFormatMarkdown:
		return "md"
	case OutputFormatYAML:
		return "yaml"
	default:
		return string(f)
	}
}

// SynthesisConfig holds the values that drive one synthesis run.
type SynthesisConfig struct {
	Level            SynthesisLevel `json:"level"`
	ChunksPerChapter int            `json:"chunks_per_chapter"`
	OutputFormats    []OutputFormat `json:"output_formats"`
	Title            string         `json:"title"`
	Author           string         `json:"author"`
	Objective        string         `json:"objective,omitempty"`
}

// DefaultChunksPerChapter is used when a config leaves ChunksPerChapter unset.
const DefaultChunksPerChapter = 30

// DefaultSynthesisConfig returns a config with sensible defaults.
func DefaultSynthesisConfig() SynthesisConfig {
	return SynthesisConfig{
		Level:            SynthesisLevelNormal,
		ChunksPerChapter: DefaultChunksPerChapter,
		OutputFormats:    []OutputFormat{OutputFormatMarkdown},
	}
}

// Validate checks the config for obviously invalid values.
func (c SynthesisConfig) Validate() error {
	if !c.Level.IsValid() {
		return ErrInvalidInput
	}
	if c.ChunksPerChapter <= 0 {
		return ErrInvalidInput
	}
	for _, f := range c.OutputFormats {
		if !f.IsValid() {
			return ErrUnsupportedFormat
		}
	}
	return nil
}

// SynthesisCache is a stored synthesis run. It is replaced wholesale,
// never edited, and dropped whenever the owning theme set changes.
type SynthesisCache struct {
	ID             string          `json:"id"`
	Chapters       []Chapter       `json:"chapters"`
	GeneratedAt    time.Time       `json:"generated_at"`
	Level          SynthesisLevel  `json:"level"`
	ThemeIDs       []string        `json:"theme_ids"`
	TotalWords     int             `json:"total_words"`
	TotalCitations int             `json:"total_citations"`
	Config         SynthesisConfig `json:"config"`

	// Partial is set when the run was cancelled before every chapter finished.
	Partial bool `json:"partial,omitempty"`
}

// NewSynthesisCache builds a cache record with totals derived from chapters.
func NewSynthesisCache(id string, chapters []Chapter, themeIDs []string, cfg SynthesisConfig, at time.Time) SynthesisCache {
	return SynthesisCache{
		ID:             id,
		Chapters:       slices.Clone(chapters),
		GeneratedAt:    at,
		Level:          cfg.Level,
		ThemeIDs:       slices.Clone(themeIDs),
		TotalWords:     TotalWords(chapters),
		TotalCitations: TotalCitations(chapters),
		Config:         cfg,
	}
}
