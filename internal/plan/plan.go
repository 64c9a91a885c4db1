// Package plan loads and validates book plan files: the chapter
// outlines, style guide, and character bible a generation batch is
// built from.
package plan

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jackzampolin/quill/internal/batch"
)

// Chapter is a single planned chapter.
type Chapter struct {
	Number  int    `yaml:"number"`
	Title   string `yaml:"title,omitempty"`
	Outline string `yaml:"outline"`
}

// BookPlan describes a book to draft.
type BookPlan struct {
	Title          string         `yaml:"title"`
	StyleGuide     string         `yaml:"style_guide,omitempty"`
	CharacterBible map[string]any `yaml:"character_bible,omitempty"`
	Chapters       []Chapter      `yaml:"chapters"`
}

// Load reads and validates a plan file.
func Load(path string) (*BookPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}

	var p BookPlan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse plan file: %w", err)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the plan is complete enough to generate from.
func (p *BookPlan) Validate() error {
	if p.Title == "" {
		return fmt.Errorf("plan is missing a title")
	}
	if len(p.Chapters) == 0 {
		return fmt.Errorf("plan %q has no chapters", p.Title)
	}

	seen := make(map[int]bool, len(p.Chapters))
	for i, ch := range p.Chapters {
		if ch.Number <= 0 {
			return fmt.Errorf("chapter at index %d has invalid number %d", i, ch.Number)
		}
		if seen[ch.Number] {
			return fmt.Errorf("duplicate chapter number %d", ch.Number)
		}
		seen[ch.Number] = true
		if ch.Outline == "" {
			return fmt.Errorf("chapter %d has no outline", ch.Number)
		}
	}
	return nil
}

// ChapterSpecs converts the plan's chapters into batch specs, in plan
// order. The plan-level style guide applies to every chapter.
func (p *BookPlan) ChapterSpecs() []batch.ChapterSpec {
	specs := make([]batch.ChapterSpec, 0, len(p.Chapters))
	for _, ch := range p.Chapters {
		specs = append(specs, batch.ChapterSpec{
			ChapterNumber: ch.Number,
			Outline:       ch.Outline,
			StyleGuide:    p.StyleGuide,
		})
	}
	return specs
}
