package batch

import "context"

// Request carries everything the generator needs to draft one chapter.
type Request struct {
	ChapterNumber int
	Outline       string
	StyleGuide    string

	// CharacterBible is passed through unmodified to every generation
	// call; the batch layer never inspects it.
	CharacterBible any

	// PreviousChapters holds already-completed chapter texts, in
	// chapter-number order, for chapters numbered below this one.
	PreviousChapters []string
}

// Generator is the external collaborator that produces chapter text.
// Implementations own their own timeouts; a hang stalls exactly one
// worker slot. Any returned error is treated uniformly as retryable,
// subject to the service's retry configuration.
type Generator interface {
	GenerateChapter(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a plain function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

func (f GeneratorFunc) GenerateChapter(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// ContextProvider supplies the continuity context for a chapter at the
// moment its job starts.
type ContextProvider func(chapterNumber int) []string
