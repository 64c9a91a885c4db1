package providers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackzampolin/quill/internal/batch"
)

const chapterSystemPrompt = `You are a novelist drafting one chapter of a book.
Write polished long-form prose that follows the outline, matches the style guide,
and stays consistent with the character bible and the chapters written so far.
Output only the chapter text, no commentary or headings.`

// buildChapterPrompt assembles the system and user messages for one
// chapter request. The character bible is opaque to the batch layer;
// here it is serialized verbatim into the prompt.
func buildChapterPrompt(req batch.Request) (system, user string, err error) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Write chapter %d.\n\n", req.ChapterNumber)
	fmt.Fprintf(&sb, "## Outline\n%s\n", req.Outline)

	if req.StyleGuide != "" {
		fmt.Fprintf(&sb, "\n## Style guide\n%s\n", req.StyleGuide)
	}

	if req.CharacterBible != nil {
		bible, merr := marshalBible(req.CharacterBible)
		if merr != nil {
			return "", "", fmt.Errorf("failed to serialize character bible: %w", merr)
		}
		fmt.Fprintf(&sb, "\n## Character bible\n%s\n", bible)
	}

	if len(req.PreviousChapters) > 0 {
		sb.WriteString("\n## Previous chapters\n")
		for i, text := range req.PreviousChapters {
			fmt.Fprintf(&sb, "\n--- chapter context %d ---\n%s\n", i+1, text)
		}
	}

	return chapterSystemPrompt, sb.String(), nil
}

func marshalBible(bible any) (string, error) {
	if s, ok := bible.(string); ok {
		return s, nil
	}
	b, err := json.MarshalIndent(bible, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
