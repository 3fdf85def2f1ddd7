package ingest

import "strings"

const (
	maxChunkRunes = 1000
	overlapRunes  = 100
)

// chunkText splits extracted document text into retrieval-sized pieces.
// Paragraph boundaries are respected where possible; paragraphs longer than
// the cap are split with a trailing overlap so a sentence cut in half still
// appears whole in one of the two chunks.
func chunkText(text string) []string {
	var chunks []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if len([]rune(para)) > maxChunkRunes {
			flush()
			chunks = append(chunks, splitLong(para)...)
			continue
		}

		if current.Len() > 0 && len([]rune(current.String()))+len([]rune(para)) > maxChunkRunes {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()

	return chunks
}

func splitLong(para string) []string {
	runes := []rune(para)
	var chunks []string

	for start := 0; start < len(runes); {
		end := start + maxChunkRunes
		if end >= len(runes) {
			chunks = append(chunks, strings.TrimSpace(string(runes[start:])))
			break
		}

		// Back up to the nearest space so words stay intact.
		cut := end
		for cut > start && runes[cut] != ' ' {
			cut--
		}
		if cut == start {
			cut = end
		}

		chunks = append(chunks, strings.TrimSpace(string(runes[start:cut])))

		next := cut - overlapRunes
		if next <= start {
			next = cut
		}
		// Align the overlap to a word boundary.
		for next < cut && next > 0 && runes[next-1] != ' ' {
			next++
		}
		start = next
	}

	return chunks
}
