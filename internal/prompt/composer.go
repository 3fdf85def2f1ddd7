package prompt

import (
	"fmt"
	"strings"

	"github.com/docmind/backend/internal/classify"
	"github.com/docmind/backend/internal/retrieval"
)

// Length is the caller's answer-length preference.
type Length string

const (
	LengthShort   Length = "short"
	LengthMedium  Length = "medium"
	LengthSummary Length = "summary"
	LengthLong    Length = "long"
)

// ParseLength maps raw caller input to a known Length, defaulting to medium.
func ParseLength(s string) Length {
	switch Length(s) {
	case LengthShort, LengthMedium, LengthSummary, LengthLong:
		return Length(s)
	default:
		return LengthMedium
	}
}

type GenParams struct {
	Temperature float32
	MaxTokens   int
}

// Spec is one fully assembled generation request.
type Spec struct {
	System  string
	Context string
	Query   string
	History []classify.Turn
	Params  GenParams
}

const historyWindow = 10

var styleTemperatures = map[classify.Style]float32{
	classify.StyleFastAnswer: 0.1,
	classify.StyleMastery:    0.3,
	classify.StyleClarity:    0.2,
	classify.StyleInsight:    0.6,
	classify.StyleControl:    0.2,
}

var lengthTokens = map[Length]int{
	LengthShort:   256,
	LengthMedium:  512,
	LengthSummary: 768,
	LengthLong:    1024,
}

// ParamsFor derives generation parameters deterministically from style and
// requested length. Exhaustive and insight styles get a raised token floor so
// the answer shape is never truncated mid-list.
func ParamsFor(style classify.Style, length Length) GenParams {
	temperature, ok := styleTemperatures[style]
	if !ok {
		temperature = 0.2
	}

	tokens, ok := lengthTokens[length]
	if !ok {
		tokens = lengthTokens[LengthMedium]
	}

	if (style == classify.StyleControl || style == classify.StyleInsight) && tokens < 1024 {
		tokens = 1024
	}

	return GenParams{Temperature: temperature, MaxTokens: tokens}
}

// Compose builds the generation request for a content question: the style
// instruction block, the serialized source chunks, and the bounded
// conversation window.
func Compose(query string, sources retrieval.SourceSet, style classify.Style, length Length, history []classify.Turn) Spec {
	return Spec{
		System:  TemplateFor(style),
		Context: serializeSources(sources),
		Query:   query,
		History: boundHistory(history),
		Params:  ParamsFor(style, length),
	}
}

// ComposeGeneral builds a request with no retrieved context, for
// general-knowledge questions.
func ComposeGeneral(query string, style classify.Style, length Length, history []classify.Turn) Spec {
	return Spec{
		System:  generalTemplate,
		Query:   query,
		History: boundHistory(history),
		Params:  ParamsFor(style, length),
	}
}

// UserPrompt renders the context block, history, and question into the single
// user message handed to the generation backend.
func (s Spec) UserPrompt() string {
	var b strings.Builder

	if s.Context != "" {
		b.WriteString(s.Context)
		b.WriteString("\n")
	}

	if len(s.History) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, turn := range s.History {
			b.WriteString(fmt.Sprintf("%s: %s\n", turn.Role, turn.Text))
		}
		b.WriteString("\n")
	}

	b.WriteString("Question: ")
	b.WriteString(s.Query)

	return b.String()
}

// serializeSources tags each chunk with its document name and location so the
// generator can attribute claims.
func serializeSources(sources retrieval.SourceSet) string {
	if sources.Empty() {
		return ""
	}

	var b strings.Builder
	b.WriteString("Document excerpts:\n")
	for i, c := range sources.Chunks {
		tag := c.DocumentName
		if c.Location != "" {
			tag = fmt.Sprintf("%s, %s", c.DocumentName, c.Location)
		}
		b.WriteString(fmt.Sprintf("\n[Source %d: %s]\n%s\n", i+1, tag, c.Content))
	}
	return b.String()
}

func boundHistory(history []classify.Turn) []classify.Turn {
	if len(history) <= historyWindow {
		return history
	}
	return history[len(history)-historyWindow:]
}
