package prompt

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/docmind/backend/internal/classify"
	"github.com/docmind/backend/internal/retrieval"
)

func TestParamsForDeterministic(t *testing.T) {
	a := ParamsFor(classify.StyleMastery, LengthMedium)
	b := ParamsFor(classify.StyleMastery, LengthMedium)
	assert.Equal(t, a, b)
}

func TestParamsForStyleShape(t *testing.T) {
	fast := ParamsFor(classify.StyleFastAnswer, LengthShort)
	insight := ParamsFor(classify.StyleInsight, LengthShort)

	assert.Less(t, fast.Temperature, insight.Temperature, "fact lookup runs cooler")
	assert.Greater(t, insight.MaxTokens, fast.MaxTokens, "insight gets a raised token floor")

	control := ParamsFor(classify.StyleControl, LengthShort)
	assert.GreaterOrEqual(t, control.MaxTokens, 1024)
}

func TestParamsForLengthScale(t *testing.T) {
	short := ParamsFor(classify.StyleFastAnswer, LengthShort)
	long := ParamsFor(classify.StyleFastAnswer, LengthLong)
	assert.Less(t, short.MaxTokens, long.MaxTokens)
}

func TestParamsForUnknownDefaults(t *testing.T) {
	p := ParamsFor(classify.Style("bogus"), Length(""))
	assert.Equal(t, float32(0.2), p.Temperature)
	assert.Equal(t, 512, p.MaxTokens)
}

func TestComposeSerializesSources(t *testing.T) {
	sources := retrieval.SourceSet{
		Chunks: []retrieval.Chunk{
			{DocumentID: "d1", DocumentName: "lease.pdf", Location: "page 4", Content: "Rent is due monthly."},
			{DocumentID: "d2", DocumentName: "budget.xlsx", Location: "cell B12", Content: "Q1 revenue 140000."},
		},
		Confidence: 0.8,
	}

	spec := Compose("what is the rent schedule", sources, classify.StyleFastAnswer, LengthMedium, nil)

	assert.Contains(t, spec.Context, "[Source 1: lease.pdf, page 4]")
	assert.Contains(t, spec.Context, "[Source 2: budget.xlsx, cell B12]")
	assert.Contains(t, spec.Context, "Rent is due monthly.")
	assert.Contains(t, spec.UserPrompt(), "Question: what is the rent schedule")
}

func TestComposeTemplatePerStyle(t *testing.T) {
	seen := map[string]bool{}
	for _, style := range []classify.Style{
		classify.StyleFastAnswer,
		classify.StyleMastery,
		classify.StyleClarity,
		classify.StyleInsight,
		classify.StyleControl,
	} {
		spec := Compose("q", retrieval.SourceSet{}, style, LengthMedium, nil)
		assert.NotEmpty(t, spec.System)
		assert.False(t, seen[spec.System], "template for %s reused", style)
		seen[spec.System] = true
	}
}

func TestComposeGeneralHasNoContext(t *testing.T) {
	spec := ComposeGeneral("what is depreciation", classify.StyleFastAnswer, LengthShort, nil)
	assert.Empty(t, spec.Context)
	assert.NotContains(t, spec.UserPrompt(), "Document excerpts")
}

func TestComposeBoundsHistory(t *testing.T) {
	history := make([]classify.Turn, 15)
	for i := range history {
		history[i] = classify.Turn{Role: "user", Text: fmt.Sprintf("turn %d", i), Timestamp: time.Now()}
	}

	spec := Compose("q", retrieval.SourceSet{}, classify.StyleFastAnswer, LengthMedium, history)
	assert.Len(t, spec.History, 10)
	assert.Equal(t, "turn 5", spec.History[0].Text, "window keeps the most recent turns")
}
