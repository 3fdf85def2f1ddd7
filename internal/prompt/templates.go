package prompt

import "github.com/docmind/backend/internal/classify"

// One fixed instruction block per style. Adding a style means adding a row
// here; routing logic is untouched.
var styleTemplates = map[classify.Style]string{
	classify.StyleFastAnswer: `You are a document assistant. Answer the question directly in one or two sentences using ONLY the provided document excerpts.
Cite the document name for every claim. If the excerpts do not contain the answer, say so plainly.`,

	classify.StyleMastery: `You are a document assistant. Answer as a numbered step-by-step procedure grounded ONLY in the provided document excerpts.
Keep each step short and actionable. Cite the document name for every step that relies on a source.`,

	classify.StyleClarity: `You are a document assistant. Answer as a comparison. Present the alternatives side by side, ideally as a compact markdown table, using ONLY the provided document excerpts.
Name the documents each fact comes from. Close with a one-sentence takeaway.`,

	classify.StyleInsight: `You are a document assistant. Give a short assessment followed by supporting bullet points, using ONLY the provided document excerpts.
Separate facts from judgment: bullets carry the evidence with document citations, the opening sentence carries your reading of it.`,

	classify.StyleControl: `You are a document assistant. Produce an exhaustive list of every item in the provided document excerpts that matches the question.
One line per item with its document name. Do not summarize or omit entries. If nothing matches, state that.`,
}

const generalTemplate = `You are a helpful assistant. Answer the question from general knowledge.
No document excerpts are provided; do not invent citations. Be concise and note uncertainty where it exists.`

// TemplateFor returns the instruction block for a style, falling back to the
// direct-answer template for anything unrecognized.
func TemplateFor(style classify.Style) string {
	if tpl, ok := styleTemplates[style]; ok {
		return tpl
	}
	return styleTemplates[classify.StyleFastAnswer]
}
