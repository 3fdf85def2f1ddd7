package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docmind/backend/internal/classify"
	"github.com/docmind/backend/internal/storage/models"
	"github.com/docmind/backend/pkg/logger"
)

// Specialized handlers for the non-RAG domains. "Not found" outcomes are
// deterministic success-path results with confidence 0, never errors. A
// handler missing a required entity re-routes to the content pipeline
// instead of executing a partial action.

func (e *Engine) answerGreeting(cls classify.Classification) *AnswerResult {
	return &AnswerResult{
		Answer:     "Hello! Ask me anything about your documents. I can find files, search for mentions, or answer questions about their contents.",
		Sources:    []Source{},
		ContextID:  uuid.New().String(),
		Domain:     cls.Domain,
		Confidence: cls.Confidence,
	}
}

func (e *Engine) answerNavigation(ctx context.Context, req Request, cls classify.Classification, history []classify.Turn) (*AnswerResult, error) {
	name := cls.Entities["filename"]
	if name == "" {
		name = cls.Entities["targetName"]
	}
	if name == "" {
		logger.Debug("Navigation intent without a file entity, re-routing to content QA")
		return e.answerContent(ctx, req, cls, history)
	}

	loc, err := e.docs.LookupFileLocation(ctx, req.UserID, name)
	if err != nil {
		logger.Warn("File lookup failed", zap.Error(err), zap.String("name", name))
		return e.notFound(cls, fmt.Sprintf("I couldn't look up %q right now.", name)), nil
	}
	if loc == nil {
		return e.notFound(cls, fmt.Sprintf("I couldn't find a file named %q in your documents.", name)), nil
	}

	answer := fmt.Sprintf("%s is in your root folder.", loc.Name)
	if loc.FolderName != "" {
		answer = fmt.Sprintf("%s is in the %q folder.", loc.Name, loc.FolderName)
	}

	return &AnswerResult{
		Answer:     answer,
		Sources:    []Source{{DocumentID: loc.DocumentID, DocumentName: loc.Name, Similarity: 1}},
		ContextID:  uuid.New().String(),
		Domain:     cls.Domain,
		Confidence: cls.Confidence,
	}, nil
}

func (e *Engine) answerMentions(ctx context.Context, req Request, cls classify.Classification, history []classify.Turn) (*AnswerResult, error) {
	phrase := strings.TrimSpace(cls.Entities["searchPhrase"])
	if phrase == "" {
		logger.Debug("Mentions intent without a phrase entity, re-routing to content QA")
		return e.answerContent(ctx, req, cls, history)
	}

	mentions, err := e.docs.SearchMentions(ctx, req.UserID, phrase)
	if err != nil {
		logger.Warn("Mention search failed", zap.Error(err), zap.String("phrase", phrase))
		return e.notFound(cls, fmt.Sprintf("I couldn't search for %q right now.", phrase)), nil
	}
	if len(mentions) == 0 {
		return e.notFound(cls, fmt.Sprintf("I found no mentions of %q in your documents.", phrase)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d mention(s) of %q:\n", len(mentions), phrase)
	sources := make([]Source, 0, len(mentions))
	seen := map[string]bool{}
	for _, m := range mentions {
		if m.Location != "" {
			fmt.Fprintf(&b, "- %s (%s): %s\n", m.DocumentName, m.Location, m.Snippet)
		} else {
			fmt.Fprintf(&b, "- %s: %s\n", m.DocumentName, m.Snippet)
		}
		if !seen[m.DocumentID] {
			seen[m.DocumentID] = true
			sources = append(sources, Source{
				DocumentID:   m.DocumentID,
				DocumentName: m.DocumentName,
				Location:     m.Location,
				Similarity:   1,
			})
		}
	}

	return &AnswerResult{
		Answer:     strings.TrimRight(b.String(), "\n"),
		Sources:    sources,
		ContextID:  uuid.New().String(),
		Domain:     cls.Domain,
		Confidence: cls.Confidence,
	}, nil
}

func (e *Engine) answerList(ctx context.Context, req Request, cls classify.Classification) (*AnswerResult, error) {
	filters := models.ListFilters{
		FolderName: cls.Entities["folderName"],
		DocType:    cls.Entities["documentType"],
	}

	files, err := e.docs.ListFiles(ctx, req.UserID, filters)
	if err != nil {
		logger.Warn("File listing failed", zap.Error(err))
		return e.notFound(cls, "I couldn't list your files right now."), nil
	}
	if len(files) == 0 {
		msg := "You have no documents yet."
		if filters.FolderName != "" {
			msg = fmt.Sprintf("There are no files in the %q folder.", filters.FolderName)
		}
		return e.notFound(cls, msg), nil
	}

	var b strings.Builder
	if filters.FolderName != "" {
		fmt.Fprintf(&b, "Files in %q (%d):\n", filters.FolderName, len(files))
	} else {
		fmt.Fprintf(&b, "Your files (%d):\n", len(files))
	}
	for _, f := range files {
		if f.FolderName != "" {
			fmt.Fprintf(&b, "- %s (in %s)\n", f.Name, f.FolderName)
		} else {
			fmt.Fprintf(&b, "- %s\n", f.Name)
		}
	}

	return &AnswerResult{
		Answer:     strings.TrimRight(b.String(), "\n"),
		Sources:    []Source{},
		ContextID:  uuid.New().String(),
		Domain:     cls.Domain,
		Confidence: cls.Confidence,
	}, nil
}

func (e *Engine) notFound(cls classify.Classification, msg string) *AnswerResult {
	return &AnswerResult{
		Answer:     msg,
		Sources:    []Source{},
		ContextID:  uuid.New().String(),
		Domain:     cls.Domain,
		Confidence: 0,
	}
}
