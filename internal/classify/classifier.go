package classify

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/docmind/backend/pkg/logger"
)

// Domain is the routing category of a query.
type Domain string

const (
	DomainGreeting         Domain = "greeting"
	DomainNavigation       Domain = "navigation"
	DomainMentionsSearch   Domain = "mentions_search"
	DomainListMetadata     Domain = "list_metadata"
	DomainGeneralKnowledge Domain = "general_knowledge"
	DomainContentQA        Domain = "content_qa"
)

// Style is the response-shape category of a content question.
type Style string

const (
	StyleFastAnswer Style = "fast_answer"
	StyleMastery    Style = "mastery"
	StyleClarity    Style = "clarity"
	StyleInsight    Style = "insight"
	StyleControl    Style = "control"
)

type Classification struct {
	Domain     Domain
	Style      Style
	Confidence float64
	Entities   map[string]string
	Reasoning  string
}

type Turn struct {
	Role      string
	Text      string
	Timestamp time.Time
}

// StyleBackend refines the style pass when the cheap heuristics are
// inconclusive. Implementations may call a remote model; errors and
// timeouts are absorbed by the classifier.
type StyleBackend interface {
	ClassifyStyle(ctx context.Context, query string) (Style, float64, error)
}

type Classifier struct {
	backend StyleBackend
	timeout time.Duration
}

func New(backend StyleBackend, timeout time.Duration) *Classifier {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Classifier{
		backend: backend,
		timeout: timeout,
	}
}

// DefaultClassification is the fallback when classification cannot complete.
// The pipeline always has something to route on.
func DefaultClassification() Classification {
	return Classification{
		Domain:     DomainContentQA,
		Style:      StyleFastAnswer,
		Confidence: 0.5,
		Entities:   map[string]string{},
		Reasoning:  "fallback: default classification",
	}
}

// Classify runs the domain pass and the style pass over the query. It never
// fails outward; any internal error degrades to DefaultClassification.
func (c *Classifier) Classify(ctx context.Context, query string, history []Turn) Classification {
	query = strings.TrimSpace(query)
	if query == "" {
		return DefaultClassification()
	}

	domain, domainConf, entities, reason := detectDomain(query)

	result := Classification{
		Domain:     domain,
		Style:      StyleFastAnswer,
		Confidence: domainConf,
		Entities:   entities,
		Reasoning:  reason,
	}

	if domain != DomainContentQA && domain != DomainGeneralKnowledge {
		return result
	}

	style, styleConf, matched := detectStyle(query)
	result.Style = style

	if !matched && c.backend != nil {
		refined, refinedConf, err := c.classifyStyleRemote(ctx, query)
		if err != nil {
			logger.Warn("Style backend unavailable, keeping heuristic style",
				zap.Error(err),
				zap.String("style", string(style)),
			)
		} else {
			result.Style = refined
			styleConf = refinedConf
			result.Reasoning += "; style refined by backend"
		}
	}

	// Domain and style confidences are independent signals; the weaker one
	// bounds the overall confidence.
	if styleConf < result.Confidence {
		result.Confidence = styleConf
	}

	return result
}

func (c *Classifier) classifyStyleRemote(ctx context.Context, query string) (Style, float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	style, conf, err := c.backend.ClassifyStyle(ctx, query)
	if err != nil {
		return "", 0, err
	}
	if !validStyle(style) {
		return "", 0, fmt.Errorf("backend returned unknown style %q", style)
	}
	return style, conf, nil
}

var (
	greetingPattern = regexp.MustCompile(`(?i)^\s*(hi|hello|hey|good\s+(morning|afternoon|evening)|yo|greetings|howdy)\s*[!.,]*\s*$`)

	locatePattern = regexp.MustCompile(`(?i)\b(where\s+is|where\s+can\s+i\s+find|locate|open)\b`)
	movePattern   = regexp.MustCompile(`(?i)\bmove\s+(.+?)\s+to\s+(.+)$`)

	mentionsPattern = regexp.MustCompile(`(?i)\b(find\s+all\s+mentions\s+of|mentions\s+of|who\s+mentions|search\s+for)\s+["']?([^"'?]+?)["']?\s*\??$`)

	listPattern = regexp.MustCompile(`(?i)\b(show\s+me\s+(?:the\s+)?files|list\s+(?:all\s+)?(?:my\s+)?(?:files|documents)|what\s+files\s+do\s+i\s+have|files\s+in)\b`)

	generalPattern = regexp.MustCompile(`(?i)^\s*(what\s+(is|are)\s+an?\s|who\s+(is|was)\s|define\s|what\s+does\s+\S+\s+mean\b)`)
	corpusCue      = regexp.MustCompile(`(?i)\b(my|our|the|this|that|these|those)\b|\baccording\s+to\b|\battached\b`)
)

// detectDomain recognizes fixed surface patterns, cheapest and most specific
// first: greeting > explicit file action > mentions > list > general
// knowledge > content QA fallback.
func detectDomain(query string) (Domain, float64, map[string]string, string) {
	entities := map[string]string{}

	if greetingPattern.MatchString(query) {
		return DomainGreeting, 0.95, entities, "matched greeting pattern"
	}

	if m := movePattern.FindStringSubmatch(query); m != nil {
		if name, ok := extractFileName(m[1]); ok {
			entities["filename"] = name
		}
		folder := extractFolderName(m[2])
		if folder == "" {
			folder = NormalizeName(m[2])
		}
		entities["targetFolder"] = folder
		return DomainNavigation, 0.9, entities, "matched file action pattern"
	}

	if locatePattern.MatchString(query) {
		if name, ok := extractFileName(query); ok {
			entities["filename"] = name
			return DomainNavigation, 0.9, entities, "matched locate pattern with filename"
		}
		if target := extractTargetName(query); target != "" {
			entities["targetName"] = target
			return DomainNavigation, 0.75, entities, "matched locate pattern"
		}
	}

	if m := mentionsPattern.FindStringSubmatch(query); m != nil {
		entities["searchPhrase"] = strings.TrimSpace(m[2])
		return DomainMentionsSearch, 0.9, entities, "matched mentions pattern"
	}

	if listPattern.MatchString(query) {
		if folder := extractFolderName(query); folder != "" {
			entities["folderName"] = folder
		}
		if docType := extractDocumentType(query); docType != "" {
			entities["documentType"] = docType
		}
		return DomainListMetadata, 0.85, entities, "matched list pattern"
	}

	if cell := extractCellReference(query); cell != "" {
		entities["cellReference"] = cell
		return DomainContentQA, 0.85, entities, "matched cell reference"
	}

	// Only a conceptual question with no reference back to the user's corpus
	// skips retrieval. A definite or possessive reference ("the", "my") means
	// the user expects an answer grounded in their documents.
	if generalPattern.MatchString(query) && !corpusCue.MatchString(query) {
		return DomainGeneralKnowledge, 0.7, entities, "conceptual question without corpus reference"
	}

	return DomainContentQA, 0.6, entities, "content QA fallback"
}

var (
	controlPattern = regexp.MustCompile(`(?i)\b(list\s+all|all\s+the|every|enumerate|give\s+me\s+all|exhaustive)\b`)
	clarityPattern = regexp.MustCompile(`(?i)\b(compare|comparison|difference\s+between|versus|vs\.?|better\s+than)\b`)
	masteryPattern = regexp.MustCompile(`(?i)\b(how\s+do\s+i|how\s+to|how\s+can\s+i|steps?\s+(to|for)|guide|walk\s+me\s+through|set\s+up)\b`)
	insightPattern = regexp.MustCompile(`(?i)\b(should\s+(i|we)|do\s+you\s+think|recommend|opinion|assess|evaluate|worth|risk)\b|\bwhy\b`)
)

// detectStyle classifies the need behind a content question. The bool return
// reports whether a specific pattern fired, as opposed to the fast-answer
// default.
func detectStyle(query string) (Style, float64, bool) {
	switch {
	case controlPattern.MatchString(query):
		return StyleControl, 0.85, true
	case clarityPattern.MatchString(query):
		return StyleClarity, 0.85, true
	case masteryPattern.MatchString(query):
		return StyleMastery, 0.85, true
	case insightPattern.MatchString(query):
		return StyleInsight, 0.8, true
	default:
		return StyleFastAnswer, 0.6, false
	}
}

func validStyle(s Style) bool {
	switch s {
	case StyleFastAnswer, StyleMastery, StyleClarity, StyleInsight, StyleControl:
		return true
	}
	return false
}
