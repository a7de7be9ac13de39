package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/lectern-backend/internal/platform/logger"
	"github.com/yungbote/lectern-backend/internal/relevance"
)

// maxExcerptChars bounds each document excerpt embedded in the description
// prompt: enough context without runaway cost.
const maxExcerptChars = 1500

const describePrompt = `You explain why two academic documents are related. Given both documents' summaries, topics, keywords and excerpts, respond with one or two plain sentences describing the relationship. No preamble, no JSON.`

// RelationshipDescriber produces a short human-readable explanation of why
// two documents are related. Never fails: on collaborator error it falls
// back to a template built from the overlapping keywords and topics, so a
// relationship record is never left without any description.
type RelationshipDescriber interface {
	Describe(ctx context.Context, source relevance.Fingerprint, sourceExcerpt string, target relevance.Fingerprint, targetExcerpt string) string
}

type relationshipDescriber struct {
	log         *logger.Logger
	aiClient    TextAnalysisService
	callTimeout time.Duration
}

func NewRelationshipDescriber(baseLog *logger.Logger, aiClient TextAnalysisService, callTimeout time.Duration) RelationshipDescriber {
	serviceLog := baseLog.With("service", "RelationshipDescriber")
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	return &relationshipDescriber{
		log:         serviceLog,
		aiClient:    aiClient,
		callTimeout: callTimeout,
	}
}

func (d *relationshipDescriber) Describe(ctx context.Context, source relevance.Fingerprint, sourceExcerpt string, target relevance.Fingerprint, targetExcerpt string) string {
	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()

	contextText := buildDescribeContext(source, sourceExcerpt, target, targetExcerpt)
	output, err := d.aiClient.AnalyzeText(callCtx, describePrompt, contextText)
	if err == nil {
		if desc := strings.TrimSpace(output); desc != "" {
			return desc
		}
	} else {
		d.log.Warn("Description call failed, using fallback template",
			"source_document_id", source.DocumentID,
			"target_document_id", target.DocumentID,
			"error", err,
		)
	}
	return FallbackDescription(source, target)
}

func buildDescribeContext(source relevance.Fingerprint, sourceExcerpt string, target relevance.Fingerprint, targetExcerpt string) string {
	var b strings.Builder
	writeDocSection(&b, "Document A", source, sourceExcerpt)
	writeDocSection(&b, "Document B", target, targetExcerpt)
	return b.String()
}

func writeDocSection(b *strings.Builder, label string, fp relevance.Fingerprint, excerpt string) {
	fmt.Fprintf(b, "%s summary: %s\n", label, fp.Summary)
	fmt.Fprintf(b, "%s topics: %s\n", label, strings.Join(fp.Topics, ", "))
	fmt.Fprintf(b, "%s keywords: %s\n", label, strings.Join(fp.Keywords, ", "))
	fmt.Fprintf(b, "%s excerpt: %s\n\n", label, relevance.Truncate(excerpt, maxExcerptChars))
}

// FallbackDescription builds a templated description from the shared topics
// and keywords of the two fingerprints.
func FallbackDescription(source, target relevance.Fingerprint) string {
	if shared := relevance.SharedTerms(source.Topics, target.Topics); len(shared) > 0 {
		return "Both documents discuss " + joinNatural(shared) + "."
	}
	if shared := relevance.SharedTerms(source.Keywords, target.Keywords); len(shared) > 0 {
		return "Both documents mention " + joinNatural(shared) + "."
	}
	return "These documents appear in the same library."
}

func joinNatural(terms []string) string {
	if len(terms) > 3 {
		terms = terms[:3]
	}
	switch len(terms) {
	case 1:
		return terms[0]
	case 2:
		return terms[0] + " and " + terms[1]
	default:
		return strings.Join(terms[:len(terms)-1], ", ") + " and " + terms[len(terms)-1]
	}
}
