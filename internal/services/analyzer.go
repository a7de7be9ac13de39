package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/lectern-backend/internal/clients/redis"
	"github.com/yungbote/lectern-backend/internal/data/repos"
	"github.com/yungbote/lectern-backend/internal/pkg/dbctx"
	"github.com/yungbote/lectern-backend/internal/platform/logger"
	"github.com/yungbote/lectern-backend/internal/relevance"
)

// FailureSummary marks a fingerprint produced while the analysis
// collaborator was unreachable. Such fingerprints are valid for scoring but
// are never cached, so a later retry recomputes them.
const FailureSummary = "analysis unavailable"

// maxAnalysisChars bounds the text sent to the collaborator: enough signal,
// bounded cost.
const maxAnalysisChars = 5000

const analysisPrompt = `You are an academic document analyst. Given the text of a document, respond with a single JSON object and nothing else, shaped exactly like:
{"summary": "1-3 sentence summary", "keywords": ["5-10 keywords"], "topics": ["3-5 topics"], "mainThemes": ["2-3 main themes"]}`

// DocumentSnapshot bundles a document's fingerprint with the extracted
// text and content hash it was derived from.
type DocumentSnapshot struct {
	Fingerprint relevance.Fingerprint
	ContentHash string
	Text        string
}

// DocumentAnalyzer produces a document's semantic fingerprint. Analyze
// always returns a usable fingerprint; the error is non-nil only when the
// collaborator was unreachable, so the caller may retry later.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, documentID uuid.UUID, rawText string) (relevance.Fingerprint, error)
	SnapshotForDocument(ctx context.Context, documentID uuid.UUID) (*DocumentSnapshot, error)
	ContentHash(ctx context.Context, documentID uuid.UUID) (string, error)
}

type documentAnalyzer struct {
	log             *logger.Logger
	aiClient        TextAnalysisService
	contentProvider DocumentContentProvider
	cache           redis.FingerprintCache
	fingerprintRepo repos.FingerprintRepo
	callTimeout     time.Duration
}

func NewDocumentAnalyzer(
	baseLog *logger.Logger,
	aiClient TextAnalysisService,
	contentProvider DocumentContentProvider,
	cache redis.FingerprintCache,
	fingerprintRepo repos.FingerprintRepo,
	callTimeout time.Duration,
) DocumentAnalyzer {
	serviceLog := baseLog.With("service", "DocumentAnalyzer")
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	return &documentAnalyzer{
		log:             serviceLog,
		aiClient:        aiClient,
		contentProvider: contentProvider,
		cache:           cache,
		fingerprintRepo: fingerprintRepo,
		callTimeout:     callTimeout,
	}
}

// ContentHash fetches the document's extracted text and hashes it. The hash
// of empty content is still a valid cache key: "no text" is a state worth
// remembering.
func (a *documentAnalyzer) ContentHash(ctx context.Context, documentID uuid.UUID) (string, error) {
	text, err := a.contentProvider.GetExtractedText(ctx, documentID)
	if err != nil {
		return "", fmt.Errorf("get extracted text: %w", err)
	}
	return hashContent(text), nil
}

// SnapshotForDocument resolves a document's fingerprint through the cache
// hierarchy: redis, then the durable fingerprint table, then a fresh
// analysis. The snapshot also carries the extracted text so callers can
// build excerpts without refetching.
func (a *documentAnalyzer) SnapshotForDocument(ctx context.Context, documentID uuid.UUID) (*DocumentSnapshot, error) {
	text, err := a.contentProvider.GetExtractedText(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get extracted text: %w", err)
	}
	snap := &DocumentSnapshot{ContentHash: hashContent(text), Text: text}

	if a.cache != nil {
		if fp, ok := a.cache.Get(ctx, documentID, snap.ContentHash); ok {
			snap.Fingerprint = fp
			return snap, nil
		}
	}

	if a.fingerprintRepo != nil {
		rec, err := a.fingerprintRepo.GetByDocumentHash(dbctx.Context{Ctx: ctx}, documentID, snap.ContentHash)
		if err != nil {
			a.log.Warn("Fingerprint store read failed", "document_id", documentID, "error", err)
		} else if rec != nil {
			snap.Fingerprint = relevance.FromRecord(rec)
			if a.cache != nil {
				a.cache.Set(ctx, snap.ContentHash, snap.Fingerprint)
			}
			return snap, nil
		}
	}

	fp, analyzeErr := a.Analyze(ctx, documentID, text)
	snap.Fingerprint = fp
	if analyzeErr != nil {
		// Collaborator unreachable: hand back the failure fingerprint
		// uncached so a retry recomputes it.
		return snap, analyzeErr
	}

	a.store(ctx, snap.ContentHash, fp)
	return snap, nil
}

func (a *documentAnalyzer) Analyze(ctx context.Context, documentID uuid.UUID, rawText string) (relevance.Fingerprint, error) {
	bounded := relevance.Truncate(rawText, maxAnalysisChars)

	callCtx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	output, err := a.aiClient.AnalyzeText(callCtx, analysisPrompt, bounded)
	if err != nil {
		a.log.Warn("Analysis call failed, returning failure fingerprint",
			"document_id", documentID,
			"error", err,
		)
		fp := relevance.Empty(documentID)
		fp.Summary = FailureSummary
		return fp, fmt.Errorf("analyze text: %w", err)
	}

	if fp, ok := parseFingerprint(documentID, output); ok {
		return fp, nil
	}

	a.log.Warn("Analysis output unparseable, using fallback extraction", "document_id", documentID)
	return fallbackFingerprint(documentID, rawText), nil
}

func (a *documentAnalyzer) store(ctx context.Context, contentHash string, fp relevance.Fingerprint) {
	if a.fingerprintRepo != nil {
		rec, err := fp.ToRecord(contentHash)
		if err != nil {
			a.log.Warn("Fingerprint encode failed", "document_id", fp.DocumentID, "error", err)
		} else if _, err := a.fingerprintRepo.Upsert(dbctx.Context{Ctx: ctx}, rec); err != nil {
			a.log.Warn("Fingerprint store write failed", "document_id", fp.DocumentID, "error", err)
		}
	}
	if a.cache != nil {
		a.cache.Set(ctx, contentHash, fp)
	}
}

type fingerprintPayload struct {
	Summary    string   `json:"summary"`
	Keywords   []string `json:"keywords"`
	Topics     []string `json:"topics"`
	MainThemes []string `json:"mainThemes"`
}

// parseFingerprint extracts the first balanced JSON object from the
// collaborator output and decodes it. Extraneous surrounding prose is
// tolerated; a missing or undecodable object is not.
func parseFingerprint(documentID uuid.UUID, output string) (relevance.Fingerprint, bool) {
	block := relevance.ExtractJSONBlock(output)
	if block == "" {
		return relevance.Fingerprint{}, false
	}
	var payload fingerprintPayload
	if err := json.Unmarshal([]byte(block), &payload); err != nil {
		return relevance.Fingerprint{}, false
	}
	if strings.TrimSpace(payload.Summary) == "" && len(payload.Keywords) == 0 {
		return relevance.Fingerprint{}, false
	}
	fp := relevance.Fingerprint{
		DocumentID: documentID,
		Summary:    strings.TrimSpace(payload.Summary),
		Keywords:   capStrings(payload.Keywords, 10),
		Topics:     capStrings(payload.Topics, 5),
		MainThemes: capStrings(payload.MainThemes, 3),
	}
	return fp.Normalize(), true
}

// fallbackFingerprint is the deterministic local extraction used when the
// collaborator answered with something unparseable.
func fallbackFingerprint(documentID uuid.UUID, rawText string) relevance.Fingerprint {
	fp := relevance.Empty(documentID)
	fp.Summary = strings.TrimSpace(relevance.Truncate(rawText, 200))
	fp.Keywords = relevance.ExtractKeywords(rawText)
	fp.Topics = []string{"General"}
	fp.MainThemes = []string{"General"}
	return fp
}

func capStrings(in []string, max int) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
		if len(out) == max {
			break
		}
	}
	return out
}

func hashContent(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
