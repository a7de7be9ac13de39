package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/lectern-backend/internal/relevance"
)

func describerFP(topics, keywords []string) relevance.Fingerprint {
	fp := relevance.Empty(uuid.New())
	fp.Summary = "A summary."
	fp.Topics = topics
	fp.Keywords = keywords
	return fp
}

func TestDescribeUsesCollaboratorOutput(t *testing.T) {
	ai := &stubAI{output: "  Both works examine Kant's moral philosophy. \n"}
	d := NewRelationshipDescriber(testLogger(t), ai, time.Second)

	got := d.Describe(context.Background(),
		describerFP([]string{"philosophy"}, nil), "source excerpt",
		describerFP([]string{"philosophy"}, nil), "target excerpt",
	)
	if got != "Both works examine Kant's moral philosophy." {
		t.Fatalf("description = %q", got)
	}
	if !strings.Contains(ai.lastContext, "Document A") || !strings.Contains(ai.lastContext, "Document B") {
		t.Fatalf("prompt context missing document sections: %q", ai.lastContext)
	}
}

func TestDescribeFallsBackOnCollaboratorError(t *testing.T) {
	ai := &stubAI{err: errors.New("unreachable")}
	d := NewRelationshipDescriber(testLogger(t), ai, time.Second)

	got := d.Describe(context.Background(),
		describerFP([]string{"Philosophy", "Ethics"}, nil), "",
		describerFP([]string{"philosophy", "ethics", "law"}, nil), "",
	)
	if got != "Both documents discuss Philosophy and Ethics." {
		t.Fatalf("fallback description = %q", got)
	}
}

func TestDescribeFallsBackOnEmptyOutput(t *testing.T) {
	ai := &stubAI{output: "   "}
	d := NewRelationshipDescriber(testLogger(t), ai, time.Second)

	got := d.Describe(context.Background(),
		describerFP([]string{"history"}, nil), "",
		describerFP([]string{"history"}, nil), "",
	)
	if got != "Both documents discuss history." {
		t.Fatalf("fallback description = %q", got)
	}
}

func TestDescribeTruncatesExcerpts(t *testing.T) {
	ai := &stubAI{output: "Related."}
	d := NewRelationshipDescriber(testLogger(t), ai, time.Second)

	long := strings.Repeat("excerpt words here ", 200)
	d.Describe(context.Background(),
		describerFP(nil, nil), long,
		describerFP(nil, nil), long,
	)
	// Two excerpts plus labels and fingerprint lines; well under 2x the
	// raw excerpt length proves the cap applied.
	if len(ai.lastContext) > 2*maxExcerptChars+500 {
		t.Fatalf("prompt context too large: %d bytes", len(ai.lastContext))
	}
}

func TestFallbackDescriptionVariants(t *testing.T) {
	noShared := FallbackDescription(
		describerFP([]string{"history"}, []string{"rome"}),
		describerFP([]string{"biology"}, []string{"cells"}),
	)
	if noShared != "These documents appear in the same library." {
		t.Fatalf("no-overlap fallback = %q", noShared)
	}

	keywordsOnly := FallbackDescription(
		describerFP([]string{"history"}, []string{"kant", "duty"}),
		describerFP([]string{"biology"}, []string{"duty", "kant"}),
	)
	if keywordsOnly != "Both documents mention kant and duty." {
		t.Fatalf("keyword fallback = %q", keywordsOnly)
	}

	// More than three shared topics list only the first three.
	manyTopics := FallbackDescription(
		describerFP([]string{"one", "two", "three", "four"}, nil),
		describerFP([]string{"one", "two", "three", "four"}, nil),
	)
	if manyTopics != "Both documents discuss one, two and three." {
		t.Fatalf("capped fallback = %q", manyTopics)
	}
}
