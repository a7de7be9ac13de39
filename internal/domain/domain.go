package domain

import (
	"github.com/yungbote/lectern-backend/internal/domain/relationships"
)

const (
	RelationshipStatusPending   = relationships.StatusPending
	RelationshipStatusComputing = relationships.StatusComputing
	RelationshipStatusReady     = relationships.StatusReady
	RelationshipStatusFailed    = relationships.StatusFailed
)

type DocumentRelationship = relationships.DocumentRelationship
type DocumentFingerprint = relationships.DocumentFingerprint

var (
	NormalizePair = relationships.NormalizePair
	PairKeyFor    = relationships.PairKeyFor
)
