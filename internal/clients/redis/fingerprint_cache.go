package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/lectern-backend/internal/platform/logger"
	"github.com/yungbote/lectern-backend/internal/relevance"
	"github.com/yungbote/lectern-backend/internal/utils"
)

// FingerprintCache is the hot cache for document fingerprints, keyed by
// (documentID, contentHash). Misses and transport failures are signalled
// the same way: ok=false, so callers always fall through to the durable
// store. Writes are last-writer-wins; fingerprints are pure functions of
// document content.
type FingerprintCache interface {
	Get(ctx context.Context, documentID uuid.UUID, contentHash string) (relevance.Fingerprint, bool)
	Set(ctx context.Context, contentHash string, fp relevance.Fingerprint)
	Close() error
}

type fingerprintCache struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

func NewFingerprintCache(log *logger.Logger) (FingerprintCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ttlSeconds := utils.GetEnvAsInt("FINGERPRINT_CACHE_TTL_SECONDS", 86400, log)

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &fingerprintCache{
		log: log.With("service", "RedisFingerprintCache"),
		rdb: rdb,
		ttl: time.Duration(ttlSeconds) * time.Second,
	}, nil
}

func (c *fingerprintCache) Get(ctx context.Context, documentID uuid.UUID, contentHash string) (relevance.Fingerprint, bool) {
	if c == nil || c.rdb == nil {
		return relevance.Fingerprint{}, false
	}
	raw, err := c.rdb.Get(ctx, cacheKey(documentID, contentHash)).Bytes()
	if err != nil {
		if err != goredis.Nil {
			c.log.Warn("Fingerprint cache read failed", "document_id", documentID, "error", err)
		}
		return relevance.Fingerprint{}, false
	}
	var fp relevance.Fingerprint
	if err := json.Unmarshal(raw, &fp); err != nil {
		c.log.Warn("Fingerprint cache entry corrupt, ignoring", "document_id", documentID, "error", err)
		return relevance.Fingerprint{}, false
	}
	return fp.Normalize(), true
}

func (c *fingerprintCache) Set(ctx context.Context, contentHash string, fp relevance.Fingerprint) {
	if c == nil || c.rdb == nil {
		return
	}
	raw, err := json.Marshal(fp.Normalize())
	if err != nil {
		c.log.Warn("Fingerprint cache marshal failed", "document_id", fp.DocumentID, "error", err)
		return
	}
	if err := c.rdb.Set(ctx, cacheKey(fp.DocumentID, contentHash), raw, c.ttl).Err(); err != nil {
		c.log.Warn("Fingerprint cache write failed", "document_id", fp.DocumentID, "error", err)
	}
}

func (c *fingerprintCache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

func cacheKey(documentID uuid.UUID, contentHash string) string {
	return "fp:" + documentID.String() + ":" + contentHash
}
