package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dlcampaign/dlc-api/internal/models"
)

// BankCache keeps parsed question banks in Redis, keyed by exam and file
// reference so a re-upload naturally invalidates old entries.
type BankCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewBankCache creates a question bank cache. A nil client disables caching.
func NewBankCache(client *redis.Client, ttl time.Duration) *BankCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &BankCache{client: client, ttl: ttl}
}

// Get returns the cached bank, or (nil, false) on miss or cache trouble.
func (c *BankCache) Get(ctx context.Context, examID, csvPath string) ([]models.Question, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, c.key(examID, csvPath)).Bytes()
	if err != nil {
		return nil, false
	}
	var questions []models.Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, false
	}
	return questions, true
}

// Set stores a parsed bank. Failures are swallowed; the cache is advisory.
func (c *BankCache) Set(ctx context.Context, examID, csvPath string, questions []models.Question) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(questions)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, c.key(examID, csvPath), raw, c.ttl).Err()
}

// Invalidate drops the cached bank for a specific file version.
func (c *BankCache) Invalidate(ctx context.Context, examID, csvPath string) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, c.key(examID, csvPath)).Err()
}

func (c *BankCache) key(examID, csvPath string) string {
	sum := sha256.Sum256([]byte(csvPath))
	return fmt.Sprintf("bank:%s:%s", examID, hex.EncodeToString(sum[:8]))
}
