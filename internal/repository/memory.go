package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Memory is an in-process message ID dedup store bounded to the most recent
// size IDs. It only catches redeliveries that reach the same instance.
type Memory struct {
	cache *lru.Cache[string, struct{}]
}

func NewMemory(size int) (*Memory, error) {
	if size <= 0 {
		return nil, errors.New("repository: memory size must be positive")
	}
	cache, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("repository: create lru: %w", err)
	}
	return &Memory{cache: cache}, nil
}

// MarkProcessed has the same contract as Client.MarkProcessed.
func (m *Memory) MarkProcessed(_ context.Context, messageID string) (bool, error) {
	if strings.TrimSpace(messageID) == "" {
		return false, errors.New("repository: MarkProcessed: message id is required")
	}
	found, _ := m.cache.ContainsOrAdd(messageID, struct{}{})
	return !found, nil
}
