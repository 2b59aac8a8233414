package service

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ddudev/storefront-gateway/internal/conversation"
	"github.com/ddudev/storefront-gateway/internal/conversation/cache"
	"github.com/ddudev/storefront-gateway/internal/conversation/repository"
)

// ConversationService owns conversation persistence: a read-through
// recency cache in front of the durable repository. Concurrent restores
// for the same user collapse into one repository read.
type ConversationService struct {
	repo  repository.ConversationRepository
	cache cache.RecentCache
	sfg   singleflight.Group
}

func NewConversationService(repo repository.ConversationRepository, recent cache.RecentCache) *ConversationService {
	return &ConversationService{
		repo:  repo,
		cache: recent,
	}
}

// Recent returns the restore payload for a user: the conversation id
// and at most the RecentLimit most recent messages. A fresh user gets
// an empty snapshot, never an error.
func (s *ConversationService) Recent(ctx context.Context, userID string) (*conversation.Snapshot, error) {
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		snap, err := s.cache.Get(ctx, userID)
		if err == nil {
			return snap, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("conversation cache get error: %v", err)
		}

		conv, errGet := s.repo.Current(ctx, userID)
		if errGet != nil && errors.Is(errGet, repository.ErrConversationNotFound) {
			return &conversation.Snapshot{}, nil
		}
		if errGet != nil {
			return nil, errGet
		}

		snap = &conversation.Snapshot{
			ConversationID: conv.ID,
			Messages:       conversation.Truncate(conv.Messages, conversation.RecentLimit),
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if errSet := s.cache.Set(ctx, userID, snap); errSet != nil {
				log.Printf("conversation cache set error: %v", errSet)
			}
		}()

		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*conversation.Snapshot), nil
}

// Save persists the full conversation and refreshes the recency cache.
func (s *ConversationService) Save(ctx context.Context, conv *conversation.Conversation) error {
	if err := s.repo.Upsert(ctx, conv); err != nil {
		log.Printf("conversation upsert error: %v", err)
		return err
	}

	snap := &conversation.Snapshot{ConversationID: conv.ID, Messages: conv.Messages}
	if err := s.cache.Set(ctx, conv.UserID, snap); err != nil {
		log.Printf("conversation cache refresh error: %v", err)
	}
	return nil
}

// Clear drops the user's current conversation everywhere. A missing
// conversation is not an error: clearing twice is a no-op.
func (s *ConversationService) Clear(ctx context.Context, userID string) error {
	err := s.repo.Delete(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrConversationNotFound) {
		log.Printf("conversation delete error: %v", err)
		return err
	}

	if errCache := s.cache.Delete(ctx, userID); errCache != nil {
		log.Printf("conversation cache delete error: %v", errCache)
	}
	return nil
}
