package repositories

import (
	"context"

	"messaging-service/internal/models"
)

// maxThreadDepth caps how many reply levels a thread is expanded through. A
// pathological chain of nested replies fails with ErrThreadTooDeep instead of
// consuming unbounded memory.
const maxThreadDepth = 64

// ThreadBuilder assembles reply trees from the flat message store. It works
// level by level with one batched query per level, never by following object
// pointers, and never recurses.
type ThreadBuilder struct {
	messages MessageRepository
}

// NewThreadBuilder constructs a ThreadBuilder.
func NewThreadBuilder(messages MessageRepository) *ThreadBuilder {
	return &ThreadBuilder{messages: messages}
}

// BuildThread returns the message and its recursively materialized replies.
// Replies under every node come back ordered by creation time.
func (b *ThreadBuilder) BuildThread(ctx context.Context, messageID int64) (*models.Thread, error) {
	root, err := b.messages.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}

	threads, err := b.expand(ctx, []models.Message{root})
	if err != nil {
		return nil, err
	}
	return threads[0], nil
}

// Conversation returns every top-level message exchanged between two
// accounts, each expanded into its full thread.
func (b *ThreadBuilder) Conversation(ctx context.Context, userA, userB int64) ([]*models.Thread, error) {
	roots, err := b.messages.ListTopLevelBetween(ctx, userA, userB)
	if err != nil {
		return nil, err
	}
	if len(roots) == 0 {
		return []*models.Thread{}, nil
	}
	return b.expand(ctx, roots)
}

func (b *ThreadBuilder) expand(ctx context.Context, roots []models.Message) ([]*models.Thread, error) {
	threads := make([]*models.Thread, 0, len(roots))
	byID := make(map[int64]*models.Thread, len(roots))
	frontier := make([]int64, 0, len(roots))

	for _, m := range roots {
		node := &models.Thread{Message: m, Replies: []*models.Thread{}}
		threads = append(threads, node)
		byID[m.ID] = node
		frontier = append(frontier, m.ID)
	}

	for depth := 0; len(frontier) > 0; depth++ {
		if depth >= maxThreadDepth {
			return nil, ErrThreadTooDeep
		}

		replies, err := b.messages.ListReplies(ctx, frontier)
		if err != nil {
			return nil, err
		}

		next := make([]int64, 0, len(replies))
		for _, reply := range replies {
			if _, seen := byID[reply.ID]; seen {
				continue
			}
			parent, ok := byID[*reply.ParentID]
			if !ok {
				continue
			}
			node := &models.Thread{Message: reply, Replies: []*models.Thread{}}
			byID[reply.ID] = node
			parent.Replies = append(parent.Replies, node)
			next = append(next, reply.ID)
		}
		frontier = next
	}

	return threads, nil
}
