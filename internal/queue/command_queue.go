package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jcourtner/wayfarer/pkg/command"
)

// commandsKey is the global travel-command queue written by the Discord
// gateway process and consumed by travel workers.
const commandsKey = "travel-commands"

// CommandQueue is the Redis-backed queue of travel and party commands.
type CommandQueue struct {
	client *Client
}

// NewCommandQueue creates a command queue over a client.
func NewCommandQueue(client *Client) *CommandQueue {
	return &CommandQueue{client: client}
}

// Enqueue appends a command to the global queue.
func (q *CommandQueue) Enqueue(ctx context.Context, cmd *command.Command) error {
	data, err := cmd.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize command: %w", err)
	}
	if err := q.client.rdb.RPush(ctx, commandsKey, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue command: %w", err)
	}
	return nil
}

// Dequeue removes and returns the next command. Returns nil when the
// queue is empty.
func (q *CommandQueue) Dequeue(ctx context.Context) (*command.Command, error) {
	result, err := q.client.rdb.LPop(ctx, commandsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue command: %w", err)
	}
	return command.FromJSON([]byte(result))
}

// BlockingDequeue waits up to timeout for the next command. Returns nil
// on timeout so workers can check for shutdown between waits.
func (q *CommandQueue) BlockingDequeue(ctx context.Context, timeout time.Duration) (*command.Command, error) {
	result, err := q.client.rdb.BLPop(ctx, timeout, commandsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue command: %w", err)
	}
	// BLPop returns [key, value].
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BLPop result: %v", result)
	}
	return command.FromJSON([]byte(result[1]))
}

// Depth returns the number of queued commands.
func (q *CommandQueue) Depth(ctx context.Context) (int, error) {
	count, err := q.client.rdb.LLen(ctx, commandsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue depth: %w", err)
	}
	return int(count), nil
}
