package contract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Client provides session-scoped Redis operations for the contract board.
// All keys and channels are automatically namespaced with the session name.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb     *redis.Client
	session string
}

// NewClient creates a new board client for the specified session.
// The client automatically namespaces all keys and channels with the session name.
// Returns an error if session is empty.
func NewClient(redisOpts *redis.Options, session string) (*Client, error) {
	if session == "" {
		return nil, fmt.Errorf("session name cannot be empty")
	}

	return &Client{
		rdb:     redis.NewClient(redisOpts),
		session: session,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Session returns the session name this client is scoped to.
func (c *Client) Session() string {
	return c.session
}

// PutContract writes a published contract to Redis.
// Validates the contract before writing. Same-named writes overwrite: the
// conflict detector, not the store, decides whether the overwrite was safe.
func (c *Client) PutContract(ctx context.Context, ct *Contract) error {
	if err := ct.Validate(); err != nil {
		return fmt.Errorf("invalid contract: %w", err)
	}

	key := ContractKey(c.session, ct.Name)
	if err := c.rdb.HSet(ctx, key, ContractToHash(ct)).Err(); err != nil {
		return fmt.Errorf("failed to write contract to Redis: %w", err)
	}

	return nil
}

// GetContract retrieves a contract by name.
// Returns (nil, redis.Nil) if the contract doesn't exist.
// Use IsNotFound() to check for not-found errors.
func (c *Client) GetContract(ctx context.Context, name string) (*Contract, error) {
	key := ContractKey(c.session, name)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read contract from Redis: %w", err)
	}

	// HGetAll returns an empty map for non-existent keys
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	return HashToContract(hashData), nil
}

// AllContracts retrieves every published contract for the session as a
// name → definition map. Uses Redis SCAN to avoid blocking the server.
func (c *Client) AllContracts(ctx context.Context) (map[string]string, error) {
	prefix := fmt.Sprintf("concord:%s:contract:", c.session)
	iter := c.rdb.Scan(ctx, 0, prefix+"*", 0).Iterator()

	contracts := make(map[string]string)
	for iter.Next(ctx) {
		name := iter.Val()[len(prefix):]
		ct, err := c.GetContract(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to load contract %q: %w", name, err)
		}
		contracts[ct.Name] = ct.Definition
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan contracts: %w", err)
	}

	return contracts, nil
}

// PutCompletion writes a task completion to Redis.
func (c *Client) PutCompletion(ctx context.Context, comp *Completion) error {
	hash, err := CompletionToHash(comp)
	if err != nil {
		return fmt.Errorf("failed to serialize completion: %w", err)
	}

	key := CompletionKey(c.session, comp.TaskName)
	if err := c.rdb.HSet(ctx, key, hash).Err(); err != nil {
		return fmt.Errorf("failed to write completion to Redis: %w", err)
	}

	return nil
}

// GetCompletion retrieves a completion by task name.
// Returns (nil, redis.Nil) if the completion doesn't exist.
func (c *Client) GetCompletion(ctx context.Context, taskName string) (*Completion, error) {
	key := CompletionKey(c.session, taskName)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read completion from Redis: %w", err)
	}

	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	comp, err := HashToCompletion(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize completion: %w", err)
	}

	return comp, nil
}

// AppendAllocation appends a task allocation to an agent's ordered list.
// Allocations are immutable once created; the list preserves registration order.
func (c *Client) AppendAllocation(ctx context.Context, a *TaskAllocation) error {
	entry, err := AllocationToJSON(a)
	if err != nil {
		return err
	}

	key := TasksKey(c.session, a.AgentType)
	if err := c.rdb.RPush(ctx, key, entry).Err(); err != nil {
		return fmt.Errorf("failed to append allocation to Redis: %w", err)
	}

	return nil
}

// GetAllocations retrieves an agent's allocations in registration order.
// Returns an empty slice if the agent has none (not an error).
func (c *Client) GetAllocations(ctx context.Context, agentType string) ([]TaskAllocation, error) {
	key := TasksKey(c.session, agentType)

	entries, err := c.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read allocations from Redis: %w", err)
	}

	allocations := make([]TaskAllocation, 0, len(entries))
	for _, entry := range entries {
		a, err := JSONToAllocation(entry)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize allocation: %w", err)
		}
		allocations = append(allocations, *a)
	}

	return allocations, nil
}

// ClearAllocations deletes one agent's allocation list, or every agent's list
// when agentType is empty. Used for restarting a batch.
func (c *Client) ClearAllocations(ctx context.Context, agentType string) error {
	if agentType != "" {
		key := TasksKey(c.session, agentType)
		if err := c.rdb.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("failed to clear allocations: %w", err)
		}
		return nil
	}

	pattern := fmt.Sprintf("concord:%s:tasks:*", c.session)
	iter := c.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to clear allocations: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan allocation keys: %w", err)
	}

	return nil
}

// MergeEdge stores the accumulated relation types for a dependency edge.
// The edges hash maps edge keys ("source → target") to JSON relation arrays.
// Relation sets only grow within a session, so a full-field write is safe.
func (c *Client) MergeEdge(ctx context.Context, edgeKey string, relationTypes []string) error {
	relationsJSON, err := json.Marshal(relationTypes)
	if err != nil {
		return fmt.Errorf("failed to marshal relation types: %w", err)
	}

	key := EdgesKey(c.session)
	if err := c.rdb.HSet(ctx, key, edgeKey, string(relationsJSON)).Err(); err != nil {
		return fmt.Errorf("failed to write edge to Redis: %w", err)
	}

	return nil
}

// GetEdges retrieves all dependency edges as edgeKey → relation types.
// Returns an empty map if no edges exist (not an error).
func (c *Client) GetEdges(ctx context.Context) (map[string][]string, error) {
	key := EdgesKey(c.session)

	raw, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read edges from Redis: %w", err)
	}

	edges := make(map[string][]string, len(raw))
	for edgeKey, relationsJSON := range raw {
		var relations []string
		if err := json.Unmarshal([]byte(relationsJSON), &relations); err != nil {
			return nil, fmt.Errorf("failed to unmarshal relations for edge %q: %w", edgeKey, err)
		}
		edges[edgeKey] = relations
	}

	return edges, nil
}

// SaveConflicts replaces the session's stored conflict list wholesale and
// publishes the batch to concord:{session}:conflict_events. Detection passes
// are idempotent given identical input state, so replacement is safe.
func (c *Client) SaveConflicts(ctx context.Context, conflicts []Conflict) error {
	data, err := json.Marshal(conflicts)
	if err != nil {
		return fmt.Errorf("failed to marshal conflicts: %w", err)
	}

	key := ConflictsKey(c.session)
	if err := c.rdb.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write conflicts to Redis: %w", err)
	}

	channel := ConflictEventsChannel(c.session)
	if err := c.rdb.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish conflict event: %w", err)
	}

	return nil
}

// GetConflicts retrieves the session's current conflict list.
// Returns an empty slice if no pass has run yet (not an error).
func (c *Client) GetConflicts(ctx context.Context) ([]Conflict, error) {
	key := ConflictsKey(c.session)

	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Conflict{}, nil
		}
		return nil, fmt.Errorf("failed to read conflicts from Redis: %w", err)
	}

	var conflicts []Conflict
	if err := json.Unmarshal(data, &conflicts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conflicts: %w", err)
	}

	return conflicts, nil
}

// SaveLearned persists the learned routing usage table.
// The hash maps contract names to JSON {agent: count} objects.
func (c *Client) SaveLearned(ctx context.Context, learned map[string]map[string]int) error {
	key := LearnedKey(c.session)

	for name, usage := range learned {
		usageJSON, err := json.Marshal(usage)
		if err != nil {
			return fmt.Errorf("failed to marshal usage for %q: %w", name, err)
		}
		if err := c.rdb.HSet(ctx, key, name, string(usageJSON)).Err(); err != nil {
			return fmt.Errorf("failed to write learned usage to Redis: %w", err)
		}
	}

	return nil
}

// LoadLearned retrieves the learned routing usage table.
// Returns an empty map if nothing has been learned (not an error).
func (c *Client) LoadLearned(ctx context.Context) (map[string]map[string]int, error) {
	key := LearnedKey(c.session)

	raw, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read learned usage from Redis: %w", err)
	}

	learned := make(map[string]map[string]int, len(raw))
	for name, usageJSON := range raw {
		var usage map[string]int
		if err := json.Unmarshal([]byte(usageJSON), &usage); err != nil {
			return nil, fmt.Errorf("failed to unmarshal usage for %q: %w", name, err)
		}
		learned[name] = usage
	}

	return learned, nil
}

// ConflictSubscription represents an active Pub/Sub subscription to conflict
// batch events. Caller must call Close() when done to clean up resources.
type ConflictSubscription struct {
	events <-chan []Conflict
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of conflict batches.
// The channel is closed when the subscription closes or the context is cancelled.
func (s *ConflictSubscription) Events() <-chan []Conflict {
	return s.events
}

// Errors returns the channel of subscription errors.
// Errors include JSON unmarshaling failures and other non-fatal issues.
// The subscription continues after errors - messages are skipped.
func (s *ConflictSubscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *ConflictSubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeConflictEvents subscribes to conflict batch events for this session.
// Returns a ConflictSubscription that delivers full conflict lists.
// Caller must call subscription.Close() when done.
// Context cancellation also stops the subscription.
//
// Events are delivered on a buffered channel (size 10) to prevent blocking.
// If the subscriber is too slow, events may be dropped by Redis Pub/Sub
// (at-most-once delivery).
func (c *Client) SubscribeConflictEvents(ctx context.Context) (*ConflictSubscription, error) {
	channel := ConflictEventsChannel(c.session)
	pubsub := c.rdb.Subscribe(ctx, channel)

	eventsChan := make(chan []Conflict, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var conflicts []Conflict
				if err := json.Unmarshal([]byte(msg.Payload), &conflicts); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal conflict event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- conflicts:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &ConflictSubscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error
// (redis.Nil). Use this to check whether GetContract or GetCompletion
// returned "not found".
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
