package contract

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by session name to enable
// multiple Concord sessions to safely coexist on a single Redis server.
//
// Key pattern: concord:{session}:{entity}:{id}
// Channel pattern: concord:{session}:{event_type}_events

// ContractKey returns the Redis key for a published contract.
// Pattern: concord:{session}:contract:{name}
func ContractKey(session, name string) string {
	return fmt.Sprintf("concord:%s:contract:%s", session, name)
}

// CompletionKey returns the Redis key for a task completion.
// Pattern: concord:{session}:completion:{task_name}
func CompletionKey(session, taskName string) string {
	return fmt.Sprintf("concord:%s:completion:%s", session, taskName)
}

// TasksKey returns the Redis key for an agent's ordered allocation list.
// Pattern: concord:{session}:tasks:{agent_type}
func TasksKey(session, agentType string) string {
	return fmt.Sprintf("concord:%s:tasks:%s", session, agentType)
}

// EdgesKey returns the Redis key for the dependency edge hash.
// The hash maps edge keys ("source → target") to JSON relation-type arrays.
// Pattern: concord:{session}:edges
func EdgesKey(session string) string {
	return fmt.Sprintf("concord:%s:edges", session)
}

// ConflictsKey returns the Redis key holding the current conflict list.
// The list is replaced wholesale on each detection pass.
// Pattern: concord:{session}:conflicts
func ConflictsKey(session string) string {
	return fmt.Sprintf("concord:%s:conflicts", session)
}

// LearnedKey returns the Redis key for the learned routing usage hash.
// The hash maps contract names to JSON {agent: count} objects.
// Pattern: concord:{session}:learned
func LearnedKey(session string) string {
	return fmt.Sprintf("concord:%s:learned", session)
}

// ConflictEventsChannel returns the Pub/Sub channel for conflict batches.
// Each detection pass publishes its full conflict list as one message.
// Pattern: concord:{session}:conflict_events
func ConflictEventsChannel(session string) string {
	return fmt.Sprintf("concord:%s:conflict_events", session)
}
