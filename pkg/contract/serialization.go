package contract

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Redis stores data as string-to-string maps (hashes). Complex fields like
// maps and arrays are JSON-encoded into single hash fields. This keeps simple
// fields individually queryable while allowing structured payloads.

// ContractToHash converts a Contract to Redis hash format.
func ContractToHash(c *Contract) map[string]interface{} {
	return map[string]interface{}{
		"name":       c.Name,
		"definition": c.Definition,
		"owned_by":   c.OwnedBy,
	}
}

// HashToContract converts a Redis hash back to a Contract.
func HashToContract(hash map[string]string) *Contract {
	return &Contract{
		Name:       hash["name"],
		Definition: hash["definition"],
		OwnedBy:    hash["owned_by"],
	}
}

// CompletionToHash converts a Completion to Redis hash format.
// Map and array fields (contracts, exports, tests) are JSON-encoded.
func CompletionToHash(c *Completion) (map[string]interface{}, error) {
	contractsJSON, err := json.Marshal(c.Contracts)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal contracts: %w", err)
	}
	exportsJSON, err := json.Marshal(c.Exports)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal exports: %w", err)
	}
	testsJSON, err := json.Marshal(c.Tests)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tests: %w", err)
	}

	return map[string]interface{}{
		"task_name":     c.TaskName,
		"agent":         c.Agent,
		"contracts":     string(contractsJSON),
		"exports":       string(exportsJSON),
		"tests":         string(testsJSON),
		"created_at_ms": c.CreatedAtMs,
	}, nil
}

// HashToCompletion converts a Redis hash back to a Completion.
// JSON fields are decoded back to Go types.
func HashToCompletion(hash map[string]string) (*Completion, error) {
	var contracts map[string]string
	if raw := hash["contracts"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &contracts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal contracts: %w", err)
		}
	}
	if contracts == nil {
		contracts = map[string]string{}
	}

	var exports []string
	if raw := hash["exports"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &exports); err != nil {
			return nil, fmt.Errorf("failed to unmarshal exports: %w", err)
		}
	}
	if exports == nil {
		exports = []string{}
	}

	var tests []string
	if raw := hash["tests"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &tests); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tests: %w", err)
		}
	}
	if tests == nil {
		tests = []string{}
	}

	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)

	return &Completion{
		TaskName:    hash["task_name"],
		Agent:       hash["agent"],
		Contracts:   contracts,
		Exports:     exports,
		Tests:       tests,
		CreatedAtMs: createdAtMs,
	}, nil
}

// AllocationToJSON encodes a TaskAllocation as one list entry.
func AllocationToJSON(a *TaskAllocation) (string, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("failed to marshal allocation: %w", err)
	}
	return string(data), nil
}

// JSONToAllocation decodes one allocation list entry.
func JSONToAllocation(data string) (*TaskAllocation, error) {
	var a TaskAllocation
	if err := json.Unmarshal([]byte(data), &a); err != nil {
		return nil, fmt.Errorf("failed to unmarshal allocation: %w", err)
	}
	return &a, nil
}
