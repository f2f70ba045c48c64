// Package validation pre-checks a JSON Patch (RFC 6902, applied via
// evanphx/json-patch) against a blueprint before it's let anywhere near
// the compiler, catching malformed ops and runaway agent-node additions
// early rather than failing deep inside Finalize.
package validation

import "fmt"

// PatchValidator validates JSON Patch operations targeting a blueprint.
type PatchValidator struct {
	maxAgentNodesPerPatch int
}

// NewPatchValidator creates a new patch validator with the default
// per-patch agent-node ceiling.
func NewPatchValidator() *PatchValidator {
	return &PatchValidator{maxAgentNodesPerPatch: 5}
}

// ValidateOperations validates all patch operations in a single RFC 6902
// document before it's applied to a blueprint.
func (v *PatchValidator) ValidateOperations(operations []map[string]interface{}) error {
	agentCount := 0

	for i, op := range operations {
		if err := v.validateOperation(op, i); err != nil {
			return err
		}

		if op["op"] == "add" && op["path"] == "/nodes/-" {
			if value, ok := op["value"].(map[string]interface{}); ok {
				if nodeType, ok := value["type"].(string); ok && nodeType == "agent" {
					agentCount++
				}
			}
		}
	}

	if agentCount > v.maxAgentNodesPerPatch {
		return fmt.Errorf("patch validation failed: cannot add more than %d agent nodes per patch (attempted: %d)", v.maxAgentNodesPerPatch, agentCount)
	}

	return nil
}

func (v *PatchValidator) validateOperation(op map[string]interface{}, index int) error {
	opType, ok := op["op"].(string)
	if !ok {
		return fmt.Errorf("operation %d: missing or invalid 'op' field", index)
	}

	path, ok := op["path"].(string)
	if !ok {
		return fmt.Errorf("operation %d: missing or invalid 'path' field", index)
	}

	switch opType {
	case "add", "replace":
		if _, ok := op["value"]; !ok {
			return fmt.Errorf("operation %d: 'value' required for %s operation", index, opType)
		}
		if path == "/nodes/-" {
			if err := v.validateNodeValue(op["value"], index); err != nil {
				return err
			}
		}

	case "remove":
		return nil

	default:
		return fmt.Errorf("operation %d: unsupported operation type: %s", index, opType)
	}

	return nil
}

func (v *PatchValidator) validateNodeValue(value interface{}, opIndex int) error {
	nodeValue, ok := value.(map[string]interface{})
	if !ok {
		return fmt.Errorf("operation %d: node value must be an object, got %T", opIndex, value)
	}

	if _, ok := nodeValue["id"].(string); !ok {
		return fmt.Errorf("operation %d: node must have 'id' field (string)", opIndex)
	}

	if _, ok := nodeValue["type"].(string); !ok {
		return fmt.Errorf("operation %d: node must have 'type' field (string)", opIndex)
	}

	if config, exists := nodeValue["config"]; exists {
		if _, ok := config.(map[string]interface{}); !ok {
			return fmt.Errorf("operation %d: node 'config' must be an object, got %T (hint: use {\"key\": \"value\"}, not [\"key\"])", opIndex, config)
		}
	}

	return nil
}
