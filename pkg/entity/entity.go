// Package entity builds and mutates the bodies of the standard JACS
// entity kinds. The builders produce plain maps ready for the document
// engine; schema validation still runs at create/sign time.
package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/HumanAssisted/jacs-go/pkg/jacserr"
)

var (
	allowedAgentTypes = []string{"human", "human-org", "hybrid", "ai"}
	allowedItemTypes  = []string{"goal", "task"}
	allowedStatuses   = []string{"pending", "in-progress", "completed", "abandoned"}
	allowedPriorities = []string{"low", "medium", "high", "critical"}
)

// NewAgentBody builds a minimal agent body.
func NewAgentBody(agentType string, services []map[string]any, contacts []map[string]any) (map[string]any, error) {
	if !oneOf(agentType, allowedAgentTypes) {
		return nil, jacserr.ValidationError(fmt.Sprintf("invalid agent type %q, must be one of %v", agentType, allowedAgentTypes))
	}
	body := map[string]any{
		"jacsAgentType": agentType,
	}
	if len(services) > 0 {
		body["jacsServices"] = toAny(services)
	}
	if len(contacts) > 0 {
		body["jacsContacts"] = toAny(contacts)
	}
	return body, nil
}

// NewServiceBody builds a service record for an agent's jacsServices.
func NewServiceBody(serviceID, name, description string) (map[string]any, error) {
	if serviceID == "" || name == "" {
		return nil, jacserr.ValidationError("service id and name are required")
	}
	body := map[string]any{
		"serviceId":   serviceID,
		"serviceName": name,
	}
	if description != "" {
		body["serviceDescription"] = description
	}
	return body, nil
}

// NewTaskBody builds a minimal task.
func NewTaskBody(name, customer, state string) (map[string]any, error) {
	if name == "" {
		return nil, jacserr.ValidationError("task name is required")
	}
	body := map[string]any{
		"name":                   name,
		"jacsTaskActionsDesired": []any{},
		"jacsTaskMessages":       []any{},
	}
	if customer != "" {
		body["jacsTaskCustomer"] = customer
	}
	if state != "" {
		body["jacsTaskState"] = state
	}
	return body, nil
}

// AddTaskAction appends a desired action to a task body.
func AddTaskAction(task map[string]any, action map[string]any) error {
	return appendTo(task, "jacsTaskActionsDesired", action)
}

// AddTaskMessage appends a message reference to a task body.
func AddTaskMessage(task map[string]any, message map[string]any) error {
	return appendTo(task, "jacsTaskMessages", message)
}

// NewTodoListBody builds an empty todo list.
func NewTodoListBody(name string) (map[string]any, error) {
	if name == "" {
		return nil, jacserr.ValidationError("todo list name cannot be empty")
	}
	return map[string]any{
		"jacsTodoName":  name,
		"jacsTodoItems": []any{},
	}, nil
}

// AddTodoItem appends a new item to a todo list and returns its generated
// itemId. priority may be empty.
func AddTodoItem(list map[string]any, itemType, description, priority string) (string, error) {
	if !oneOf(itemType, allowedItemTypes) {
		return "", jacserr.ValidationError(fmt.Sprintf("invalid item type %q, must be one of %v", itemType, allowedItemTypes))
	}
	if description == "" {
		return "", jacserr.ValidationError("item description cannot be empty")
	}
	if priority != "" && !oneOf(priority, allowedPriorities) {
		return "", jacserr.ValidationError(fmt.Sprintf("invalid priority %q, must be one of %v", priority, allowedPriorities))
	}
	itemID := uuid.NewString()
	item := map[string]any{
		"itemId":      itemID,
		"itemType":    itemType,
		"description": description,
		"status":      "pending",
	}
	if priority != "" {
		item["priority"] = priority
	}
	if err := appendTo(list, "jacsTodoItems", item); err != nil {
		return "", err
	}
	return itemID, nil
}

// UpdateTodoItemStatus sets an item's status.
func UpdateTodoItemStatus(list map[string]any, itemID, status string) error {
	if !oneOf(status, allowedStatuses) {
		return jacserr.ValidationError(fmt.Sprintf("invalid status %q, must be one of %v", status, allowedStatuses))
	}
	item, err := findItem(list, itemID)
	if err != nil {
		return err
	}
	item["status"] = status
	return nil
}

// MarkTodoItemComplete marks an item completed and stamps completedDate.
func MarkTodoItemComplete(list map[string]any, itemID string) error {
	item, err := findItem(list, itemID)
	if err != nil {
		return err
	}
	item["status"] = "completed"
	item["completedDate"] = time.Now().UTC().Format(time.RFC3339)
	return nil
}

// AddChildToItem links a child item to a parent item.
func AddChildToItem(list map[string]any, parentItemID, childItemID string) error {
	if _, err := findItem(list, childItemID); err != nil {
		return err
	}
	parent, err := findItem(list, parentItemID)
	if err != nil {
		return err
	}
	children, _ := parent["childItemIds"].([]any)
	parent["childItemIds"] = append(children, childItemID)
	return nil
}

// SetItemCommitmentRef links an item to a commitment document by id.
func SetItemCommitmentRef(list map[string]any, itemID, commitmentID string) error {
	item, err := findItem(list, itemID)
	if err != nil {
		return err
	}
	item["relatedCommitmentId"] = commitmentID
	return nil
}

// NewCommitmentBody builds a commitment from one agent to another.
func NewCommitmentBody(description, fromAgent, toAgent string) (map[string]any, error) {
	if description == "" || fromAgent == "" {
		return nil, jacserr.ValidationError("commitment description and fromAgent are required")
	}
	body := map[string]any{
		"description": description,
		"fromAgent":   fromAgent,
		"fulfilled":   false,
	}
	if toAgent != "" {
		body["toAgent"] = toAgent
	}
	return body, nil
}

// NewAgentStateBody builds an agent state snapshot.
func NewAgentStateBody(agentID, status, detail string) (map[string]any, error) {
	switch status {
	case "idle", "busy", "offline", "error":
	default:
		return nil, jacserr.ValidationError(fmt.Sprintf("invalid agent status %q", status))
	}
	body := map[string]any{
		"agentId":    agentID,
		"status":     status,
		"observedAt": time.Now().UTC().Format(time.RFC3339),
	}
	if detail != "" {
		body["statusDetail"] = detail
	}
	return body, nil
}

func appendTo(body map[string]any, key string, value any) error {
	items, ok := body[key].([]any)
	if !ok {
		return jacserr.DocumentMalformed(key, "missing or not an array")
	}
	body[key] = append(items, value)
	return nil
}

func findItem(list map[string]any, itemID string) (map[string]any, error) {
	items, ok := list["jacsTodoItems"].([]any)
	if !ok {
		return nil, jacserr.DocumentMalformed("jacsTodoItems", "missing or not an array")
	}
	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if id, _ := item["itemId"].(string); id == itemID {
			return item, nil
		}
	}
	return nil, jacserr.ValidationError("no todo item with id " + itemID)
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func toAny[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
