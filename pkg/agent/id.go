package agent

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/HumanAssisted/jacs-go/pkg/jacserr"
)

// AgentID is a parsed "{jacsId}:{jacsVersion}" identifier.
type AgentID struct {
	ID      uuid.UUID
	Version uuid.UUID
}

// String renders the full "id:version" form.
func (a AgentID) String() string {
	return fmt.Sprintf("%s:%s", a.ID, a.Version)
}

// ParseAgentID validates an "{jacsId}:{jacsVersion}" string; both halves
// must be valid UUIDs.
func ParseAgentID(s string) (AgentID, error) {
	idPart, versionPart, ok := strings.Cut(s, ":")
	if !ok {
		return AgentID{}, jacserr.ValidationError(fmt.Sprintf("agent ID must be in format 'UUID:VERSION_UUID', got %q", s))
	}
	id, err := uuid.Parse(idPart)
	if err != nil {
		return AgentID{}, jacserr.ValidationError(fmt.Sprintf("invalid agent UUID %q: %v", idPart, err))
	}
	version, err := uuid.Parse(versionPart)
	if err != nil {
		return AgentID{}, jacserr.ValidationError(fmt.Sprintf("invalid version UUID %q: %v", versionPart, err))
	}
	return AgentID{ID: id, Version: version}, nil
}

// NormalizeAgentID extracts the bare id from either "id" or "id:version".
func NormalizeAgentID(s string) string {
	id, _, _ := strings.Cut(s, ":")
	return id
}
