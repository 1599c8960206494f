// Package agreement drives the multi-party signing state machine embedded
// in a target document.
//
// An agreement is born Pending, moves to Partial as listed agents sign,
// and reaches Satisfied when the quorum-th distinct agent signs before the
// deadline. A passed deadline before quorum is Expired. Signing by an
// unlisted agent or signing twice leaves the document unchanged and
// returns a tagged error.
//
// Each appended signature covers everything that existed at the moment it
// was appended: the stable document fields plus the prior signatures.
// Version-volatile fields (jacsVersion, jacsVersionDate,
// jacsPreviousVersion) are excluded from the member-signature hash input,
// since every append bumps them; the recorded fields list makes the exact
// input reproducible at check time.
package agreement

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/HumanAssisted/jacs-go/pkg/canonical"
	"github.com/HumanAssisted/jacs-go/pkg/document"
	"github.com/HumanAssisted/jacs-go/pkg/jacserr"
)

// State is the aggregate agreement state.
type State string

const (
	StatePending   State = "Pending"
	StatePartial   State = "Partial"
	StateSatisfied State = "Satisfied"
	StateExpired   State = "Expired"
)

// Options configure agreement creation.
type Options struct {
	// Quorum is the minimum number of signatures required. Zero means all
	// listed agents.
	Quorum int
	// Deadline is an absolute RFC 3339 cutoff; empty means none.
	Deadline string
	// Field is the agreement slot name; defaults to jacsAgreement.
	Field string
}

// Status reports the per-agent and aggregate outcome of CheckAgreement.
type Status struct {
	State       State             `json:"state"`
	Quorum      int               `json:"quorum"`
	SignedCount int               `json:"signed_count"`
	Agents      map[string]string `json:"agents"` // agentID -> "signed" | "pending"
}

// memberOmit is the omit-list for member-signature hash inputs.
func memberOmit() []string {
	return []string{
		document.SignatureField,
		document.RegistrationField,
		document.FieldSha256,
		document.FieldVersion,
		document.FieldVersionDate,
		document.FieldPreviousVersion,
	}
}

// Create initialises an agreement on the target document and returns the
// resulting new version. agentIDs are deduplicated preserving order.
func Create(e *document.Engine, doc document.Document, agentIDs []string, question, context string, opts *Options) (document.Document, error) {
	if opts == nil {
		opts = &Options{}
	}
	field := opts.Field
	if field == "" {
		field = document.AgreementField
	}
	if _, ok := doc[field]; ok {
		return nil, jacserr.ValidationError(fmt.Sprintf("document already carries an agreement at %q", field))
	}

	ids := dedupe(agentIDs)
	if len(ids) == 0 {
		return nil, jacserr.ValidationError("an agreement needs at least one agent")
	}
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return nil, jacserr.ValidationError(fmt.Sprintf("invalid agent ID %q: %v", id, err))
		}
	}
	quorum := opts.Quorum
	if quorum == 0 {
		quorum = len(ids)
	}
	if quorum < 1 || quorum > len(ids) {
		return nil, jacserr.ValidationError(fmt.Sprintf("quorum %d out of range 1..%d", quorum, len(ids)))
	}
	if opts.Deadline != "" {
		if _, err := time.Parse(time.RFC3339, opts.Deadline); err != nil {
			return nil, jacserr.ValidationError("invalid deadline: " + err.Error())
		}
	}

	next, err := doc.Clone()
	if err != nil {
		return nil, err
	}
	record := map[string]any{
		"agentIDs":   toAnySlice(ids),
		"signatures": []any{},
	}
	if question != "" {
		record["question"] = question
	}
	if context != "" {
		record["context"] = context
	}
	record["quorum"] = quorum
	if opts.Deadline != "" {
		record["deadline"] = opts.Deadline
	}
	next[field] = record

	bumpVersion(next, doc)
	if err := e.SignField(next, document.SignatureField); err != nil {
		return nil, err
	}
	if err := e.Save(next); err != nil {
		return nil, err
	}
	return next, nil
}

// Sign appends the engine identity's signature to the agreement and
// returns the resulting new version. The input document is not mutated on
// any failure path.
func Sign(e *document.Engine, doc document.Document, field string) (document.Document, error) {
	if field == "" {
		field = document.AgreementField
	}
	if e.Identity == nil {
		return nil, jacserr.AgentNotLoaded()
	}
	agr, err := parseRecord(doc, field)
	if err != nil {
		return nil, err
	}
	signerID := e.Identity.AgentID
	if !contains(agr.agentIDs, signerID) {
		return nil, jacserr.Unauthorized(signerID)
	}
	for _, sig := range agr.signatures {
		if sig.AgentID == signerID {
			return nil, jacserr.AlreadySigned(signerID)
		}
	}
	if agr.deadline != nil && time.Now().UTC().After(*agr.deadline) {
		return nil, jacserr.Expired("deadline " + agr.deadline.Format(time.RFC3339) + " has passed")
	}

	next, err := doc.Clone()
	if err != nil {
		return nil, err
	}
	// The new signature covers the document with the signatures array as
	// it stands, so the N-th signature covers the first N-1.
	sig, err := e.MakeDetachedSignature(next, memberOmit())
	if err != nil {
		return nil, err
	}
	if err := appendSignature(next, field, sig); err != nil {
		return nil, err
	}
	bumpVersion(next, doc)
	if err := e.SignField(next, document.SignatureField); err != nil {
		return nil, err
	}
	if err := e.Save(next); err != nil {
		return nil, err
	}
	return next, nil
}

// Check verifies the outer document plus every member signature by
// replaying the append sequence, and reports per-agent status with the
// aggregate state.
func Check(e *document.Engine, doc document.Document, field string) (*Status, error) {
	if field == "" {
		field = document.AgreementField
	}
	if outer := e.Verify(doc); !outer.Valid {
		return nil, outer.Err()
	}
	agr, err := parseRecord(doc, field)
	if err != nil {
		return nil, err
	}

	agents := make(map[string]string, len(agr.agentIDs))
	for _, id := range agr.agentIDs {
		agents[id] = "pending"
	}

	signed := 0
	for i, sig := range agr.signatures {
		if _, listed := agents[sig.AgentID]; !listed {
			return nil, jacserr.Unauthorized(sig.AgentID)
		}
		if agr.deadline != nil {
			signedAt, err := time.Parse(time.RFC3339, sig.Date)
			if err != nil || signedAt.After(*agr.deadline) {
				return nil, jacserr.Expired(fmt.Sprintf("signature by %s dated after the deadline", sig.AgentID))
			}
		}
		replay, err := truncated(doc, field, i)
		if err != nil {
			return nil, err
		}
		result := e.VerifyDetachedSignature(replay, sig)
		if !result.Valid {
			if result.Status == document.StatusUnverified {
				return nil, jacserr.SignerUnknown(sig.AgentID)
			}
			return nil, jacserr.SignatureInvalid("valid agreement signature by "+sig.AgentID, result.Reason)
		}
		if agents[sig.AgentID] != "signed" {
			agents[sig.AgentID] = "signed"
			signed++
		}
	}

	status := &Status{
		Quorum:      agr.quorum,
		SignedCount: signed,
		Agents:      agents,
	}
	switch {
	case signed >= agr.quorum:
		status.State = StateSatisfied
	case agr.deadline != nil && time.Now().UTC().After(*agr.deadline):
		status.State = StateExpired
	case signed > 0:
		status.State = StatePartial
	default:
		status.State = StatePending
	}
	return status, nil
}

// record is the parsed agreement field.
type record struct {
	agentIDs   []string
	signatures []*document.Signature
	quorum     int
	deadline   *time.Time
}

func parseRecord(doc document.Document, field string) (*record, error) {
	raw, ok := doc[field]
	if !ok {
		return nil, jacserr.DocumentMalformed(field, "document carries no agreement")
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, jacserr.DocumentMalformed(field, "agreement is not an object")
	}
	ids, ok := m["agentIDs"].([]any)
	if !ok || len(ids) == 0 {
		return nil, jacserr.DocumentMalformed(field+".agentIDs", "missing or empty")
	}
	rec := &record{}
	for _, v := range ids {
		id, ok := v.(string)
		if !ok {
			return nil, jacserr.DocumentMalformed(field+".agentIDs", "non-string agent ID")
		}
		rec.agentIDs = append(rec.agentIDs, id)
	}
	if sigs, ok := m["signatures"].([]any); ok {
		for i, v := range sigs {
			sig, err := sigFromAny(fmt.Sprintf("%s.signatures[%d]", field, i), v)
			if err != nil {
				return nil, err
			}
			rec.signatures = append(rec.signatures, sig)
		}
	}
	rec.quorum = len(rec.agentIDs)
	if q, ok := numberAsInt(m["quorum"]); ok {
		rec.quorum = q
	}
	if rec.quorum < 1 || rec.quorum > len(rec.agentIDs) {
		return nil, jacserr.DocumentMalformed(field+".quorum", fmt.Sprintf("quorum %d out of range 1..%d", rec.quorum, len(rec.agentIDs)))
	}
	if d, ok := m["deadline"].(string); ok && d != "" {
		t, err := time.Parse(time.RFC3339, d)
		if err != nil {
			return nil, jacserr.DocumentMalformed(field+".deadline", "not RFC 3339: "+d)
		}
		t = t.UTC()
		rec.deadline = &t
	}
	return rec, nil
}

func sigFromAny(scope string, v any) (*document.Signature, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, jacserr.DocumentMalformed(scope, "signature is not an object")
	}
	wrapper := document.Document{"sig": m}
	return wrapper.SignatureAt("sig")
}

// truncated clones doc with the agreement's signatures cut down to the
// first n entries, reconstructing what signer n hashed.
func truncated(doc document.Document, field string, n int) (document.Document, error) {
	clone, err := doc.Clone()
	if err != nil {
		return nil, err
	}
	m, ok := clone[field].(map[string]any)
	if !ok {
		return nil, jacserr.DocumentMalformed(field, "agreement is not an object")
	}
	sigs, _ := m["signatures"].([]any)
	if n > len(sigs) {
		n = len(sigs)
	}
	m["signatures"] = sigs[:n]
	return clone, nil
}

func appendSignature(doc document.Document, field string, sig *document.Signature) error {
	m, ok := doc[field].(map[string]any)
	if !ok {
		return jacserr.DocumentMalformed(field, "agreement is not an object")
	}
	sigs, _ := m["signatures"].([]any)
	sigValue, err := roundTrip(sig)
	if err != nil {
		return err
	}
	m["signatures"] = append(sigs, sigValue)
	return nil
}

// roundTrip renders a Signature through JSON so it matches the decoded
// shape of stored documents.
func roundTrip(sig *document.Signature) (any, error) {
	raw, err := canonical.Canonicalize(sig)
	if err != nil {
		return nil, err
	}
	return canonical.Decode(raw)
}

func bumpVersion(next, old document.Document) {
	next[document.FieldPreviousVersion] = old.Version()
	next[document.FieldVersion] = uuid.NewString()
	next[document.FieldVersionDate] = time.Now().UTC().Format(time.RFC3339)
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func toAnySlice(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

func numberAsInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case interface{ Int64() (int64, error) }:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	}
	return 0, false
}
