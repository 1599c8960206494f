package agreement

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/HumanAssisted/jacs-go/pkg/crypt"
	"github.com/HumanAssisted/jacs-go/pkg/document"
	"github.com/HumanAssisted/jacs-go/pkg/jacserr"
	"github.com/HumanAssisted/jacs-go/pkg/schema"
	"github.com/HumanAssisted/jacs-go/pkg/trust"
)

// newParty builds an engine with its own identity; every party shares one
// trust store so member signatures resolve during checks.
func newParty(t *testing.T, shared trust.Registry) *document.Engine {
	t.Helper()
	registry := crypt.NewRegistry()
	schemas, err := schema.NewValidator()
	require.NoError(t, err)
	signer, err := registry.Get(crypt.AlgEd25519)
	require.NoError(t, err)
	priv, pub, err := signer.Generate()
	require.NoError(t, err)

	identity := &document.Identity{
		AgentID:       uuid.NewString(),
		AgentVersion:  uuid.NewString(),
		Algorithm:     crypt.AlgEd25519,
		PrivateKey:    crypt.NewPrivateKey(priv),
		PublicKey:     pub,
		PublicKeyHash: crypt.PublicKeyHash(pub),
	}
	require.NoError(t, shared.PutKey(identity.PublicKeyHash, pub, crypt.AlgEd25519))
	return document.NewEngine(schemas, shared, registry, identity)
}

func targetDocument(t *testing.T, e *document.Engine) document.Document {
	t.Helper()
	doc, err := e.Create(map[string]any{"content": map[string]any{"proposal": "ship it"}}, "message", nil)
	require.NoError(t, err)
	return doc
}

func TestTwoPartyAgreementSatisfied(t *testing.T) {
	shared := trust.NewMemoryStore()
	a := newParty(t, shared)
	b := newParty(t, shared)

	doc := targetDocument(t, a)
	withAgr, err := Create(a, doc, []string{a.Identity.AgentID, b.Identity.AgentID}, "Do you agree?", "", nil)
	require.NoError(t, err)
	require.NotEqual(t, doc.Version(), withAgr.Version())

	status, err := Check(a, withAgr, "")
	require.NoError(t, err)
	require.Equal(t, StatePending, status.State)

	signedByA, err := Sign(a, withAgr, "")
	require.NoError(t, err)
	status, err = Check(a, signedByA, "")
	require.NoError(t, err)
	require.Equal(t, StatePartial, status.State)
	require.Equal(t, "signed", status.Agents[a.Identity.AgentID])
	require.Equal(t, "pending", status.Agents[b.Identity.AgentID])

	signedByBoth, err := Sign(b, signedByA, "")
	require.NoError(t, err)
	status, err = Check(a, signedByBoth, "")
	require.NoError(t, err)
	require.Equal(t, StateSatisfied, status.State)
	require.Equal(t, 2, status.SignedCount)
	require.Equal(t, "signed", status.Agents[b.Identity.AgentID])

	// The other party reaches the same verdict.
	status, err = Check(b, signedByBoth, "")
	require.NoError(t, err)
	require.Equal(t, StateSatisfied, status.State)
}

func TestQuorumReachedEarly(t *testing.T) {
	shared := trust.NewMemoryStore()
	a := newParty(t, shared)
	b := newParty(t, shared)
	c := newParty(t, shared)
	ids := []string{a.Identity.AgentID, b.Identity.AgentID, c.Identity.AgentID}

	doc := targetDocument(t, a)
	withAgr, err := Create(a, doc, ids, "quorum of two?", "", &Options{Quorum: 2})
	require.NoError(t, err)

	s1, err := Sign(a, withAgr, "")
	require.NoError(t, err)
	s2, err := Sign(b, s1, "")
	require.NoError(t, err)

	status, err := Check(c, s2, "")
	require.NoError(t, err)
	require.Equal(t, StateSatisfied, status.State)

	// Signatures beyond quorum are accepted and do not regress state.
	s3, err := Sign(c, s2, "")
	require.NoError(t, err)
	status, err = Check(a, s3, "")
	require.NoError(t, err)
	require.Equal(t, StateSatisfied, status.State)
	require.Equal(t, 3, status.SignedCount)
}

func TestQuorumBounds(t *testing.T) {
	shared := trust.NewMemoryStore()
	a := newParty(t, shared)
	doc := targetDocument(t, a)

	_, err := Create(a, doc, []string{a.Identity.AgentID}, "", "", &Options{Quorum: 2})
	require.Error(t, err)
	_, err = Create(a, doc, []string{a.Identity.AgentID}, "", "", &Options{Quorum: -1})
	require.Error(t, err)
}

func TestAgentIDsDeduplicated(t *testing.T) {
	shared := trust.NewMemoryStore()
	a := newParty(t, shared)
	b := newParty(t, shared)
	doc := targetDocument(t, a)

	withAgr, err := Create(a, doc, []string{
		a.Identity.AgentID, b.Identity.AgentID, a.Identity.AgentID,
	}, "", "", nil)
	require.NoError(t, err)

	status, err := Check(a, withAgr, "")
	require.NoError(t, err)
	require.Len(t, status.Agents, 2)
	require.Equal(t, 2, status.Quorum)
}

func TestSignByUnlistedAgent(t *testing.T) {
	shared := trust.NewMemoryStore()
	a := newParty(t, shared)
	b := newParty(t, shared)
	outsider := newParty(t, shared)

	doc := targetDocument(t, a)
	withAgr, err := Create(a, doc, []string{a.Identity.AgentID, b.Identity.AgentID}, "", "", nil)
	require.NoError(t, err)

	_, err = Sign(outsider, withAgr, "")
	require.Error(t, err)
	require.Equal(t, jacserr.KindUnauthorized, jacserr.KindOf(err))
}

func TestDuplicateSigner(t *testing.T) {
	shared := trust.NewMemoryStore()
	a := newParty(t, shared)
	b := newParty(t, shared)

	doc := targetDocument(t, a)
	withAgr, err := Create(a, doc, []string{a.Identity.AgentID, b.Identity.AgentID}, "", "", nil)
	require.NoError(t, err)

	once, err := Sign(a, withAgr, "")
	require.NoError(t, err)
	_, err = Sign(a, once, "")
	require.Error(t, err)
	require.Equal(t, jacserr.KindAlreadySigned, jacserr.KindOf(err))
}

func TestDeadlineExpired(t *testing.T) {
	shared := trust.NewMemoryStore()
	a := newParty(t, shared)
	b := newParty(t, shared)

	doc := targetDocument(t, a)
	deadline := time.Now().UTC().Add(-time.Second).Format(time.RFC3339)
	withAgr, err := Create(a, doc, []string{a.Identity.AgentID, b.Identity.AgentID}, "", "", &Options{Deadline: deadline})
	require.NoError(t, err)
	before, err := withAgr.Bytes()
	require.NoError(t, err)

	_, err = Sign(a, withAgr, "")
	require.Error(t, err)
	require.Equal(t, jacserr.KindExpired, jacserr.KindOf(err))

	// The document is unchanged by the failed attempt.
	after, err := withAgr.Bytes()
	require.NoError(t, err)
	require.Equal(t, before, after)

	status, err := Check(a, withAgr, "")
	require.NoError(t, err)
	require.Equal(t, StateExpired, status.State)
}

func TestCustomAgreementField(t *testing.T) {
	shared := trust.NewMemoryStore()
	a := newParty(t, shared)
	b := newParty(t, shared)

	doc := targetDocument(t, a)
	withAgr, err := Create(a, doc, []string{a.Identity.AgentID, b.Identity.AgentID}, "", "", &Options{Field: "reviewApprovals"})
	require.NoError(t, err)
	require.Contains(t, withAgr, "reviewApprovals")

	s1, err := Sign(a, withAgr, "reviewApprovals")
	require.NoError(t, err)
	s2, err := Sign(b, s1, "reviewApprovals")
	require.NoError(t, err)

	status, err := Check(a, s2, "reviewApprovals")
	require.NoError(t, err)
	require.Equal(t, StateSatisfied, status.State)
}

func TestTamperedTargetFailsCheck(t *testing.T) {
	shared := trust.NewMemoryStore()
	a := newParty(t, shared)

	doc := targetDocument(t, a)
	withAgr, err := Create(a, doc, []string{a.Identity.AgentID}, "", "", nil)
	require.NoError(t, err)
	signed, err := Sign(a, withAgr, "")
	require.NoError(t, err)

	signed["content"] = map[string]any{"proposal": "something else"}
	_, err = Check(a, signed, "")
	require.Error(t, err)
}
