package crypt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKEM_SealOpenRoundTrip(t *testing.T) {
	priv, pub, err := GenerateKEMKeys()
	require.NoError(t, err)
	require.Len(t, pub, MLKEM768EncapsKeySize)
	require.Len(t, priv, MLKEM768SeedSize)

	aad := []byte("context binding")
	plaintext := []byte(`{"opaque":"payload"}`)

	sealed, err := Seal(pub, aad, plaintext)
	require.NoError(t, err)
	require.Len(t, sealed.KEMCiphertext, MLKEM768CiphertextSize)
	require.Len(t, sealed.Nonce, kemNonceLen)

	opened, err := Open(priv, sealed, aad)
	require.NoError(t, err)
	require.Equal(t, plaintext, opened)
}

func TestKEM_WrongAAD(t *testing.T) {
	priv, pub, err := GenerateKEMKeys()
	require.NoError(t, err)

	sealed, err := Seal(pub, []byte("aad"), []byte("payload"))
	require.NoError(t, err)

	_, err = Open(priv, sealed, []byte("different aad"))
	require.Error(t, err)
}

func TestKEM_WrongRecipient(t *testing.T) {
	_, pub, err := GenerateKEMKeys()
	require.NoError(t, err)
	otherPriv, _, err := GenerateKEMKeys()
	require.NoError(t, err)

	sealed, err := Seal(pub, nil, []byte("payload"))
	require.NoError(t, err)

	_, err = Open(otherPriv, sealed, nil)
	require.Error(t, err)
}

func TestKEM_LengthContracts(t *testing.T) {
	priv, pub, err := GenerateKEMKeys()
	require.NoError(t, err)

	_, err = Seal(pub[:100], nil, []byte("p"))
	require.Error(t, err)

	sealed, err := Seal(pub, nil, []byte("p"))
	require.NoError(t, err)

	_, err = Open(priv[:10], sealed, nil)
	require.Error(t, err)

	short := *sealed
	short.KEMCiphertext = sealed.KEMCiphertext[:100]
	_, err = Open(priv, &short, nil)
	require.Error(t, err)
}
