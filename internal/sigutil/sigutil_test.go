package sigutil

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndRecover(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := crypto.PubkeyToAddress(key.PublicKey)
	msg := []byte(`{"request_id":"r1","token":"0x4200000000000000000000000000000000000006","amount":"1","timestamp":1767323045}`)

	sig, err := Sign(msg, key)
	require.NoError(t, err)
	assert.Len(t, sig, 2+2*65)

	got, err := Recover(msg, sig)
	require.NoError(t, err)
	assert.Equal(t, signer, got)
	assert.NoError(t, Verify(msg, sig, signer))
}

func TestVerifyRejectsTampering(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	other, err := crypto.GenerateKey()
	require.NoError(t, err)
	msg := []byte(`{"amount":"1"}`)

	sig, err := Sign(msg, key)
	require.NoError(t, err)

	assert.ErrorIs(t, Verify([]byte(`{"amount":"2"}`), sig, crypto.PubkeyToAddress(key.PublicKey)), ErrInvalidSignature)
	assert.ErrorIs(t, Verify(msg, sig, crypto.PubkeyToAddress(other.PublicKey)), ErrInvalidSignature)
	assert.ErrorIs(t, Verify(msg, "0x1234", crypto.PubkeyToAddress(key.PublicKey)), ErrInvalidSignature)
	assert.ErrorIs(t, Verify(msg, "zz", crypto.PubkeyToAddress(key.PublicKey)), ErrInvalidSignature)
}
