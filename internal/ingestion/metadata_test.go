package ingestion

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-sync/internal/solana"
	"solana-token-sync/internal/solana/stub"
)

func borshString(s string, size int) []byte {
	buf := make([]byte, 4+size)
	binary.LittleEndian.PutUint32(buf, uint32(size))
	copy(buf[4:], s)
	return buf
}

func metaplexAccount(name, symbol string) *solana.AccountInfo {
	data := []byte{4}
	data = append(data, make([]byte, 64)...)
	data = append(data, borshString(name, 32)...)
	data = append(data, borshString(symbol, 10)...)
	data = append(data, borshString("https://example.com/meta.json", 200)...)
	return &solana.AccountInfo{Owner: metaplexProgramID, Data: base64.StdEncoding.EncodeToString(data)}
}

func TestRPCMetadataSource_Fetch(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.SetSupply(testMint, "123450000", 6)
	pda, err := deriveMetadataPDA(testMint)
	require.NoError(t, err)
	rpc.Accounts[pda] = metaplexAccount("USD Coin", "USDC")

	meta, err := NewRPCMetadataSource(rpc, quietLogger()).Fetch(context.Background(), testMint)
	require.NoError(t, err)

	require.True(t, meta.HasDecimals())
	assert.Equal(t, 6, *meta.Decimals)
	require.NotNil(t, meta.Supply)
	assert.InDelta(t, 123.45, *meta.Supply, 1e-9)
	require.NotNil(t, meta.Symbol)
	assert.Equal(t, "USDC", *meta.Symbol)
	require.NotNil(t, meta.Name)
	assert.Equal(t, "USD Coin", *meta.Name)
	assert.NotZero(t, meta.FetchedAt)
}

func TestRPCMetadataSource_UnknownMint(t *testing.T) {
	rpc := stub.NewRPCClient()

	meta, err := NewRPCMetadataSource(rpc, quietLogger()).Fetch(context.Background(), testMint)
	require.NoError(t, err)
	assert.False(t, meta.HasDecimals())
	assert.Equal(t, 0, rpc.Calls("getAccountInfo"))
}

func TestRPCMetadataSource_InvalidMint(t *testing.T) {
	rpc := stub.NewRPCClient()

	_, err := NewRPCMetadataSource(rpc, quietLogger()).Fetch(context.Background(), "not-a-mint!")
	assert.Error(t, err)
	assert.Equal(t, 0, rpc.Calls("getTokenSupply"))
}

func TestRPCMetadataSource_SymbolIsBestEffort(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.SetSupply(testMint, "5", 0)
	pda, err := deriveMetadataPDA(testMint)
	require.NoError(t, err)
	rpc.Accounts[pda] = &solana.AccountInfo{Data: base64.StdEncoding.EncodeToString([]byte{1, 2, 3})}

	meta, err := NewRPCMetadataSource(rpc, quietLogger()).Fetch(context.Background(), testMint)
	require.NoError(t, err)
	assert.True(t, meta.HasDecimals())
	assert.Nil(t, meta.Symbol)
}

func TestDerivePDA_IsOffCurve(t *testing.T) {
	pda, err := deriveMetadataPDA(testMint)
	require.NoError(t, err)

	raw, err := base58.Decode(pda)
	require.NoError(t, err)
	assert.Len(t, raw, 32)
	assert.False(t, isOnCurve(raw))

	again, err := deriveMetadataPDA(testMint)
	require.NoError(t, err)
	assert.Equal(t, pda, again)
}
