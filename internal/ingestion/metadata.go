package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"solana-token-sync/internal/domain"
	"solana-token-sync/internal/solana"
)

// Metaplex Token Metadata program ID
const metaplexProgramID = "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"

// RPCMetadataSource fetches token metadata from Solana RPC: decimals and
// supply from getTokenSupply, name and symbol from the Metaplex metadata account.
type RPCMetadataSource struct {
	rpc    solana.RPCClient
	logger logrus.FieldLogger
}

// NewRPCMetadataSource creates a new RPC-based metadata source.
func NewRPCMetadataSource(rpc solana.RPCClient, logger logrus.FieldLogger) *RPCMetadataSource {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RPCMetadataSource{rpc: rpc, logger: logger}
}

// Fetch returns token metadata for a given mint address. Decimals stays nil
// when the node does not know the mint; symbol lookup is best effort.
func (s *RPCMetadataSource) Fetch(ctx context.Context, mint string) (*domain.TokenMetadata, error) {
	if _, err := decodePubkey(mint); err != nil {
		return nil, fmt.Errorf("invalid mint %q: %w", mint, err)
	}

	meta := &domain.TokenMetadata{
		Mint:      mint,
		FetchedAt: time.Now().UnixMilli(),
	}

	supply, err := s.rpc.GetTokenSupply(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("get token supply: %w", err)
	}
	if supply == nil {
		return meta, nil
	}

	decimals := supply.Decimals
	meta.Decimals = &decimals
	if raw, err := decimal.NewFromString(supply.Amount); err == nil {
		total, _ := raw.Shift(-int32(decimals)).Float64()
		meta.Supply = &total
	}

	pda, err := deriveMetadataPDA(mint)
	if err != nil {
		s.logger.WithError(err).WithField("mint", mint).Debug("derive metadata address")
		return meta, nil
	}
	info, err := s.rpc.GetAccountInfo(ctx, pda)
	if err != nil {
		s.logger.WithError(err).WithField("mint", mint).Warn("fetch metaplex metadata")
		return meta, nil
	}
	if info != nil {
		if data, err := info.DecodeData(); err == nil {
			parseMetaplexData(data, meta)
		}
	}
	return meta, nil
}

func decodePubkey(addr string) ([]byte, error) {
	b, err := base58.Decode(addr)
	if err != nil {
		return nil, err
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("want 32 bytes, got %d", len(b))
	}
	return b, nil
}

// deriveMetadataPDA derives the Metaplex metadata PDA for a given mint.
// Seeds: ["metadata", metaplex_program_id, mint]
func deriveMetadataPDA(mint string) (string, error) {
	mintBytes, err := decodePubkey(mint)
	if err != nil {
		return "", err
	}
	programBytes, err := decodePubkey(metaplexProgramID)
	if err != nil {
		return "", err
	}
	pda := derivePDA([][]byte{[]byte("metadata"), programBytes, mintBytes}, programBytes)
	if pda == "" {
		return "", fmt.Errorf("no off-curve bump for %s", mint)
	}
	return pda, nil
}

// parseMetaplexData fills name and symbol from Metaplex Token Metadata
// account data. Layout:
// - key: u8 (4 for MetadataV1)
// - updateAuthority: Pubkey (32 bytes)
// - mint: Pubkey (32 bytes)
// - name: borsh String (4 + len)
// - symbol: borsh String (4 + len)
func parseMetaplexData(data []byte, meta *domain.TokenMetadata) {
	if len(data) < 69 || data[0] != 4 {
		return
	}
	offset := 65

	name, offset, ok := readBorshString(data, offset, 100)
	if !ok {
		return
	}
	if name != "" {
		meta.Name = &name
	}

	symbol, _, ok := readBorshString(data, offset, 20)
	if ok && symbol != "" {
		meta.Symbol = &symbol
	}
}

func readBorshString(data []byte, offset, limit int) (string, int, bool) {
	if offset+4 > len(data) {
		return "", offset, false
	}
	n := int(binary.LittleEndian.Uint32(data[offset:]))
	offset += 4
	if n > limit || offset+n > len(data) {
		return "", offset, false
	}
	return strings.TrimRight(string(data[offset:offset+n]), "\x00"), offset + n, true
}

// derivePDA derives a Program Derived Address: the first bump from 255 down
// whose sha256(seeds || bump || programID || "ProgramDerivedAddress") is
// off the ed25519 curve.
func derivePDA(seeds [][]byte, programID []byte) string {
	for bump := 255; bump >= 0; bump-- {
		var data []byte
		for _, seed := range seeds {
			data = append(data, seed...)
		}
		data = append(data, byte(bump))
		data = append(data, programID...)
		data = append(data, []byte("ProgramDerivedAddress")...)

		hash := sha256.Sum256(data)
		if !isOnCurve(hash[:]) {
			return base58.Encode(hash[:])
		}
	}
	return ""
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
