package ingestion

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/shopspring/decimal"

	"solana-token-sync/internal/domain"
	"solana-token-sync/internal/solana"
)

// Known DEX program IDs. A transaction invoking any of them is a swap.
const (
	RaydiumAMMV4  = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"
	RaydiumCPMM   = "CPMMoo8L3F4NbTegBCKVNunggL7H1ZpdTHKxQB5qKP1C"
	RaydiumCLMM   = "CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK"
	OrcaWhirlpool = "whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc"
	JupiterV6     = "JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4"
	PumpFun       = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
	MeteoraDLMM   = "LBUZKhRxPF3XUpBCjp4YzTKgLccjZhTSDM9YuVaPwxo"
	MeteoraPools  = "Eo7WjKq67rjJQSZxS6z3YkapzY3eMj6Xy8X5EQVn5UaB"
)

// swapLogPattern matches instruction logs emitted by swap programs.
var swapLogPattern = regexp.MustCompile(
	`^Program log: (?:Instruction: )?(?:Swap|SwapV2|SwapBaseIn|SwapBaseOut|Route|SharedAccountsRoute|Buy|Sell)\b|^Program log: ray_log: `)

// DefaultSwapPrograms returns the program IDs treated as swap markers.
func DefaultSwapPrograms() []string {
	return []string{
		RaydiumAMMV4, RaydiumCPMM, RaydiumCLMM, OrcaWhirlpool,
		JupiterV6, PumpFun, MeteoraDLMM, MeteoraPools,
	}
}

// Movement is a classified token movement of one transaction.
type Movement struct {
	Kind   domain.Kind
	From   string          // owner that lost the most tokens, or domain.UnknownAddress
	To     string          // owner that gained the most tokens, or domain.UnknownAddress
	Amount decimal.Decimal // moved amount in whole tokens
}

// Classifier turns jsonParsed transactions into movements of one mint.
type Classifier struct {
	mint     string
	decimals int32
	programs map[string]struct{}
}

// NewClassifier creates a classifier for mint. programs overrides the swap
// program set; nil uses DefaultSwapPrograms.
func NewClassifier(mint string, decimals int, programs []string) *Classifier {
	if programs == nil {
		programs = DefaultSwapPrograms()
	}
	set := make(map[string]struct{}, len(programs))
	for _, p := range programs {
		set[p] = struct{}{}
	}
	return &Classifier{mint: mint, decimals: int32(decimals), programs: set}
}

// Classify determines the kind and the normalized amount of tx.
// Swap markers win over balance deltas. Without either, Classify returns
// ErrDecodeIncomplete.
func (c *Classifier) Classify(tx *solana.Transaction) (*Movement, error) {
	if tx == nil || tx.Meta == nil {
		return nil, fmt.Errorf("%w: missing meta", ErrDecodeIncomplete)
	}
	if tx.Failed() {
		return nil, fmt.Errorf("%w: transaction failed", ErrDecodeIncomplete)
	}

	from, to, amount, moved := c.largestDeltas(tx)

	if c.hasSwapMarker(tx) {
		return &Movement{Kind: domain.KindSwap, From: from, To: to, Amount: amount}, nil
	}
	if !moved {
		return nil, fmt.Errorf("%w: no balance change for mint", ErrDecodeIncomplete)
	}
	return &Movement{Kind: domain.KindTransfer, From: from, To: to, Amount: amount}, nil
}

func (c *Classifier) hasSwapMarker(tx *solana.Transaction) bool {
	for _, id := range tx.ProgramIDs() {
		if _, ok := c.programs[id]; ok {
			return true
		}
	}
	for _, line := range tx.Meta.LogMessages {
		if swapLogPattern.MatchString(line) {
			return true
		}
	}
	return false
}

// largestDeltas nets the mint's token balance changes per owner and picks
// the biggest loser and gainer. Ties resolve to the lexically smaller owner.
func (c *Classifier) largestDeltas(tx *solana.Transaction) (from, to string, amount decimal.Decimal, moved bool) {
	from, to = domain.UnknownAddress, domain.UnknownAddress

	deltas := make(map[string]decimal.Decimal)
	apply := func(balances []solana.TokenBalance, sign int64) {
		for _, b := range balances {
			if b.Mint != c.mint {
				continue
			}
			raw, err := decimal.NewFromString(b.UITokenAmount.Amount)
			if err != nil {
				continue
			}
			owner := b.Owner
			if owner == "" {
				owner = tx.AccountKey(b.AccountIndex)
			}
			if owner == "" {
				owner = domain.UnknownAddress
			}
			deltas[owner] = deltas[owner].Add(raw.Mul(decimal.NewFromInt(sign)))
		}
	}
	apply(tx.Meta.PreTokenBalances, -1)
	apply(tx.Meta.PostTokenBalances, 1)

	owners := make([]string, 0, len(deltas))
	for owner := range deltas {
		owners = append(owners, owner)
	}
	sort.Strings(owners)

	var minDelta, maxDelta decimal.Decimal
	for _, owner := range owners {
		d := deltas[owner]
		if d.LessThan(minDelta) {
			minDelta, from = d, owner
		}
		if d.GreaterThan(maxDelta) {
			maxDelta, to = d, owner
		}
	}

	raw := maxDelta
	if raw.IsZero() {
		raw = minDelta.Neg()
	}
	if raw.IsZero() {
		return from, to, decimal.Zero, false
	}
	return from, to, raw.Shift(-c.decimals), true
}
