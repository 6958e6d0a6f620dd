package solana

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// SignatureInfo from getSignaturesForAddress. Pages are ordered newest first.
type SignatureInfo struct {
	Signature string      `json:"signature"`
	Slot      int64       `json:"slot"`
	BlockTime *int64      `json:"blockTime"`
	Err       interface{} `json:"err"`
	Memo      *string     `json:"memo"`
}

// SignaturesOpts defines optional pagination parameters for getSignaturesForAddress.
type SignaturesOpts struct {
	Before string // Start searching backwards from this signature
	Until  string // Search until this signature (exclusive)
	Limit  int    // Maximum number of signatures to return
}

// TokenSupply is the value of a getTokenSupply response.
type TokenSupply struct {
	Amount         string `json:"amount"`
	Decimals       int    `json:"decimals"`
	UIAmountString string `json:"uiAmountString"`
}

// Transaction is a getTransaction result requested with jsonParsed encoding.
// Signature is not part of the payload; the client fills it in.
type Transaction struct {
	Signature   string               `json:"-"`
	Slot        int64                `json:"slot"`
	BlockTime   *int64               `json:"blockTime"`
	Meta        *TransactionMeta     `json:"meta"`
	Transaction *TransactionEnvelope `json:"transaction"`
}

// TransactionEnvelope wraps the signed message.
type TransactionEnvelope struct {
	Signatures []string           `json:"signatures"`
	Message    TransactionMessage `json:"message"`
}

// TransactionMessage contains the parsed transaction message.
type TransactionMessage struct {
	AccountKeys  []AccountKey  `json:"accountKeys"`
	Instructions []Instruction `json:"instructions"`
}

// AccountKey is an entry of message.accountKeys. jsonParsed returns objects,
// json encoding returns bare strings; both decode here.
type AccountKey struct {
	Pubkey   string `json:"pubkey"`
	Signer   bool   `json:"signer"`
	Writable bool   `json:"writable"`
	Source   string `json:"source,omitempty"`
}

// UnmarshalJSON accepts either a base58 string or a parsed key object.
func (k *AccountKey) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &k.Pubkey)
	}
	type plain AccountKey
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode account key: %w", err)
	}
	*k = AccountKey(p)
	return nil
}

// Instruction is a top-level or inner instruction. Parsed is set only for
// programs the node knows how to parse (system, spl-token, ...).
type Instruction struct {
	ProgramID   string          `json:"programId"`
	Program     string          `json:"program,omitempty"`
	Parsed      json.RawMessage `json:"parsed,omitempty"`
	Accounts    []string        `json:"accounts,omitempty"`
	Data        string          `json:"data,omitempty"`
	StackHeight *int            `json:"stackHeight,omitempty"`
}

// InnerInstructions groups the CPI calls made by one top-level instruction.
type InnerInstructions struct {
	Index        int           `json:"index"`
	Instructions []Instruction `json:"instructions"`
}

// TransactionMeta contains transaction status metadata.
type TransactionMeta struct {
	Err               interface{}         `json:"err"`
	Fee               uint64              `json:"fee"`
	PreBalances       []uint64            `json:"preBalances"`
	PostBalances      []uint64            `json:"postBalances"`
	PreTokenBalances  []TokenBalance      `json:"preTokenBalances"`
	PostTokenBalances []TokenBalance      `json:"postTokenBalances"`
	InnerInstructions []InnerInstructions `json:"innerInstructions"`
	LogMessages       []string            `json:"logMessages"`
}

// TokenBalance is an SPL token account balance before or after execution.
type TokenBalance struct {
	AccountIndex  int           `json:"accountIndex"`
	Mint          string        `json:"mint"`
	Owner         string        `json:"owner,omitempty"`
	ProgramID     string        `json:"programId,omitempty"`
	UITokenAmount UITokenAmount `json:"uiTokenAmount"`
}

// UITokenAmount carries the raw integer amount as a string.
type UITokenAmount struct {
	Amount         string `json:"amount"`
	Decimals       int    `json:"decimals"`
	UIAmountString string `json:"uiAmountString"`
}

// Failed reports whether the transaction executed with an error.
func (tx *Transaction) Failed() bool {
	return tx.Meta != nil && tx.Meta.Err != nil
}

// AccountKey returns the pubkey at index i of the message, or "".
func (tx *Transaction) AccountKey(i int) string {
	if tx.Transaction == nil || i < 0 || i >= len(tx.Transaction.Message.AccountKeys) {
		return ""
	}
	return tx.Transaction.Message.AccountKeys[i].Pubkey
}

// ProgramIDs returns every program invoked by the transaction, top-level
// instructions first, then inner instructions in execution order.
func (tx *Transaction) ProgramIDs() []string {
	var ids []string
	if tx.Transaction != nil {
		for _, ix := range tx.Transaction.Message.Instructions {
			ids = append(ids, ix.ProgramID)
		}
	}
	if tx.Meta != nil {
		for _, inner := range tx.Meta.InnerInstructions {
			for _, ix := range inner.Instructions {
				ids = append(ids, ix.ProgramID)
			}
		}
	}
	return ids
}

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64 `json:"lamports"`
	Owner      string `json:"owner"`
	Data       string `json:"data"` // base64 encoded
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rentEpoch"`
}

// DecodeData returns the raw account data.
func (a *AccountInfo) DecodeData() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(a.Data)
	if err != nil {
		return nil, fmt.Errorf("decode account data: %w", err)
	}
	return data, nil
}
