package domain

// Kind is the classification of a stored transaction.
type Kind string

const (
	KindTransfer Kind = "TRANSFER"
	KindSwap     Kind = "SWAP"
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	return string(k)
}

// IsValid checks if the kind is a valid value.
func (k Kind) IsValid() bool {
	return k == KindTransfer || k == KindSwap
}
