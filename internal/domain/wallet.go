package domain

// WalletEdge is an undirected relation between two known wallets,
// derived from a transfer or swap between them.
type WalletEdge struct {
	From string
	To   string
}

// WalletCluster is a set of wallets reachable from each other within the
// configured depth. Members are sorted.
type WalletCluster struct {
	Members []string
}

// Size returns the number of wallets in the cluster.
func (c WalletCluster) Size() int {
	return len(c.Members)
}
