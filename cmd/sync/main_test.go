package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"solana-token-sync/internal/ingestion"
)

func TestResolvePrograms(t *testing.T) {
	got := resolvePrograms("raydium, Jupiter,custom111,raydium")
	assert.Equal(t, []string{
		ingestion.RaydiumAMMV4, ingestion.RaydiumCPMM, ingestion.RaydiumCLMM,
		ingestion.JupiterV6, "custom111",
	}, got)
}

func TestResolvePrograms_Empty(t *testing.T) {
	assert.Empty(t, resolvePrograms(" , "))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a,,b "))
	assert.Nil(t, splitList(""))
}

func TestEnabled(t *testing.T) {
	assert.True(t, enabled(":8080"))
	assert.False(t, enabled("off"))
	assert.False(t, enabled(""))
}
