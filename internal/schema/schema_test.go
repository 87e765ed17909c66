package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatements_CoverEveryTable(t *testing.T) {
	stmts := Statements()
	require.NotEmpty(t, stmts)

	joined := strings.Join(stmts, "\n")
	for _, table := range []string{"users", "calls", "verification_results", "speaker_embeddings", "call_status_reports"} {
		assert.Contains(t, joined, "CREATE TABLE IF NOT EXISTS "+table+" ")
	}
}

func TestStatements_AreIdempotentAndCommentFree(t *testing.T) {
	for _, s := range Statements() {
		assert.NotContains(t, s, "--")
		assert.True(t, strings.Contains(s, "IF NOT EXISTS"), "statement is not idempotent: %s", s)
	}
}
