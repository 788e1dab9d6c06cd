package extraction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeuristicProvider_LabelsSentences(t *testing.T) {
	p := NewHeuristicProvider(nil)
	text := "This agreement is between Landlord and Tenant. Monthly rent: $1,200. " +
		"Tenant shall maintain the premises. The lease terminates on expiry. " +
		"Tenant is liable for damages."

	raws, err := p.Invoke(context.Background(), InvokeRequest{Text: text})
	require.NoError(t, err)
	require.NotEmpty(t, raws)

	classes := make(map[ClauseType]bool)
	for _, raw := range raws {
		classes[raw.Class] = true
		// Window-local offsets must address the exact span.
		assert.Equal(t, text[raw.Start:raw.End], raw.Text)
		assert.Greater(t, raw.Confidence, 0.0)
		assert.LessOrEqual(t, raw.Confidence, 1.0)
	}

	assert.True(t, classes[ClauseParty], "party sentence missed")
	assert.True(t, classes[ClauseFinancial], "financial sentence missed")
	assert.True(t, classes[ClauseObligation], "obligation sentence missed")
	assert.True(t, classes[ClauseTermination], "termination sentence missed")
	assert.True(t, classes[ClauseRiskFactor], "risk sentence missed")
}

func TestHeuristicProvider_HighestWeightPatternWins(t *testing.T) {
	p := NewHeuristicProvider(nil)

	// Mentions both an amount (0.9) and an obligation verb (0.65).
	raws, err := p.Invoke(context.Background(), InvokeRequest{Text: "Tenant shall pay $500."})
	require.NoError(t, err)
	require.Len(t, raws, 1)
	assert.Equal(t, ClauseFinancial, raws[0].Class)
	assert.Equal(t, 0.9, raws[0].Confidence)
}

func TestHeuristicProvider_NoMatchesNoExtractions(t *testing.T) {
	p := NewHeuristicProvider(nil)

	raws, err := p.Invoke(context.Background(), InvokeRequest{Text: "A plain narrative sentence about weather."})
	require.NoError(t, err)
	assert.Empty(t, raws)
}

func TestHeuristicProvider_SkipsInvalidPatterns(t *testing.T) {
	p := NewHeuristicProvider([]ClausePattern{
		{Name: "broken", Class: ClauseOther, Regex: "([", Weight: 0.9},
		{Name: "ok", Class: ClauseFinancial, Regex: `\$\d+`, Weight: 0.8},
	})

	raws, err := p.Invoke(context.Background(), InvokeRequest{Text: "Fee of $10 applies."})
	require.NoError(t, err)
	require.Len(t, raws, 1)
	assert.Equal(t, "ok", raws[0].Attributes["pattern"])
}

func TestHeuristicProvider_RespectsCancelledContext(t *testing.T) {
	p := NewHeuristicProvider(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Invoke(ctx, InvokeRequest{Text: "Rent is $100."})
	assert.Error(t, err)
}
