package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/voice-clone-service/internal/config"
)

func TestSynthesisOptions_DefaultsLeaveTextAndReferenceUntouched(t *testing.T) {
	t.Parallel()

	opts, err := synthesisOptions(config.Default())
	require.NoError(t, err)
	assert.Empty(t, opts)
}

func TestSynthesisOptions_OptIn(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse([]byte(`
[synthesis]
clean_text = true
normalize_reference = true
target_sample_rate = 96000
`))
	require.NoError(t, err)

	opts, err := synthesisOptions(cfg)
	require.NoError(t, err)
	assert.Len(t, opts, 2)
}
