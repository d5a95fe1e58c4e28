// SPDX-License-Identifier: MIT

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = ContextWithJobID(ctx, "job-42")
	ctx = ContextWithSourceID(ctx, "src-7")

	assert.Equal(t, "job-42", JobIDFromContext(ctx))
	assert.Equal(t, "src-7", SourceIDFromContext(ctx))
}

func TestContextMissingValues(t *testing.T) {
	assert.Empty(t, JobIDFromContext(context.Background()))
	assert.Empty(t, SourceIDFromContext(context.Background()))
	assert.Empty(t, JobIDFromContext(nil)) //nolint:staticcheck // nil tolerance is part of the contract
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := Base().Output(&buf)

	ctx := ContextWithJobID(context.Background(), "job-99")
	enriched := WithContext(ctx, logger)
	enriched.Info().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "job-99", entry["job_id"])
}

func TestWithComponentFromContext(t *testing.T) {
	ctx := ContextWithSourceID(context.Background(), "src-1")
	l := WithComponentFromContext(ctx, "importer")

	var buf bytes.Buffer
	l = l.Output(&buf)
	l.Info().Msg("check")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "importer", entry["component"])
}
