package ports

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "copyroom/pkg/domain"
	audit "copyroom/pkg/platform/audit"
	"copyroom/pkg/platform/audit/store/memory"
	"copyroom/pkg/requestcontext"
)

type directPublisher struct{ store *memory.InMemoryStore }

func (p directPublisher) Emit(ctx context.Context, e audit.Event) error {
	return p.store.Append(ctx, e)
}

func TestLogAudit_LiftsKnownAttributes(t *testing.T) {
	store := memory.NewInMemoryStore()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	stamp := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	ctx := requestcontext.WithRequestID(context.Background(), "req-1")
	ctx = requestcontext.WithTime(ctx, stamp)

	LogAudit(ctx, logger, directPublisher{store}, string(audit.EventTokensMinted),
		"caller", "0xabc",
		"group_id", id.GroupID(4),
		"first_token_id", id.TokenID(9),
		"quantity", uint64(3),
		"amount", "300",
	)

	events, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, "tokens_minted", e.Action)
	assert.Equal(t, "0xabc", e.Actor)
	assert.Equal(t, uint64(4), e.GroupID)
	assert.Equal(t, uint64(9), e.FirstID)
	assert.Equal(t, uint64(3), e.Quantity)
	assert.Equal(t, "300", e.Amount)
	assert.Equal(t, "req-1", e.RequestID)
	assert.Equal(t, stamp, e.Timestamp)

	assert.Contains(t, buf.String(), `"log_type":"audit"`)
	assert.Contains(t, buf.String(), `"request_id":"req-1"`)
}

func TestLogAudit_NilPublisherOnlyLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	LogAudit(context.Background(), logger, nil, "bank_deposited", "caller", "0xabc")
	assert.Contains(t, buf.String(), "bank_deposited")
}
