package ports

import (
	"context"
	"log/slog"

	"copyroom/pkg/attrs"
	audit "copyroom/pkg/platform/audit"
	"copyroom/pkg/requestcontext"
)

// LogAudit logs audit events to both structured logger and audit publisher.
// Well-known keys in attrList (caller, subject, group_id, first_token_id,
// quantity, amount, reason) are lifted onto the event.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher AuditPublisher, event string, attrList ...any) {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attrList = append(attrList, "request_id", requestID)
	}

	if logger != nil {
		args := append(attrList, "event", event, "log_type", "audit")
		logger.InfoContext(ctx, event, args...)
	}

	if publisher == nil {
		return
	}

	err := publisher.Emit(ctx, audit.Event{
		Timestamp: requestcontext.Now(ctx),
		Action:    event,
		Actor:     attrs.ExtractString(attrList, "caller"),
		Subject:   attrs.ExtractString(attrList, "subject"),
		GroupID:   attrs.ExtractUint(attrList, "group_id"),
		FirstID:   attrs.ExtractUint(attrList, "first_token_id"),
		Quantity:  attrs.ExtractUint(attrList, "quantity"),
		Amount:    attrs.ExtractString(attrList, "amount"),
		Reason:    attrs.ExtractString(attrList, "reason"),
		RequestID: requestID,
	})
	if err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to publish audit event", "event", event, "error", err)
	}
}
