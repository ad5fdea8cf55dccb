// Package service implements the issuance ledger: the whitelist, the escrow
// bank and the mint engine. Every mutation is one ledger transition; value
// leaves custody only after the transition has committed.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"copyroom/internal/ledger/metrics"
	"copyroom/internal/ledger/ports"
	id "copyroom/pkg/domain"
	dErrors "copyroom/pkg/domain-errors"
	"copyroom/pkg/platform/sentinel"
)

const (
	defaultUnit        = "ONE"
	defaultMaxQuantity = 10000
	tracerName         = "copyroom/internal/ledger"
)

// Service orchestrates ledger transitions and value transfers.
type Service struct {
	ledger         ports.Ledger
	wallet         ports.Wallet
	logger         *slog.Logger
	auditPublisher ports.AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	unit           string
	maxQuantity    uint64
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// WithUnit names the native unit used in insufficient funds messages.
func WithUnit(unit string) Option {
	return func(s *Service) {
		if unit != "" {
			s.unit = unit
		}
	}
}

// WithMaxQuantity caps the number of tokens a single mint may allocate.
func WithMaxQuantity(n uint64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxQuantity = n
		}
	}
}

// New constructs a Service.
func New(ledger ports.Ledger, wallet ports.Wallet, opts ...Option) (*Service, error) {
	if ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if wallet == nil {
		return nil, errors.New("wallet is required")
	}
	s := &Service{
		ledger:      ledger,
		wallet:      wallet,
		logger:      slog.Default(),
		unit:        defaultUnit,
		maxQuantity: defaultMaxQuantity,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	return s, nil
}

// EnsureOwner records owner as the system owner unless one is already stored,
// and returns the effective owner.
func (s *Service) EnsureOwner(ctx context.Context, owner id.Address) (id.Address, error) {
	var effective id.Address
	err := s.ledger.RunInTx(ctx, func(st ports.Store) error {
		meta, err := st.Meta(ctx)
		if err != nil {
			return err
		}
		if meta.Owner != (id.Address{}) {
			effective = meta.Owner
			return nil
		}
		effective = owner
		return st.SetOwner(ctx, owner)
	})
	if err != nil {
		return id.Address{}, wrapStoreErr(err, "failed to bootstrap owner")
	}
	if effective != owner {
		s.logger.WarnContext(ctx, "configured owner differs from stored owner; keeping stored owner",
			"configured", owner.Hex(),
			"stored", effective.Hex(),
		)
	}
	return effective, nil
}

// Owner returns the system owner.
func (s *Service) Owner(ctx context.Context) (id.Address, error) {
	var owner id.Address
	err := s.ledger.View(ctx, func(st ports.Store) error {
		meta, err := st.Meta(ctx)
		if err != nil {
			return err
		}
		owner = meta.Owner
		return nil
	})
	if err != nil {
		return id.Address{}, wrapStoreErr(err, "failed to load owner")
	}
	return owner, nil
}

func (s *Service) insufficientFunds() error {
	return dErrors.New(dErrors.CodeInsufficientFunds, fmt.Sprintf("Not enough %s in bank", s.unit))
}

func (s *Service) validateQuantity(quantity uint64) error {
	if quantity == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "quantity must be at least 1")
	}
	if quantity > s.maxQuantity {
		return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("quantity must not exceed %d", s.maxQuantity))
	}
	return nil
}

// fail records a rejected operation on the span and in metrics.
func (s *Service) fail(span trace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	s.metrics.IncrementRejected(op, string(dErrors.CodeOf(err)))
	return err
}

func (s *Service) logAudit(ctx context.Context, event string, attrs ...any) {
	ports.LogAudit(ctx, s.logger, s.auditPublisher, event, attrs...)
}

// wrapStoreErr passes domain errors through and hides storage failures
// behind an internal error.
func wrapStoreErr(err error, msg string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	if errors.Is(err, sentinel.ErrUnavailable) {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
