// Package handler exposes the ledger service over HTTP. Callers are
// authenticated upstream; handlers read the caller from the request context.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"copyroom/internal/ledger/models"
	id "copyroom/pkg/domain"
	dErrors "copyroom/pkg/domain-errors"
	"copyroom/pkg/platform/httputil"
	"copyroom/pkg/requestcontext"
)

// maxPad bounds the zero-padded owned-groups view.
const maxPad = 1024

// Service defines the ledger operations the HTTP surface needs.
type Service interface {
	SetWhitelistOnlyMint(ctx context.Context, caller id.Address, enabled bool) error
	SetMintWhitelistForAccounts(ctx context.Context, caller id.Address, accounts []id.Address, allowed bool) error
	MintWhitelistStatus(ctx context.Context, account id.Address) (bool, error)
	WhitelistOnlyMint(ctx context.Context) (bool, error)
	IsEligibleToMint(ctx context.Context, account id.Address) (bool, error)

	DepositToMyBank(ctx context.Context, caller id.Address, payment *id.Amount) (*id.Amount, error)
	DepositToBank(ctx context.Context, caller, target id.Address, payment *id.Amount) (*id.Amount, error)
	OnBareTransfer(ctx context.Context, sender id.Address, amount *id.Amount) (*id.Amount, error)
	Withdraw(ctx context.Context, caller id.Address, amount *id.Amount) (*id.Amount, error)
	Balance(ctx context.Context, account id.Address) (*id.Amount, error)

	MintGroup(ctx context.Context, cmd models.MintGroupCommand) (*models.MintResult, error)
	MintToGroup(ctx context.Context, cmd models.MintToGroupCommand) (*models.MintResult, error)
	SetActiveBonusForGroup(ctx context.Context, caller id.Address, groupID id.GroupID, active bool) error
	Group(ctx context.Context, groupID id.GroupID) (*models.Group, error)
	GroupMembers(ctx context.Context, groupID id.GroupID) ([]id.TokenID, error)
	IsGroupBonusActive(ctx context.Context, groupID id.GroupID) (bool, error)
	LastGroupIDByOwner(ctx context.Context, owner id.Address) (id.GroupID, error)
	OwnedGroupIDsByOwner(ctx context.Context, owner id.Address) ([]id.GroupID, error)
	Token(ctx context.Context, tokenID id.TokenID) (*models.Token, error)
}

// Handler wires ledger endpoints to the ledger service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a ledger handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts ledger endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/whitelist", func(r chi.Router) {
		r.Get("/mode", h.HandleGetWhitelistMode)
		r.Put("/mode", h.HandleSetWhitelistMode)
		r.Put("/accounts", h.HandleSetWhitelistAccounts)
		r.Get("/accounts/{address}", h.HandleGetWhitelistStatus)
	})
	r.Route("/bank", func(r chi.Router) {
		r.Post("/deposit", h.HandleDeposit)
		r.Post("/withdraw", h.HandleWithdraw)
		r.Post("/{address}/deposit", h.HandleDepositTo)
		r.Get("/{address}", h.HandleGetBalance)
	})
	r.Post("/transfers", h.HandleBareTransfer)
	r.Route("/groups", func(r chi.Router) {
		r.Post("/", h.HandleMintGroup)
		r.Get("/{id}", h.HandleGetGroup)
		r.Post("/{id}/tokens", h.HandleMintToGroup)
		r.Get("/{id}/members", h.HandleGetMembers)
		r.Get("/{id}/bonus", h.HandleGetBonus)
		r.Put("/{id}/bonus", h.HandleSetBonus)
	})
	r.Get("/accounts/{address}/groups/last", h.HandleGetLastGroup)
	r.Get("/accounts/{address}/groups", h.HandleGetOwnedGroups)
	r.Get("/tokens/{id}", h.HandleGetToken)
}

// caller returns the authenticated account or writes 401.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (id.Address, bool) {
	caller, ok := requestcontext.Caller(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.Address{}, false
	}
	return caller, true
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	level := slog.LevelWarn
	if code := dErrors.CodeOf(err); code == dErrors.CodeInternal || code == dErrors.CodeUnavailable {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}

func pathAddress(r *http.Request) (id.Address, error) {
	return id.ParseAddress(chi.URLParam(r, "address"))
}

func pathGroupID(r *http.Request) (id.GroupID, error) {
	return id.ParseGroupID(chi.URLParam(r, "id"))
}

// =============================================================================
// Whitelist
// =============================================================================

// HandleGetWhitelistMode handles GET /whitelist/mode.
func (h *Handler) HandleGetWhitelistMode(w http.ResponseWriter, r *http.Request) {
	on, err := h.service.WhitelistOnlyMint(r.Context())
	if err != nil {
		h.fail(r.Context(), w, "failed to read whitelist mode", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, WhitelistModeResponse{WhitelistOnly: on})
}

// HandleSetWhitelistMode handles PUT /whitelist/mode.
func (h *Handler) HandleSetWhitelistMode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SetWhitelistModeRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := h.service.SetWhitelistOnlyMint(ctx, caller, *req.Enabled); err != nil {
		h.fail(ctx, w, "failed to set whitelist mode", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, WhitelistModeResponse{WhitelistOnly: *req.Enabled})
}

// HandleSetWhitelistAccounts handles PUT /whitelist/accounts.
func (h *Handler) HandleSetWhitelistAccounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SetWhitelistAccountsRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := h.service.SetMintWhitelistForAccounts(ctx, caller, req.ParsedAccounts(), *req.Allowed); err != nil {
		h.fail(ctx, w, "failed to update whitelist", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetWhitelistStatus handles GET /whitelist/accounts/{address}.
func (h *Handler) HandleGetWhitelistStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, err := pathAddress(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	listed, err := h.service.MintWhitelistStatus(ctx, account)
	if err != nil {
		h.fail(ctx, w, "failed to read whitelist status", err)
		return
	}
	eligible, err := h.service.IsEligibleToMint(ctx, account)
	if err != nil {
		h.fail(ctx, w, "failed to read eligibility", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, WhitelistStatusResponse{
		Account:     account.Hex(),
		Whitelisted: listed,
		Eligible:    eligible,
	})
}

// =============================================================================
// Bank
// =============================================================================

// HandleDeposit handles POST /bank/deposit.
func (h *Handler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	h.handlePayment(w, r, func(ctx context.Context, caller id.Address, amount *id.Amount) (id.Address, *id.Amount, error) {
		bal, err := h.service.DepositToMyBank(ctx, caller, amount)
		return caller, bal, err
	})
}

// HandleDepositTo handles POST /bank/{address}/deposit.
func (h *Handler) HandleDepositTo(w http.ResponseWriter, r *http.Request) {
	target, err := pathAddress(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.handlePayment(w, r, func(ctx context.Context, caller id.Address, amount *id.Amount) (id.Address, *id.Amount, error) {
		bal, err := h.service.DepositToBank(ctx, caller, target, amount)
		return target, bal, err
	})
}

// HandleBareTransfer handles POST /transfers: value sent without naming an
// operation lands in the sender's bank.
func (h *Handler) HandleBareTransfer(w http.ResponseWriter, r *http.Request) {
	h.handlePayment(w, r, func(ctx context.Context, caller id.Address, amount *id.Amount) (id.Address, *id.Amount, error) {
		bal, err := h.service.OnBareTransfer(ctx, caller, amount)
		return caller, bal, err
	})
}

// HandleWithdraw handles POST /bank/withdraw.
func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	h.handlePayment(w, r, func(ctx context.Context, caller id.Address, amount *id.Amount) (id.Address, *id.Amount, error) {
		bal, err := h.service.Withdraw(ctx, caller, amount)
		return caller, bal, err
	})
}

type paymentFunc func(ctx context.Context, caller id.Address, amount *id.Amount) (id.Address, *id.Amount, error)

func (h *Handler) handlePayment(w http.ResponseWriter, r *http.Request, fn paymentFunc) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[PaymentRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	account, balance, err := fn(ctx, caller, req.ParsedAmount())
	if err != nil {
		h.fail(ctx, w, "bank operation failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, BalanceResponse{
		Account: account.Hex(),
		Balance: id.AmountOrZero(balance).Dec(),
	})
}

// HandleGetBalance handles GET /bank/{address}.
func (h *Handler) HandleGetBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, err := pathAddress(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	balance, err := h.service.Balance(ctx, account)
	if err != nil {
		h.fail(ctx, w, "failed to read balance", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, BalanceResponse{Account: account.Hex(), Balance: balance.Dec()})
}

// =============================================================================
// Groups
// =============================================================================

// HandleMintGroup handles POST /groups.
func (h *Handler) HandleMintGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[MintGroupRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	res, err := h.service.MintGroup(ctx, models.MintGroupCommand{
		Caller:        caller,
		Quantity:      req.Quantity,
		Recipient:     req.parsedRecipient,
		BonusPerToken: req.parsedBonus,
		BonusActive:   req.BonusActive,
		Payment:       req.parsedPayment,
	})
	if err != nil {
		h.fail(ctx, w, "mint group failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromMintResult(res))
}

// HandleMintToGroup handles POST /groups/{id}/tokens.
func (h *Handler) HandleMintToGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	gid, err := pathGroupID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[MintToGroupRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	res, err := h.service.MintToGroup(ctx, models.MintToGroupCommand{
		Caller:    caller,
		Quantity:  req.Quantity,
		GroupID:   gid,
		Recipient: req.parsedRecipient,
	})
	if err != nil {
		h.fail(ctx, w, "mint to group failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromMintResult(res))
}

// HandleSetBonus handles PUT /groups/{id}/bonus.
func (h *Handler) HandleSetBonus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	gid, err := pathGroupID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[SetBonusRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := h.service.SetActiveBonusForGroup(ctx, caller, gid, *req.Active); err != nil {
		h.fail(ctx, w, "failed to set group bonus", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, BonusStatusResponse{GroupID: uint64(gid), Active: *req.Active})
}

// HandleGetGroup handles GET /groups/{id}.
func (h *Handler) HandleGetGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	gid, err := pathGroupID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	group, err := h.service.Group(ctx, gid)
	if err != nil {
		h.fail(ctx, w, "failed to load group", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromGroup(group))
}

// HandleGetMembers handles GET /groups/{id}/members.
func (h *Handler) HandleGetMembers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	gid, err := pathGroupID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	members, err := h.service.GroupMembers(ctx, gid)
	if err != nil {
		h.fail(ctx, w, "failed to load members", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, MembersResponse{GroupID: uint64(gid), Members: tokenIDs(members)})
}

// HandleGetBonus handles GET /groups/{id}/bonus.
func (h *Handler) HandleGetBonus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	gid, err := pathGroupID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	active, err := h.service.IsGroupBonusActive(ctx, gid)
	if err != nil {
		h.fail(ctx, w, "failed to read group bonus", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, BonusStatusResponse{GroupID: uint64(gid), Active: active})
}

// =============================================================================
// Accounts and tokens
// =============================================================================

// HandleGetLastGroup handles GET /accounts/{address}/groups/last.
func (h *Handler) HandleGetLastGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, err := pathAddress(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	gid, err := h.service.LastGroupIDByOwner(ctx, owner)
	if err != nil {
		h.fail(ctx, w, "failed to load last group", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, LastGroupResponse{Owner: owner.Hex(), GroupID: uint64(gid)})
}

// HandleGetOwnedGroups handles GET /accounts/{address}/groups?pad=N.
func (h *Handler) HandleGetOwnedGroups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, err := pathAddress(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	pad := 0
	if raw := r.URL.Query().Get("pad"); raw != "" {
		pad, err = strconv.Atoi(raw)
		if err != nil || pad < 0 || pad > maxPad {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "pad must be between 0 and "+strconv.Itoa(maxPad)))
			return
		}
	}
	owned, err := h.service.OwnedGroupIDsByOwner(ctx, owner)
	if err != nil {
		h.fail(ctx, w, "failed to load owned groups", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, OwnedGroupsResponse{Owner: owner.Hex(), GroupIDs: padGroupIDs(owned, pad)})
}

// HandleGetToken handles GET /tokens/{id}.
func (h *Handler) HandleGetToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tid, err := id.ParseTokenID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	token, err := h.service.Token(ctx, tid)
	if err != nil {
		h.fail(ctx, w, "failed to load token", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromToken(token))
}
