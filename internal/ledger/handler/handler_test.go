package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"copyroom/internal/ledger/service"
	"copyroom/internal/ledger/store/memory"
	"copyroom/internal/ledger/wallet"
	id "copyroom/pkg/domain"
	"copyroom/pkg/testutil"
)

const (
	ownerHex     = "0x00000000000000000000000000000000000000f0"
	minterHex    = "0x00000000000000000000000000000000000000b1"
	outsiderHex  = "0x00000000000000000000000000000000000000c1"
	recipientHex = "0x00000000000000000000000000000000000000d1"
)

// =============================================================================
// Handler Test Suite
// =============================================================================
// Drives the router against a real in-memory service so responses reflect
// committed ledger state.

type HandlerSuite struct {
	suite.Suite
	wallet *wallet.Memory
	router chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.wallet = wallet.NewMemory()
	for _, acct := range []string{ownerHex, minterHex, outsiderHex, recipientHex} {
		s.wallet.Fund(common.HexToAddress(acct), id.NewAmount(1_000))
	}
	svc, err := service.New(memory.NewLedger(), s.wallet, service.WithLogger(logger))
	s.Require().NoError(err)
	_, err = svc.EnsureOwner(context.Background(), common.HexToAddress(ownerHex))
	s.Require().NoError(err)

	s.router = chi.NewRouter()
	s.router.Route("/v1", New(svc, logger).Register)
}

func (s *HandlerSuite) do(method, path, caller string, body any) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = testutil.NewJSONRequest(s.T(), method, path, body)
	} else {
		req = testutil.NewRequest(s.T(), method, path)
	}
	if caller != "" {
		req = testutil.WithCaller(req, caller)
	}
	return testutil.DoRequest(s.router, req)
}

func (s *HandlerSuite) whitelistMinter() {
	rr := s.do(http.MethodPut, "/v1/whitelist/accounts", ownerHex, map[string]any{
		"accounts": []string{minterHex},
		"allowed":  true,
	})
	s.Require().Equal(http.StatusNoContent, rr.Code, rr.Body.String())
}

// =============================================================================
// Authentication
// =============================================================================

func (s *HandlerSuite) TestMutationsRequireCaller() {
	rr := s.do(http.MethodPost, "/v1/bank/deposit", "", map[string]string{"amount": "1"})
	s.Equal(http.StatusUnauthorized, rr.Code)
}

// =============================================================================
// Whitelist
// =============================================================================

func (s *HandlerSuite) TestWhitelist() {
	s.Run("mode defaults to enforced", func() {
		rr := s.do(http.MethodGet, "/v1/whitelist/mode", "", nil)
		s.Require().Equal(http.StatusOK, rr.Code)
		resp := testutil.UnmarshalResponse[WhitelistModeResponse](s.T(), rr)
		s.True(resp.WhitelistOnly)
	})

	s.Run("non-owner is forbidden", func() {
		rr := s.do(http.MethodPut, "/v1/whitelist/mode", outsiderHex, map[string]any{"enabled": false})
		s.Equal(http.StatusForbidden, rr.Code)
	})

	s.Run("missing field is a validation error", func() {
		rr := s.do(http.MethodPut, "/v1/whitelist/mode", ownerHex, map[string]any{})
		s.Equal(http.StatusBadRequest, rr.Code)
	})

	s.Run("owner whitelists and status reflects it", func() {
		s.whitelistMinter()
		rr := s.do(http.MethodGet, "/v1/whitelist/accounts/"+minterHex, "", nil)
		s.Require().Equal(http.StatusOK, rr.Code)
		resp := testutil.UnmarshalResponse[WhitelistStatusResponse](s.T(), rr)
		s.True(resp.Whitelisted)
		s.True(resp.Eligible)
	})

	s.Run("bad address in batch rejects the whole request", func() {
		rr := s.do(http.MethodPut, "/v1/whitelist/accounts", ownerHex, map[string]any{
			"accounts": []string{outsiderHex, "nope"},
			"allowed":  true,
		})
		s.Equal(http.StatusBadRequest, rr.Code)
		status := testutil.UnmarshalResponse[WhitelistStatusResponse](s.T(),
			s.do(http.MethodGet, "/v1/whitelist/accounts/"+outsiderHex, "", nil))
		s.False(status.Whitelisted)
	})
}

// =============================================================================
// Bank
// =============================================================================

func (s *HandlerSuite) TestBank() {
	s.Run("deposit, bare transfer and withdraw", func() {
		rr := s.do(http.MethodPost, "/v1/bank/deposit", minterHex, map[string]string{"amount": "1"})
		s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())

		rr = s.do(http.MethodPost, "/v1/transfers", minterHex, map[string]string{"amount": "2"})
		s.Require().Equal(http.StatusOK, rr.Code)
		resp := testutil.UnmarshalResponse[BalanceResponse](s.T(), rr)
		s.Equal("3", resp.Balance)

		rr = s.do(http.MethodPost, "/v1/bank/withdraw", minterHex, map[string]string{"amount": "3"})
		s.Require().Equal(http.StatusOK, rr.Code)
		resp = testutil.UnmarshalResponse[BalanceResponse](s.T(), rr)
		s.Equal("0", resp.Balance)
	})

	s.Run("deposit to another account", func() {
		rr := s.do(http.MethodPost, "/v1/bank/"+recipientHex+"/deposit", minterHex, map[string]string{"amount": "0x0a"})
		s.Require().Equal(http.StatusOK, rr.Code)

		rr = s.do(http.MethodGet, "/v1/bank/"+recipientHex, "", nil)
		resp := testutil.UnmarshalResponse[BalanceResponse](s.T(), rr)
		s.Equal("10", resp.Balance)
	})

	s.Run("overdraw returns the unit message", func() {
		rr := s.do(http.MethodPost, "/v1/bank/withdraw", outsiderHex, map[string]string{"amount": "5"})
		testutil.AssertLedgerError(s.T(), rr, http.StatusPaymentRequired, "insufficient_funds", "Not enough ONE in bank")
	})

	s.Run("malformed amount", func() {
		rr := s.do(http.MethodPost, "/v1/bank/deposit", minterHex, map[string]string{"amount": "-3"})
		s.Equal(http.StatusBadRequest, rr.Code)
	})
}

// =============================================================================
// Groups
// =============================================================================

func (s *HandlerSuite) TestMintFlow() {
	s.Run("not whitelisted", func() {
		rr := s.do(http.MethodPost, "/v1/groups", outsiderHex, map[string]any{"quantity": 1, "recipient": recipientHex})
		testutil.AssertLedgerError(s.T(), rr, http.StatusForbidden, "not_whitelisted", "")
	})

	s.whitelistMinter()

	s.Run("mint group pays the bonus", func() {
		rr := s.do(http.MethodPost, "/v1/groups", minterHex, map[string]any{
			"quantity":        2,
			"recipient":       recipientHex,
			"bonus_per_token": "5",
			"bonus_active":    true,
			"payment":         "10",
		})
		s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
		resp := testutil.UnmarshalResponse[MintResponse](s.T(), rr)
		s.Equal(uint64(1), resp.GroupID)
		s.Equal([]uint64{0, 1}, resp.TokenIDs)
		s.Equal("10", resp.BonusPaid)
	})

	s.Run("extend group", func() {
		rr := s.do(http.MethodPost, "/v1/groups/1/tokens", minterHex, map[string]any{"quantity": 2, "recipient": recipientHex})
		s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())

		rr = s.do(http.MethodGet, "/v1/groups/1/members", "", nil)
		members := testutil.UnmarshalResponse[MembersResponse](s.T(), rr)
		s.Equal([]uint64{0, 1, 2, 3}, members.Members)
	})

	s.Run("bonus toggle is owner only", func() {
		rr := s.do(http.MethodPut, "/v1/groups/1/bonus", outsiderHex, map[string]any{"active": false})
		s.Equal(http.StatusForbidden, rr.Code)

		rr = s.do(http.MethodPut, "/v1/groups/1/bonus", minterHex, map[string]any{"active": false})
		s.Require().Equal(http.StatusOK, rr.Code)

		rr = s.do(http.MethodGet, "/v1/groups/1/bonus", "", nil)
		resp := testutil.UnmarshalResponse[BonusStatusResponse](s.T(), rr)
		s.False(resp.Active)
	})

	s.Run("group and token views", func() {
		rr := s.do(http.MethodGet, "/v1/groups/1", "", nil)
		s.Require().Equal(http.StatusOK, rr.Code)
		group := testutil.UnmarshalResponse[GroupResponse](s.T(), rr)
		s.Equal(common.HexToAddress(minterHex).Hex(), group.Owner)
		s.Equal("5", group.BonusPerToken)

		rr = s.do(http.MethodGet, "/v1/tokens/3", "", nil)
		s.Require().Equal(http.StatusOK, rr.Code)
		token := testutil.UnmarshalResponse[TokenResponse](s.T(), rr)
		s.Equal(uint64(1), token.GroupID)
		s.Equal(common.HexToAddress(recipientHex).Hex(), token.Owner)
	})

	s.Run("unknown group and token", func() {
		s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/v1/groups/9", "", nil).Code)
		s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/v1/tokens/99", "", nil).Code)

		rr := s.do(http.MethodGet, "/v1/groups/9/members", "", nil)
		s.Require().Equal(http.StatusOK, rr.Code)
		members := testutil.UnmarshalResponse[MembersResponse](s.T(), rr)
		s.Empty(members.Members)
	})

	s.Run("owned groups with padding", func() {
		rr := s.do(http.MethodGet, "/v1/accounts/"+minterHex+"/groups?pad=4", "", nil)
		s.Require().Equal(http.StatusOK, rr.Code)
		resp := testutil.UnmarshalResponse[OwnedGroupsResponse](s.T(), rr)
		s.Equal([]uint64{1, 0, 0, 0}, resp.GroupIDs)

		rr = s.do(http.MethodGet, "/v1/accounts/"+minterHex+"/groups?pad=-1", "", nil)
		s.Equal(http.StatusBadRequest, rr.Code)
	})

	s.Run("last group", func() {
		rr := s.do(http.MethodGet, "/v1/accounts/"+minterHex+"/groups/last", "", nil)
		resp := testutil.UnmarshalResponse[LastGroupResponse](s.T(), rr)
		s.Equal(uint64(1), resp.GroupID)

		rr = s.do(http.MethodGet, "/v1/accounts/"+outsiderHex+"/groups/last", "", nil)
		resp = testutil.UnmarshalResponse[LastGroupResponse](s.T(), rr)
		s.Equal(uint64(0), resp.GroupID)
	})

	s.Run("invalid group id in path", func() {
		rr := s.do(http.MethodGet, "/v1/groups/0", "", nil)
		s.Equal(http.StatusBadRequest, rr.Code)
	})
}

func TestPadGroupIDs(t *testing.T) {
	suite.Run(t, new(padSuite))
}

type padSuite struct{ suite.Suite }

func (s *padSuite) TestPad() {
	s.Equal([]uint64{}, padGroupIDs(nil, 0))
	s.Equal([]uint64{0, 0}, padGroupIDs(nil, 2))
	s.Equal([]uint64{1, 2, 3}, padGroupIDs([]id.GroupID{1, 2, 3}, 2), "never truncates")
}
