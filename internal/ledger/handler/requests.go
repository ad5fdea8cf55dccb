package handler

import (
	"strings"

	id "copyroom/pkg/domain"
	dErrors "copyroom/pkg/domain-errors"
)

// maxBatchAccounts bounds a single whitelist update.
const maxBatchAccounts = 500

// SetWhitelistModeRequest is the body for PUT /v1/whitelist/mode.
type SetWhitelistModeRequest struct {
	Enabled *bool `json:"enabled"`
}

func (r *SetWhitelistModeRequest) Normalize() {}

func (r *SetWhitelistModeRequest) Validate() error {
	if r.Enabled == nil {
		return dErrors.New(dErrors.CodeValidation, "enabled is required")
	}
	return nil
}

// SetWhitelistAccountsRequest is the body for PUT /v1/whitelist/accounts.
type SetWhitelistAccountsRequest struct {
	Accounts []string `json:"accounts"`
	Allowed  *bool    `json:"allowed"`

	parsedAccounts []id.Address
}

func (r *SetWhitelistAccountsRequest) Normalize() {
	for i, a := range r.Accounts {
		r.Accounts[i] = strings.TrimSpace(a)
	}
}

func (r *SetWhitelistAccountsRequest) Validate() error {
	if len(r.Accounts) == 0 {
		return dErrors.New(dErrors.CodeValidation, "accounts is required")
	}
	if len(r.Accounts) > maxBatchAccounts {
		return dErrors.New(dErrors.CodeValidation, "too many accounts in one request")
	}
	if r.Allowed == nil {
		return dErrors.New(dErrors.CodeValidation, "allowed is required")
	}
	accounts, err := id.ParseAddresses(r.Accounts)
	if err != nil {
		return err
	}
	r.parsedAccounts = accounts
	return nil
}

// ParsedAccounts returns the validated, de-duplicated accounts.
func (r *SetWhitelistAccountsRequest) ParsedAccounts() []id.Address {
	return r.parsedAccounts
}

// PaymentRequest carries the value attached to a bank call. Amounts are
// decimal or 0x-prefixed hex strings.
type PaymentRequest struct {
	Amount string `json:"amount"`

	parsedAmount *id.Amount
}

func (r *PaymentRequest) Normalize() {
	r.Amount = strings.TrimSpace(r.Amount)
}

func (r *PaymentRequest) Validate() error {
	amount, err := id.ParseAmount(r.Amount)
	if err != nil {
		return err
	}
	r.parsedAmount = amount
	return nil
}

func (r *PaymentRequest) ParsedAmount() *id.Amount {
	return r.parsedAmount
}

// MintGroupRequest is the body for POST /v1/groups.
type MintGroupRequest struct {
	Quantity      uint64 `json:"quantity"`
	Recipient     string `json:"recipient"`
	BonusPerToken string `json:"bonus_per_token"`
	BonusActive   bool   `json:"bonus_active"`
	Payment       string `json:"payment"`

	parsedRecipient id.Address
	parsedBonus     *id.Amount
	parsedPayment   *id.Amount
}

func (r *MintGroupRequest) Normalize() {
	r.Recipient = strings.TrimSpace(r.Recipient)
	r.BonusPerToken = strings.TrimSpace(r.BonusPerToken)
	r.Payment = strings.TrimSpace(r.Payment)
}

func (r *MintGroupRequest) Validate() error {
	if r.Quantity == 0 {
		return dErrors.New(dErrors.CodeValidation, "quantity must be at least 1")
	}
	recipient, err := id.ParseAddress(r.Recipient)
	if err != nil {
		return err
	}
	bonus, err := id.ParseAmount(r.BonusPerToken)
	if err != nil {
		return err
	}
	payment, err := id.ParseAmount(r.Payment)
	if err != nil {
		return err
	}
	r.parsedRecipient = recipient
	r.parsedBonus = bonus
	r.parsedPayment = payment
	return nil
}

// MintToGroupRequest is the body for POST /v1/groups/{id}/tokens.
type MintToGroupRequest struct {
	Quantity  uint64 `json:"quantity"`
	Recipient string `json:"recipient"`

	parsedRecipient id.Address
}

func (r *MintToGroupRequest) Normalize() {
	r.Recipient = strings.TrimSpace(r.Recipient)
}

func (r *MintToGroupRequest) Validate() error {
	if r.Quantity == 0 {
		return dErrors.New(dErrors.CodeValidation, "quantity must be at least 1")
	}
	recipient, err := id.ParseAddress(r.Recipient)
	if err != nil {
		return err
	}
	r.parsedRecipient = recipient
	return nil
}

// SetBonusRequest is the body for PUT /v1/groups/{id}/bonus.
type SetBonusRequest struct {
	Active *bool `json:"active"`
}

func (r *SetBonusRequest) Normalize() {}

func (r *SetBonusRequest) Validate() error {
	if r.Active == nil {
		return dErrors.New(dErrors.CodeValidation, "active is required")
	}
	return nil
}
