// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package vault implements the singleton AMM vault: pooled token custody,
// per-pool balance accounting, batch swap execution and settlement.
//
// All pools share this single contract. Pool pricing logic lives outside the
// vault and is consumed through the MinimalSwapInfoPool and GeneralPool
// interfaces; the vault only moves balances and enforces solvency.
package vault

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/luxfi/geth/common"
)

// Vault precompile address (LP-9030 series).
var VaultAddress = common.HexToAddress("0x0000000000000000000000000000000000009030")

// Currency represents a token (native or ERC20).
// Address(0) represents the native asset.
type Currency struct {
	Address common.Address
}

// NativeCurrency is the sentinel for the chain's native asset.
var NativeCurrency = Currency{Address: common.Address{}}

// IsNative returns true if this currency is the native asset.
func (c Currency) IsNative() bool {
	return c.Address == common.Address{}
}

// ToBytes serializes the currency for storage.
func (c Currency) ToBytes() []byte {
	return c.Address.Bytes()
}

// CurrencyFromBytes deserializes a currency from storage.
func CurrencyFromBytes(data []byte) Currency {
	return Currency{Address: common.BytesToAddress(data)}
}

// Cmp orders currencies by address bytes.
func (c Currency) Cmp(other Currency) int {
	return bytes.Compare(c.Address.Bytes(), other.Address.Bytes())
}

// Specialization selects a pool's storage layout and dispatch tier.
// It is fixed at pool registration and encoded into the pool ID.
type Specialization uint8

const (
	// SpecGeneral pools hold any number of tokens and are priced against
	// the full balance vector.
	SpecGeneral Specialization = iota

	// SpecMinimalSwapInfo pools hold any number of tokens but are priced
	// against the in/out pair only.
	SpecMinimalSwapInfo

	// SpecTwoToken pools hold exactly two tokens, stored as a sorted pair
	// with a shared last-change marker.
	SpecTwoToken
)

func (s Specialization) String() string {
	switch s {
	case SpecGeneral:
		return "general"
	case SpecMinimalSwapInfo:
		return "minimal-swap-info"
	case SpecTwoToken:
		return "two-token"
	default:
		return "unknown"
	}
}

// PoolID uniquely identifies a pool. Layout:
//
//	[0:20]  pool controller address
//	[20]    specialization tag
//	[24:32] registration nonce (big endian)
type PoolID [32]byte

func newPoolID(pool common.Address, spec Specialization, nonce uint64) PoolID {
	var id PoolID
	copy(id[0:20], pool.Bytes())
	id[20] = byte(spec)
	binary.BigEndian.PutUint64(id[24:32], nonce)
	return id
}

// Pool returns the controller address encoded in the ID.
func (id PoolID) Pool() common.Address {
	return common.BytesToAddress(id[0:20])
}

// Specialization returns the specialization tag encoded in the ID.
func (id PoolID) Specialization() Specialization {
	return Specialization(id[20])
}

// Nonce returns the registration nonce encoded in the ID.
func (id PoolID) Nonce() uint64 {
	return binary.BigEndian.Uint64(id[24:32])
}

// SwapKind selects which side of a swap is fixed by the caller.
type SwapKind uint8

const (
	// GivenIn fixes the amount of token-in; the strategy computes the out
	// amount.
	GivenIn SwapKind = iota

	// GivenOut fixes the amount of token-out; the strategy computes the in
	// amount.
	GivenOut
)

// SwapStep is one hop of a batch swap. A zero Amount means "use the amount
// computed by the previous step", which is only valid after the first step
// and only when the steps chain on the same token.
type SwapStep struct {
	Pool     PoolID
	TokenIn  Currency
	TokenOut Currency
	Amount   *big.Int
	UserData []byte
}

// FundManagement describes where a batch's funds come from and go to.
// Sender pays positive deltas, Recipient receives negative ones; the two
// internal-balance flags let either leg run through the internal ledger.
type FundManagement struct {
	Sender              common.Address
	FromInternalBalance bool
	Recipient           common.Address
	ToInternalBalance   bool
}

// SwapRequest carries the context a pool strategy prices against.
type SwapRequest struct {
	Kind            SwapKind
	TokenIn         Currency
	TokenOut        Currency
	Amount          *big.Int
	PoolID          PoolID
	LastChangeBlock uint64
	Sender          common.Address
	Recipient       common.Address
	UserData        []byte
}

// MinimalSwapInfoPool prices a swap from the in/out pair balances only.
// Used by TwoToken and MinimalSwapInfo pools.
//
// OnSwap must be a pure function of its arguments. For GivenIn requests it
// returns the out amount, for GivenOut the in amount. Results must be
// non-negative and must not exceed balanceOut.
type MinimalSwapInfoPool interface {
	OnSwap(req *SwapRequest, balanceIn, balanceOut *big.Int) (*big.Int, error)
}

// GeneralPool prices a swap from the pool's full balance vector.
// Used by General pools.
type GeneralPool interface {
	OnSwapGeneral(req *SwapRequest, balances []*big.Int, indexIn, indexOut int) (*big.Int, error)
}

// PoolBalanceOpKind selects an asset-manager operation.
type PoolBalanceOpKind uint8

const (
	// PoolBalanceWithdraw moves cash out of the vault into the manager's
	// hands, keeping it accounted as managed.
	PoolBalanceWithdraw PoolBalanceOpKind = iota

	// PoolBalanceDeposit returns managed funds to the vault as cash.
	PoolBalanceDeposit

	// PoolBalanceUpdate reconciles the managed amount after external gains
	// or losses. Unlike withdraw/deposit it changes the pool's total.
	PoolBalanceUpdate
)

// PoolBalanceOp is one asset-manager operation in a ManagePoolBalance batch.
type PoolBalanceOp struct {
	Kind   PoolBalanceOpKind
	PoolID PoolID
	Token  Currency
	Amount *big.Int
}

// UserBalanceOpKind selects an internal-balance operation.
type UserBalanceOpKind uint8

const (
	// DepositInternal pulls external funds from the sender and credits the
	// recipient's internal balance.
	DepositInternal UserBalanceOpKind = iota

	// WithdrawInternal debits the sender's internal balance and sends
	// external funds to the recipient.
	WithdrawInternal

	// TransferInternal moves internal balance between accounts without
	// touching external funds.
	TransferInternal
)

// UserBalanceOp is one operation in a ManageUserBalance batch.
type UserBalanceOp struct {
	Kind      UserBalanceOpKind
	Asset     Currency
	Amount    *big.Int
	Sender    common.Address
	Recipient common.Address
}

// Errors - authorization
var (
	ErrUnauthorized       = errors.New("caller not authorized")
	ErrRelayerNotApproved = errors.New("relayer not approved by sender")
)

// Errors - registration
var (
	ErrInvalidToken           = errors.New("invalid token address")
	ErrLengthMismatch         = errors.New("input length mismatch")
	ErrTokenAlreadyRegistered = errors.New("token already registered")
	ErrTokenNotRegistered     = errors.New("token not registered")
	ErrInvalidTokenCount      = errors.New("invalid token count for specialization")
	ErrTokensMismatch         = errors.New("tokens do not match registered set")
	ErrPoolNotFound           = errors.New("pool not found")
)

// Errors - balance arithmetic
var (
	ErrBalanceOverflow  = errors.New("balance field overflow")
	ErrInsufficientCash = errors.New("insufficient cash balance")
	ErrExceedsManaged   = errors.New("amount exceeds managed balance")
	ErrNonZeroBalance   = errors.New("token balance is not zero")
	ErrNegativeAmount   = errors.New("negative amount")
)

// Errors - swaps
var (
	ErrUnknownAmountInFirstSwap = errors.New("first swap step has no amount")
	ErrMalconstructedMultihop   = errors.New("malconstructed multihop swap")
	ErrSwapLimitExceeded        = errors.New("swap exceeds token limit")
	ErrDeadlineExpired          = errors.New("swap deadline expired")
	ErrLimitsLengthMismatch     = errors.New("limits length does not match assets")
	ErrCannotSwapSameToken      = errors.New("cannot swap token for itself")
)

// Errors - settlement
var (
	ErrInsufficientNative             = errors.New("insufficient native asset attached")
	ErrInternalBalanceForNative       = errors.New("cannot use internal balance for native asset")
	ErrCreditInternalBalanceForNative = errors.New("cannot credit internal balance with native asset")
	ErrInsufficientBalance            = errors.New("insufficient token balance")
	ErrInsufficientInternalBalance    = errors.New("insufficient internal balance")
)

// Errors - operational
var (
	ErrPaused           = errors.New("vault is paused")
	ErrReentrancy       = errors.New("reentrant vault call")
	ErrPauseExpired     = errors.New("pause window expired")
	ErrStrategyKind     = errors.New("strategy does not match pool specialization")
	ErrNilStateDB       = errors.New("nil state database")
	ErrAmountTooWide    = errors.New("amount does not fit balance field")
	ErrUnknownOperation = errors.New("unknown operation kind")
)
