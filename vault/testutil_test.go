// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vault

import (
	"errors"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	ethtypes "github.com/luxfi/geth/core/types"
	log "github.com/luxfi/log"
	"github.com/stretchr/testify/require"
)

// MockStateDB implements the StateDB interface for testing.
type MockStateDB struct {
	storage     map[common.Address]map[common.Hash]common.Hash
	balances    map[common.Address]*uint256.Int
	logs        []*ethtypes.Log
	blockNumber uint64
	blockTime   uint64
}

func NewMockStateDB() *MockStateDB {
	return &MockStateDB{
		storage:  make(map[common.Address]map[common.Hash]common.Hash),
		balances: make(map[common.Address]*uint256.Int),
		logs:     make([]*ethtypes.Log, 0),
	}
}

func (m *MockStateDB) GetState(addr common.Address, key common.Hash) common.Hash {
	if m.storage[addr] == nil {
		return common.Hash{}
	}
	return m.storage[addr][key]
}

func (m *MockStateDB) SetState(addr common.Address, key common.Hash, value common.Hash) {
	if m.storage[addr] == nil {
		m.storage[addr] = make(map[common.Hash]common.Hash)
	}
	m.storage[addr][key] = value
}

func (m *MockStateDB) GetBalance(addr common.Address) *uint256.Int {
	if bal, ok := m.balances[addr]; ok {
		return bal.Clone()
	}
	return uint256.NewInt(0)
}

func (m *MockStateDB) AddBalance(addr common.Address, amount *uint256.Int) {
	if m.balances[addr] == nil {
		m.balances[addr] = uint256.NewInt(0)
	}
	m.balances[addr] = new(uint256.Int).Add(m.balances[addr], amount)
}

func (m *MockStateDB) SubBalance(addr common.Address, amount *uint256.Int) {
	if m.balances[addr] == nil {
		m.balances[addr] = uint256.NewInt(0)
	}
	m.balances[addr] = new(uint256.Int).Sub(m.balances[addr], amount)
}

func (m *MockStateDB) AddLog(log *ethtypes.Log) { m.logs = append(m.logs, log) }
func (m *MockStateDB) Logs() []*ethtypes.Log    { return m.logs }
func (m *MockStateDB) GetBlockNumber() uint64   { return m.blockNumber }
func (m *MockStateDB) GetBlockTime() uint64     { return m.blockTime }

func (m *MockStateDB) SetBlock(number, time uint64) {
	m.blockNumber = number
	m.blockTime = time
}

// Snapshot deep-copies the mock so tests can diff state before and after a
// failed operation.
func (m *MockStateDB) Snapshot() *MockStateDB {
	c := NewMockStateDB()
	c.blockNumber = m.blockNumber
	c.blockTime = m.blockTime
	for addr, slots := range m.storage {
		c.storage[addr] = make(map[common.Hash]common.Hash, len(slots))
		for k, v := range slots {
			c.storage[addr][k] = v
		}
	}
	for addr, bal := range m.balances {
		c.balances[addr] = bal.Clone()
	}
	return c
}

// Equal compares storage and balances, ignoring logs.
func (m *MockStateDB) Equal(other *MockStateDB) bool {
	for addr, slots := range m.storage {
		for k, v := range slots {
			if other.GetState(addr, k) != v {
				return false
			}
		}
	}
	for addr, slots := range other.storage {
		for k, v := range slots {
			if m.GetState(addr, k) != v {
				return false
			}
		}
	}
	for addr := range m.balances {
		if !m.GetBalance(addr).Eq(other.GetBalance(addr)) {
			return false
		}
	}
	for addr := range other.balances {
		if !m.GetBalance(addr).Eq(other.GetBalance(addr)) {
			return false
		}
	}
	return true
}

// Test fixtures.
var (
	testAuthorizer    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	testWrappedNative = common.HexToAddress("0x00000000000000000000000000000000000000ee")
	testController    = common.HexToAddress("0x0000000000000000000000000000000000000c01")
	testSender        = common.HexToAddress("0x0000000000000000000000000000000000000051")
	testRecipient     = common.HexToAddress("0x0000000000000000000000000000000000000052")
	testRelayer       = common.HexToAddress("0x0000000000000000000000000000000000000053")
	testManager       = common.HexToAddress("0x00000000000000000000000000000000000000f1")

	// Sorted so a TwoToken pool can register the pair directly.
	tokenA = Currency{Address: common.HexToAddress("0x00000000000000000000000000000000000000a1")}
	tokenB = Currency{Address: common.HexToAddress("0x00000000000000000000000000000000000000a2")}
	tokenC = Currency{Address: common.HexToAddress("0x00000000000000000000000000000000000000a3")}
)

func testConfig() Config {
	return Config{
		Authorizer:          testAuthorizer,
		WrappedNative:       testWrappedNative,
		PauseWindowEndTime:  1000,
		BufferPeriodEndTime: 2000,
	}
}

func testLogger() log.Logger {
	return log.NewTestLogger(log.InfoLevel)
}

func newTestVault(t *testing.T) (*Vault, *MockStateDB) {
	t.Helper()
	v, err := New(testConfig(), testLogger())
	require.NoError(t, err)
	m := NewMockStateDB()
	m.SetBlock(10, 100)
	return v, m
}

// ratioPool prices at a fixed rate out = in*num/den, no fee. Implements both
// strategy interfaces so any specialization can use it.
type ratioPool struct {
	num, den int64
}

func (p *ratioPool) OnSwap(req *SwapRequest, balanceIn, balanceOut *big.Int) (*big.Int, error) {
	return p.calc(req.Kind, req.Amount)
}

func (p *ratioPool) OnSwapGeneral(req *SwapRequest, balances []*big.Int, indexIn, indexOut int) (*big.Int, error) {
	return p.calc(req.Kind, req.Amount)
}

func (p *ratioPool) calc(kind SwapKind, amount *big.Int) (*big.Int, error) {
	out := new(big.Int)
	if kind == GivenIn {
		out.Mul(amount, big.NewInt(p.num))
		return out.Quo(out, big.NewInt(p.den)), nil
	}
	out.Mul(amount, big.NewInt(p.den))
	return out.Quo(out, big.NewInt(p.num)), nil
}

// proportionalPool prices from the live balances: out = amount*balanceOut/
// (balanceIn+amount). Used where tests need pricing to see managed funds.
type proportionalPool struct{}

func (p *proportionalPool) OnSwap(req *SwapRequest, balanceIn, balanceOut *big.Int) (*big.Int, error) {
	if req.Kind != GivenIn {
		num := new(big.Int).Mul(balanceIn, req.Amount)
		return num.Quo(num, new(big.Int).Sub(balanceOut, req.Amount)), nil
	}
	num := new(big.Int).Mul(balanceOut, req.Amount)
	return num.Quo(num, new(big.Int).Add(balanceIn, req.Amount)), nil
}

var errPoolRejects = errors.New("pool rejects the trade")

// failingPool always errors, for atomicity and error-propagation tests.
type failingPool struct{}

func (p *failingPool) OnSwap(*SwapRequest, *big.Int, *big.Int) (*big.Int, error) {
	return nil, errPoolRejects
}

// reentrantPool calls back into the vault from inside pricing.
type reentrantPool struct {
	vault *Vault
	state StateDB
}

func (p *reentrantPool) OnSwap(req *SwapRequest, _, _ *big.Int) (*big.Int, error) {
	_, err := p.vault.GetPoolTokens(p.state, req.PoolID)
	if err != nil {
		return nil, err
	}
	ops := []UserBalanceOp{{Kind: TransferInternal, Asset: req.TokenIn, Amount: big.NewInt(1), Sender: req.Sender, Recipient: req.Sender}}
	if err := p.vault.ManageUserBalance(p.state, req.Sender, ops, nil); err != nil {
		return nil, err
	}
	return big.NewInt(1), nil
}

// setupPool registers a pool with the given tokens and joins the given cash
// amounts, minting the controller what it needs.
func setupPool(t *testing.T, v *Vault, m *MockStateDB, spec Specialization, strategy any, tokens []Currency, cash []int64) PoolID {
	t.Helper()
	poolID, err := v.RegisterPool(m, testController, spec, strategy)
	require.NoError(t, err)

	managers := make([]common.Address, len(tokens))
	require.NoError(t, v.RegisterTokens(m, testController, poolID, tokens, managers))

	amounts := make([]*big.Int, len(tokens))
	for i, c := range cash {
		amounts[i] = big.NewInt(c)
		require.NoError(t, MintTokens(m, tokens[i], testController, amounts[i]))
	}
	funds := FundManagement{Sender: testController, Recipient: testController}
	require.NoError(t, v.JoinPool(m, testController, poolID, funds, amounts))
	return poolID
}

func poolCash(t *testing.T, v *Vault, m *MockStateDB, poolID PoolID, token Currency) *big.Int {
	t.Helper()
	info, err := v.GetPoolTokenInfo(m, poolID, token)
	require.NoError(t, err)
	return info.Cash
}

func poolManaged(t *testing.T, v *Vault, m *MockStateDB, poolID PoolID, token Currency) *big.Int {
	t.Helper()
	info, err := v.GetPoolTokenInfo(m, poolID, token)
	require.NoError(t, err)
	return info.Managed
}

// requireBigEqual compares big.Ints numerically. require.Equal uses deep
// equality, which distinguishes zeros with different internal representations
// (e.g. uint256.ToBig() zero vs big.NewInt(0)).
func requireBigEqual(t *testing.T, expected, actual *big.Int) {
	t.Helper()
	require.Zerof(t, expected.Cmp(actual), "expected %s, got %s", expected, actual)
}

func requireBigsEqual(t *testing.T, expected, actual []*big.Int) {
	t.Helper()
	require.Len(t, actual, len(expected))
	for i := range expected {
		requireBigEqual(t, expected[i], actual[i])
	}
}
