package ledger

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	addrX = common.HexToAddress("0x1000000000000000000000000000000000000001")
	addrY = common.HexToAddress("0x2000000000000000000000000000000000000002")
	addrZ = common.HexToAddress("0x3000000000000000000000000000000000000003")
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func maxU256() *uint256.Int {
	return new(uint256.Int).SetAllOne()
}

func sumBalances(l *Ledger) *uint256.Int {
	total := new(uint256.Int)
	for _, addr := range l.Accounts() {
		total.Add(total, l.Get(addr))
	}
	return total
}

func TestGetAbsentIsZero(t *testing.T) {
	l := New()
	assert.True(t, l.Get(addrX).IsZero())
	assert.False(t, l.Has(addrX))
}

func TestGetReturnsCopy(t *testing.T) {
	l := New()
	require.NoError(t, l.Mint(addrX, u(10)))
	bal := l.Get(addrX)
	bal.SetUint64(999)
	assert.Equal(t, u(10), l.Get(addrX))
}

func TestCreditOverflow(t *testing.T) {
	l := New()
	require.NoError(t, l.Credit(addrX, maxU256()))
	err := l.Credit(addrX, u(1))
	assert.ErrorIs(t, err, ErrOverflow)
	assert.Equal(t, maxU256(), l.Get(addrX))
}

func TestDebitInsufficient(t *testing.T) {
	l := New()
	require.NoError(t, l.Mint(addrX, u(5)))
	err := l.Debit(addrX, u(6))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, u(5), l.Get(addrX))
}

func TestTransfer(t *testing.T) {
	tests := []struct {
		name     string
		initial  uint64
		amount   uint64
		wantErr  error
		wantX    uint64
		wantY    uint64
		wantRecd bool
	}{
		{"plain", 42000, 15, nil, 41985, 15, true},
		{"exact balance", 15, 15, nil, 0, 15, true},
		{"insufficient", 0, 15, ErrInsufficientBalance, 0, 0, false},
		{"zero amount", 0, 0, nil, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New()
			if tt.initial > 0 {
				require.NoError(t, l.Mint(addrX, u(tt.initial)))
			}
			rec, err := l.Transfer(addrX, addrY, u(tt.amount))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantRecd, rec.Applied)
			assert.Equal(t, u(tt.wantX), l.Get(addrX))
			assert.Equal(t, u(tt.wantY), l.Get(addrY))
		})
	}
}

func TestTransferSelf(t *testing.T) {
	l := New()
	require.NoError(t, l.Mint(addrX, u(7)))
	rec, err := l.Transfer(addrX, addrX, u(7))
	require.NoError(t, err)
	assert.True(t, rec.Applied)
	assert.Equal(t, u(7), l.Get(addrX))
}

func TestTransferCreditOverflowRestoresDebit(t *testing.T) {
	l := New()
	require.NoError(t, l.Credit(addrX, u(10)))
	require.NoError(t, l.Credit(addrY, maxU256()))

	rec, err := l.Transfer(addrX, addrY, u(1))
	assert.ErrorIs(t, err, ErrOverflow)
	assert.False(t, rec.Applied)
	assert.Equal(t, u(10), l.Get(addrX))
	assert.Equal(t, maxU256(), l.Get(addrY))
}

func TestConservation(t *testing.T) {
	l := New()
	require.NoError(t, l.Mint(addrX, u(1000)))
	require.NoError(t, l.Mint(addrY, u(500)))
	before := sumBalances(l)

	moves := []struct {
		from, to common.Address
		amount   uint64
	}{
		{addrX, addrY, 300},
		{addrY, addrZ, 800},
		{addrZ, addrX, 1},
		{addrX, addrZ, 5000}, // rejected
		{addrZ, addrZ, 20},
	}
	for _, m := range moves {
		_, _ = l.Transfer(m.from, m.to, u(m.amount))
		assert.Equal(t, before, sumBalances(l))
		assert.Equal(t, before, l.TotalSupply())
	}
}

func TestMintBurn(t *testing.T) {
	l := New()
	require.NoError(t, l.Mint(addrX, u(100)))
	assert.Equal(t, u(100), l.TotalSupply())

	require.NoError(t, l.Burn(addrX, u(40)))
	assert.Equal(t, u(60), l.Get(addrX))
	assert.Equal(t, u(60), l.TotalSupply())

	err := l.Burn(addrX, u(61))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, u(60), l.TotalSupply())
}

func TestMintOverflow(t *testing.T) {
	l := New()
	require.NoError(t, l.Mint(addrX, maxU256()))
	err := l.Mint(addrY, u(1))
	assert.ErrorIs(t, err, ErrOverflow)
	assert.True(t, l.Get(addrY).IsZero())
	assert.Equal(t, maxU256(), l.TotalSupply())
}

func TestStaticGuard(t *testing.T) {
	l := New()
	require.NoError(t, l.Mint(addrX, u(10)))

	l.EnterStatic()
	l.EnterStatic()
	assert.True(t, l.IsStatic())

	_, err := l.Transfer(addrX, addrY, u(1))
	assert.ErrorIs(t, err, ErrStaticContextViolation)
	_, err = l.Transfer(addrX, addrY, u(0))
	assert.ErrorIs(t, err, ErrStaticContextViolation)
	assert.ErrorIs(t, l.Mint(addrX, u(1)), ErrStaticContextViolation)
	assert.ErrorIs(t, l.Burn(addrX, u(1)), ErrStaticContextViolation)
	assert.Equal(t, u(10), l.Get(addrX))

	l.ExitStatic()
	assert.True(t, l.IsStatic())
	l.ExitStatic()
	assert.False(t, l.IsStatic())
	_, err = l.Transfer(addrX, addrY, u(1))
	assert.NoError(t, err)
}

func TestSnapshotRevert(t *testing.T) {
	l := New()
	require.NoError(t, l.Mint(addrX, u(100)))
	l.Finalise()

	snap := l.Snapshot()
	_, err := l.Transfer(addrX, addrY, u(30))
	require.NoError(t, err)
	require.NoError(t, l.Mint(addrZ, u(5)))
	inner := l.Snapshot()
	require.NoError(t, l.Burn(addrX, u(70)))

	l.RevertToSnapshot(inner)
	assert.Equal(t, u(70), l.Get(addrX))
	assert.Equal(t, u(105), l.TotalSupply())

	l.RevertToSnapshot(snap)
	assert.Equal(t, u(100), l.Get(addrX))
	assert.False(t, l.Has(addrY))
	assert.False(t, l.Has(addrZ))
	assert.Equal(t, u(100), l.TotalSupply())
}

func TestUndoLogUnwindsNewestFirst(t *testing.T) {
	l := New()
	require.NoError(t, l.Mint(addrX, u(50)))

	var undo UndoLog
	rec, err := l.Transfer(addrX, addrY, u(50))
	require.NoError(t, err)
	undo.Record(rec)

	// Y forwards everything it received; unwinding out of order would fail.
	var child UndoLog
	rec, err = l.Transfer(addrY, addrZ, u(50))
	require.NoError(t, err)
	child.Record(rec)
	undo.Merge(child)

	rejected, err := l.Transfer(addrY, addrZ, u(1))
	require.Error(t, err)
	undo.Record(rejected)
	assert.Equal(t, 2, undo.Len())

	require.NoError(t, undo.Unwind(l))
	assert.Equal(t, 0, undo.Len())
	assert.Equal(t, u(50), l.Get(addrX))
	assert.True(t, l.Get(addrY).IsZero())
	assert.True(t, l.Get(addrZ).IsZero())
}

func TestUndoLogRollbackFailed(t *testing.T) {
	l := New()
	require.NoError(t, l.Mint(addrX, u(10)))

	var undo UndoLog
	rec, err := l.Transfer(addrX, addrY, u(10))
	require.NoError(t, err)
	undo.Record(rec)

	// Balance leaves Y outside the undo discipline.
	require.NoError(t, l.Burn(addrY, u(10)))

	err = undo.Unwind(l)
	assert.True(t, errors.Is(err, ErrRollbackFailed))
}

type memBalances map[common.Address]*uint256.Int

func (m memBalances) WriteBalance(addr common.Address, bal *uint256.Int) error {
	m[addr] = bal.Clone()
	return nil
}

func (m memBalances) IterateBalances(fn func(common.Address, *uint256.Int) error) error {
	for addr, bal := range m {
		if err := fn(addr, bal); err != nil {
			return err
		}
	}
	return nil
}

func TestCommitLoad(t *testing.T) {
	l := New()
	require.NoError(t, l.Mint(addrX, u(12)))
	require.NoError(t, l.Mint(addrY, u(30)))
	_, err := l.Transfer(addrY, addrZ, u(30))
	require.NoError(t, err)

	store := memBalances{}
	require.NoError(t, l.Commit(store))
	assert.Len(t, store, 3)

	reloaded := New()
	require.NoError(t, reloaded.Load(store))
	assert.Equal(t, l.Accounts(), reloaded.Accounts())
	for _, addr := range l.Accounts() {
		assert.Equal(t, l.Get(addr), reloaded.Get(addr))
	}
	assert.Equal(t, u(42), reloaded.TotalSupply())
	assert.True(t, reloaded.Has(addrY))
}

func TestTokenViewMatchesLedger(t *testing.T) {
	l := New()
	view := NewTokenView(l)
	require.NoError(t, l.Mint(addrX, u(42000)))
	_, err := l.Transfer(addrX, addrY, u(15))
	require.NoError(t, err)

	for _, addr := range []common.Address{addrX, addrY, addrZ} {
		assert.Equal(t, l.Get(addr), view.BalanceOf(addr))

		input, err := TokenABI.Pack("balanceOf", addr)
		require.NoError(t, err)
		out, err := view.Call(input)
		require.NoError(t, err)
		assert.Equal(t, l.Get(addr).Bytes32(), [32]byte(out))
	}

	input, err := TokenABI.Pack("totalSupply")
	require.NoError(t, err)
	out, err := view.Call(input)
	require.NoError(t, err)
	vals, err := TokenABI.Unpack("totalSupply", out)
	require.NoError(t, err)
	assert.Equal(t, uint64(42000), vals[0].(*big.Int).Uint64())
}

func TestTokenViewMetadata(t *testing.T) {
	view := NewTokenView(New())

	out, err := view.Call(TokenABI.Methods["symbol"].ID)
	require.NoError(t, err)
	vals, err := TokenABI.Unpack("symbol", out)
	require.NoError(t, err)
	assert.Equal(t, TokenSymbol, vals[0])

	out, err = view.Call(TokenABI.Methods["decimals"].ID)
	require.NoError(t, err)
	vals, err = TokenABI.Unpack("decimals", out)
	require.NoError(t, err)
	assert.Equal(t, TokenDecimals, vals[0])
}

func TestTokenViewRejectsMutation(t *testing.T) {
	l := New()
	view := NewTokenView(l)
	require.NoError(t, l.Mint(addrX, u(10)))

	input, err := TokenABI.Pack("transfer", addrY, big.NewInt(1))
	require.NoError(t, err)
	out, err := view.Call(input)
	assert.ErrorIs(t, err, ErrTokenCallReverted)
	assert.Equal(t, revertSelector, out[:4])
	assert.Equal(t, u(10), l.Get(addrX))

	_, err = view.Call([]byte{0x01})
	assert.ErrorIs(t, err, ErrTokenCallReverted)
	_, err = view.Call([]byte{0xde, 0xad, 0xbe, 0xef})
	assert.ErrorIs(t, err, ErrTokenCallReverted)
}
