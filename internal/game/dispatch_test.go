package game

import (
	"errors"
	"fmt"
	"testing"

	"stonkroyale.gg/internal/chain"
	"stonkroyale.gg/internal/protocol"
)

type fakeSigner struct {
	signed []chain.Tx
}

func (s *fakeSigner) Address() string { return testSelf }

func (s *fakeSigner) SignTx(tx chain.Tx) (string, error) {
	s.signed = append(s.signed, tx)
	return fmt.Sprintf("0xblob%d", tx.Nonce), nil
}

type sendLog struct {
	sent []any
	err  error
}

func (s *sendLog) send(v any) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, v)
	return nil
}

func newTestDispatcher(m *Machine) (*Dispatcher, *fakeSigner, *sendLog) {
	signer := &fakeSigner{}
	out := &sendLog{}
	return NewDispatcher(m, signer, out.send), signer, out
}

func TestSubmitName_WrongPhase(t *testing.T) {
	m, _ := newTestMachine()
	d, _, out := newTestDispatcher(m)
	if err := d.SubmitName("Alice"); !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("err=%v", err)
	}
	if len(out.sent) != 0 {
		t.Fatalf("sent %d messages from wrong phase", len(out.sent))
	}
}

func TestSubmitName_SignsAndSubmitsRegister(t *testing.T) {
	m, _ := newTestMachine()
	advanceToNeedsToRegister(m)
	d, signer, out := newTestDispatcher(m)

	before := m.Phase().(*NeedsToRegister).Params
	if err := d.SubmitName("Alice"); err != nil {
		t.Fatalf("SubmitName: %v", err)
	}

	if len(out.sent) != 2 {
		t.Fatalf("sent=%d want set_name then raw_tx", len(out.sent))
	}
	sn, ok := out.sent[0].(protocol.SetNameMsg)
	if !ok || sn.Name != "Alice" || sn.Address != testSelf {
		t.Fatalf("first send: %#v", out.sent[0])
	}
	rt, ok := out.sent[1].(protocol.RawTxMsg)
	if !ok || rt.RawTx != "0xblob0" {
		t.Fatalf("second send: %#v", out.sent[1])
	}

	if len(signer.signed) != 1 {
		t.Fatalf("signed %d txs", len(signer.signed))
	}
	tx := signer.signed[0]
	if tx.Nonce != 0 || tx.GasLimit != before.Gas.Register || tx.To != before.Contract {
		t.Fatalf("register tx: %+v", tx)
	}

	p, ok := m.Phase().(*AwaitingRegistration)
	if !ok {
		t.Fatalf("phase=%s", m.Phase().Name())
	}
	gasDebit := before.Gas.Register * chain.GasPrice
	if p.Nonce != 1 {
		t.Fatalf("nonce=%d want 1", p.Nonce)
	}
	if p.Funds != before.Funds-gasDebit {
		t.Fatalf("funds=%d want %d", p.Funds, before.Funds-gasDebit)
	}
	if p.DisplayName != "Alice" {
		t.Fatalf("name=%q", p.DisplayName)
	}

	pend := d.Pending()
	if len(pend) != 1 || pend[0].Action != "register" || pend[0].Nonce != 0 {
		t.Fatalf("pending=%+v", pend)
	}
}

func TestSubmitName_SkipsTxWhenAlreadyRegistered(t *testing.T) {
	m, _ := newTestMachine()
	advanceToNeedsToRegister(m)
	// A replayed self position marks the credential as already registered.
	feed(m, protocol.PositionMsg{Type: protocol.TypePosition, Address: testSelf, Balance: 1000, Holdings: 2, BlockNumber: 95})

	d, signer, out := newTestDispatcher(m)
	before := m.Phase().(*NeedsToRegister).Params
	if err := d.SubmitName("Alice"); err != nil {
		t.Fatalf("SubmitName: %v", err)
	}
	if len(out.sent) != 1 {
		t.Fatalf("sent=%d want only set_name", len(out.sent))
	}
	if _, ok := out.sent[0].(protocol.SetNameMsg); !ok {
		t.Fatalf("sent %#v", out.sent[0])
	}
	if len(signer.signed) != 0 {
		t.Fatalf("signed a tx on the skip path")
	}
	p, ok := m.Phase().(*WaitingForGameStart)
	if !ok {
		t.Fatalf("phase=%s", m.Phase().Name())
	}
	if p.Nonce != before.Nonce || p.Funds != before.Funds {
		t.Fatalf("skip path mutated params: %+v", p.Params)
	}
}

func TestSubmitName_InsufficientGas(t *testing.T) {
	m, _ := newTestMachine()
	msgs := paramMessages()
	msgs[0] = protocol.FundedMsg{Type: protocol.TypeFunded, Address: testSelf, Amount: 1}
	feed(m, msgs...)

	d, _, out := newTestDispatcher(m)
	if err := d.SubmitName("Alice"); !errors.Is(err, ErrInsufficientGas) {
		t.Fatalf("err=%v", err)
	}
	if len(out.sent) != 0 {
		t.Fatalf("precondition failure must not send")
	}
	if _, ok := m.Phase().(*NeedsToRegister); !ok {
		t.Fatalf("precondition failure mutated the phase: %s", m.Phase().Name())
	}
}

func tradingMachine(t *testing.T, balance, holdings uint64) *Machine {
	t.Helper()
	m, _ := newTestMachine()
	advanceToTrading(m)
	feed(m, protocol.PositionMsg{Type: protocol.TypePosition, Address: testSelf, Balance: balance, Holdings: holdings, BlockNumber: 100})
	return m
}

func TestBuy_Preconditions(t *testing.T) {
	m := tradingMachine(t, 100, 0) // price is 50
	d, _, out := newTestDispatcher(m)

	if err := d.Buy(0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("amount 0: %v", err)
	}
	if err := d.Buy(3); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("balance 100 price 50 amount 3: %v", err)
	}
	if len(out.sent) != 0 {
		t.Fatalf("failed preconditions sent %d messages", len(out.sent))
	}
	if p := m.Phase().(*Trading); p.Nonce != 0 {
		t.Fatalf("nonce moved on rejected buy: %d", p.Nonce)
	}
}

func TestBuy_BalanceCheckDoesNotWrap(t *testing.T) {
	m := tradingMachine(t, 1000, 0) // price is 50
	d, _, out := newTestDispatcher(m)

	// 50 * 368934881474191033 wraps to 34 in uint64; the gate must still
	// reject an amount the balance can never cover.
	if err := d.Buy(368934881474191033); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("err=%v", err)
	}
	if err := d.Buy(1<<64 - 1); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("max amount: %v", err)
	}
	if len(out.sent) != 0 {
		t.Fatalf("raw_tx emitted for unaffordable buy")
	}
	if p := m.Phase().(*Trading); p.Nonce != 0 {
		t.Fatalf("nonce mutated on rejected buy: %d", p.Nonce)
	}
}

func TestBuy_ZeroFundsNeverSubmits(t *testing.T) {
	m := tradingMachine(t, 1000, 0)
	m.params().Funds = 0
	d, _, out := newTestDispatcher(m)

	if err := d.Buy(1); !errors.Is(err, ErrInsufficientGas) {
		t.Fatalf("err=%v", err)
	}
	if len(out.sent) != 0 {
		t.Fatalf("raw_tx emitted with zero funds")
	}
	if p := m.Phase().(*Trading); p.Nonce != 0 {
		t.Fatalf("nonce mutated: %d", p.Nonce)
	}
}

func TestBuy_SubmitsAndDebits(t *testing.T) {
	m := tradingMachine(t, 1000, 0)
	d, signer, out := newTestDispatcher(m)
	before := m.Phase().(*Trading).Params

	if err := d.Buy(10); err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if len(out.sent) != 1 {
		t.Fatalf("sent=%d", len(out.sent))
	}
	if _, ok := out.sent[0].(protocol.RawTxMsg); !ok {
		t.Fatalf("sent %#v", out.sent[0])
	}
	tx := signer.signed[0]
	wantData := chain.BuyCall(10)
	if string(tx.Data) != string(wantData) {
		t.Fatalf("calldata mismatch")
	}
	if tx.GasLimit != before.Gas.Buy {
		t.Fatalf("gas limit=%d", tx.GasLimit)
	}

	p := m.Phase().(*Trading)
	if p.Nonce != before.Nonce+1 {
		t.Fatalf("nonce=%d", p.Nonce)
	}
	if p.Funds != before.Funds-before.Gas.Buy*chain.GasPrice {
		t.Fatalf("funds not debited: %d", p.Funds)
	}

	// The stored portfolio is untouched until the relay pushes a position.
	if port, _ := m.Ledger().Get(testSelf); port.Balance != 1000 || port.Holdings != 0 {
		t.Fatalf("buy mutated the ledger locally: %+v", port)
	}
}

func TestSell_RequiresHoldings(t *testing.T) {
	m := tradingMachine(t, 1000, 2)
	d, _, _ := newTestDispatcher(m)
	if err := d.Sell(3); !errors.Is(err, ErrInsufficientHoldings) {
		t.Fatalf("err=%v", err)
	}
	if err := d.Sell(2); err != nil {
		t.Fatalf("Sell: %v", err)
	}
	pend := d.Pending()
	if len(pend) != 1 || pend[0].Action != "sell" || pend[0].Amount != 2 {
		t.Fatalf("pending=%+v", pend)
	}
}

func TestTrade_ClosedAtEndHeight(t *testing.T) {
	m := tradingMachine(t, 1000, 5)
	feed(m, protocol.CurrentBlockHeightMsg{Type: protocol.TypeCurrentBlockHeight, Height: 400})
	d, _, out := newTestDispatcher(m)
	if err := d.Buy(1); !errors.Is(err, ErrTradingClosed) {
		t.Fatalf("buy: %v", err)
	}
	if err := d.Sell(1); !errors.Is(err, ErrTradingClosed) {
		t.Fatalf("sell: %v", err)
	}
	if len(out.sent) != 0 {
		t.Fatalf("closed window sent %d messages", len(out.sent))
	}
}

func TestSendFailure_DoesNotAdvanceState(t *testing.T) {
	m, _ := newTestMachine()
	advanceToNeedsToRegister(m)
	d, _, out := newTestDispatcher(m)
	out.err = errors.New("connection reset")

	if err := d.SubmitName("Alice"); err == nil {
		t.Fatalf("send failure not surfaced")
	}
	if _, ok := m.Phase().(*NeedsToRegister); !ok {
		t.Fatalf("failed send advanced the phase: %s", m.Phase().Name())
	}
}

// Full session walk-through: join, register, trade, restart.
func TestSession_EndToEnd(t *testing.T) {
	m, notices := newTestMachine()
	d, _, out := newTestDispatcher(m)

	// Join parameters arrive in relay order.
	feed(m,
		protocol.CurrentPriceMsg{Type: protocol.TypeCurrentPrice, Price: 50},
		protocol.ConnectionInfoMsg{
			Type:            protocol.TypeConnectionInfo,
			ContractAddress: testContract,
			GasCosts:        protocol.GasInfo{Register: 115000, Buy: 35529, Sell: 35529},
		},
		protocol.NonceResponseMsg{Type: protocol.TypeNonceResponse, Address: testSelf, Nonce: 0},
		protocol.FundedMsg{Type: protocol.TypeFunded, Address: testSelf, Amount: 500000000000000000},
	)
	if err := d.SubmitName("Alice"); err != nil {
		t.Fatalf("register: %v", err)
	}

	// Relay confirms registration, then schedules the round.
	feed(m,
		protocol.NameSetMsg{Type: protocol.TypeNameSet, Address: testSelf, Name: "Alice"},
		protocol.PositionMsg{Type: protocol.TypePosition, Address: testSelf, Balance: 1000, Holdings: 0, BlockNumber: 99},
		protocol.GameStartedMsg{Type: protocol.TypeGameStarted, StartHeight: 100, EndHeight: 400},
		protocol.CurrentBlockHeightMsg{Type: protocol.TypeCurrentBlockHeight, Height: 100},
	)
	if _, ok := m.Phase().(*Trading); !ok {
		t.Fatalf("phase=%s", m.Phase().Name())
	}

	if err := d.Buy(5); err != nil {
		t.Fatalf("buy: %v", err)
	}
	feed(m,
		protocol.PositionMsg{Type: protocol.TypePosition, Address: testSelf, Balance: 750, Holdings: 5, BlockNumber: 101},
		protocol.PriceUpdateMsg{Type: protocol.TypePriceUpdate, OldPrice: 50, NewPrice: 55, BlockNumber: 102},
	)
	if err := d.Sell(5); err != nil {
		t.Fatalf("sell: %v", err)
	}
	feed(m,
		protocol.PositionMsg{Type: protocol.TypePosition, Address: testSelf, Balance: 1025, Holdings: 0, BlockNumber: 103},
		protocol.GameEndedMsg{Type: protocol.TypeGameEnded},
	)
	if _, ok := m.Phase().(*Ended); !ok {
		t.Fatalf("phase=%s", m.Phase().Name())
	}
	if port, _ := m.Ledger().Get(testSelf); port.Balance != 1025 {
		t.Fatalf("final balance=%d", port.Balance)
	}

	// One set_name plus three raw_tx submissions went out.
	var raw, names int
	for _, v := range out.sent {
		switch v.(type) {
		case protocol.RawTxMsg:
			raw++
		case protocol.SetNameMsg:
			names++
		}
	}
	if raw != 3 || names != 1 {
		t.Fatalf("raw=%d names=%d", raw, names)
	}
	if len(*notices) == 0 {
		t.Fatalf("session produced no notices")
	}
}
