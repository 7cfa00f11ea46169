package game

import (
	"errors"
	"fmt"
	"time"

	"stonkroyale.gg/internal/chain"
	"stonkroyale.gg/internal/protocol"
)

// Dispatcher precondition failures. All are recoverable: no transaction
// is attempted and no state mutates.
var (
	ErrWrongPhase           = errors.New("action not available in current phase")
	ErrTradingClosed        = errors.New("trading window closed")
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrInsufficientGas      = errors.New("insufficient gas funds")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrInsufficientHoldings = errors.New("insufficient holdings")
)

// PendingEffect records one optimistic local mutation made at submission
// time. tx_error and tx_submitted carry no correlation id, so entries are
// never matched back or rolled back; the list exists as the extension
// point for a future reconciliation pass.
type PendingEffect struct {
	Action      string
	Amount      uint64
	Nonce       uint64
	GasDebit    uint64
	TxHash      string
	SubmittedAt time.Time
}

// SendFunc emits one outbound message to the relay.
type SendFunc func(v any) error

// Dispatcher turns user intents into signed, submitted transactions. It
// enforces purely local preconditions before spending any gas budget and
// advances nonce/funds optimistically after each submission.
type Dispatcher struct {
	m        *Machine
	signer   chain.Signer
	send     SendFunc
	gasPrice uint64
	now      func() time.Time

	pending []PendingEffect
}

func NewDispatcher(m *Machine, signer chain.Signer, send SendFunc) *Dispatcher {
	return &Dispatcher{
		m:        m,
		signer:   signer,
		send:     send,
		gasPrice: chain.GasPrice,
		now:      time.Now,
	}
}

// Pending returns the optimistic submissions made so far, oldest first.
func (d *Dispatcher) Pending() []PendingEffect {
	out := make([]PendingEffect, len(d.pending))
	copy(out, d.pending)
	return out
}

// SubmitName registers the chosen display name. If the local portfolio
// already shows funds or holdings the player registered in an earlier
// session, so the on-chain register transaction is skipped.
func (d *Dispatcher) SubmitName(name string) error {
	p, ok := d.m.Phase().(*NeedsToRegister)
	if !ok {
		return ErrWrongPhase
	}

	if port, known := d.m.Ledger().Get(d.m.Self()); known && (port.Balance > 0 || port.Holdings > 0) {
		if err := d.send(protocol.NewSetName(name, d.signer.Address())); err != nil {
			return err
		}
		d.m.phase = &WaitingForGameStart{Params: p.Params, DisplayName: name}
		return nil
	}

	gasDebit := p.Gas.Register * d.gasPrice
	if gasDebit > p.Funds {
		return ErrInsufficientGas
	}

	tx := chain.Tx{
		Nonce:    p.Nonce,
		GasPrice: d.gasPrice,
		GasLimit: p.Gas.Register,
		To:       p.Contract,
		Data:     chain.RegisterCall(),
	}
	blob, txHash, err := d.signTx(tx)
	if err != nil {
		return fmt.Errorf("sign register: %w", err)
	}
	if err := d.send(protocol.NewSetName(name, d.signer.Address())); err != nil {
		return err
	}
	if err := d.send(protocol.NewRawTx(blob)); err != nil {
		return err
	}

	d.recordSubmission("register", 0, p.Nonce, gasDebit, txHash)
	next := &AwaitingRegistration{Params: p.Params, DisplayName: name}
	next.Nonce++
	next.Funds -= gasDebit
	d.m.phase = next
	return nil
}

// Buy submits a buy for amount holdings at the current price.
func (d *Dispatcher) Buy(amount uint64) error {
	p, err := d.tradingPhase()
	if err != nil {
		return err
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	gasDebit := p.Gas.Buy * d.gasPrice
	if gasDebit > p.Funds {
		return ErrInsufficientGas
	}
	// Compare via division: amount*price would wrap for huge amounts and
	// let an unaffordable buy through.
	port, _ := d.m.Ledger().Get(d.m.Self())
	if p.Price > 0 && amount > port.Balance/p.Price {
		return ErrInsufficientBalance
	}
	return d.submitTrade(p, "buy", amount, p.Gas.Buy, gasDebit, chain.BuyCall(amount))
}

// Sell submits a sell for amount holdings.
func (d *Dispatcher) Sell(amount uint64) error {
	p, err := d.tradingPhase()
	if err != nil {
		return err
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	gasDebit := p.Gas.Sell * d.gasPrice
	if gasDebit > p.Funds {
		return ErrInsufficientGas
	}
	port, _ := d.m.Ledger().Get(d.m.Self())
	if port.Holdings < amount {
		return ErrInsufficientHoldings
	}
	return d.submitTrade(p, "sell", amount, p.Gas.Sell, gasDebit, chain.SellCall(amount))
}

func (d *Dispatcher) tradingPhase() (*Trading, error) {
	p, ok := d.m.Phase().(*Trading)
	if !ok {
		return nil, ErrWrongPhase
	}
	if p.Session.Over() {
		return nil, ErrTradingClosed
	}
	return p, nil
}

func (d *Dispatcher) submitTrade(p *Trading, action string, amount, gasLimit, gasDebit uint64, calldata []byte) error {
	tx := chain.Tx{
		Nonce:    p.Nonce,
		GasPrice: d.gasPrice,
		GasLimit: gasLimit,
		To:       p.Contract,
		Data:     calldata,
	}
	blob, txHash, err := d.signTx(tx)
	if err != nil {
		return fmt.Errorf("sign %s: %w", action, err)
	}
	if err := d.send(protocol.NewRawTx(blob)); err != nil {
		return err
	}
	d.recordSubmission(action, amount, p.Nonce, gasDebit, txHash)
	p.Nonce++
	p.Funds -= gasDebit
	return nil
}

func (d *Dispatcher) signTx(tx chain.Tx) (blob, txHash string, err error) {
	type hashSigner interface {
		SignTxHash(chain.Tx) (string, string, error)
	}
	if hs, ok := d.signer.(hashSigner); ok {
		return hs.SignTxHash(tx)
	}
	blob, err = d.signer.SignTx(tx)
	return blob, "", err
}

func (d *Dispatcher) recordSubmission(action string, amount, nonce, gasDebit uint64, txHash string) {
	d.pending = append(d.pending, PendingEffect{
		Action:      action,
		Amount:      amount,
		Nonce:       nonce,
		GasDebit:    gasDebit,
		TxHash:      txHash,
		SubmittedAt: d.now(),
	})
}
