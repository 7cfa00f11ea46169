package game

import (
	"fmt"

	"stonkroyale.gg/internal/protocol"
)

// Machine owns the current phase and applies inbound messages to it.
// Every transition is a function of (current phase, message); messages
// that do not apply to the current phase are no-ops, which tolerates
// retransmission and out-of-order delivery. Machine is not safe for
// concurrent use: the engine serializes all access.
type Machine struct {
	self   string
	phase  Phase
	ledger *Ledger
	names  *Directory
	prices *History

	notify func(string)
}

// NewMachine builds a machine for the local identity selfAddress. notify
// receives user-visible transient notices; nil means discard.
func NewMachine(selfAddress string, notify func(string)) *Machine {
	if notify == nil {
		notify = func(string) {}
	}
	return &Machine{
		self:   protocol.NormalizeAddress(selfAddress),
		phase:  &Initial{},
		ledger: NewLedger(),
		names:  NewDirectory(),
		prices: NewHistory(),
		notify: notify,
	}
}

func (m *Machine) Self() string      { return m.self }
func (m *Machine) Phase() Phase      { return m.phase }
func (m *Machine) Ledger() *Ledger   { return m.ledger }
func (m *Machine) Names() *Directory { return m.names }
func (m *Machine) Prices() *History  { return m.prices }

// Start marks the local credential ready: Initial -> WaitingForParams.
func (m *Machine) Start() {
	if _, ok := m.phase.(*Initial); ok {
		m.phase = &WaitingForParams{}
	}
}

func (m *Machine) aboutSelf(address string) bool {
	return protocol.SameAddress(address, m.self)
}

// params returns the mutable session data of the current phase, or nil
// before the first join barrier.
func (m *Machine) params() *Params {
	switch p := m.phase.(type) {
	case *NeedsToRegister:
		return &p.Params
	case *AwaitingRegistration:
		return &p.Params
	case *WaitingForGameStart:
		return &p.Params
	case *Trading:
		return &p.Params
	case *Ended:
		return &p.Params
	}
	return nil
}

func (m *Machine) displayName() *string {
	switch p := m.phase.(type) {
	case *AwaitingRegistration:
		return &p.DisplayName
	case *WaitingForGameStart:
		return &p.DisplayName
	case *Trading:
		return &p.DisplayName
	case *Ended:
		return &p.DisplayName
	}
	return nil
}

// Handle applies one inbound message to the current state.
func (m *Machine) Handle(msg protocol.Message) {
	switch v := msg.(type) {
	case protocol.FundedMsg:
		m.onFunded(v)
	case protocol.FundErrorMsg:
		m.onFundError(v)
	case protocol.ConnectionInfoMsg:
		m.onConnectionInfo(v)
	case protocol.NonceResponseMsg:
		m.onNonceResponse(v)
	case protocol.PriceUpdateMsg:
		m.onPriceUpdate(v)
	case protocol.CurrentPriceMsg:
		m.onCurrentPrice(v)
	case protocol.CurrentBlockHeightMsg:
		m.onCurrentBlockHeight(v)
	case protocol.NameSetMsg:
		m.onNameSet(v)
	case protocol.PositionMsg:
		m.onPosition(v)
	case protocol.TxErrorMsg:
		m.notify("transaction failed: " + v.Error)
	case protocol.TxSubmittedMsg:
		m.notify("transaction submitted: " + v.TxHash)
	case protocol.GameStartedMsg:
		m.onGameStarted(v)
	case protocol.GameEndedMsg:
		m.onGameEnded()
	}
}

func (m *Machine) onFunded(v protocol.FundedMsg) {
	if !m.aboutSelf(v.Address) {
		return
	}
	p, ok := m.phase.(*WaitingForParams)
	if !ok {
		return
	}
	p.Funds = v.Amount
	p.HaveFunds = true
	m.maybeRegisterReady(p)
}

func (m *Machine) onFundError(v protocol.FundErrorMsg) {
	if m.aboutSelf(v.Address) {
		m.notify("funding failed: " + v.Error)
	}
}

func (m *Machine) onConnectionInfo(v protocol.ConnectionInfoMsg) {
	p, ok := m.phase.(*WaitingForParams)
	if !ok {
		return
	}
	p.Contract = protocol.NormalizeAddress(v.ContractAddress)
	p.Gas = v.GasCosts
	p.HaveInfo = true
	m.maybeRegisterReady(p)
}

func (m *Machine) onNonceResponse(v protocol.NonceResponseMsg) {
	if !m.aboutSelf(v.Address) {
		return
	}
	p, ok := m.phase.(*WaitingForParams)
	if !ok {
		return
	}
	p.Nonce = v.Nonce
	p.HaveNonce = true
	m.maybeRegisterReady(p)
}

func (m *Machine) onCurrentPrice(v protocol.CurrentPriceMsg) {
	if p, ok := m.phase.(*WaitingForParams); ok {
		p.Price = v.Price
		p.HavePrice = true
		m.maybeRegisterReady(p)
		return
	}
	if params := m.params(); params != nil {
		params.Price = v.Price
	}
}

func (m *Machine) onPriceUpdate(v protocol.PriceUpdateMsg) {
	switch p := m.phase.(type) {
	case *WaitingForParams:
		p.Price = v.NewPrice
		p.HavePrice = true
		m.maybeRegisterReady(p)
	case *WaitingForGameStart:
		p.Price = v.NewPrice
		p.CurrentHeight = v.BlockNumber
		p.HaveHeight = true
		m.maybeTradingReady(p)
	case *Trading:
		p.Price = v.NewPrice
		m.prices.Append(v.BlockNumber, v.NewPrice)
		if v.BlockNumber > p.Session.CurrentHeight {
			p.Session.CurrentHeight = v.BlockNumber
		}
	case *NeedsToRegister:
		p.Price = v.NewPrice
	case *AwaitingRegistration:
		p.Price = v.NewPrice
	}
}

func (m *Machine) onCurrentBlockHeight(v protocol.CurrentBlockHeightMsg) {
	switch p := m.phase.(type) {
	case *WaitingForGameStart:
		p.CurrentHeight = v.Height
		p.HaveHeight = true
		m.maybeTradingReady(p)
	case *Trading:
		if v.Height > p.Session.CurrentHeight {
			p.Session.CurrentHeight = v.Height
		}
	}
}

func (m *Machine) onNameSet(v protocol.NameSetMsg) {
	m.names.SetName(v.Address, v.Name)
	// A rebroadcast of our own registration from an earlier connection
	// fills in a name the local phase never learned.
	if m.aboutSelf(v.Address) {
		if dn := m.displayName(); dn != nil && *dn == "" {
			*dn = v.Name
		}
	}
}

func (m *Machine) onPosition(v protocol.PositionMsg) {
	prev, existed := m.ledger.ApplyPosition(v.Address, v.Balance, v.Holdings)

	// Trade notices only while trading: right after a restart the stored
	// baseline is stale and the comparison would spam bogus lines.
	if _, trading := m.phase.(*Trading); trading && existed {
		name := m.names.Get(v.Address)
		switch {
		case v.Holdings > prev.Holdings:
			m.notify(fmt.Sprintf("%s bought %d", name, v.Holdings-prev.Holdings))
		case v.Holdings < prev.Holdings:
			m.notify(fmt.Sprintf("%s sold %d", name, prev.Holdings-v.Holdings))
		}
	}

	if p, ok := m.phase.(*AwaitingRegistration); ok && m.aboutSelf(v.Address) {
		m.phase = &WaitingForGameStart{Params: p.Params, DisplayName: p.DisplayName}
	}
}

func (m *Machine) onGameStarted(v protocol.GameStartedMsg) {
	switch p := m.phase.(type) {
	case *WaitingForGameStart:
		p.StartHeight = v.StartHeight
		p.EndHeight = v.EndHeight
		p.HaveSchedule = true
		m.maybeTradingReady(p)
	case *Ended:
		// Restart edge: drop price history and session timing, keep
		// identity, credential, portfolio, and name.
		m.prices.Reset()
		m.phase = &WaitingForGameStart{
			Params:       p.Params,
			DisplayName:  p.DisplayName,
			StartHeight:  v.StartHeight,
			EndHeight:    v.EndHeight,
			HaveSchedule: true,
		}
		m.notify("new game starting")
	}
}

func (m *Machine) onGameEnded() {
	if p, ok := m.phase.(*Trading); ok {
		m.phase = &Ended{Params: p.Params, DisplayName: p.DisplayName, Session: p.Session}
		m.notify("game over")
	}
}

func (m *Machine) maybeRegisterReady(p *WaitingForParams) {
	if !p.ready() {
		return
	}
	m.phase = &NeedsToRegister{Params: p.params()}
}

func (m *Machine) maybeTradingReady(p *WaitingForGameStart) {
	if !p.ready() {
		return
	}
	session := Session{
		StartHeight:   p.StartHeight,
		EndHeight:     p.EndHeight,
		CurrentHeight: p.CurrentHeight,
	}
	m.prices.Reset()
	m.prices.Append(p.StartHeight, p.Price)
	m.phase = &Trading{Params: p.Params, DisplayName: p.DisplayName, Session: session}
}
