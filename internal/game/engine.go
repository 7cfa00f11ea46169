package game

import (
	"context"
	"errors"
	"io"
	"log"
	"sort"
	"time"

	"stonkroyale.gg/internal/chain"
	"stonkroyale.gg/internal/protocol"
)

// Recorder persists the raw message stream for later replay.
type Recorder interface {
	RecordInbound(raw []byte)
	RecordOutbound(v any)
}

// Archiver indexes observed market data.
type Archiver interface {
	RecordPrice(blockHeight, price uint64)
	RecordPosition(address string, balance, holdings, blockHeight uint64)
	RecordName(address, name string)
}

// CommandKind tags a user intent.
type CommandKind int

const (
	CmdSubmitName CommandKind = iota + 1
	CmdBuy
	CmdSell
	CmdRestart
)

// Command is one user intent delivered to the engine loop.
type Command struct {
	Kind   CommandKind
	Name   string
	Amount uint64
}

// Status is a point-in-time snapshot of the engine state for rendering.
type Status struct {
	Phase       string
	Address     string
	DisplayName string
	Funds       uint64
	Nonce       uint64
	Price       uint64
	Portfolio   Portfolio
	Session     *Session
	HistoryLen  int

	Remaining      time.Duration
	RemainingKnown bool

	Leaderboard []LeaderboardRow
}

// LeaderboardRow values a participant's portfolio at the current price.
type LeaderboardRow struct {
	Address  string
	Name     string
	Balance  uint64
	Holdings uint64
	NetWorth uint64
}

type statusReq struct {
	resp chan Status
}

// EngineConfig wires the engine to its collaborators. Journal and
// Archive are optional sinks.
type EngineConfig struct {
	Signer  chain.Signer
	Send    SendFunc
	Logger  *log.Logger
	Journal Recorder
	Archive Archiver
	Admin   bool
}

// Engine runs the reconciliation core on one goroutine. All mutable
// state (machine, ledger, directory, prices, pending effects) is owned
// here; the transport and UI communicate only through channels, so
// handlers run to completion with no locks.
type Engine struct {
	cfg        EngineConfig
	machine    *Machine
	dispatcher *Dispatcher

	inbox    chan []byte
	commands chan Command
	status   chan statusReq
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	e := &Engine{
		cfg:      cfg,
		inbox:    make(chan []byte, 256),
		commands: make(chan Command, 16),
		status:   make(chan statusReq),
	}
	e.machine = NewMachine(cfg.Signer.Address(), e.notify)
	e.dispatcher = NewDispatcher(e.machine, cfg.Signer, e.sendOut)
	return e
}

// Inbox receives raw inbound frames from the transport, in arrival order.
func (e *Engine) Inbox() chan<- []byte { return e.inbox }

// Commands receives user intents.
func (e *Engine) Commands() chan<- Command { return e.commands }

// Machine exposes the underlying state machine for replay tooling.
func (e *Engine) Machine() *Machine { return e.machine }

// Run drives the loop until ctx is done. It announces the credential and
// requests the account nonce, which also triggers relay-side funding.
func (e *Engine) Run(ctx context.Context) error {
	e.machine.Start()
	if err := e.sendOut(protocol.NewGetNonce(e.machine.Self())); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw := <-e.inbox:
			e.handleFrame(raw)
		case cmd := <-e.commands:
			e.handleCommand(cmd)
		case req := <-e.status:
			req.resp <- e.buildStatus()
		}
	}
}

// Status asks the engine loop for a snapshot. Safe from any goroutine.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	req := statusReq{resp: make(chan Status, 1)}
	select {
	case e.status <- req:
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
	select {
	case s := <-req.resp:
		return s, nil
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

func (e *Engine) handleFrame(raw []byte) {
	if e.cfg.Journal != nil {
		e.cfg.Journal.RecordInbound(raw)
	}
	msg, err := protocol.Decode(raw)
	if err != nil {
		if !errors.Is(err, protocol.ErrUnknownType) {
			e.cfg.Logger.Printf("drop malformed message: %v", err)
		}
		return
	}
	if e.cfg.Archive != nil {
		switch v := msg.(type) {
		case protocol.PriceUpdateMsg:
			e.cfg.Archive.RecordPrice(v.BlockNumber, v.NewPrice)
		case protocol.PositionMsg:
			e.cfg.Archive.RecordPosition(protocol.NormalizeAddress(v.Address), v.Balance, v.Holdings, v.BlockNumber)
		case protocol.NameSetMsg:
			e.cfg.Archive.RecordName(protocol.NormalizeAddress(v.Address), v.Name)
		}
	}
	e.machine.Handle(msg)
}

func (e *Engine) handleCommand(cmd Command) {
	var err error
	switch cmd.Kind {
	case CmdSubmitName:
		err = e.dispatcher.SubmitName(cmd.Name)
	case CmdBuy:
		err = e.dispatcher.Buy(cmd.Amount)
	case CmdSell:
		err = e.dispatcher.Sell(cmd.Amount)
	case CmdRestart:
		if !e.cfg.Admin {
			e.notify("restart_game requires admin access")
			return
		}
		err = e.sendOut(protocol.NewRestartGame())
	default:
		e.notify("unknown command")
		return
	}
	if err != nil {
		e.notify(err.Error())
	}
}

func (e *Engine) sendOut(v any) error {
	if e.cfg.Journal != nil {
		e.cfg.Journal.RecordOutbound(v)
	}
	return e.cfg.Send(v)
}

func (e *Engine) notify(text string) {
	e.cfg.Logger.Printf("* %s", text)
}

func (e *Engine) buildStatus() Status {
	m := e.machine
	s := Status{
		Phase:      m.Phase().Name(),
		Address:    m.Self(),
		HistoryLen: m.Prices().Len(),
	}
	if port, ok := m.Ledger().Get(m.Self()); ok {
		s.Portfolio = port
	}
	if params := m.params(); params != nil {
		s.Funds = params.Funds
		s.Nonce = params.Nonce
		s.Price = params.Price
	}
	if dn := m.displayName(); dn != nil {
		s.DisplayName = *dn
	}
	if p, ok := m.Phase().(*Trading); ok {
		session := p.Session
		s.Session = &session
		if rem, known := m.Prices().EstimateRemaining(session.CurrentHeight, session.EndHeight); known {
			s.Remaining = rem
			s.RemainingKnown = true
		}
	} else if p, ok := m.Phase().(*Ended); ok {
		session := p.Session
		s.Session = &session
	}
	s.Leaderboard = e.leaderboard(s.Price)
	return s
}

func (e *Engine) leaderboard(price uint64) []LeaderboardRow {
	m := e.machine
	rows := make([]LeaderboardRow, 0, m.Ledger().Len())
	for _, addr := range m.Ledger().Addresses() {
		port, _ := m.Ledger().Get(addr)
		rows = append(rows, LeaderboardRow{
			Address:  addr,
			Name:     m.Names().Get(addr),
			Balance:  port.Balance,
			Holdings: port.Holdings,
			NetWorth: port.Balance + port.Holdings*price,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].NetWorth > rows[j].NetWorth })
	return rows
}
