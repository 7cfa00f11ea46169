package game

import "stonkroyale.gg/internal/protocol"

// Phase is the tagged-union game phase. Each variant holds only the
// fields valid for that phase; transitions consume the previous variant
// and produce the next, so "optional field that should be present" bugs
// cannot happen by construction.
type Phase interface {
	Name() string
}

// Phase names, in progression order.
const (
	PhaseInitial              = "initial"
	PhaseWaitingForParams     = "waiting_for_params"
	PhaseNeedsToRegister      = "needs_to_register"
	PhaseAwaitingRegistration = "awaiting_registration"
	PhaseWaitingForGameStart  = "waiting_for_game_start"
	PhaseTrading              = "trading"
	PhaseEnded                = "ended"
)

// Initial: the local credential is not ready yet.
type Initial struct{}

func (*Initial) Name() string { return PhaseInitial }

// WaitingForParams accumulates the five independent session inputs that
// arrive in any order: funds, contract params, gas costs, nonce, and the
// current price. The join barrier to NeedsToRegister opens only once all
// five have been observed at least once.
type WaitingForParams struct {
	Funds     uint64
	HaveFunds bool

	Contract string
	Gas      protocol.GasInfo
	HaveInfo bool

	Nonce     uint64
	HaveNonce bool

	Price     uint64
	HavePrice bool
}

func (*WaitingForParams) Name() string { return PhaseWaitingForParams }

func (p *WaitingForParams) ready() bool {
	return p.HaveFunds && p.HaveInfo && p.HaveNonce && p.HavePrice
}

func (p *WaitingForParams) params() Params {
	return Params{
		Funds:    p.Funds,
		Contract: p.Contract,
		Gas:      p.Gas,
		Nonce:    p.Nonce,
		Price:    p.Price,
	}
}

// Params is the session data every phase past the first join barrier
// carries. Funds and Nonce advance optimistically on submission; Price
// follows the latest snapshot.
type Params struct {
	Funds    uint64
	Contract string
	Gas      protocol.GasInfo
	Nonce    uint64
	Price    uint64
}

// NeedsToRegister: all session inputs present, waiting for the local user
// to pick a name.
type NeedsToRegister struct {
	Params
}

func (*NeedsToRegister) Name() string { return PhaseNeedsToRegister }

// AwaitingRegistration: a register transaction was submitted. The first
// authoritative position snapshot for the local identity is the
// registration confirmation; there is no receipt wait.
type AwaitingRegistration struct {
	Params
	DisplayName string
}

func (*AwaitingRegistration) Name() string { return PhaseAwaitingRegistration }

// WaitingForGameStart accumulates the session schedule and the current
// block height (second join barrier).
type WaitingForGameStart struct {
	Params
	DisplayName string

	StartHeight  uint64
	EndHeight    uint64
	HaveSchedule bool

	CurrentHeight uint64
	HaveHeight    bool
}

func (*WaitingForGameStart) Name() string { return PhaseWaitingForGameStart }

func (p *WaitingForGameStart) ready() bool { return p.HaveSchedule && p.HaveHeight }

// Session is the running game's block schedule.
type Session struct {
	StartHeight   uint64
	EndHeight     uint64
	CurrentHeight uint64
}

// Over reports whether the session is locally considered finished,
// independent of an explicit game_ended message.
func (s Session) Over() bool { return s.CurrentHeight >= s.EndHeight }

// Trading: the game is live.
type Trading struct {
	Params
	DisplayName string
	Session     Session
}

func (*Trading) Name() string { return PhaseTrading }

// Ended: the game finished; durable state is carried for the restart edge.
type Ended struct {
	Params
	DisplayName string
	Session     Session
}

func (*Ended) Name() string { return PhaseEnded }
