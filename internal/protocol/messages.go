package protocol

// Message is any inbound relay message routable by tag.
type Message interface {
	Tag() string
}

// FUNDED (relay -> client): the gas wallet for address received amount wei.
type FundedMsg struct {
	Type    string `json:"type"`
	Address string `json:"address"`
	Amount  uint64 `json:"amount"`
}

// FUND_ERROR (relay -> client)
type FundErrorMsg struct {
	Type    string `json:"type"`
	Address string `json:"address"`
	Error   string `json:"error"`
}

// CONNECTION_INFO (relay -> client): one-time session parameters.
type ConnectionInfoMsg struct {
	Type            string  `json:"type"`
	ContractAddress string  `json:"contract_address"`
	GasCosts        GasInfo `json:"gas_costs"`
}

// GasInfo is the relay's measured gas units per contract action.
type GasInfo struct {
	Register uint64 `json:"register"`
	Buy      uint64 `json:"buy"`
	Sell     uint64 `json:"sell"`
}

// NONCE_RESPONSE (relay -> client)
type NonceResponseMsg struct {
	Type    string `json:"type"`
	Address string `json:"address"`
	Nonce   uint64 `json:"nonce"`
}

// PRICE_UPDATE (relay -> client): price changed on a new block.
type PriceUpdateMsg struct {
	Type        string `json:"type"`
	OldPrice    uint64 `json:"old_price,omitempty"`
	NewPrice    uint64 `json:"new_price"`
	BlockNumber uint64 `json:"block_number"`
}

// CURRENT_PRICE (relay -> client): price snapshot, no new block implied.
type CurrentPriceMsg struct {
	Type  string `json:"type"`
	Price uint64 `json:"price"`
}

// CURRENT_BLOCK_HEIGHT (relay -> client)
type CurrentBlockHeightMsg struct {
	Type   string `json:"type"`
	Height uint64 `json:"height"`
}

// NAME_SET (relay -> client): a participant registered a display name.
type NameSetMsg struct {
	Type    string `json:"type"`
	Address string `json:"address"`
	Name    string `json:"name"`
}

// POSITION (relay -> client): authoritative portfolio snapshot for one
// participant as of block_number. Not a delta.
type PositionMsg struct {
	Type        string `json:"type"`
	Address     string `json:"address"`
	Balance     uint64 `json:"balance"`
	Holdings    uint64 `json:"holdings"`
	BlockNumber uint64 `json:"block_number"`
}

// TX_ERROR (relay -> client). Carries no correlation to the submission
// that failed; handled as an independent log event.
type TxErrorMsg struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// TX_SUBMITTED (relay -> client)
type TxSubmittedMsg struct {
	Type   string `json:"type"`
	TxHash string `json:"tx_hash"`
}

// GAME_STARTED (relay -> client)
type GameStartedMsg struct {
	Type        string `json:"type"`
	StartHeight uint64 `json:"start_height"`
	EndHeight   uint64 `json:"end_height"`
}

// GAME_ENDED (relay -> client)
type GameEndedMsg struct {
	Type string `json:"type"`
}

func (m FundedMsg) Tag() string             { return TypeFunded }
func (m FundErrorMsg) Tag() string          { return TypeFundError }
func (m ConnectionInfoMsg) Tag() string     { return TypeConnectionInfo }
func (m NonceResponseMsg) Tag() string      { return TypeNonceResponse }
func (m PriceUpdateMsg) Tag() string        { return TypePriceUpdate }
func (m CurrentPriceMsg) Tag() string       { return TypeCurrentPrice }
func (m CurrentBlockHeightMsg) Tag() string { return TypeCurrentBlockHeight }
func (m NameSetMsg) Tag() string            { return TypeNameSet }
func (m PositionMsg) Tag() string           { return TypePosition }
func (m TxErrorMsg) Tag() string            { return TypeTxError }
func (m TxSubmittedMsg) Tag() string        { return TypeTxSubmitted }
func (m GameStartedMsg) Tag() string        { return TypeGameStarted }
func (m GameEndedMsg) Tag() string          { return TypeGameEnded }

// SET_NAME (client -> relay)
type SetNameMsg struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// RAW_TX (client -> relay): a fully signed, opaque transaction blob that
// the relay forwards to the chain verbatim.
type RawTxMsg struct {
	Type  string `json:"type"`
	RawTx string `json:"raw_tx"`
}

// GET_NONCE (client -> relay)
type GetNonceMsg struct {
	Type    string `json:"type"`
	Address string `json:"address"`
}

// RESTART_GAME (client -> relay, privileged). Authorization is the
// relay's responsibility; the client only gates it locally.
type RestartGameMsg struct {
	Type string `json:"type"`
}

func NewSetName(name, address string) SetNameMsg {
	return SetNameMsg{Type: TypeSetName, Name: name, Address: address}
}

func NewRawTx(blob string) RawTxMsg {
	return RawTxMsg{Type: TypeRawTx, RawTx: blob}
}

func NewGetNonce(address string) GetNonceMsg {
	return GetNonceMsg{Type: TypeGetNonce, Address: address}
}

func NewRestartGame() RestartGameMsg {
	return RestartGameMsg{Type: TypeRestartGame}
}
