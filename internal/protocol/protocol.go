package protocol

import "encoding/json"

// Inbound (relay -> client) message types.
const (
	TypeFunded             = "funded"
	TypeFundError          = "fund_error"
	TypeConnectionInfo     = "connection_info"
	TypeNonceResponse      = "nonce_response"
	TypePriceUpdate        = "price_update"
	TypeCurrentPrice       = "current_price"
	TypeCurrentBlockHeight = "current_block_height"
	TypeNameSet            = "name_set"
	TypePosition           = "position"
	TypeTxError            = "tx_error"
	TypeTxSubmitted        = "tx_submitted"
	TypeGameStarted        = "game_started"
	TypeGameEnded          = "game_ended"
)

// Outbound (client -> relay) message types.
const (
	TypeSetName     = "set_name"
	TypeRawTx       = "raw_tx"
	TypeGetNonce    = "get_nonce"
	TypeRestartGame = "restart_game"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type string `json:"type"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
