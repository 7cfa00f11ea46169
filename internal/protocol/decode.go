package protocol

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrUnknownType marks a structurally valid message whose tag is not part
// of the protocol. Callers drop these silently (forward compatibility).
var ErrUnknownType = errors.New("unknown message type")

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var inboundSchemas = compileSchemas()

func compileSchemas() map[string]*jsonschema.Schema {
	c := jsonschema.NewCompiler()
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		panic(fmt.Sprintf("protocol: read schemas: %v", err))
	}
	out := make(map[string]*jsonschema.Schema, len(entries))
	for _, e := range entries {
		name := e.Name()
		b, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			panic(fmt.Sprintf("protocol: read %s: %v", name, err))
		}
		if err := c.AddResource(name, strings.NewReader(string(b))); err != nil {
			panic(fmt.Sprintf("protocol: add %s: %v", name, err))
		}
		s, err := c.Compile(name)
		if err != nil {
			panic(fmt.Sprintf("protocol: compile %s: %v", name, err))
		}
		tag := strings.TrimSuffix(name, ".schema.json")
		out[tag] = s
	}
	return out
}

// Decode validates and decodes one inbound frame. Unknown tags return
// ErrUnknownType; a known tag with missing or mistyped required fields is
// a malformed-message error.
func Decode(b []byte) (Message, error) {
	base, err := DecodeBase(b)
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	s, ok := inboundSchemas[base.Type]
	if !ok {
		return nil, ErrUnknownType
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return nil, fmt.Errorf("malformed %s: %w", base.Type, err)
	}

	switch base.Type {
	case TypeFunded:
		return unmarshalMsg[FundedMsg](b)
	case TypeFundError:
		return unmarshalMsg[FundErrorMsg](b)
	case TypeConnectionInfo:
		return unmarshalMsg[ConnectionInfoMsg](b)
	case TypeNonceResponse:
		return unmarshalMsg[NonceResponseMsg](b)
	case TypePriceUpdate:
		return unmarshalMsg[PriceUpdateMsg](b)
	case TypeCurrentPrice:
		return unmarshalMsg[CurrentPriceMsg](b)
	case TypeCurrentBlockHeight:
		return unmarshalMsg[CurrentBlockHeightMsg](b)
	case TypeNameSet:
		return unmarshalMsg[NameSetMsg](b)
	case TypePosition:
		return unmarshalMsg[PositionMsg](b)
	case TypeTxError:
		return unmarshalMsg[TxErrorMsg](b)
	case TypeTxSubmitted:
		return unmarshalMsg[TxSubmittedMsg](b)
	case TypeGameStarted:
		return unmarshalMsg[GameStartedMsg](b)
	case TypeGameEnded:
		return unmarshalMsg[GameEndedMsg](b)
	}
	return nil, ErrUnknownType
}

func unmarshalMsg[T Message](b []byte) (Message, error) {
	var m T
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// SameAddress is the one identity comparison used everywhere: addresses
// are compared case-insensitively so casing differences across handlers
// can never split one participant into two.
func SameAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// NormalizeAddress lower-cases an address for use as a map key.
func NormalizeAddress(a string) string {
	return strings.ToLower(strings.TrimSpace(a))
}
