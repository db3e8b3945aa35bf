package trade

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// PeerMessageWireType is the constant "type" field of every peer message.
const PeerMessageWireType = "n3xb-peer-message"

// MessageType discriminates the three kinds of peer-to-peer DM payload.
type MessageType string

const (
	MessageTypeTakerOffer         MessageType = "TakerOffer"
	MessageTypeTradeResponse      MessageType = "TradeResponse"
	MessageTypeTradeEngineSpecific MessageType = "TradeEngineSpecific"
)

// PeerMessage is the plaintext JSON body of an encrypted direct message.
type PeerMessage struct {
	Type             string          `json:"type"`
	RespondingToID   *string         `json:"responding_to_id,omitempty"`
	MakerOrderNoteID string          `json:"maker_order_note_id"`
	TradeUUID        uuid.UUID       `json:"trade_uuid"`
	MessageType      MessageType     `json:"message_type"`
	Message          json.RawMessage `json:"message"`
}

// NewPeerMessage builds a PeerMessage, marshaling body into the polymorphic
// "message" field.
func NewPeerMessage(respondingToID *string, makerOrderNoteID string, tradeUUID uuid.UUID, msgType MessageType, body interface{}) (*PeerMessage, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal peer message body: %w", err)
	}
	return &PeerMessage{
		Type:             PeerMessageWireType,
		RespondingToID:   respondingToID,
		MakerOrderNoteID: makerOrderNoteID,
		TradeUUID:        tradeUUID,
		MessageType:      msgType,
		Message:          raw,
	}, nil
}

// DecodeOffer decodes the message body as an Offer. Caller must have
// checked MessageType == MessageTypeTakerOffer.
func (m *PeerMessage) DecodeOffer() (*Offer, error) {
	var offer Offer
	if err := json.Unmarshal(m.Message, &offer); err != nil {
		return nil, fmt.Errorf("decode offer: %w", err)
	}
	return &offer, nil
}

// DecodeTradeResponse decodes the message body as a TradeResponse. Caller
// must have checked MessageType == MessageTypeTradeResponse.
func (m *PeerMessage) DecodeTradeResponse() (*TradeResponse, error) {
	var rsp TradeResponse
	if err := json.Unmarshal(m.Message, &rsp); err != nil {
		return nil, fmt.Errorf("decode trade response: %w", err)
	}
	return &rsp, nil
}

// DecodeEngineSpecifics decodes the message body as an opaque EngineSpecifics
// container. Caller must have checked MessageType == MessageTypeTradeEngineSpecific.
func (m *PeerMessage) DecodeEngineSpecifics() (*EngineSpecifics, error) {
	var specifics EngineSpecifics
	if err := json.Unmarshal(m.Message, &specifics); err != nil {
		return nil, fmt.Errorf("decode trade engine specifics: %w", err)
	}
	return &specifics, nil
}

// PeerEnvelope is an inbound PeerMessage annotated with wire provenance.
type PeerEnvelope struct {
	Pubkey  Pubkey      `json:"pubkey"`
	EventID string      `json:"event_id"`
	Relays  RelaySet    `json:"relays"`
	Message PeerMessage `json:"message"`
}
