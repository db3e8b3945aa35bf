package trade

// RejectReason is the closed enumeration of offer-rejection reasons,
// spanning both validator-detected causes and Maker-workflow causes.
type RejectReason string

const (
	RejectMakerObligationKindInvalid   RejectReason = "MakerObligationKindInvalid"
	RejectMakerObligationAmountInvalid RejectReason = "MakerObligationAmountInvalid"
	RejectMakerBondInvalid             RejectReason = "MakerBondInvalid"
	RejectTakerObligationKindInvalid   RejectReason = "TakerObligationKindInvalid"
	RejectTakerObligationAmountInvalid RejectReason = "TakerObligationAmountInvalid"
	RejectTakerBondInvalid             RejectReason = "TakerBondInvalid"
	RejectMarketOracleInvalid          RejectReason = "MarketOracleInvalid"
	RejectTransactedSatAmountFractional RejectReason = "TransactedSatAmountFractional"
	RejectPowTooHigh                   RejectReason = "PowTooHigh"
	RejectDuplicateOffer               RejectReason = "DuplicateOffer"
	RejectPendingAnother               RejectReason = "PendingAnother"
	RejectCancelled                    RejectReason = "Cancelled"
	RejectTradeEngineSpecific          RejectReason = "TradeEngineSpecific"
)

// ResponseStatus is the Maker's verdict on an Offer.
type ResponseStatus string

const (
	StatusAccepted    ResponseStatus = "Accepted"
	StatusRejected    ResponseStatus = "Rejected"
	StatusNotAvailable ResponseStatus = "NotAvailable"
)

// TradeResponse is the Maker's Accept/Reject verdict on one Offer.
type TradeResponse struct {
	OfferEventID         string           `json:"offer_event_id"`
	Status               ResponseStatus   `json:"status"`
	RejectReasons        []RejectReason   `json:"reject_reason,omitempty"` // non-empty iff Status == StatusRejected
	TradeEngineSpecifics *EngineSpecifics `json:"trade_engine_specifics,omitempty"`
}

// NewAcceptResponse builds an Accepted TradeResponse.
func NewAcceptResponse(offerEventID string) TradeResponse {
	return TradeResponse{OfferEventID: offerEventID, Status: StatusAccepted}
}

// NewRejectResponse builds a Rejected TradeResponse with the given reasons.
func NewRejectResponse(offerEventID string, reasons ...RejectReason) TradeResponse {
	return TradeResponse{OfferEventID: offerEventID, Status: StatusRejected, RejectReasons: reasons}
}
