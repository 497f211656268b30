package models

type GetCardsRequest struct {
	RequestHeader RequestHeader `json:"requestHeader"`
	Msisdn        string        `json:"msisdn"`
}

type GetCardsResponse struct {
	ResponseHeader  ResponseHeader `json:"responseHeader"`
	ExtraParameters map[string]any `json:"extraParameters,omitempty"`
	EulaId          string         `json:"eulaId"`
	CardList        []CardRecord   `json:"cardList"`
}

func (r *GetCardsResponse) Header() ResponseHeader {
	return r.ResponseHeader
}

// DefaultCard returns the first card flagged as default
func (r *GetCardsResponse) DefaultCard() (CardRecord, bool) {
	for _, card := range r.CardList {
		if card.IsDefault {
			return card, true
		}
	}
	return CardRecord{}, false
}

// CardRecord is owned by the gateway; only identifiers are forwarded
type CardRecord struct {
	CardId            string `json:"cardId"`
	MaskedCardNo      string `json:"maskedCardNo"`
	Alias             string `json:"alias"`
	CardBrand         string `json:"cardBrand"`
	IsDefault         bool   `json:"isDefault"`
	IsExpired         bool   `json:"isExpired"`
	ShowEulaId        bool   `json:"showEulaId"`
	IsThreeDValidated bool   `json:"isThreeDValidated"`
	IsOTPValidated    bool   `json:"isOTPValidated"`
	ActivationDate    string `json:"activationDate"`
}
