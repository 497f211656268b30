package models

type RegisterCardRequest struct {
	RequestHeader   RequestHeader `json:"requestHeader"`
	Alias           string        `json:"alias"`
	CardToken       string        `json:"cardToken"`
	EulaId          string        `json:"eulaId"`
	Msisdn          string        `json:"msisdn"`
	IsDefault       bool          `json:"isDefault"`
	ThreeDSessionId string        `json:"threeDSessionId,omitempty"`
}

type RegisterCardResponse struct {
	ResponseHeader  ResponseHeader `json:"responseHeader"`
	ExtraParameters map[string]any `json:"extraParameters,omitempty"`
	CardId          string         `json:"cardId"`
}

func (r *RegisterCardResponse) Header() ResponseHeader {
	return r.ResponseHeader
}

type UpdateCardRequest struct {
	RequestHeader   RequestHeader `json:"requestHeader"`
	Alias           string        `json:"alias"`
	CardId          string        `json:"cardId"`
	EulaId          string        `json:"eulaId"`
	IsDefault       *bool         `json:"isDefault,omitempty"`
	Msisdn          string        `json:"msisdn"`
	OtpValidationId string        `json:"otpValidationId,omitempty"`
	Otp             string        `json:"otp,omitempty"`
	ThreeDSessionId string        `json:"threeDSessionId,omitempty"`
}

type UpdateCardResponse struct {
	ResponseHeader  ResponseHeader `json:"responseHeader"`
	ExtraParameters map[string]any `json:"extraParameters,omitempty"`
}

func (r *UpdateCardResponse) Header() ResponseHeader {
	return r.ResponseHeader
}
