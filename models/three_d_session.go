package models

const (
	ThreeDTargetMerchant = "MERCHANT"
	ThreeDTypeAuth       = "AUTH"
)

type ThreeDSessionRequest struct {
	RequestHeader    RequestHeader `json:"requestHeader"`
	Msisdn           string        `json:"msisdn"`
	CardId           string        `json:"cardId,omitempty"`
	CardToken        string        `json:"cardToken,omitempty"`
	Amount           string        `json:"amount,omitempty"`
	InstallmentCount int           `json:"installmentCount,omitempty"`
	Target           string        `json:"target"`
	TransactionType  string        `json:"transactionType"`
	MerchantCode     string        `json:"merchantCode"`
}

type ThreeDSessionResponse struct {
	ResponseHeader  ResponseHeader `json:"responseHeader"`
	ExtraParameters map[string]any `json:"extraParameters,omitempty"`
	ThreeDSessionId string         `json:"threeDSessionId"`
}

func (r *ThreeDSessionResponse) Header() ResponseHeader {
	return r.ResponseHeader
}

type ThreeDSessionResultRequest struct {
	RequestHeader   RequestHeader `json:"requestHeader"`
	Msisdn          string        `json:"msisdn"`
	ReferenceNumber string        `json:"referenceNumber,omitempty"`
	MerchantCode    string        `json:"merchantCode"`
	ThreeDSessionId string        `json:"threeDSessionId"`
}

type ThreeDSessionResultResponse struct {
	ResponseHeader        ResponseHeader        `json:"responseHeader"`
	ExtraParameters       map[string]any        `json:"extraParameters,omitempty"`
	CurrentStep           string                `json:"currentStep"`
	MdErrorMessage        string                `json:"mdErrorMessage"`
	MdStatus              string                `json:"mdStatus"`
	ThreeDOperationResult ThreeDOperationResult `json:"threeDOperationResult"`
}

func (r *ThreeDSessionResultResponse) Header() ResponseHeader {
	return r.ResponseHeader
}

// Authenticated reports whether the bank accepted the cardholder
func (r *ThreeDSessionResultResponse) Authenticated() bool {
	return r.ThreeDOperationResult.ThreeDResult == ResponseCodeSuccess
}

type ThreeDOperationResult struct {
	ThreeDResult            string `json:"threeDResult"`
	ThreeDResultDescription string `json:"threeDResultDescription"`
}
