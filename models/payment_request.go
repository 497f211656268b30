package models

const (
	PaymentTypeSale = "SALE"
	DefaultCurrency = "TRY"
)

type ProvisionRequest struct {
	RequestHeader    RequestHeader `json:"requestHeader"`
	CardId           string        `json:"cardId,omitempty"`
	CardToken        string        `json:"cardToken,omitempty"`
	MerchantCode     string        `json:"merchantCode"`
	Msisdn           string        `json:"msisdn"`
	ReferenceNumber  string        `json:"referenceNumber"`
	Amount           string        `json:"amount"`
	Currency         string        `json:"currency"`
	PaymentType      string        `json:"paymentType"`
	AcquirerBankCode string        `json:"acquirerBankCode,omitempty"`
	InstallmentCount int           `json:"installmentCount,omitempty"`
	ThreeDSessionId  string        `json:"threeDSessionId,omitempty"`
}

type ProvisionResponse struct {
	ResponseHeader     ResponseHeader `json:"responseHeader"`
	ExtraParameters    map[string]any `json:"extraParameters,omitempty"`
	AcquirerBankCode   string         `json:"acquirerBankCode"`
	IssuerBankCode     string         `json:"issuerBankCode"`
	ApprovalCode       string         `json:"approvalCode"`
	ReconciliationDate string         `json:"reconciliationDate"`
}

func (r *ProvisionResponse) Header() ResponseHeader {
	return r.ResponseHeader
}
