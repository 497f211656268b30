package models

type TermsOfServiceRequest struct {
	RequestHeader RequestHeader `json:"requestHeader"`
}

type TermsOfServiceResponse struct {
	ResponseHeader              ResponseHeader `json:"responseHeader"`
	ExtraParameters             map[string]any `json:"extraParameters,omitempty"`
	EulaId                      string         `json:"eulaId"`
	TermsOfServiceHtmlContentTR string         `json:"termsOfServiceHtmlContentTR,omitempty"`
	TermsOfServiceHtmlContentEN string         `json:"termsOfServiceHtmlContentEN,omitempty"`
}

func (r *TermsOfServiceResponse) Header() ResponseHeader {
	return r.ResponseHeader
}
