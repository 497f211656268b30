package models

// CardTokenRequest is the only payload signed with hashData instead of carrying
// the application password
type CardTokenRequest struct {
	Header          RequestHeader `json:"header"`
	CreditCardNo    string        `json:"creditCardNo"`
	ExpireDateMonth string        `json:"expireDateMonth"`
	ExpireDateYear  string        `json:"expireDateYear"`
	CvcNo           string        `json:"cvcNo"`
	HashData        string        `json:"hashData"`
}

type CardTokenResponse struct {
	ResponseHeader ResponseHeader `json:"header"`
	CardToken      string         `json:"cardToken"`
	HashData       string         `json:"hashData"`
}

func (r *CardTokenResponse) Header() ResponseHeader {
	return r.ResponseHeader
}

// Card is the caller supplied card data to tokenize
type Card struct {
	Number          string
	ExpireDateMonth string
	ExpireDateYear  string
	Cvc             string
}
