package models

const ResponseCodeSuccess = "0"

// RequestHeader is built fresh for every outbound call
type RequestHeader struct {
	ApplicationName     string `json:"applicationName"`
	ApplicationPwd      string `json:"applicationPwd,omitempty"`
	ClientIPAddress     string `json:"clientIPAddress,omitempty"`
	TransactionDateTime string `json:"transactionDateTime"`
	TransactionId       string `json:"transactionId"`
}

type ResponseHeader struct {
	TransactionId       string `json:"transactionId"`
	ResponseDateTime    string `json:"responseDateTime"`
	ResponseCode        string `json:"responseCode"`
	ResponseDescription string `json:"responseDescription"`
}

// Outcome is implemented by every gateway response
type Outcome interface {
	Header() ResponseHeader
}

func Succeeded(o Outcome) bool {
	return o != nil && o.Header().ResponseCode == ResponseCodeSuccess
}
