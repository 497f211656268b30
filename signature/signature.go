package signature

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strings"
)

var ErrInvalidSignature = errors.New("invalid response signature")

// Hash returns base64(sha256(input))
func Hash(input string) string {
	sum := sha256.Sum256([]byte(input))
	return base64.StdEncoding.EncodeToString(sum[:])
}

func SecurityData(password, appName string) string {
	return Hash(strings.ToUpper(password + appName))
}

// RequestHash signs the identity fields of an outbound request; the concatenation
// order is part of the gateway protocol
func RequestHash(appName, transactionId, transactionDateTime, secureCode, securityData string) string {
	return Hash(strings.ToUpper(appName + transactionId + transactionDateTime + secureCode + securityData))
}

func ResponseHash(appName, transactionId, responseDateTime, responseCode, cardToken, secureCode, securityData string) string {
	return Hash(strings.ToUpper(appName + transactionId + responseDateTime + responseCode + cardToken + secureCode + securityData))
}

// Signer binds the hash chain to the static application credentials
type Signer struct {
	appName    string
	password   string
	secureCode string
}

func NewSigner(appName, password, secureCode string) *Signer {
	return &Signer{
		appName:    appName,
		password:   password,
		secureCode: secureCode,
	}
}

func (s *Signer) AppName() string {
	return s.appName
}

func (s *Signer) SignRequest(transactionId, transactionDateTime string) string {
	return RequestHash(s.appName, transactionId, transactionDateTime, s.secureCode, SecurityData(s.password, s.appName))
}

// VerifyResponse recomputes the response hash and compares it with the value
// returned by the gateway; any difference is ErrInvalidSignature
func (s *Signer) VerifyResponse(transactionId, responseDateTime, responseCode, cardToken, hashData string) error {
	expected := ResponseHash(s.appName, transactionId, responseDateTime, responseCode, cardToken, s.secureCode, SecurityData(s.password, s.appName))
	if hashData == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(hashData)) != 1 {
		return ErrInvalidSignature
	}
	return nil
}
