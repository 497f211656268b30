package bank

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

var (
	ErrCallbackSignature = errors.New("callback signature is missing or invalid")
	ErrCallbackExpired   = errors.New("callback context has expired")
)

const (
	paramThreeDSessionId = "threeDSessionId"
	paramMsisdn          = "msisdn"
	paramCardToken       = "cardToken"
	paramCardId          = "cardId"
	paramAmount          = "amount"
	paramEulaId          = "eulaId"
	paramIsDefault       = "isDefault"
	paramClientIP        = "clientIPAddress"
	paramAlias           = "alias"
	paramReference       = "referenceNumber"
	paramInstallments    = "installmentCount"
	paramTimestamp       = "ts"
	paramSignature       = "signature"
)

// SessionContext is everything a 3-D resume needs; it only lives in the
// callback URL between the two inbound calls
type SessionContext struct {
	ThreeDSessionId  string
	Msisdn           string
	CardToken        string
	CardId           string
	Amount           string
	EulaId           string
	IsDefault        bool
	ClientIPAddress  string
	Alias            string
	ReferenceNumber  string
	InstallmentCount int
}

// Values serializes the context; empty fields are left out
func (sc SessionContext) Values() url.Values {
	v := url.Values{}
	set := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}
	set(paramThreeDSessionId, sc.ThreeDSessionId)
	set(paramMsisdn, sc.Msisdn)
	set(paramCardToken, sc.CardToken)
	set(paramCardId, sc.CardId)
	set(paramAmount, sc.Amount)
	set(paramEulaId, sc.EulaId)
	v.Set(paramIsDefault, strconv.FormatBool(sc.IsDefault))
	set(paramClientIP, sc.ClientIPAddress)
	set(paramAlias, sc.Alias)
	set(paramReference, sc.ReferenceNumber)
	if sc.InstallmentCount > 0 {
		v.Set(paramInstallments, strconv.Itoa(sc.InstallmentCount))
	}
	return v
}

func contextFromValues(v url.Values) SessionContext {
	installments, _ := strconv.Atoi(v.Get(paramInstallments))
	return SessionContext{
		ThreeDSessionId:  v.Get(paramThreeDSessionId),
		Msisdn:           v.Get(paramMsisdn),
		CardToken:        v.Get(paramCardToken),
		CardId:           v.Get(paramCardId),
		Amount:           v.Get(paramAmount),
		EulaId:           v.Get(paramEulaId),
		IsDefault:        v.Get(paramIsDefault) == "true",
		ClientIPAddress:  v.Get(paramClientIP),
		Alias:            v.Get(paramAlias),
		ReferenceNumber:  v.Get(paramReference),
		InstallmentCount: installments,
	}
}

// CallbackSigner makes the round-tripped context tamper evident: the callback
// query carries ts and an HMAC-SHA256 over every other parameter
type CallbackSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewCallbackSigner(secret string, ttl time.Duration) *CallbackSigner {
	return &CallbackSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// SetClock replaces the time source
func (s *CallbackSigner) SetClock(now func() time.Time) {
	s.now = now
}

// Sign returns the context values with ts and signature added
func (s *CallbackSigner) Sign(sc SessionContext) url.Values {
	v := sc.Values()
	v.Set(paramTimestamp, strconv.FormatInt(s.now().Unix(), 10))
	v.Set(paramSignature, s.mac(v))
	return v
}

// CallbackURL appends the signed context to base, keeping any query base already has
func (s *CallbackSigner) CallbackURL(base string, sc SessionContext) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parsing callback url: %w", err)
	}
	q := u.Query()
	for key, values := range s.Sign(sc) {
		q[key] = values
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Verify checks the signature and age of a callback query and returns the
// context it carries
func (s *CallbackSigner) Verify(v url.Values) (SessionContext, error) {
	received := v.Get(paramSignature)
	if received == "" {
		return SessionContext{}, ErrCallbackSignature
	}
	signed := url.Values{}
	for key, values := range v {
		if key != paramSignature && isContextParam(key) {
			signed[key] = values
		}
	}
	expected := s.mac(signed)
	if !hmac.Equal([]byte(expected), []byte(received)) {
		return SessionContext{}, ErrCallbackSignature
	}
	ts, err := strconv.ParseInt(v.Get(paramTimestamp), 10, 64)
	if err != nil {
		return SessionContext{}, ErrCallbackSignature
	}
	age := s.now().Sub(time.Unix(ts, 0))
	if s.ttl > 0 && (age > s.ttl || age < -time.Minute) {
		return SessionContext{}, ErrCallbackExpired
	}
	return contextFromValues(v), nil
}

// mac is computed over the canonical encoding, which sorts keys
func (s *CallbackSigner) mac(v url.Values) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(v.Encode()))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// isContextParam keeps unrelated parameters the bank may append out of the signature
func isContextParam(key string) bool {
	switch key {
	case paramThreeDSessionId, paramMsisdn, paramCardToken, paramCardId, paramAmount, paramEulaId,
		paramIsDefault, paramClientIP, paramAlias, paramReference, paramInstallments, paramTimestamp:
		return true
	}
	return false
}
