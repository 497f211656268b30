package gateway

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tpay/internal"
	"tpay/internal/config"
	"tpay/metrics/counters"
	"tpay/models"
	"tpay/signature"
	"tpay/txid"
	"tpay/utility"
)

const (
	OpTokenizeCard        = "getCardTokenSecure"
	OpQueryCards          = "getCards"
	OpRegisterCard        = "registerCard"
	OpThreeDSession       = "getThreeDSession"
	OpThreeDSessionResult = "getThreeDSessionResult"
	OpTermsOfService      = "getTermsOfServiceContent"
	OpUpdateCard          = "updateCard"
	OpProvision           = "provision"

	maxResponseSize = 1 << 20
)

// Client talks to both gateway endpoint families; safe for concurrent use
type Client struct {
	httpClient           *http.Client
	baseURL              string
	paymentManagementURL string
	password             string
	merchantCode         string
	currency             string
	defaultClientIP      string
	signer               *signature.Signer
	ids                  *txid.Generator
	logger               internal.LogHandler
}

func New(conf *config.Config, ids *txid.Generator, logger internal.LogHandler) *Client {
	g := conf.Gateway
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if g.SkipTLSVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	currency := g.Currency
	if currency == "" {
		currency = models.DefaultCurrency
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		baseURL:              strings.TrimRight(g.BaseURL, "/"),
		paymentManagementURL: strings.TrimRight(g.PaymentManagementURL, "/"),
		password:             g.ApplicationPassword,
		merchantCode:         g.MerchantCode,
		currency:             currency,
		defaultClientIP:      g.DefaultClientIP,
		signer:               signature.NewSigner(g.ApplicationName, g.ApplicationPassword, g.SecureCode),
		ids:                  ids,
		logger:               logger,
	}
}

// HTTPClient is shared with the bank redirect so both use one connection pool
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

func (c *Client) MerchantCode() string {
	return c.merchantCode
}

// header builds a fresh credential header; the password travels in it on every
// endpoint except tokenize
func (c *Client) header(clientIP string) models.RequestHeader {
	identity := c.ids.Next()
	if clientIP == "" {
		clientIP = c.defaultClientIP
	}
	return models.RequestHeader{
		ApplicationName:     c.signer.AppName(),
		ApplicationPwd:      c.password,
		ClientIPAddress:     clientIP,
		TransactionDateTime: identity.TransactionDateTime,
		TransactionId:       identity.TransactionId,
	}
}

// TokenizeCard exchanges raw card data for a card token. The request is hash
// signed and the response hash is verified before the token is returned,
// whatever the response code says.
func (c *Client) TokenizeCard(ctx context.Context, card models.Card) (*models.CardTokenResponse, error) {
	if err := validateCard(card); err != nil {
		return nil, err
	}
	identity := c.ids.Next()
	req := models.CardTokenRequest{
		Header: models.RequestHeader{
			ApplicationName:     c.signer.AppName(),
			TransactionDateTime: identity.TransactionDateTime,
			TransactionId:       identity.TransactionId,
		},
		CreditCardNo:    strings.ReplaceAll(card.Number, " ", ""),
		ExpireDateMonth: card.ExpireDateMonth,
		ExpireDateYear:  card.ExpireDateYear,
		CvcNo:           card.Cvc,
		HashData:        c.signer.SignRequest(identity.TransactionId, identity.TransactionDateTime),
	}
	c.logger.FeatureEvent(OpTokenizeCard, identity.TransactionId, fmt.Sprintf("tokenizing card %s", utility.MaskCardNumber(card.Number)))

	resp := &models.CardTokenResponse{}
	if err := c.post(ctx, OpTokenizeCard, c.paymentManagementURL+"/"+OpTokenizeCard, identity.TransactionId, req, resp); err != nil {
		return nil, err
	}
	h := resp.ResponseHeader
	if err := c.signer.VerifyResponse(h.TransactionId, h.ResponseDateTime, h.ResponseCode, resp.CardToken, resp.HashData); err != nil {
		c.logger.Error(fmt.Sprintf("%s %s", OpTokenizeCard, identity.TransactionId), err)
		return nil, fmt.Errorf("gateway %s: %w", OpTokenizeCard, err)
	}
	return resp, nil
}

func (c *Client) QueryCards(ctx context.Context, clientIP, msisdn string) (*models.GetCardsResponse, error) {
	if msisdn == "" {
		return nil, Required("msisdn")
	}
	req := models.GetCardsRequest{
		RequestHeader: c.header(clientIP),
		Msisdn:        msisdn,
	}
	resp := &models.GetCardsResponse{}
	if err := c.post(ctx, OpQueryCards, c.baseURL+"/"+OpQueryCards, req.RequestHeader.TransactionId, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) RegisterCard(ctx context.Context, clientIP string, req models.RegisterCardRequest) (*models.RegisterCardResponse, error) {
	switch {
	case req.Msisdn == "":
		return nil, Required("msisdn")
	case req.CardToken == "":
		return nil, Required("cardToken")
	case req.EulaId == "":
		return nil, Required("eulaId")
	}
	req.RequestHeader = c.header(clientIP)
	resp := &models.RegisterCardResponse{}
	if err := c.post(ctx, OpRegisterCard, c.baseURL+"/"+OpRegisterCard, req.RequestHeader.TransactionId, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetThreeDSession opens a 3-D session for either a registered card or a fresh token
func (c *Client) GetThreeDSession(ctx context.Context, clientIP string, req models.ThreeDSessionRequest) (*models.ThreeDSessionResponse, error) {
	switch {
	case req.Msisdn == "":
		return nil, Required("msisdn")
	case req.CardId == "" && req.CardToken == "":
		return nil, &ValidationError{Field: "cardId", Reason: "cardId or cardToken is required"}
	}
	if req.Amount != "" && !isDigits(req.Amount) {
		return nil, &ValidationError{Field: "amount", Reason: "must be numeric"}
	}
	if req.Target == "" {
		req.Target = models.ThreeDTargetMerchant
	}
	if req.TransactionType == "" {
		req.TransactionType = models.ThreeDTypeAuth
	}
	if req.MerchantCode == "" {
		req.MerchantCode = c.merchantCode
	}
	req.RequestHeader = c.header(clientIP)
	resp := &models.ThreeDSessionResponse{}
	if err := c.post(ctx, OpThreeDSession, c.baseURL+"/"+OpThreeDSession, req.RequestHeader.TransactionId, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) GetThreeDSessionResult(ctx context.Context, clientIP string, req models.ThreeDSessionResultRequest) (*models.ThreeDSessionResultResponse, error) {
	switch {
	case req.Msisdn == "":
		return nil, Required("msisdn")
	case req.ThreeDSessionId == "":
		return nil, Required("threeDSessionId")
	}
	if req.MerchantCode == "" {
		req.MerchantCode = c.merchantCode
	}
	req.RequestHeader = c.header(clientIP)
	resp := &models.ThreeDSessionResultResponse{}
	if err := c.post(ctx, OpThreeDSessionResult, c.baseURL+"/"+OpThreeDSessionResult, req.RequestHeader.TransactionId, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) GetTermsOfServiceContent(ctx context.Context, clientIP string) (*models.TermsOfServiceResponse, error) {
	req := models.TermsOfServiceRequest{
		RequestHeader: c.header(clientIP),
	}
	resp := &models.TermsOfServiceResponse{}
	if err := c.post(ctx, OpTermsOfService, c.baseURL+"/"+OpTermsOfService, req.RequestHeader.TransactionId, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) UpdateCard(ctx context.Context, clientIP string, req models.UpdateCardRequest) (*models.UpdateCardResponse, error) {
	switch {
	case req.Msisdn == "":
		return nil, Required("msisdn")
	case req.CardId == "":
		return nil, Required("cardId")
	}
	req.RequestHeader = c.header(clientIP)
	resp := &models.UpdateCardResponse{}
	if err := c.post(ctx, OpUpdateCard, c.baseURL+"/"+OpUpdateCard, req.RequestHeader.TransactionId, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Provision charges a registered card or a token. A missing reference number is
// generated from the identity generator, so it has the transaction id format.
func (c *Client) Provision(ctx context.Context, clientIP string, req models.ProvisionRequest) (*models.ProvisionResponse, error) {
	switch {
	case req.Msisdn == "":
		return nil, Required("msisdn")
	case req.CardId == "" && req.CardToken == "":
		return nil, &ValidationError{Field: "cardId", Reason: "cardId or cardToken is required"}
	case req.Amount == "":
		return nil, Required("amount")
	case !isDigits(req.Amount):
		return nil, &ValidationError{Field: "amount", Reason: "must be numeric"}
	}
	if req.MerchantCode == "" {
		req.MerchantCode = c.merchantCode
	}
	if req.Currency == "" {
		req.Currency = c.currency
	}
	if req.PaymentType == "" {
		req.PaymentType = models.PaymentTypeSale
	}
	if req.ReferenceNumber == "" {
		req.ReferenceNumber = c.ids.NewTransactionId()
	}
	req.RequestHeader = c.header(clientIP)
	c.logger.FeatureEvent(OpProvision, req.RequestHeader.TransactionId, fmt.Sprintf("reference %s amount %s %s", req.ReferenceNumber, req.Amount, req.Currency))
	resp := &models.ProvisionResponse{}
	if err := c.post(ctx, OpProvision, c.baseURL+"/"+OpProvision, req.RequestHeader.TransactionId, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, op, url, transactionId string, payload any, result models.Outcome) (err error) {
	start := time.Now()
	defer func() {
		outcome := Kind(err)
		if err == nil {
			code := result.Header().ResponseCode
			counters.ObserveResponseCode(op, code)
			if code != models.ResponseCodeSuccess {
				outcome = "declined"
			}
		}
		counters.ObserveGatewayCall(op, outcome, time.Since(start))
	}()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("gateway %s: encoding request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("gateway %s: creating request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error(fmt.Sprintf("%s %s", op, transactionId), err)
		return &NetworkError{Op: op, Err: err}
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &NetworkError{Op: op, Err: fmt.Errorf("reading response body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		httpErr := &HTTPError{Op: op, StatusCode: resp.StatusCode, Status: resp.Status, Body: data}
		c.logger.Error(fmt.Sprintf("%s %s", op, transactionId), httpErr)
		return httpErr
	}
	if err = json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("gateway %s: %w: %v", op, ErrMalformedResponse, err)
	}

	header := result.Header()
	c.logger.Debug(fmt.Sprintf("%s %s: response code %s %s", op, transactionId, header.ResponseCode, header.ResponseDescription))
	return nil
}

func validateCard(card models.Card) error {
	number := strings.ReplaceAll(card.Number, " ", "")
	switch {
	case number == "":
		return Required("creditCardNo")
	case !isDigits(number) || len(number) < 12 || len(number) > 19:
		return &ValidationError{Field: "creditCardNo", Reason: "must be 12 to 19 digits"}
	case len(card.ExpireDateMonth) != 2 || !isDigits(card.ExpireDateMonth):
		return &ValidationError{Field: "expireDateMonth", Reason: "must be two digits"}
	case len(card.ExpireDateYear) != 2 || !isDigits(card.ExpireDateYear):
		return &ValidationError{Field: "expireDateYear", Reason: "must be two digits"}
	case card.Cvc == "" || !isDigits(card.Cvc):
		return &ValidationError{Field: "cvcNo", Reason: "must be numeric"}
	}
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
