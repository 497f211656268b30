package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tpay/internal/config"
	"tpay/models"
	"tpay/signature"
	"tpay/txid"
)

const (
	appName    = "PAYCELLTEST"
	appPwd     = "PaycellTestPassword"
	secureCode = "PAYCELL12345"
)

type nopLogger struct{}

func (nopLogger) FeatureEvent(string, string, string) {}
func (nopLogger) Debug(string)                        {}
func (nopLogger) Warn(string)                         {}
func (nopLogger) Error(string, error)                 {}

type recorded struct {
	path string
	body map[string]any
}

type fakeGateway struct {
	mu       sync.Mutex
	requests []recorded
	handle   func(path string, body map[string]any) (int, any)
}

func (f *fakeGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	body := map[string]any{}
	_ = json.Unmarshal(data, &body)
	f.mu.Lock()
	f.requests = append(f.requests, recorded{path: r.URL.Path, body: body})
	f.mu.Unlock()

	status, resp := f.handle(r.URL.Path, body)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *fakeGateway) last() recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func (f *fakeGateway) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func testConfig(baseURL string) *config.Config {
	conf := &config.Config{}
	conf.Gateway.ApplicationName = appName
	conf.Gateway.ApplicationPassword = appPwd
	conf.Gateway.SecureCode = secureCode
	conf.Gateway.MerchantCode = "9998"
	conf.Gateway.TransactionPrefix = "001"
	conf.Gateway.BaseURL = baseURL + "/tpay/provision/services/restful/getCardToken"
	conf.Gateway.PaymentManagementURL = baseURL + "/paymentmanagement/rest"
	conf.Gateway.DefaultClientIP = "127.0.0.1"
	conf.Gateway.Currency = "TRY"
	conf.Gateway.Timeout = 5 * time.Second
	return conf
}

func newTestClient(t *testing.T, handle func(path string, body map[string]any) (int, any)) (*Client, *fakeGateway) {
	t.Helper()
	fake := &fakeGateway{handle: handle}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	ids := txid.NewGenerator("001", time.FixedZone("TRT", 3*60*60))
	return New(testConfig(srv.URL), ids, nopLogger{}), fake
}

func okHeader(transactionId string) models.ResponseHeader {
	return models.ResponseHeader{
		TransactionId:       transactionId,
		ResponseDateTime:    "20240101120000123",
		ResponseCode:        "0",
		ResponseDescription: "Success",
	}
}

func headerOf(body map[string]any, key string) map[string]any {
	h, _ := body[key].(map[string]any)
	return h
}

var testCard = models.Card{Number: "4355 0843 5508 4358", ExpireDateMonth: "12", ExpireDateYear: "26", Cvc: "000"}

func TestTokenizeCardSignsAndVerifies(t *testing.T) {
	client, fake := newTestClient(t, func(path string, body map[string]any) (int, any) {
		h := headerOf(body, "header")
		txId := h["transactionId"].(string)
		header := okHeader(txId)
		token := "b1f2c3d4-token"
		return http.StatusOK, models.CardTokenResponse{
			ResponseHeader: header,
			CardToken:      token,
			HashData: signature.ResponseHash(appName, txId, header.ResponseDateTime, header.ResponseCode, token,
				secureCode, signature.SecurityData(appPwd, appName)),
		}
	})

	resp, err := client.TokenizeCard(context.Background(), testCard)
	require.NoError(t, err)
	assert.Equal(t, "b1f2c3d4-token", resp.CardToken)

	req := fake.last()
	assert.Equal(t, "/paymentmanagement/rest/getCardTokenSecure", req.path)
	h := headerOf(req.body, "header")
	assert.Equal(t, appName, h["applicationName"])
	assert.NotContains(t, h, "applicationPwd")
	assert.Regexp(t, `^001\d{17}$`, h["transactionId"])
	assert.Equal(t, "001"+h["transactionDateTime"].(string), h["transactionId"])
	assert.Equal(t, "4355084355084358", req.body["creditCardNo"])

	expected := signature.RequestHash(appName, h["transactionId"].(string), h["transactionDateTime"].(string),
		secureCode, signature.SecurityData(appPwd, appName))
	assert.Equal(t, expected, req.body["hashData"])
}

func TestTokenizeCardRejectsBadSignature(t *testing.T) {
	for _, code := range []string{"0", "1"} {
		t.Run("code "+code, func(t *testing.T) {
			client, _ := newTestClient(t, func(path string, body map[string]any) (int, any) {
				header := okHeader(headerOf(body, "header")["transactionId"].(string))
				header.ResponseCode = code
				return http.StatusOK, models.CardTokenResponse{
					ResponseHeader: header,
					CardToken:      "forged-token",
					HashData:       signature.Hash("anything"),
				}
			})

			resp, err := client.TokenizeCard(context.Background(), testCard)
			require.ErrorIs(t, err, ErrInvalidSignature)
			assert.Nil(t, resp)
			assert.Equal(t, "invalid_signature", Kind(err))
		})
	}
}

func TestTokenizeCardValidatesInput(t *testing.T) {
	client, fake := newTestClient(t, func(string, map[string]any) (int, any) {
		return http.StatusOK, nil
	})
	card := testCard
	card.ExpireDateMonth = "1"
	_, err := client.TokenizeCard(context.Background(), card)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "expireDateMonth", validationErr.Field)
	assert.Equal(t, 0, fake.count())
}

func TestQueryCardsSendsPasswordHeader(t *testing.T) {
	client, fake := newTestClient(t, func(path string, body map[string]any) (int, any) {
		return http.StatusOK, models.GetCardsResponse{
			ResponseHeader: okHeader("x"),
			EulaId:         "17",
			CardList:       []models.CardRecord{{CardId: "c-1", IsDefault: true}},
		}
	})

	resp, err := client.QueryCards(context.Background(), "", "5551234567")
	require.NoError(t, err)
	card, ok := resp.DefaultCard()
	require.True(t, ok)
	assert.Equal(t, "c-1", card.CardId)

	req := fake.last()
	assert.Equal(t, "/tpay/provision/services/restful/getCardToken/getCards", req.path)
	h := headerOf(req.body, "requestHeader")
	assert.Equal(t, appPwd, h["applicationPwd"])
	assert.Equal(t, "127.0.0.1", h["clientIPAddress"])
	assert.Equal(t, "5551234567", req.body["msisdn"])
	assert.NotContains(t, req.body, "hashData")
}

func TestEveryCallGetsFreshIdentity(t *testing.T) {
	client, fake := newTestClient(t, func(string, map[string]any) (int, any) {
		return http.StatusOK, models.TermsOfServiceResponse{ResponseHeader: okHeader("x"), EulaId: "17"}
	})

	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		_, err := client.GetTermsOfServiceContent(context.Background(), "10.0.0.1")
		require.NoError(t, err)
		id := headerOf(fake.last().body, "requestHeader")["transactionId"].(string)
		assert.False(t, seen[id], "transaction id reused: %s", id)
		seen[id] = true
	}
}

func TestProvisionDefaults(t *testing.T) {
	client, fake := newTestClient(t, func(string, map[string]any) (int, any) {
		header := okHeader("x")
		header.ResponseCode = "1"
		header.ResponseDescription = "Insufficient funds"
		return http.StatusOK, models.ProvisionResponse{ResponseHeader: header}
	})

	resp, err := client.Provision(context.Background(), "10.0.0.1", models.ProvisionRequest{
		Msisdn: "5551234567",
		CardId: "c-1",
		Amount: "1500",
	})
	require.NoError(t, err)
	assert.Equal(t, "1", resp.ResponseHeader.ResponseCode)
	assert.False(t, models.Succeeded(resp))

	body := fake.last().body
	assert.Equal(t, "SALE", body["paymentType"])
	assert.Equal(t, "TRY", body["currency"])
	assert.Equal(t, "9998", body["merchantCode"])
	assert.Regexp(t, `^001\d{17}$`, body["referenceNumber"])
	assert.Equal(t, "10.0.0.1", headerOf(body, "requestHeader")["clientIPAddress"])
}

func TestProvisionValidation(t *testing.T) {
	client, fake := newTestClient(t, func(string, map[string]any) (int, any) {
		return http.StatusOK, nil
	})
	tests := []struct {
		name  string
		req   models.ProvisionRequest
		field string
	}{
		{"msisdn", models.ProvisionRequest{CardId: "c", Amount: "1"}, "msisdn"},
		{"card", models.ProvisionRequest{Msisdn: "1", Amount: "1"}, "cardId"},
		{"amount", models.ProvisionRequest{Msisdn: "1", CardId: "c"}, "amount"},
		{"amount format", models.ProvisionRequest{Msisdn: "1", CardId: "c", Amount: "12.5"}, "amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Provision(context.Background(), "", tt.req)
			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.field, validationErr.Field)
		})
	}
	assert.Equal(t, 0, fake.count())
}

func TestThreeDSessionDefaults(t *testing.T) {
	client, fake := newTestClient(t, func(string, map[string]any) (int, any) {
		return http.StatusOK, models.ThreeDSessionResponse{ResponseHeader: okHeader("x"), ThreeDSessionId: "3d-1"}
	})
	resp, err := client.GetThreeDSession(context.Background(), "", models.ThreeDSessionRequest{Msisdn: "5551234567", CardToken: "tok"})
	require.NoError(t, err)
	assert.Equal(t, "3d-1", resp.ThreeDSessionId)

	body := fake.last().body
	assert.Equal(t, "/tpay/provision/services/restful/getCardToken/getThreeDSession", fake.last().path)
	assert.Equal(t, "MERCHANT", body["target"])
	assert.Equal(t, "AUTH", body["transactionType"])
	assert.Equal(t, "9998", body["merchantCode"])
}

func TestHTTPStatusError(t *testing.T) {
	client, _ := newTestClient(t, func(string, map[string]any) (int, any) {
		return http.StatusBadGateway, map[string]string{"error": "upstream"}
	})
	_, err := client.RegisterCard(context.Background(), "", models.RegisterCardRequest{Msisdn: "1", CardToken: "t", EulaId: "17"})

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadGateway, httpErr.StatusCode)
	assert.Equal(t, OpRegisterCard, httpErr.Op)
	assert.Equal(t, "http_status", Kind(err))
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	client := New(testConfig(srv.URL), txid.NewGenerator("001", time.UTC), nopLogger{})

	_, err := client.QueryCards(context.Background(), "", "5551234567")
	var networkErr *NetworkError
	require.ErrorAs(t, err, &networkErr)
	assert.Equal(t, OpQueryCards, networkErr.Op)
	assert.Equal(t, "network", Kind(err))
}

func TestMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	}))
	t.Cleanup(srv.Close)
	client := New(testConfig(srv.URL), txid.NewGenerator("001", time.UTC), nopLogger{})

	_, err := client.GetTermsOfServiceContent(context.Background(), "")
	require.ErrorIs(t, err, ErrMalformedResponse)
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{fmt.Errorf("wrapped: %w", ErrInvalidSignature), "invalid_signature"},
		{Required("msisdn"), "validation"},
		{&DeclinedError{Op: OpProvision}, "declined"},
		{&HTTPError{Op: OpProvision, StatusCode: 500}, "http_status"},
		{&NetworkError{Op: OpProvision, Err: errors.New("timeout")}, "network"},
		{errors.New("other"), "internal"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Kind(tt.err))
	}
}

func TestDeclined(t *testing.T) {
	assert.NoError(t, Declined(OpProvision, &models.ProvisionResponse{ResponseHeader: okHeader("x")}))

	header := okHeader("x")
	header.ResponseCode = "2"
	err := Declined(OpProvision, &models.ProvisionResponse{ResponseHeader: header})
	var declinedErr *DeclinedError
	require.ErrorAs(t, err, &declinedErr)
	assert.Equal(t, "2", declinedErr.Header.ResponseCode)
}

func TestUpdateCard(t *testing.T) {
	client, fake := newTestClient(t, func(path string, body map[string]any) (int, any) {
		return http.StatusOK, models.UpdateCardResponse{ResponseHeader: okHeader("x")}
	})

	isDefault := false
	resp, err := client.UpdateCard(context.Background(), "10.0.0.5", models.UpdateCardRequest{
		Msisdn:          "5551234567",
		CardId:          "c-1",
		Alias:           "work",
		IsDefault:       &isDefault,
		OtpValidationId: "otp-1",
		Otp:             "123456",
	})
	require.NoError(t, err)
	assert.True(t, models.Succeeded(resp))

	req := fake.last()
	assert.Equal(t, "/tpay/provision/services/restful/getCardToken/updateCard", req.path)
	assert.Equal(t, false, req.body["isDefault"])
	assert.Equal(t, "otp-1", req.body["otpValidationId"])
	assert.Equal(t, "10.0.0.5", headerOf(req.body, "requestHeader")["clientIPAddress"])

	_, err = client.UpdateCard(context.Background(), "", models.UpdateCardRequest{CardId: "c-1"})
	assert.Equal(t, "validation", Kind(err))

	resp, err = client.UpdateCard(context.Background(), "", models.UpdateCardRequest{Msisdn: "5551234567", CardId: "c-1"})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.NotContains(t, fake.last().body, "isDefault")
}
