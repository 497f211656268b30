package bank

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tpay/gateway"
	"tpay/internal"
	"tpay/metrics/counters"
)

const (
	OpThreeDSecure = "threeDSecure"

	maxPageSize = 2 << 20
)

// Page is the bank's authentication page, relayed to the browser as is
type Page struct {
	ContentType string
	Body        []byte
}

// Redirector hands a 3-D session over to the issuing bank
type Redirector struct {
	httpClient   *http.Client
	url          string
	callbackBase string
	signer       *CallbackSigner
	logger       internal.LogHandler
}

func NewRedirector(httpClient *http.Client, paymentManagementURL, callbackBase string, signer *CallbackSigner, logger internal.LogHandler) *Redirector {
	return &Redirector{
		httpClient:   httpClient,
		url:          strings.TrimRight(paymentManagementURL, "/") + "/" + OpThreeDSecure,
		callbackBase: strings.TrimRight(callbackBase, "/"),
		signer:       signer,
		logger:       logger,
	}
}

// Form builds the hand-off body; callbackurl points at resumePath with the signed context
func (r *Redirector) Form(sc SessionContext, resumePath string) (url.Values, error) {
	if sc.ThreeDSessionId == "" {
		return nil, gateway.Required("threeDSessionId")
	}
	callback, err := r.signer.CallbackURL(r.callbackBase+"/"+strings.TrimLeft(resumePath, "/"), sc)
	if err != nil {
		return nil, err
	}
	form := url.Values{}
	form.Set("threeDSessionId", sc.ThreeDSessionId)
	form.Set("callbackurl", callback)
	form.Set("isPost3DResult", "true")
	return form, nil
}

// Redirect posts the form to the bank and returns its page without interpreting it
func (r *Redirector) Redirect(ctx context.Context, sc SessionContext, resumePath string) (page *Page, err error) {
	start := time.Now()
	defer func() {
		counters.ObserveGatewayCall(OpThreeDSecure, gateway.Kind(err), time.Since(start))
	}()

	form, err := r.Form(sc, resumePath)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("bank %s: creating request: %w", OpThreeDSecure, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	r.logger.FeatureEvent(OpThreeDSecure, sc.ThreeDSessionId, "redirecting to bank, resume at "+resumePath)
	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.logger.Error(fmt.Sprintf("%s %s", OpThreeDSecure, sc.ThreeDSessionId), err)
		return nil, &gateway.NetworkError{Op: OpThreeDSecure, Err: err}
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil, &gateway.NetworkError{Op: OpThreeDSecure, Err: fmt.Errorf("reading response body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &gateway.HTTPError{Op: OpThreeDSecure, StatusCode: resp.StatusCode, Status: resp.Status, Body: body}
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/html; charset=utf-8"
	}
	return &Page{ContentType: contentType, Body: body}, nil
}

// ParseCallback verifies the query the bank sends the browser back with
func (r *Redirector) ParseCallback(v url.Values) (SessionContext, error) {
	sc, err := r.signer.Verify(v)
	if err != nil {
		r.logger.Warn(fmt.Sprintf("%s callback rejected: %v", OpThreeDSecure, err))
		return SessionContext{}, err
	}
	if sc.ThreeDSessionId == "" || sc.Msisdn == "" {
		return SessionContext{}, gateway.Required("threeDSessionId")
	}
	return sc, nil
}
