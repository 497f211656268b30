package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/julienschmidt/httprouter"

	"tpay/bank"
	"tpay/billing"
	"tpay/internal"
	"tpay/models"
	"tpay/utility"
)

// Gateway is every pass-through operation the inbound surface exposes
type Gateway interface {
	billing.Gateway
	UpdateCard(ctx context.Context, clientIP string, req models.UpdateCardRequest) (*models.UpdateCardResponse, error)
}

type CallbackParser interface {
	ParseCallback(v url.Values) (bank.SessionContext, error)
}

type PaymentHandler struct {
	gateway         Gateway
	flows           *billing.Orchestrator
	callbacks       CallbackParser
	trusted         utility.TrustedProxies
	defaultClientIP string
	logger          internal.LogHandler
}

func NewPaymentHandler(gw Gateway, flows *billing.Orchestrator, callbacks CallbackParser, trusted utility.TrustedProxies, defaultClientIP string, logger internal.LogHandler) *PaymentHandler {
	return &PaymentHandler{
		gateway:         gw,
		flows:           flows,
		callbacks:       callbacks,
		trusted:         trusted,
		defaultClientIP: defaultClientIP,
		logger:          logger,
	}
}

func (h *PaymentHandler) clientIP(r *http.Request) string {
	return utility.ClientIP(r, h.trusted, h.defaultClientIP)
}

// params reads inbound fields; on failure the error is already written
func (h *PaymentHandler) params(w http.ResponseWriter, r *http.Request) (params, bool) {
	p, err := readParams(r)
	if err != nil {
		h.logger.Warn(fmt.Sprintf("%s: rejected input from %s: %v", r.URL.Path, h.clientIP(r), err))
		writeError(w, err)
		return nil, false
	}
	return p, true
}

func cardFrom(p params) models.Card {
	return models.Card{
		Number:          p.str("creditCardNo", "cardNo"),
		ExpireDateMonth: p.str("expireDateMonth"),
		ExpireDateYear:  p.str("expireDateYear"),
		Cvc:             p.str("cvcNo", "cvc"),
	}
}

func (h *PaymentHandler) TokenizeCard(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	p, ok := h.params(w, r)
	if !ok {
		return
	}
	resp, err := h.gateway.TokenizeCard(r.Context(), cardFrom(p))
	if err != nil {
		writeError(w, err)
		return
	}
	writeOutcome(w, resp)
}

func (h *PaymentHandler) RegisterCard(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	p, ok := h.params(w, r)
	if !ok {
		return
	}
	isDefault, err := p.boolean("isDefault")
	if err != nil {
		writeError(w, err)
		return
	}
	resp, err := h.gateway.RegisterCard(r.Context(), h.clientIP(r), models.RegisterCardRequest{
		Msisdn:          p.str("msisdn"),
		CardToken:       p.str("cardToken"),
		Alias:           p.str("alias"),
		EulaId:          p.str("eulaId"),
		IsDefault:       isDefault,
		ThreeDSessionId: p.str("threeDSessionId"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOutcome(w, resp)
}

func (h *PaymentHandler) GetThreeDSession(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	p, ok := h.params(w, r)
	if !ok {
		return
	}
	installments, err := p.integer("installmentCount")
	if err != nil {
		writeError(w, err)
		return
	}
	resp, err := h.gateway.GetThreeDSession(r.Context(), h.clientIP(r), models.ThreeDSessionRequest{
		Msisdn:           p.str("msisdn"),
		CardId:           p.str("cardId"),
		CardToken:        p.str("cardToken"),
		Amount:           p.str("amount"),
		InstallmentCount: installments,
		Target:           p.str("target"),
		TransactionType:  p.str("transactionType"),
		MerchantCode:     p.str("merchantCode"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOutcome(w, resp)
}

func (h *PaymentHandler) GetThreeDSessionResult(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	p, ok := h.params(w, r)
	if !ok {
		return
	}
	resp, err := h.gateway.GetThreeDSessionResult(r.Context(), h.clientIP(r), models.ThreeDSessionResultRequest{
		Msisdn:          p.str("msisdn"),
		ThreeDSessionId: p.str("threeDSessionId"),
		ReferenceNumber: p.str("referenceNumber"),
		MerchantCode:    p.str("merchantCode"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOutcome(w, resp)
}

func (h *PaymentHandler) QueryCards(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	p, ok := h.params(w, r)
	if !ok {
		return
	}
	resp, err := h.gateway.QueryCards(r.Context(), h.clientIP(r), p.str("msisdn"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeOutcome(w, resp)
}

func (h *PaymentHandler) TermsOfService(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	resp, err := h.gateway.GetTermsOfServiceContent(r.Context(), h.clientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeOutcome(w, resp)
}

func (h *PaymentHandler) UpdateCard(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	p, ok := h.params(w, r)
	if !ok {
		return
	}
	req := models.UpdateCardRequest{
		Alias:           p.str("alias"),
		CardId:          p.str("cardId"),
		EulaId:          p.str("eulaId"),
		Msisdn:          p.str("msisdn"),
		OtpValidationId: p.str("otpValidationId"),
		Otp:             p.str("otp"),
		ThreeDSessionId: p.str("threeDSessionId"),
	}
	if p.has("isDefault") {
		isDefault, err := p.boolean("isDefault")
		if err != nil {
			writeError(w, err)
			return
		}
		req.IsDefault = &isDefault
	}
	resp, err := h.gateway.UpdateCard(r.Context(), h.clientIP(r), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOutcome(w, resp)
}

func (h *PaymentHandler) Provision(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	p, ok := h.params(w, r)
	if !ok {
		return
	}
	installments, err := p.integer("installmentCount")
	if err != nil {
		writeError(w, err)
		return
	}
	resp, err := h.gateway.Provision(r.Context(), h.clientIP(r), models.ProvisionRequest{
		CardId:           p.str("cardId"),
		CardToken:        p.str("cardToken"),
		MerchantCode:     p.str("merchantCode"),
		Msisdn:           p.str("msisdn"),
		ReferenceNumber:  p.str("referenceNumber"),
		Amount:           p.str("amount"),
		Currency:         p.str("currency"),
		PaymentType:      p.str("paymentType"),
		AcquirerBankCode: p.str("acquirerBankCode"),
		InstallmentCount: installments,
		ThreeDSessionId:  p.str("threeDSessionId"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOutcome(w, resp)
}

func (h *PaymentHandler) enrollment(w http.ResponseWriter, r *http.Request) (billing.EnrollmentRequest, bool) {
	p, ok := h.params(w, r)
	if !ok {
		return billing.EnrollmentRequest{}, false
	}
	isDefault, err := p.boolean("isDefault")
	if err != nil {
		writeError(w, err)
		return billing.EnrollmentRequest{}, false
	}
	return billing.EnrollmentRequest{
		Card:      cardFrom(p),
		Msisdn:    p.str("msisdn"),
		Alias:     p.str("alias"),
		IsDefault: isDefault,
		ClientIP:  h.clientIP(r),
	}, true
}

func (h *PaymentHandler) payment(w http.ResponseWriter, r *http.Request) (billing.PaymentRequest, bool) {
	p, ok := h.params(w, r)
	if !ok {
		return billing.PaymentRequest{}, false
	}
	installments, err := p.integer("installmentCount")
	if err != nil {
		writeError(w, err)
		return billing.PaymentRequest{}, false
	}
	return billing.PaymentRequest{
		Msisdn:           p.str("msisdn"),
		Amount:           p.str("amount"),
		InstallmentCount: installments,
		ReferenceNumber:  p.str("referenceNumber"),
		ClientIP:         h.clientIP(r),
	}, true
}

func (h *PaymentHandler) CardAdd(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req, ok := h.enrollment(w, r)
	if !ok {
		return
	}
	result, err := h.flows.EnrollCard(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set(flowIdHeader, result.FlowId)
	writeOutcome(w, result.Response)
}

func (h *PaymentHandler) CardAddWithThreeD(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req, ok := h.enrollment(w, r)
	if !ok {
		return
	}
	result, err := h.flows.StartEnrollmentWithThreeD(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set(flowIdHeader, result.FlowId)
	writePage(w, result.Page)
}

// resumeContext verifies the signed callback query; the signed client address
// wins over the address of the browser coming back from the bank
func (h *PaymentHandler) resumeContext(w http.ResponseWriter, r *http.Request) (bank.SessionContext, bool) {
	sc, err := h.callbacks.ParseCallback(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return bank.SessionContext{}, false
	}
	if sc.ClientIPAddress == "" {
		sc.ClientIPAddress = h.clientIP(r)
	}
	return sc, true
}

func (h *PaymentHandler) CardAddResume(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	sc, ok := h.resumeContext(w, r)
	if !ok {
		return
	}
	result, err := h.flows.CompleteEnrollment(r.Context(), sc)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set(flowIdHeader, result.FlowId)
	writeOutcome(w, result.Response)
}

func (h *PaymentHandler) DefinedCardPayment(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req, ok := h.payment(w, r)
	if !ok {
		return
	}
	result, err := h.flows.PayWithDefaultCard(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set(flowIdHeader, result.FlowId)
	writeOutcome(w, result.Response)
}

func (h *PaymentHandler) DefinedCardPaymentWithThreeD(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req, ok := h.payment(w, r)
	if !ok {
		return
	}
	result, err := h.flows.StartDefaultCardPaymentWithThreeD(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set(flowIdHeader, result.FlowId)
	writePage(w, result.Page)
}

func (h *PaymentHandler) PaymentResume(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	sc, ok := h.resumeContext(w, r)
	if !ok {
		return
	}
	result, err := h.flows.CompleteDefaultCardPayment(r.Context(), sc)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set(flowIdHeader, result.FlowId)
	writeOutcome(w, result.Response)
}
