package billing

import (
	"context"
	"fmt"

	"tpay/bank"
	"tpay/gateway"
	"tpay/internal"
	"tpay/models"
)

const (
	// ResumeEnrollmentPath and ResumePaymentPath are appended to the callback base url
	ResumeEnrollmentPath = "threeDSessionCardAdd"
	ResumePaymentPath    = "threeDSessionPayment"

	// enrollment 3-D sessions authenticate the card for a nominal amount
	enrollmentAuthAmount = "1"

	stepSelectCard    = "selectDefaultCard"
	stepCompareEula   = "compareEula"
	stepResumeContext = "resumeContext"
)

type Gateway interface {
	TokenizeCard(ctx context.Context, card models.Card) (*models.CardTokenResponse, error)
	QueryCards(ctx context.Context, clientIP, msisdn string) (*models.GetCardsResponse, error)
	RegisterCard(ctx context.Context, clientIP string, req models.RegisterCardRequest) (*models.RegisterCardResponse, error)
	GetThreeDSession(ctx context.Context, clientIP string, req models.ThreeDSessionRequest) (*models.ThreeDSessionResponse, error)
	GetThreeDSessionResult(ctx context.Context, clientIP string, req models.ThreeDSessionResultRequest) (*models.ThreeDSessionResultResponse, error)
	GetTermsOfServiceContent(ctx context.Context, clientIP string) (*models.TermsOfServiceResponse, error)
	Provision(ctx context.Context, clientIP string, req models.ProvisionRequest) (*models.ProvisionResponse, error)
}

type Redirector interface {
	Redirect(ctx context.Context, sc bank.SessionContext, resumePath string) (*bank.Page, error)
}

// Orchestrator sequences gateway calls into enrollment and payment flows. It
// keeps no state between calls; 3-D flows resume from a bank.SessionContext.
type Orchestrator struct {
	gateway    Gateway
	redirector Redirector
	logger     internal.LogHandler
	recorder   FlowRecorder
	eulaId     string
}

func NewOrchestrator(gw Gateway, redirector Redirector, fallbackEulaId string, logger internal.LogHandler) *Orchestrator {
	return &Orchestrator{
		gateway:    gw,
		redirector: redirector,
		eulaId:     fallbackEulaId,
		logger:     logger,
	}
}

func (o *Orchestrator) SetRecorder(recorder FlowRecorder) {
	o.recorder = recorder
}

type EnrollmentRequest struct {
	Card      models.Card
	Msisdn    string
	Alias     string
	IsDefault bool
	ClientIP  string
}

type PaymentRequest struct {
	Msisdn           string
	Amount           string
	InstallmentCount int
	ReferenceNumber  string
	ClientIP         string
}

type EnrollmentResult struct {
	FlowId   string
	State    State
	EulaId   string
	Response *models.RegisterCardResponse
}

type PaymentResult struct {
	FlowId   string
	State    State
	CardId   string
	Response *models.ProvisionResponse
}

// RedirectResult is the end of the first half of a 3-D flow
type RedirectResult struct {
	FlowId          string
	ThreeDSessionId string
	Page            *bank.Page
}

// EnrollCard runs tokenize, terms and register without step-up authentication
func (o *Orchestrator) EnrollCard(ctx context.Context, req EnrollmentRequest) (*EnrollmentResult, error) {
	if req.Msisdn == "" {
		return nil, gateway.Required("msisdn")
	}
	t := o.begin(FlowEnrollment, StateTokenPending)
	cardToken, err := o.tokenize(ctx, t, req.Card)
	if err != nil {
		return nil, err
	}
	eulaId, err := o.currentEula(ctx, t, req.ClientIP)
	if err != nil {
		return nil, err
	}
	resp, err := o.gateway.RegisterCard(ctx, req.ClientIP, models.RegisterCardRequest{
		Msisdn:    req.Msisdn,
		CardToken: cardToken,
		Alias:     req.Alias,
		EulaId:    eulaId,
		IsDefault: req.IsDefault,
	})
	if err != nil {
		return nil, t.fail(gateway.OpRegisterCard, err)
	}
	t.settle(gateway.OpRegisterCard, resp, StateRegistered)
	return &EnrollmentResult{FlowId: t.record.FlowId, State: t.state(), EulaId: eulaId, Response: resp}, nil
}

// StartEnrollmentWithThreeD tokenizes the card, opens a 3-D session for it and
// hands the session to the bank; CompleteEnrollment finishes the flow
func (o *Orchestrator) StartEnrollmentWithThreeD(ctx context.Context, req EnrollmentRequest) (*RedirectResult, error) {
	if req.Msisdn == "" {
		return nil, gateway.Required("msisdn")
	}
	t := o.begin(FlowEnrollmentThreeD, StateTokenPending)
	cardToken, err := o.tokenize(ctx, t, req.Card)
	if err != nil {
		return nil, err
	}
	eulaId, err := o.currentEula(ctx, t, req.ClientIP)
	if err != nil {
		return nil, err
	}
	session, err := o.openThreeDSession(ctx, t, req.ClientIP, models.ThreeDSessionRequest{
		Msisdn:    req.Msisdn,
		CardToken: cardToken,
		Amount:    enrollmentAuthAmount,
	})
	if err != nil {
		return nil, err
	}
	return o.redirect(ctx, t, bank.SessionContext{
		ThreeDSessionId: session,
		Msisdn:          req.Msisdn,
		CardToken:       cardToken,
		EulaId:          eulaId,
		IsDefault:       req.IsDefault,
		ClientIPAddress: req.ClientIP,
		Alias:           req.Alias,
	}, ResumeEnrollmentPath)
}

// CompleteEnrollment registers the card only when the bank authenticated the cardholder
func (o *Orchestrator) CompleteEnrollment(ctx context.Context, sc bank.SessionContext) (*EnrollmentResult, error) {
	t := o.begin(FlowEnrollmentResume, StateAwaitingBank)
	if err := o.confirmThreeD(ctx, t, sc); err != nil {
		return nil, err
	}
	resp, err := o.gateway.RegisterCard(ctx, sc.ClientIPAddress, models.RegisterCardRequest{
		Msisdn:          sc.Msisdn,
		CardToken:       sc.CardToken,
		Alias:           sc.Alias,
		EulaId:          sc.EulaId,
		IsDefault:       sc.IsDefault,
		ThreeDSessionId: sc.ThreeDSessionId,
	})
	if err != nil {
		return nil, t.fail(gateway.OpRegisterCard, err)
	}
	t.settle(gateway.OpRegisterCard, resp, StateRegistered)
	return &EnrollmentResult{FlowId: t.record.FlowId, State: t.state(), EulaId: sc.EulaId, Response: resp}, nil
}

// PayWithDefaultCard charges the account's default card once its EULA is current
func (o *Orchestrator) PayWithDefaultCard(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	if err := validatePayment(req); err != nil {
		return nil, err
	}
	t := o.begin(FlowPayment, StateCardsPending)
	card, _, err := o.selectDefaultCard(ctx, t, req)
	if err != nil {
		return nil, err
	}
	resp, err := o.gateway.Provision(ctx, req.ClientIP, models.ProvisionRequest{
		Msisdn:           req.Msisdn,
		CardId:           card.CardId,
		Amount:           req.Amount,
		InstallmentCount: req.InstallmentCount,
		ReferenceNumber:  req.ReferenceNumber,
		PaymentType:      models.PaymentTypeSale,
	})
	if err != nil {
		return nil, t.fail(gateway.OpProvision, err)
	}
	t.settle(gateway.OpProvision, resp, StateProvisioned)
	return &PaymentResult{FlowId: t.record.FlowId, State: t.state(), CardId: card.CardId, Response: resp}, nil
}

// StartDefaultCardPaymentWithThreeD opens a 3-D session for the default card and
// amount and hands it to the bank; CompleteDefaultCardPayment finishes the flow
func (o *Orchestrator) StartDefaultCardPaymentWithThreeD(ctx context.Context, req PaymentRequest) (*RedirectResult, error) {
	if err := validatePayment(req); err != nil {
		return nil, err
	}
	t := o.begin(FlowPaymentThreeD, StateCardsPending)
	card, eulaId, err := o.selectDefaultCard(ctx, t, req)
	if err != nil {
		return nil, err
	}
	session, err := o.openThreeDSession(ctx, t, req.ClientIP, models.ThreeDSessionRequest{
		Msisdn:           req.Msisdn,
		CardId:           card.CardId,
		Amount:           req.Amount,
		InstallmentCount: req.InstallmentCount,
	})
	if err != nil {
		return nil, err
	}
	return o.redirect(ctx, t, bank.SessionContext{
		ThreeDSessionId:  session,
		Msisdn:           req.Msisdn,
		CardId:           card.CardId,
		Amount:           req.Amount,
		EulaId:           eulaId,
		IsDefault:        true,
		ClientIPAddress:  req.ClientIP,
		Alias:            card.Alias,
		ReferenceNumber:  req.ReferenceNumber,
		InstallmentCount: req.InstallmentCount,
	}, ResumePaymentPath)
}

// CompleteDefaultCardPayment provisions with the 3-D session attached only when
// the bank authenticated the cardholder
func (o *Orchestrator) CompleteDefaultCardPayment(ctx context.Context, sc bank.SessionContext) (*PaymentResult, error) {
	t := o.begin(FlowPaymentResume, StateAwaitingBank)
	switch {
	case sc.CardId == "":
		return nil, t.fail(stepResumeContext, gateway.Required("cardId"))
	case sc.Amount == "":
		return nil, t.fail(stepResumeContext, gateway.Required("amount"))
	}
	if err := o.confirmThreeD(ctx, t, sc); err != nil {
		return nil, err
	}
	resp, err := o.gateway.Provision(ctx, sc.ClientIPAddress, models.ProvisionRequest{
		Msisdn:           sc.Msisdn,
		CardId:           sc.CardId,
		Amount:           sc.Amount,
		InstallmentCount: sc.InstallmentCount,
		ReferenceNumber:  sc.ReferenceNumber,
		PaymentType:      models.PaymentTypeSale,
		ThreeDSessionId:  sc.ThreeDSessionId,
	})
	if err != nil {
		return nil, t.fail(gateway.OpProvision, err)
	}
	t.settle(gateway.OpProvision, resp, StateProvisioned)
	return &PaymentResult{FlowId: t.record.FlowId, State: t.state(), CardId: sc.CardId, Response: resp}, nil
}

func (o *Orchestrator) tokenize(ctx context.Context, t *tracker, card models.Card) (string, error) {
	resp, err := o.gateway.TokenizeCard(ctx, card)
	if err != nil {
		return "", t.fail(gateway.OpTokenizeCard, err)
	}
	if err = gateway.Declined(gateway.OpTokenizeCard, resp); err != nil {
		return "", t.fail(gateway.OpTokenizeCard, err)
	}
	if resp.CardToken == "" {
		return "", t.fail(gateway.OpTokenizeCard, fmt.Errorf("%w: empty card token", gateway.ErrMalformedResponse))
	}
	t.advance(StateTokenReady)
	return resp.CardToken, nil
}

// currentEula falls back to the configured id when the gateway sends none
func (o *Orchestrator) currentEula(ctx context.Context, t *tracker, clientIP string) (string, error) {
	resp, err := o.gateway.GetTermsOfServiceContent(ctx, clientIP)
	if err != nil {
		return "", t.fail(gateway.OpTermsOfService, err)
	}
	if err = gateway.Declined(gateway.OpTermsOfService, resp); err != nil {
		return "", t.fail(gateway.OpTermsOfService, err)
	}
	eulaId := resp.EulaId
	if eulaId == "" {
		eulaId = o.eulaId
	}
	if eulaId == "" {
		return "", t.fail(gateway.OpTermsOfService, abort("no current eula id"))
	}
	t.advance(StateEulaReady)
	return eulaId, nil
}

// selectDefaultCard loads the account's cards and the current EULA, picks the
// default card and requires the account to have accepted the current EULA
func (o *Orchestrator) selectDefaultCard(ctx context.Context, t *tracker, req PaymentRequest) (models.CardRecord, string, error) {
	cards, err := o.gateway.QueryCards(ctx, req.ClientIP, req.Msisdn)
	if err != nil {
		return models.CardRecord{}, "", t.fail(gateway.OpQueryCards, err)
	}
	if err = gateway.Declined(gateway.OpQueryCards, cards); err != nil {
		return models.CardRecord{}, "", t.fail(gateway.OpQueryCards, err)
	}
	t.advance(StateCardsLoaded)

	eulaId, err := o.currentEula(ctx, t, req.ClientIP)
	if err != nil {
		return models.CardRecord{}, "", err
	}

	card, ok := cards.DefaultCard()
	if !ok || card.CardId == "" {
		return models.CardRecord{}, "", t.fail(stepSelectCard, abort("no default card"))
	}
	t.advance(StateCardSelected)

	if cards.EulaId != eulaId {
		reason := fmt.Sprintf("account eula %q differs from current eula %q", cards.EulaId, eulaId)
		return models.CardRecord{}, "", t.fail(stepCompareEula, abort(reason))
	}
	return card, eulaId, nil
}

func (o *Orchestrator) openThreeDSession(ctx context.Context, t *tracker, clientIP string, req models.ThreeDSessionRequest) (string, error) {
	req.Target = models.ThreeDTargetMerchant
	req.TransactionType = models.ThreeDTypeAuth
	resp, err := o.gateway.GetThreeDSession(ctx, clientIP, req)
	if err != nil {
		return "", t.fail(gateway.OpThreeDSession, err)
	}
	if err = gateway.Declined(gateway.OpThreeDSession, resp); err != nil {
		return "", t.fail(gateway.OpThreeDSession, err)
	}
	if resp.ThreeDSessionId == "" {
		return "", t.fail(gateway.OpThreeDSession, fmt.Errorf("%w: empty 3-D session id", gateway.ErrMalformedResponse))
	}
	t.advance(StateThreeDSessionOpened)
	return resp.ThreeDSessionId, nil
}

func (o *Orchestrator) redirect(ctx context.Context, t *tracker, sc bank.SessionContext, resumePath string) (*RedirectResult, error) {
	page, err := o.redirector.Redirect(ctx, sc, resumePath)
	if err != nil {
		return nil, t.fail(bank.OpThreeDSecure, err)
	}
	t.advance(StateAwaitingBank)
	t.finish()
	return &RedirectResult{FlowId: t.record.FlowId, ThreeDSessionId: sc.ThreeDSessionId, Page: page}, nil
}

// confirmThreeD is the decision point of every resume: only a "0" 3-D result
// lets the flow continue
func (o *Orchestrator) confirmThreeD(ctx context.Context, t *tracker, sc bank.SessionContext) error {
	resp, err := o.gateway.GetThreeDSessionResult(ctx, sc.ClientIPAddress, models.ThreeDSessionResultRequest{
		Msisdn:          sc.Msisdn,
		ThreeDSessionId: sc.ThreeDSessionId,
		ReferenceNumber: sc.ReferenceNumber,
	})
	if err != nil {
		return t.fail(gateway.OpThreeDSessionResult, err)
	}
	if err = gateway.Declined(gateway.OpThreeDSessionResult, resp); err != nil {
		return t.fail(gateway.OpThreeDSessionResult, err)
	}
	if !resp.Authenticated() {
		result := resp.ThreeDOperationResult
		reason := fmt.Sprintf("3-D authentication failed with code %q: %s", result.ThreeDResult, result.ThreeDResultDescription)
		return t.fail(gateway.OpThreeDSessionResult, abort(reason))
	}
	t.advance(StateThreeDAuthenticated)
	return nil
}

func validatePayment(req PaymentRequest) error {
	switch {
	case req.Msisdn == "":
		return gateway.Required("msisdn")
	case req.Amount == "":
		return gateway.Required("amount")
	}
	for _, r := range req.Amount {
		if r < '0' || r > '9' {
			return &gateway.ValidationError{Field: "amount", Reason: "must be numeric"}
		}
	}
	return nil
}
