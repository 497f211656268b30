package billing

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"tpay/internal"
	"tpay/metrics/counters"
	"tpay/models"
	"tpay/utility"
)

// ErrFlowAborted marks a flow stopped by a failed precondition: EULA mismatch,
// no default card or a failed 3-D authentication
var ErrFlowAborted = errors.New("flow aborted")

type Flow string

const (
	FlowEnrollment       Flow = "card_enrollment"
	FlowEnrollmentThreeD Flow = "card_enrollment_3d"
	FlowEnrollmentResume Flow = "card_enrollment_3d_resume"
	FlowPayment          Flow = "default_card_payment"
	FlowPaymentThreeD    Flow = "default_card_payment_3d"
	FlowPaymentResume    Flow = "default_card_payment_3d_resume"
)

type State string

const (
	StateTokenPending        State = "token_pending"
	StateTokenReady          State = "token_ready"
	StateEulaReady           State = "eula_ready"
	StateRegistered          State = "registered"
	StateThreeDSessionOpened State = "three_d_session_opened"
	StateAwaitingBank        State = "awaiting_bank"
	StateThreeDAuthenticated State = "three_d_authenticated"
	StateCardsPending        State = "cards_pending"
	StateCardsLoaded         State = "cards_loaded"
	StateCardSelected        State = "card_selected"
	StateProvisioned         State = "provisioned"
	StateAborted             State = "aborted"
)

// StepError tells which step of which flow failed and how far the flow got
type StepError struct {
	Flow  Flow
	Step  string
	State State
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: step %s failed in state %s: %v", e.Flow, e.Step, e.State, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func abort(reason string) error {
	return fmt.Errorf("%w: %s", ErrFlowAborted, reason)
}

// FlowRecord is the audit entry for one flow; it never carries card data
type FlowRecord struct {
	FlowId     string    `json:"flow_id" bson:"flow_id"`
	Flow       Flow      `json:"flow" bson:"flow"`
	States     []State   `json:"states" bson:"states"`
	Final      State     `json:"final" bson:"final"`
	FailedStep string    `json:"failed_step,omitempty" bson:"failed_step,omitempty"`
	Error      string    `json:"error,omitempty" bson:"error,omitempty"`
	StartedAt  time.Time `json:"started_at" bson:"started_at"`
	FinishedAt time.Time `json:"finished_at" bson:"finished_at"`
}

func (r *FlowRecord) DataType() string {
	return "flowRecord"
}

// tracker walks one flow through its named states
type tracker struct {
	o      *Orchestrator
	record *FlowRecord
}

func (o *Orchestrator) begin(flow Flow, initial State) *tracker {
	t := &tracker{
		o: o,
		record: &FlowRecord{
			FlowId:    utility.NewUUID(),
			Flow:      flow,
			States:    []State{initial},
			Final:     initial,
			StartedAt: time.Now().UTC(),
		},
	}
	o.logger.Debug(fmt.Sprintf("%s %s: started in %s", flow, t.record.FlowId, initial))
	return t
}

func (t *tracker) state() State {
	return t.record.Final
}

func (t *tracker) advance(state State) {
	t.record.States = append(t.record.States, state)
	t.record.Final = state
}

// fail moves the flow to aborted and returns the annotated error
func (t *tracker) fail(step string, err error) error {
	stepErr := &StepError{Flow: t.record.Flow, Step: step, State: t.record.Final, Err: err}
	t.record.FailedStep = step
	t.record.Error = err.Error()
	t.advance(StateAborted)
	t.finish()
	t.o.logger.Warn(stepErr.Error())
	return stepErr
}

// settle ends a flow on the final gateway response; a declined response is a
// normal outcome and is recorded as aborted without an error
func (t *tracker) settle(step string, outcome models.Outcome, success State) {
	if models.Succeeded(outcome) {
		t.advance(success)
	} else {
		header := outcome.Header()
		t.record.FailedStep = step
		t.record.Error = fmt.Sprintf("declined with code %s: %s", header.ResponseCode, header.ResponseDescription)
		t.advance(StateAborted)
	}
	t.finish()
}

func (t *tracker) finish() {
	t.record.FinishedAt = time.Now().UTC()
	counters.CountFlow(string(t.record.Flow), string(t.record.Final))
	t.o.logger.FeatureEvent(string(t.record.Flow), t.record.FlowId, "states "+joinStates(t.record.States))
	if t.o.recorder != nil {
		if err := t.o.recorder.WriteFlowRecord(t.record); err != nil {
			t.o.logger.Error("write flow record", err)
		}
	}
}

func joinStates(states []State) string {
	parts := make([]string, len(states))
	for i, s := range states {
		parts[i] = string(s)
	}
	return strings.Join(parts, " > ")
}

// FlowRecorder stores flow audit records
type FlowRecorder interface {
	WriteFlowRecord(data internal.Data) error
}
