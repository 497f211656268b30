package api

import (
	"encoding/json"
	"errors"
	"fmt"

	"tpay/internal"
)

var ErrNoDatabase = errors.New("log sink is not configured")

type CallType string

const (
	ReadLog CallType = "ReadLog"
)

type Call struct {
	CallType CallType
	Remote   string
}

type Handler struct {
	logger   internal.LogHandler
	database internal.Database
}

func (h *Handler) SetLogger(logger internal.LogHandler) {
	h.logger = logger
}

func (h *Handler) SetDatabase(database internal.Database) {
	h.database = database
}

func NewApiHandler() *Handler {
	handler := Handler{}
	return &handler
}

// HandleApiCall serves operational reads; only recent log entries for now
func (h *Handler) HandleApiCall(ac *Call) ([]byte, error) {
	h.logger.Debug(fmt.Sprintf("api call %s from remote %s", ac.CallType, ac.Remote))
	if ac.CallType != ReadLog {
		return nil, fmt.Errorf("unsupported api call %s", ac.CallType)
	}
	if h.database == nil {
		return nil, ErrNoDatabase
	}
	data, err := h.database.ReadLog()
	if err != nil {
		h.logger.Error("read log error", err)
		return nil, err
	}
	if data == nil {
		data = []internal.FeatureLogMessage{}
	}
	byteData, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("encoding log data failed", err)
		return nil, err
	}
	return byteData, nil
}
