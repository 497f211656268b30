package api

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tpay/internal"
)

type nopLogger struct{}

func (nopLogger) FeatureEvent(string, string, string) {}
func (nopLogger) Debug(string)                        {}
func (nopLogger) Warn(string)                         {}
func (nopLogger) Error(string, error)                 {}

type stubDatabase struct {
	messages []internal.FeatureLogMessage
	err      error
}

func (d *stubDatabase) WriteLogMessage(internal.Data) error { return nil }

func (d *stubDatabase) ReadLog() ([]internal.FeatureLogMessage, error) {
	return d.messages, d.err
}

func TestHandleApiCall(t *testing.T) {
	h := NewApiHandler()
	h.SetLogger(nopLogger{})
	h.SetDatabase(&stubDatabase{messages: []internal.FeatureLogMessage{
		{Feature: "provision", Id: "0012024010112000000001", Text: "reference 1 amount 1500 TRY"},
	}})

	data, err := h.HandleApiCall(&Call{CallType: ReadLog, Remote: "127.0.0.1"})
	require.NoError(t, err)

	var messages []internal.FeatureLogMessage
	require.NoError(t, json.Unmarshal(data, &messages))
	require.Len(t, messages, 1)
	assert.Equal(t, "provision", messages[0].Feature)
}

func TestHandleApiCallWithoutDatabase(t *testing.T) {
	h := NewApiHandler()
	h.SetLogger(nopLogger{})
	_, err := h.HandleApiCall(&Call{CallType: ReadLog})
	assert.ErrorIs(t, err, ErrNoDatabase)
}

func TestHandleApiCallEmptyLog(t *testing.T) {
	h := NewApiHandler()
	h.SetLogger(nopLogger{})
	h.SetDatabase(&stubDatabase{})
	data, err := h.HandleApiCall(&Call{CallType: ReadLog})
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))

	h.SetDatabase(&stubDatabase{err: errors.New("down")})
	_, err = h.HandleApiCall(&Call{CallType: ReadLog})
	assert.Error(t, err)
}
