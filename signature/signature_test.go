package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	appName       = "PAYCELLTEST"
	password      = "PaycellTestPassword"
	secureCode    = "PAYCELL12345"
	transactionId = "0012024010112000000001"
	dateTime      = "20240101120000000"
)

func TestHash(t *testing.T) {
	require.Equal(t, "ungWv48Bz+pBQUDeXa4iI7ADYaOWF3qctBD/YfIAFa0=", Hash("abc"))
	for i := 0; i < 10; i++ {
		require.Equal(t, Hash("PAYCELL"), Hash("PAYCELL"))
	}
}

func TestGoldenValues(t *testing.T) {
	security := SecurityData(password, appName)
	require.Equal(t, "d+RurbEgrO1HElWOfDW6I5/nCDmnUWDs4yYRjjDuDN0=", security)

	hash := RequestHash(appName, transactionId, dateTime, secureCode, security)
	require.Equal(t, "pA+LnP7qwyPxQ76OqrjpWBoJJS7Kf2BOPa34Y4uSPIw=", hash)

	signer := NewSigner(appName, password, secureCode)
	require.Equal(t, hash, signer.SignRequest(transactionId, dateTime))

	response := ResponseHash(appName, transactionId, "20240101120000123", "0", "b1f2c3d4-token", secureCode, security)
	require.Equal(t, "dIYbJyVBnMu5TSGGnAZvHEKW6NcW/01GT1ui+JIpQSc=", response)
}

func TestRequestHashUsesEveryInput(t *testing.T) {
	inputs := [5]string{appName, transactionId, dateTime, secureCode, SecurityData(password, appName)}
	base := RequestHash(inputs[0], inputs[1], inputs[2], inputs[3], inputs[4])

	for i := range inputs {
		changed := inputs
		changed[i] = changed[i] + "9"
		got := RequestHash(changed[0], changed[1], changed[2], changed[3], changed[4])
		assert.NotEqual(t, base, got, "input %d ignored", i)
	}
}

func TestVerifyResponse(t *testing.T) {
	signer := NewSigner(appName, password, secureCode)
	fields := [4]string{transactionId, "20240101120000123", "0", "b1f2c3d4-token"}
	hash := ResponseHash(appName, fields[0], fields[1], fields[2], fields[3], secureCode, SecurityData(password, appName))

	t.Run("round trip", func(t *testing.T) {
		require.NoError(t, signer.VerifyResponse(fields[0], fields[1], fields[2], fields[3], hash))
	})

	t.Run("mutated field", func(t *testing.T) {
		for i := range fields {
			changed := fields
			changed[i] = changed[i] + "1"
			err := signer.VerifyResponse(changed[0], changed[1], changed[2], changed[3], hash)
			require.ErrorIs(t, err, ErrInvalidSignature, "field %d", i)
		}
	})

	t.Run("other credentials", func(t *testing.T) {
		other := NewSigner(appName, password, "OTHER")
		require.ErrorIs(t, other.VerifyResponse(fields[0], fields[1], fields[2], fields[3], hash), ErrInvalidSignature)
	})

	t.Run("missing hash", func(t *testing.T) {
		require.ErrorIs(t, signer.VerifyResponse(fields[0], fields[1], fields[2], fields[3], ""), ErrInvalidSignature)
	})
}
