package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sample = `
time_zone: Europe/Istanbul
gateway:
  application_name: PAYCELLTEST
  application_password: PaycellTestPassword
  secure_code: PAYCELL12345
  merchant_code: "9998"
  timeout: 20s
callback:
  secret: callback-secret
telegram:
  chat_ids: [101, 202]
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	conf, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "PAYCELLTEST", conf.Gateway.ApplicationName)
	require.Equal(t, "9998", conf.Gateway.MerchantCode)
	require.Equal(t, "001", conf.Gateway.TransactionPrefix)
	require.Equal(t, "17", conf.Gateway.EulaId)
	require.Equal(t, "TRY", conf.Gateway.Currency)
	require.Equal(t, 20*time.Second, conf.Gateway.Timeout)
	require.Equal(t, 15*time.Minute, conf.Callback.TTL)
	require.Equal(t, "3000", conf.Listen.Port)
	require.Equal(t, []int64{101, 202}, conf.Telegram.ChatIDs)
}

func TestLoadEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))
	t.Setenv("PAYCELL_MERCHANT_CODE", "1234")

	conf, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "1234", conf.Gateway.MerchantCode)
}

func TestValidate(t *testing.T) {
	conf := &Config{}
	conf.Gateway.ApplicationName = "PAYCELLTEST"
	conf.Gateway.ApplicationPassword = "pwd"
	conf.Gateway.SecureCode = "code"
	conf.Gateway.MerchantCode = "9998"
	conf.Gateway.TransactionPrefix = "001"
	conf.Callback.Secret = "secret"
	require.NoError(t, conf.Validate())

	conf.Gateway.TransactionPrefix = "A01"
	require.Error(t, conf.Validate())

	conf.Gateway.TransactionPrefix = "001"
	conf.Callback.Secret = ""
	require.Error(t, conf.Validate())

	conf.Callback.Secret = "secret"
	conf.Listen.TrustedProxies = []string{"10.0.0.0/8", "192.0.2.1"}
	require.NoError(t, conf.Validate())

	conf.Listen.TrustedProxies = []string{"proxy.local"}
	require.Error(t, conf.Validate())

	conf.Listen.TrustedProxies = nil
	conf.Gateway.SecureCode = ""
	require.Error(t, conf.Validate())
}
