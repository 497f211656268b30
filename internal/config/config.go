package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"tpay/utility"
)

const configFile = "config.yml"

type Config struct {
	IsDebug  bool   `yaml:"is_debug" env:"IS_DEBUG" env-default:"false"`
	TimeZone string `yaml:"time_zone" env:"TIME_ZONE" env-default:"Europe/Istanbul"`
	Listen   struct {
		BindIP   string `yaml:"bind_ip" env:"LISTEN_BIND_IP" env-default:"0.0.0.0"`
		Port     string `yaml:"port" env:"LISTEN_PORT" env-default:"3000"`
		TLS      bool   `yaml:"tls_enabled" env:"LISTEN_TLS" env-default:"false"`
		CertFile string `yaml:"cert_file" env:"LISTEN_CERT_FILE" env-default:""`
		KeyFile  string `yaml:"key_file" env:"LISTEN_KEY_FILE" env-default:""`

		// proxies allowed to set X-Forwarded-For and X-Real-Ip, addresses or CIDR ranges
		TrustedProxies []string `yaml:"trusted_proxies" env:"LISTEN_TRUSTED_PROXIES" env-separator:","`
	} `yaml:"listen"`
	Gateway struct {
		ApplicationName      string        `yaml:"application_name" env:"PAYCELL_APPLICATION_NAME" env-description:"gateway application name"`
		ApplicationPassword  string        `yaml:"application_password" env:"PAYCELL_APPLICATION_PASSWORD" env-description:"gateway application password"`
		SecureCode           string        `yaml:"secure_code" env:"PAYCELL_SECURE_CODE" env-description:"shared secret for the hash chain"`
		EulaId               string        `yaml:"eula_id" env:"PAYCELL_EULA_ID" env-default:"17"`
		MerchantCode         string        `yaml:"merchant_code" env:"PAYCELL_MERCHANT_CODE"`
		TransactionPrefix    string        `yaml:"transaction_prefix" env:"PAYCELL_TRANSACTION_PREFIX" env-default:"001"`
		BaseURL              string        `yaml:"base_url" env:"PAYCELL_BASE_URL" env-default:"https://tpay-test.turkcell.com.tr:443/tpay/provision/services/restful/getCardToken"`
		PaymentManagementURL string        `yaml:"payment_management_url" env:"PAYCELL_PAYMENT_MANAGEMENT_URL" env-default:"https://omccstb.turkcell.com.tr/paymentmanagement/rest"`
		DefaultClientIP      string        `yaml:"default_client_ip" env:"PAYCELL_DEFAULT_CLIENT_IP" env-default:"127.0.0.1"`
		Currency             string        `yaml:"currency" env:"PAYCELL_CURRENCY" env-default:"TRY"`
		Timeout              time.Duration `yaml:"timeout" env:"PAYCELL_TIMEOUT" env-default:"30s"`
		SkipTLSVerify        bool          `yaml:"skip_tls_verify" env:"PAYCELL_SKIP_TLS_VERIFY" env-default:"false"`
	} `yaml:"gateway"`
	Callback struct {
		BaseURL string        `yaml:"base_url" env:"CALLBACK_BASE_URL" env-default:"http://localhost:3000/payment"`
		Secret  string        `yaml:"secret" env:"CALLBACK_SECRET" env-description:"key for signing 3-D callback context"`
		TTL     time.Duration `yaml:"ttl" env:"CALLBACK_TTL" env-default:"15m"`
	} `yaml:"callback"`
	Mongo struct {
		Enabled  bool   `yaml:"enabled" env:"MONGO_ENABLED" env-default:"false"`
		Host     string `yaml:"host" env:"MONGO_HOST" env-default:"127.0.0.1"`
		Port     string `yaml:"port" env:"MONGO_PORT" env-default:"27017"`
		User     string `yaml:"user" env:"MONGO_USER" env-default:""`
		Password string `yaml:"password" env:"MONGO_PASSWORD" env-default:""`
		Database string `yaml:"database" env:"MONGO_DATABASE" env-default:"tpay"`
	} `yaml:"mongo"`
	Telegram struct {
		Enabled bool    `yaml:"enabled" env:"TELEGRAM_ENABLED" env-default:"false"`
		ApiKey  string  `yaml:"api_key" env:"TELEGRAM_API_KEY" env-default:""`
		ChatIDs []int64 `yaml:"chat_ids" env:"TELEGRAM_CHAT_IDS" env-separator:","`
	} `yaml:"telegram"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" env:"METRICS_ENABLED" env-default:"false"`
		BindIP  string `yaml:"bind_ip" env:"METRICS_BIND_IP" env-default:"0.0.0.0"`
		Port    string `yaml:"port" env:"METRICS_PORT" env-default:"9100"`
	} `yaml:"metrics"`
}

var instance *Config
var once sync.Once

func GetConfig() (*Config, error) {
	var err error
	once.Do(func() {
		log.Println("reading config")
		instance, err = Load(configFile)
		if err != nil {
			desc, _ := cleanenv.GetDescription(&Config{}, nil)
			log.Println(desc)
			instance = nil
		}
	})
	if instance == nil && err == nil {
		err = errors.New("configuration not loaded")
	}
	return instance, err
}

// Load reads an optional .env file, then the YAML file when it exists; environment
// variables take precedence over both
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	conf := &Config{}
	var err error
	if _, statErr := os.Stat(path); statErr == nil {
		err = cleanenv.ReadConfig(path, conf)
	} else {
		err = cleanenv.ReadEnv(conf)
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err = conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func (c *Config) Validate() error {
	g := c.Gateway
	if g.ApplicationName == "" || g.ApplicationPassword == "" || g.SecureCode == "" {
		return errors.New("config: gateway application name, password and secure code are required")
	}
	if g.MerchantCode == "" {
		return errors.New("config: gateway merchant code is required")
	}
	for _, r := range g.TransactionPrefix {
		if r < '0' || r > '9' {
			return fmt.Errorf("config: transaction prefix must be numeric: %q", g.TransactionPrefix)
		}
	}
	if _, err := utility.ParseTrustedProxies(c.Listen.TrustedProxies); err != nil {
		return fmt.Errorf("config: trusted proxies: %w", err)
	}
	if c.Callback.Secret == "" {
		return errors.New("config: callback secret is required")
	}
	if c.Telegram.Enabled && c.Telegram.ApiKey == "" {
		return errors.New("config: telegram api key is required when telegram is enabled")
	}
	return nil
}
