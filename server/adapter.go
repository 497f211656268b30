package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"tpay/api"
	"tpay/bank"
	"tpay/billing"
	"tpay/gateway"
	"tpay/internal"
	"tpay/internal/config"
	"tpay/metrics"
	"tpay/telegram"
	"tpay/txid"
	"tpay/utility"
)

// Adapter wires the gateway client, bank redirect and flows behind the inbound server
type Adapter struct {
	conf   *config.Config
	server *Server
	logger internal.LogHandler
}

func NewAdapter(conf *config.Config) (*Adapter, error) {
	log.Println("set time zone to " + conf.TimeZone)
	location, err := time.LoadLocation(conf.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("time zone initialization failed: %s", err)
	}

	var database internal.Database
	var recorder billing.FlowRecorder
	if conf.Mongo.Enabled {
		mongoClient, err := internal.NewMongoClient(conf)
		if err != nil {
			return nil, fmt.Errorf("mongodb setup failed: %s", err)
		}
		if mongoClient != nil {
			database = mongoClient
			recorder = mongoClient
			log.Println("mongodb is configured and enabled")
		}
	} else {
		log.Println("database is disabled")
	}

	var messageService internal.MessageService
	if conf.Telegram.Enabled {
		telegramBot, err := telegram.NewBot(conf.Telegram.ApiKey, conf.Telegram.ChatIDs)
		if err != nil {
			return nil, fmt.Errorf("telegram bot setup failed: %s", err)
		}
		telegramBot.Start()
		messageService = telegramBot
		log.Println("telegram bot is configured and enabled")
	} else {
		log.Println("telegram alerts are disabled")
	}

	// logger with database and alerting for the message handling
	logService := internal.NewLogger(location)
	logService.SetDebugMode(conf.IsDebug)
	logService.SetDatabase(database)
	logService.SetMessageService(messageService)

	ids := txid.NewGenerator(conf.Gateway.TransactionPrefix, location)
	client := gateway.New(conf, ids, logService)

	signer := bank.NewCallbackSigner(conf.Callback.Secret, conf.Callback.TTL)
	redirector := bank.NewRedirector(client.HTTPClient(), conf.Gateway.PaymentManagementURL, conf.Callback.BaseURL, signer, logService)

	flows := billing.NewOrchestrator(client, redirector, conf.Gateway.EulaId, logService)
	if recorder != nil {
		flows.SetRecorder(recorder)
	}

	apiHandler := api.NewApiHandler()
	apiHandler.SetLogger(logService)
	apiHandler.SetDatabase(database)

	trusted, err := utility.ParseTrustedProxies(conf.Listen.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("trusted proxies: %s", err)
	}
	payments := NewPaymentHandler(client, flows, redirector, trusted, conf.Gateway.DefaultClientIP, logService)

	return &Adapter{
		conf:   conf,
		server: NewServer(conf, payments, apiHandler, logService),
		logger: logService,
	}, nil
}

// Start serves until ctx is done, then drains in-flight requests
func (a *Adapter) Start(ctx context.Context) error {
	go func() {
		if err := metrics.Listen(ctx, a.conf); err != nil {
			a.logger.Error("metrics server failed", err)
		}
	}()

	errs := make(chan error, 1)
	go func() {
		errs <- a.server.Start()
	}()
	a.logger.FeatureEvent("server", "*", fmt.Sprintf("listening on %s:%s", a.conf.Listen.BindIP, a.conf.Listen.Port))

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	a.logger.FeatureEvent("server", "*", "shutting down")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return <-errs
}
