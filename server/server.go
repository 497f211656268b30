package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"

	"tpay/api"
	"tpay/internal"
	"tpay/internal/config"
	"tpay/metrics/counters"
	"tpay/utility"
)

const (
	paymentPrefix = "/payment"
	apiLogPath    = "/api/log"
	livePath      = "/-/live"

	requestIdHeader = "X-Request-Id"
	flowIdHeader    = "X-Flow-Id"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	payments   *PaymentHandler
	api        *api.Handler
	logger     internal.LogHandler
}

func NewServer(conf *config.Config, payments *PaymentHandler, apiHandler *api.Handler, logger internal.LogHandler) *Server {
	server := Server{
		conf:     conf,
		payments: payments,
		api:      apiHandler,
		logger:   logger,
	}
	router := httprouter.New()
	server.Register(router)
	server.httpServer = &http.Server{
		Handler:           server.withRequestId(router),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return &server
}

// Register mounts every route; both resume routes accept GET and POST since
// banks return the browser either way
func (s *Server) Register(router *httprouter.Router) {
	h := s.payments
	routes := []struct {
		path   string
		handle httprouter.Handle
	}{
		{"/getCardTokenSecure", h.TokenizeCard},
		{"/register-card", h.RegisterCard},
		{"/getThreeDSession", h.GetThreeDSession},
		{"/getThreeDSessionResult", h.GetThreeDSessionResult},
		{"/query-cards", h.QueryCards},
		{"/terms-of-service", h.TermsOfService},
		{"/update-card", h.UpdateCard},
		{"/provision", h.Provision},
		{"/cardAdd", h.CardAdd},
		{"/getThreeDSessionWithCardAdd", h.CardAddWithThreeD},
		{"/threeDSessionCardAdd", h.CardAddResume},
		{"/definedCardPayment", h.DefinedCardPayment},
		{"/definedCardPaymentWithThreeD", h.DefinedCardPaymentWithThreeD},
		{"/threeDSessionPayment", h.PaymentResume},
	}
	for _, route := range routes {
		path := paymentPrefix + route.path
		router.POST(path, s.counted(path, route.handle))
	}
	router.GET(paymentPrefix+"/threeDSessionCardAdd", s.counted(paymentPrefix+"/threeDSessionCardAdd", h.CardAddResume))
	router.GET(paymentPrefix+"/threeDSessionPayment", s.counted(paymentPrefix+"/threeDSessionPayment", h.PaymentResume))

	router.GET(apiLogPath, s.counted(apiLogPath, s.readLog))
	router.GET(livePath, s.live)
}

// withRequestId tags every exchange with a correlation id, keeping a caller supplied one
func (s *Server) withRequestId(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIdHeader)
		if id == "" {
			id = utility.NewUUID()
		}
		w.Header().Set(requestIdHeader, id)
		s.logger.Debug(fmt.Sprintf("%s %s from %s request %s", r.Method, r.URL.Path, r.RemoteAddr, id))
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) counted(route string, handle httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		handle(recorder, r, params)
		counters.CountRequest(route, strconv.Itoa(recorder.status))
	}
}

func (s *Server) readLog(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	data, err := s.api.HandleApiCall(&api.Call{CallType: api.ReadLog, Remote: r.RemoteAddr})
	if err != nil {
		if errors.Is(err, api.ErrNoDatabase) {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Kind: "log_sink"})
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) live(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	if s.conf == nil {
		return errors.New("configuration not loaded")
	}
	serverAddress := fmt.Sprintf("%s:%s", s.conf.Listen.BindIP, s.conf.Listen.Port)
	s.logger.Debug(fmt.Sprintf("starting server on %s", serverAddress))
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}
	if s.conf.Listen.TLS {
		s.logger.Debug("starting https TLS server")
		s.httpServer.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		err = s.httpServer.ServeTLS(listener, s.conf.Listen.CertFile, s.conf.Listen.KeyFile)
	} else {
		s.logger.Debug("starting http server")
		err = s.httpServer.Serve(listener)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
