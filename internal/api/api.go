package api

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/config"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/domain/models"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/lib/jwt"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/pricing"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/storage"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/tracker"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/valuation"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Service is the part of the tracker the API exposes.
type Service interface {
	CreateUser(ctx context.Context, username, password string, email *string) (int64, error)
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	DeleteUser(ctx context.Context, username string) error
	Balance(ctx context.Context, username string) (decimal.Decimal, error)
	Deposit(ctx context.Context, username string, amount decimal.Decimal) error
	Withdraw(ctx context.Context, username string, amount decimal.Decimal) error

	CreatePortfolio(ctx context.Context, userID int64, name string) (*models.Portfolio, error)
	GetPortfolio(ctx context.Context, id int64) (*models.Portfolio, error)
	Portfolios(ctx context.Context, userID int64) ([]models.Portfolio, error)
	DeletePortfolio(ctx context.Context, id int64) error
	Valuate(ctx context.Context, portfolioID int64) (valuation.Report, error)
	Buy(ctx context.Context, portfolioID int64, symbol string, quantity int64) (*models.Position, error)
	Sell(ctx context.Context, portfolioID int64, symbol string, quantity int64) (decimal.Decimal, error)
	Lots(ctx context.Context, portfolioID int64) ([]models.Position, error)

	Tickers(ctx context.Context) ([]models.TickerPrice, error)
	UpdateTicker(ctx context.Context, symbol string) error
	UpdateAllTickers(ctx context.Context) (tracker.RefreshReport, error)
}

type ctxKey struct{}

type APIServer struct {
	config    *config.Config
	logger    *slog.Logger
	server    *http.Server
	service   Service
	jwtSecret []byte
	tokenTTL  time.Duration
}

func New(config *config.Config, logger *slog.Logger, service Service) *APIServer {
	s := &APIServer{
		config: config,
		logger: logger,
		server: &http.Server{
			Addr:              config.ApiHost + ":" + strconv.Itoa(config.ApiPort),
			ReadHeaderTimeout: 10 * time.Second,
		},
		service:   service,
		jwtSecret: []byte(config.JWT.Secret),
		tokenTTL:  config.JWT.TTL,
	}
	if s.tokenTTL <= 0 {
		s.tokenTTL = 24 * time.Hour
	}

	s.configureRouter()

	return s
}

func (s *APIServer) Start() error {
	s.logger.Info("Starting server", slog.String("addr", s.server.Addr))

	return s.server.ListenAndServe()
}

func (s *APIServer) MustStart() {
	err := s.Start()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic("Failed to start server: " + err.Error())
	}
}

func (s *APIServer) Stop(ctx context.Context) error {
	defer s.logger.Info("Server successfully stopped")
	return s.server.Shutdown(ctx)
}

func (s *APIServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *APIServer) configureRouter() {
	router := mux.NewRouter()
	router.HandleFunc("/api/register", s.registerHandler()).Methods("POST")
	router.HandleFunc("/api/login", s.loginHandler()).Methods("POST")
	router.HandleFunc("/api/user", s.authenticate(s.deleteUserHandler())).Methods("DELETE")

	router.HandleFunc("/api/balance", s.authenticate(s.balanceHandler())).Methods("GET")
	router.HandleFunc("/api/deposit", s.authenticate(s.depositHandler())).Methods("POST")
	router.HandleFunc("/api/withdraw", s.authenticate(s.withdrawHandler())).Methods("POST")

	router.HandleFunc("/api/portfolios", s.authenticate(s.listPortfoliosHandler())).Methods("GET")
	router.HandleFunc("/api/portfolios", s.authenticate(s.createPortfolioHandler())).Methods("POST")
	router.HandleFunc("/api/portfolios/{id:[0-9]+}", s.authenticate(s.deletePortfolioHandler())).Methods("DELETE")
	router.HandleFunc("/api/portfolios/{id:[0-9]+}/positions", s.authenticate(s.positionsHandler())).Methods("GET")
	router.HandleFunc("/api/portfolios/{id:[0-9]+}/lots", s.authenticate(s.lotsHandler())).Methods("GET")
	router.HandleFunc("/api/portfolios/{id:[0-9]+}/buy", s.authenticate(s.buyHandler())).Methods("POST")
	router.HandleFunc("/api/portfolios/{id:[0-9]+}/sell", s.authenticate(s.sellHandler())).Methods("POST")

	router.HandleFunc("/api/tickers", s.authenticate(s.tickersHandler())).Methods("GET")
	router.HandleFunc("/api/tickers/refresh", s.authenticate(s.refreshAllHandler())).Methods("POST")
	router.HandleFunc("/api/tickers/{symbol}/refresh", s.authenticate(s.refreshHandler())).Methods("POST")
	s.server.Handler = router
}

type AuthRequest struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	Email    *string `json:"email,omitempty"`
}

type AuthResponse struct {
	Token string `json:"token"`
}

func (s *APIServer) registerHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AuthRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Username) == "" || req.Password == "" {
			http.Error(w, "Username and password are required", http.StatusBadRequest)
			return
		}

		id, err := s.service.CreateUser(r.Context(), req.Username, req.Password, req.Email)
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.writeToken(w, http.StatusCreated, id, req.Username)
	}
}

func (s *APIServer) loginHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AuthRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		user, err := s.service.Authenticate(r.Context(), req.Username, req.Password)
		if err != nil {
			if errors.Is(err, tracker.ErrInvalidCredentials) {
				http.Error(w, "Invalid credentials", http.StatusUnauthorized)
				return
			}
			s.writeError(w, err)
			return
		}

		s.writeToken(w, http.StatusOK, user.ID, user.Username)
	}
}

func (s *APIServer) writeToken(w http.ResponseWriter, status int, userID int64, username string) {
	token, err := jwt.NewToken(userID, username, string(s.jwtSecret), s.tokenTTL)
	if err != nil {
		s.logger.Error("Failed to sign token", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, status, AuthResponse{Token: token})
}

func (s *APIServer) authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenHeader := r.Header.Get("Authorization")
		if tokenHeader == "" {
			http.Error(w, "Missing token", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(tokenHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid token format", http.StatusUnauthorized)
			return
		}

		claims, err := jwt.ParseToken(parts[1], string(s.jwtSecret))
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		r = r.WithContext(context.WithValue(r.Context(), ctxKey{}, claims))
		next(w, r)
	}
}

func claimsFrom(ctx context.Context) *jwt.Claims {
	claims, _ := ctx.Value(ctxKey{}).(*jwt.Claims)
	return claims
}

func (s *APIServer) deleteUserHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFrom(r.Context())

		if err := s.service.DeleteUser(r.Context(), claims.Username); err != nil {
			s.writeError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

type BalanceResponse struct {
	Balance decimal.Decimal `json:"balance"`
}

type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (s *APIServer) balanceHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFrom(r.Context())

		balance, err := s.service.Balance(r.Context(), claims.Username)
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.writeJSON(w, http.StatusOK, BalanceResponse{Balance: balance})
	}
}

func (s *APIServer) depositHandler() func(http.ResponseWriter, *http.Request) {
	return s.amountHandler(func(ctx context.Context, username string, amount decimal.Decimal) error {
		return s.service.Deposit(ctx, username, amount)
	})
}

func (s *APIServer) withdrawHandler() func(http.ResponseWriter, *http.Request) {
	return s.amountHandler(func(ctx context.Context, username string, amount decimal.Decimal) error {
		return s.service.Withdraw(ctx, username, amount)
	})
}

// amountHandler applies op to the caller's balance and answers with the
// resulting balance.
func (s *APIServer) amountHandler(op func(context.Context, string, decimal.Decimal) error) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFrom(r.Context())

		var req AmountRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		if err := op(r.Context(), claims.Username, req.Amount); err != nil {
			s.writeError(w, err)
			return
		}

		balance, err := s.service.Balance(r.Context(), claims.Username)
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.writeJSON(w, http.StatusOK, BalanceResponse{Balance: balance})
	}
}

func (s *APIServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to write response", "error", err)
	}
}

// writeError maps expected business failures to client statuses. Anything
// else is logged and reported as an internal error.
func (s *APIServer) writeError(w http.ResponseWriter, err error) {
	var (
		missingPrice *valuation.MissingPriceError
		fetchErr     *pricing.FetchError
	)

	switch {
	case errors.Is(err, storage.ErrUserExists), errors.Is(err, storage.ErrTickerExists):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, storage.ErrUserNotFound),
		errors.Is(err, storage.ErrPortfolioNotFound),
		errors.Is(err, storage.ErrTickerNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, storage.ErrInsufficientFunds):
		http.Error(w, "Insufficient funds", http.StatusPaymentRequired)
	case errors.Is(err, storage.ErrInsufficientQuantity):
		http.Error(w, "Insufficient quantity", http.StatusConflict)
	case errors.Is(err, storage.ErrInvalidAmount):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, storage.ErrTickerNotPriced), errors.As(err, &missingPrice):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &fetchErr):
		s.logger.Warn("Price source failed", slog.String("symbol", fetchErr.Symbol), "error", fetchErr.Err)
		http.Error(w, "Price source unavailable", http.StatusBadGateway)
	default:
		s.logger.Error("Request failed", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}
