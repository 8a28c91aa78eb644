package api

import (
	"bytes"
	"context"
	"encoding/json"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/config"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/domain/models"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/lib/jwt"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/pricing"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/storage"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/tracker"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/valuation"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

// ========================================================
// Fake tracker service
// ========================================================

type fakeUser struct {
	id       int64
	password string
	balance  decimal.Decimal
}

// FakeService keeps users, portfolios and prices in memory. Trades use the
// price table directly; every buy becomes its own lot.
type FakeService struct {
	users      map[string]*fakeUser
	portfolios map[int64]*models.Portfolio
	prices     map[string]decimal.Decimal
	holdings   map[int64][]models.Holding
	lots       map[int64][]models.Position
	nextID     int64
	refreshErr map[string]error
}

func NewFakeService() *FakeService {
	return &FakeService{
		users:      make(map[string]*fakeUser),
		portfolios: make(map[int64]*models.Portfolio),
		prices:     make(map[string]decimal.Decimal),
		holdings:   make(map[int64][]models.Holding),
		lots:       make(map[int64][]models.Position),
		nextID:     1,
		refreshErr: make(map[string]error),
	}
}

func (fs *FakeService) CreateUser(ctx context.Context, username, password string, email *string) (int64, error) {
	if _, ok := fs.users[username]; ok {
		return 0, storage.ErrUserExists
	}
	id := fs.nextID
	fs.nextID++
	fs.users[username] = &fakeUser{id: id, password: password, balance: decimal.Zero}
	return id, nil
}

func (fs *FakeService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	u, ok := fs.users[username]
	if !ok || u.password != password {
		return nil, tracker.ErrInvalidCredentials
	}
	return &models.User{ID: u.id, Username: username, Balance: u.balance}, nil
}

func (fs *FakeService) DeleteUser(ctx context.Context, username string) error {
	if _, ok := fs.users[username]; !ok {
		return storage.ErrUserNotFound
	}
	delete(fs.users, username)
	return nil
}

func (fs *FakeService) Balance(ctx context.Context, username string) (decimal.Decimal, error) {
	u, ok := fs.users[username]
	if !ok {
		return decimal.Zero, storage.ErrUserNotFound
	}
	return u.balance, nil
}

func (fs *FakeService) Deposit(ctx context.Context, username string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return storage.ErrInvalidAmount
	}
	u, ok := fs.users[username]
	if !ok {
		return storage.ErrUserNotFound
	}
	u.balance = u.balance.Add(amount)
	return nil
}

func (fs *FakeService) Withdraw(ctx context.Context, username string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return storage.ErrInvalidAmount
	}
	u, ok := fs.users[username]
	if !ok {
		return storage.ErrUserNotFound
	}
	if u.balance.LessThan(amount) {
		return storage.ErrInsufficientFunds
	}
	u.balance = u.balance.Sub(amount)
	return nil
}

func (fs *FakeService) CreatePortfolio(ctx context.Context, userID int64, name string) (*models.Portfolio, error) {
	p := &models.Portfolio{ID: fs.nextID, UserID: userID, Name: name}
	fs.nextID++
	fs.portfolios[p.ID] = p
	return p, nil
}

func (fs *FakeService) GetPortfolio(ctx context.Context, id int64) (*models.Portfolio, error) {
	p, ok := fs.portfolios[id]
	if !ok {
		return nil, storage.ErrPortfolioNotFound
	}
	return p, nil
}

func (fs *FakeService) Portfolios(ctx context.Context, userID int64) ([]models.Portfolio, error) {
	var out []models.Portfolio
	for _, p := range fs.portfolios {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (fs *FakeService) DeletePortfolio(ctx context.Context, id int64) error {
	delete(fs.portfolios, id)
	return nil
}

func (fs *FakeService) Valuate(ctx context.Context, portfolioID int64) (valuation.Report, error) {
	return valuation.Valuate(fs.holdings[portfolioID], fs.prices)
}

func (fs *FakeService) owner(portfolioID int64) *fakeUser {
	for _, u := range fs.users {
		if u.id == fs.portfolios[portfolioID].UserID {
			return u
		}
	}
	return nil
}

func (fs *FakeService) Buy(ctx context.Context, portfolioID int64, symbol string, quantity int64) (*models.Position, error) {
	price, ok := fs.prices[symbol]
	if !ok {
		return nil, storage.ErrTickerNotFound
	}
	cost := price.Mul(decimal.NewFromInt(quantity))
	u := fs.owner(portfolioID)
	if u.balance.LessThan(cost) {
		return nil, storage.ErrInsufficientFunds
	}
	u.balance = u.balance.Sub(cost)
	fs.holdings[portfolioID] = append(fs.holdings[portfolioID], models.Holding{Symbol: symbol, Quantity: quantity, CostBasis: cost})
	lot := models.Position{PortfolioID: portfolioID, Symbol: symbol, Quantity: quantity, PurchasePrice: price}
	fs.lots[portfolioID] = append(fs.lots[portfolioID], lot)
	return &lot, nil
}

func (fs *FakeService) Lots(ctx context.Context, portfolioID int64) ([]models.Position, error) {
	return fs.lots[portfolioID], nil
}

func (fs *FakeService) Sell(ctx context.Context, portfolioID int64, symbol string, quantity int64) (decimal.Decimal, error) {
	return decimal.Zero, storage.ErrInsufficientQuantity
}

func (fs *FakeService) Tickers(ctx context.Context) ([]models.TickerPrice, error) {
	var out []models.TickerPrice
	for symbol, price := range fs.prices {
		out = append(out, models.TickerPrice{Symbol: symbol, Price: decimal.NewNullDecimal(price)})
	}
	return out, nil
}

func (fs *FakeService) UpdateTicker(ctx context.Context, symbol string) error {
	if err, ok := fs.refreshErr[symbol]; ok {
		return err
	}
	if _, ok := fs.prices[symbol]; !ok {
		return storage.ErrTickerNotFound
	}
	return nil
}

func (fs *FakeService) UpdateAllTickers(ctx context.Context) (tracker.RefreshReport, error) {
	report := tracker.RefreshReport{Updated: []string{}, Failed: []tracker.RefreshFailure{}}
	for symbol := range fs.prices {
		if err := fs.UpdateTicker(ctx, symbol); err != nil {
			report.Failed = append(report.Failed, tracker.RefreshFailure{Symbol: symbol, Error: err.Error(), Err: err})
			continue
		}
		report.Updated = append(report.Updated, symbol)
	}
	return report, nil
}

// ========================================================
// Helpers
// ========================================================

const testSecret = "secret"

func newTestServer(service Service) *APIServer {
	cfg := &config.Config{
		ApiHost: "localhost",
		ApiPort: 8080,
		JWT:     config.JWT{Secret: testSecret, TTL: time.Hour},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg, logger, service)
}

func doRequest(t *testing.T, s *APIServer, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		r = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func register(t *testing.T, s *APIServer, username string) string {
	t.Helper()

	rr := doRequest(t, s, "POST", "/api/register", "", map[string]string{
		"username": username,
		"password": "password",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp AuthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp.Token
}

func decimalField(t *testing.T, rr *httptest.ResponseRecorder, field string) decimal.Decimal {
	t.Helper()

	var resp map[string]decimal.Decimal
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp[field]
}

// ========================================================
// Auth
// ========================================================

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(NewFakeService())

	token := register(t, s, "newuser")
	claims, err := jwt.ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("failed to parse token: %v", err)
	}
	if claims.Username != "newuser" {
		t.Errorf("expected username 'newuser', got %v", claims.Username)
	}

	rr := doRequest(t, s, "POST", "/api/register", "", map[string]string{
		"username": "newuser",
		"password": "other",
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409 for duplicate user, got %d", rr.Code)
	}

	rr = doRequest(t, s, "POST", "/api/login", "", map[string]string{
		"username": "newuser",
		"password": "password",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 for valid login, got %d", rr.Code)
	}

	rr = doRequest(t, s, "POST", "/api/login", "", map[string]string{
		"username": "newuser",
		"password": "wrongpassword",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 for invalid login, got %d", rr.Code)
	}

	rr = doRequest(t, s, "POST", "/api/login", "", map[string]string{
		"username": "nobody",
		"password": "password",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 for unknown user, got %d", rr.Code)
	}
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	s := newTestServer(NewFakeService())

	if rr := doRequest(t, s, "GET", "/api/balance", "", nil); rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401 without token, got %d", rr.Code)
	}

	if rr := doRequest(t, s, "GET", "/api/balance", "garbage", nil); rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401 for garbage token, got %d", rr.Code)
	}

	forged, err := jwt.NewToken(1, "someone", "other-secret", time.Hour)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	if rr := doRequest(t, s, "GET", "/api/balance", forged, nil); rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401 for forged token, got %d", rr.Code)
	}
}

// ========================================================
// Balance
// ========================================================

func TestDepositWithdraw(t *testing.T) {
	s := newTestServer(NewFakeService())
	token := register(t, s, "alice")

	rr := doRequest(t, s, "POST", "/api/deposit", token, map[string]string{"amount": "1000"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if got := decimalField(t, rr, "balance"); !got.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("expected balance 1000, got %s", got)
	}

	rr = doRequest(t, s, "POST", "/api/withdraw", token, map[string]string{"amount": "2000"})
	if rr.Code != http.StatusPaymentRequired {
		t.Fatalf("expected status 402, got %d", rr.Code)
	}

	rr = doRequest(t, s, "POST", "/api/withdraw", token, map[string]string{"amount": "-5"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}

	rr = doRequest(t, s, "POST", "/api/withdraw", token, map[string]string{"amount": "250.5"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	rr = doRequest(t, s, "GET", "/api/balance", token, nil)
	if got := decimalField(t, rr, "balance"); !got.Equal(decimal.RequireFromString("749.5")) {
		t.Errorf("expected balance 749.5, got %s", got)
	}
}

// ========================================================
// Portfolios
// ========================================================

func createPortfolio(t *testing.T, s *APIServer, token string) models.Portfolio {
	t.Helper()

	rr := doRequest(t, s, "POST", "/api/portfolios", token, map[string]string{"name": "main"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}

	var p models.Portfolio
	if err := json.NewDecoder(rr.Body).Decode(&p); err != nil {
		t.Fatalf("failed to decode portfolio: %v", err)
	}
	return p
}

func TestBuyAndPositions(t *testing.T) {
	service := NewFakeService()
	service.prices["XYZ"] = decimal.NewFromInt(50)
	s := newTestServer(service)

	token := register(t, s, "alice")
	doRequest(t, s, "POST", "/api/deposit", token, map[string]string{"amount": "1000"})
	p := createPortfolio(t, s, token)
	base := "/api/portfolios/" + strconv.FormatInt(p.ID, 10)

	rr := doRequest(t, s, "POST", base+"/buy", token, TradeRequest{Symbol: "XYZ", Quantity: 10})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = doRequest(t, s, "POST", base+"/buy", token, TradeRequest{Symbol: "XYZ", Quantity: 100})
	if rr.Code != http.StatusPaymentRequired {
		t.Fatalf("expected status 402, got %d", rr.Code)
	}

	rr = doRequest(t, s, "POST", base+"/sell", token, TradeRequest{Symbol: "XYZ", Quantity: 100})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}

	service.prices["XYZ"] = decimal.NewFromInt(60)

	rr = doRequest(t, s, "GET", base+"/positions", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var report valuation.Report
	if err := json.NewDecoder(rr.Body).Decode(&report); err != nil {
		t.Fatalf("failed to decode report: %v", err)
	}
	if len(report.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(report.Rows))
	}
	if !report.Rows[0].CurrentValue.Equal(decimal.NewFromInt(600)) {
		t.Errorf("expected value 600, got %s", report.Rows[0].CurrentValue)
	}
	if !report.Totals.ProfitLoss.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected profit 100, got %s", report.Totals.ProfitLoss)
	}

	rr = doRequest(t, s, "GET", base+"/lots", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var lots []LotResponse
	if err := json.NewDecoder(rr.Body).Decode(&lots); err != nil {
		t.Fatalf("failed to decode lots: %v", err)
	}
	if len(lots) != 1 {
		t.Fatalf("expected 1 lot, got %d", len(lots))
	}
	if lots[0].Quantity != 10 || !lots[0].CostBasis.Equal(decimal.NewFromInt(500)) {
		t.Errorf("expected 10 shares costing 500, got %d costing %s", lots[0].Quantity, lots[0].CostBasis)
	}
}

func TestForeignPortfolioIsNotFound(t *testing.T) {
	s := newTestServer(NewFakeService())

	alice := register(t, s, "alice")
	bob := register(t, s, "bob")
	p := createPortfolio(t, s, alice)

	rr := doRequest(t, s, "GET", "/api/portfolios/"+strconv.FormatInt(p.ID, 10)+"/positions", bob, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}

	rr = doRequest(t, s, "DELETE", "/api/portfolios/"+strconv.FormatInt(p.ID, 10), bob, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}

	rr = doRequest(t, s, "DELETE", "/api/portfolios/"+strconv.FormatInt(p.ID, 10), alice, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
}

func TestPositionsHandlerDirect(t *testing.T) {
	service := NewFakeService()
	s := newTestServer(service)

	p, _ := service.CreatePortfolio(context.Background(), 7, "main")
	service.holdings[p.ID] = []models.Holding{{Symbol: "GONE", Quantity: 1, CostBasis: decimal.NewFromInt(5)}}

	token, err := jwt.NewToken(7, "owner", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/portfolios/1/positions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req = mux.SetURLVars(req, map[string]string{"id": strconv.FormatInt(p.ID, 10)})
	rr := httptest.NewRecorder()

	handler := http.HandlerFunc(s.authenticate(s.positionsHandler()))
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409 for unpriced holding, got %d", rr.Code)
	}
}

// ========================================================
// Tickers
// ========================================================

func TestRefreshTickers(t *testing.T) {
	service := NewFakeService()
	service.prices["AAA"] = decimal.NewFromInt(1)
	service.prices["BBB"] = decimal.NewFromInt(2)
	service.refreshErr["BBB"] = &pricing.FetchError{Symbol: "BBB", Err: pricing.ErrUnknownSymbol}
	s := newTestServer(service)
	token := register(t, s, "alice")

	rr := doRequest(t, s, "POST", "/api/tickers/refresh", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var report tracker.RefreshReport
	if err := json.NewDecoder(rr.Body).Decode(&report); err != nil {
		t.Fatalf("failed to decode report: %v", err)
	}
	if len(report.Updated) != 1 || report.Updated[0] != "AAA" {
		t.Errorf("expected AAA updated, got %v", report.Updated)
	}
	if len(report.Failed) != 1 || report.Failed[0].Symbol != "BBB" || report.Failed[0].Error == "" {
		t.Errorf("expected BBB failed, got %+v", report.Failed)
	}

	if rr := doRequest(t, s, "POST", "/api/tickers/AAA/refresh", token, nil); rr.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", rr.Code)
	}
	if rr := doRequest(t, s, "POST", "/api/tickers/BBB/refresh", token, nil); rr.Code != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d", rr.Code)
	}
	if rr := doRequest(t, s, "POST", "/api/tickers/ZZZ/refresh", token, nil); rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}

	rr = doRequest(t, s, "GET", "/api/tickers", token, nil)
	var tickers []models.TickerPrice
	if err := json.NewDecoder(rr.Body).Decode(&tickers); err != nil {
		t.Fatalf("failed to decode tickers: %v", err)
	}
	if len(tickers) != 2 {
		t.Errorf("expected 2 tickers, got %d", len(tickers))
	}
}

func TestDeleteUser(t *testing.T) {
	s := newTestServer(NewFakeService())
	token := register(t, s, "alice")

	if rr := doRequest(t, s, "DELETE", "/api/user", token, nil); rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if rr := doRequest(t, s, "GET", "/api/balance", token, nil); rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 after delete, got %d", rr.Code)
	}
}

