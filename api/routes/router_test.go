package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/arena-backend/internal/bootstrap"
	"github.com/angelmondragon/arena-backend/internal/users"
	pkgAuth "github.com/angelmondragon/arena-backend/pkg/auth"
	"github.com/angelmondragon/arena-backend/pkg/config"
	"github.com/angelmondragon/arena-backend/pkg/db/dbtest"
	"github.com/angelmondragon/arena-backend/pkg/db/models"
	"github.com/angelmondragon/arena-backend/pkg/enums"
	"github.com/angelmondragon/arena-backend/pkg/logger"
)

type memoryRedis struct {
	mu     sync.Mutex
	data   map[string]string
	counts map[string]int64
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{data: map[string]string{}, counts: map[string]int64{}}
}

func (m *memoryRedis) Ping(context.Context) error { return nil }

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key], _ = value.(string)
	return true, nil
}

func (m *memoryRedis) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key], _ = value.(string)
	return nil
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryRedis) IdempotencyKey(scope, id string) string {
	return "test:idempotency:" + scope + ":" + id
}

func (m *memoryRedis) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[scope]++
	return m.counts[scope] <= limit, m.counts[scope], nil
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type apiHarness struct {
	t       *testing.T
	cfg     *config.Config
	handler http.Handler
	player  *models.User
	partner *models.User
	admin   *models.User
	slots   []models.Slot
	venue   models.Venue
	court   models.Facility
	sport   models.Activity
}

func newHarness(t *testing.T) *apiHarness {
	t.Helper()
	client := dbtest.Open(t)
	cfg := &config.Config{
		App:         config.AppConfig{Env: "test"},
		JWT:         config.JWTConfig{Secret: "secret", Issuer: "arena", ExpirationMinutes: 60},
		Settlement:  config.SettlementConfig{MaxAttempts: 2},
		Pricing:     config.PricingConfig{GSTPercent: 18},
		Idempotency: config.IdempotencyConfig{TTL: time.Hour},
		RateLimit:   config.RateLimitConfig{PaymentWindow: time.Minute, PaymentLimit: 20},
		CORS:        config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
	}
	registry := prometheus.NewRegistry()
	core, err := bootstrap.Build(bootstrap.Options{Config: cfg, DB: client, Logger: logger.Nop(), Registerer: registry})
	require.NoError(t, err)

	h := &apiHarness{t: t, cfg: cfg}
	h.handler = NewRouter(Deps{
		Config:   cfg,
		Logger:   logger.Nop(),
		Core:     core,
		DB:       stubPinger{},
		Redis:    newMemoryRedis(),
		Gatherer: registry,
	})

	ctx := context.Background()
	h.partner, err = core.Users.Create(ctx, users.CreateUserDTO{Email: "owner@arena.test", Name: "Owner", Role: enums.UserRolePartner})
	require.NoError(t, err)
	h.player, err = core.Users.Create(ctx, users.CreateUserDTO{Email: "player@arena.test", Name: "Player", WalletBalance: decimal.NewFromInt(2000)})
	require.NoError(t, err)
	h.admin, err = core.Users.Create(ctx, users.CreateUserDTO{Email: "admin@arena.test", Name: "Admin", Role: enums.UserRoleAdmin})
	require.NoError(t, err)

	conn := client.DB()
	h.venue = models.Venue{PartnerID: h.partner.ID, Name: "Arena One"}
	require.NoError(t, conn.Create(&h.venue).Error)
	h.court = models.Facility{VenueID: h.venue.ID, Name: "Court 1"}
	require.NoError(t, conn.Create(&h.court).Error)
	h.sport = models.Activity{Name: "squash"}
	require.NoError(t, conn.Create(&h.sport).Error)
	for _, times := range [][2]string{{"18:00", "18:30"}, {"18:30", "19:00"}} {
		slot := models.Slot{
			FacilityID:   h.court.ID,
			ActivityID:   h.sport.ID,
			Date:         "2026-12-05",
			StartTime:    times[0],
			EndTime:      times[1],
			Price:        decimal.NewFromInt(500),
			Availability: enums.SlotAvailable,
		}
		require.NoError(t, conn.Create(&slot).Error)
		h.slots = append(h.slots, slot)
	}
	return h
}

func (h *apiHarness) token(user *models.User) string {
	h.t.Helper()
	token, err := pkgAuth.MintAccessToken(h.cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{UserID: user.ID, Role: user.Role})
	require.NoError(h.t, err)
	return token
}

type apiResponse struct {
	code int
	data map[string]any
	err  map[string]any
}

func (h *apiHarness) do(method, path string, user *models.User, idemKey string, body any) apiResponse {
	h.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req.Header.Set("Authorization", "Bearer "+h.token(user))
	}
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	out := apiResponse{code: rec.Code}
	var envelope struct {
		Data  map[string]any `json:"data"`
		Error map[string]any `json:"error"`
	}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), &envelope), rec.Body.String())
	}
	out.data, out.err = envelope.Data, envelope.Error
	return out
}

func (h *apiHarness) venueBody() map[string]any {
	return map[string]any{
		"partner_id":       h.partner.ID.String(),
		"venue_id":         h.venue.ID.String(),
		"facility_id":      h.court.ID.String(),
		"activity_id":      h.sport.ID.String(),
		"slot_ids":         []string{h.slots[0].ID.String(), h.slots[1].ID.String()},
		"date":             "2026-12-05",
		"start_time":       "18:00",
		"end_time":         "19:00",
		"duration_minutes": 60,
		"payment_method":   "wallet",
	}
}

func TestWalletBookingOverHTTP(t *testing.T) {
	h := newHarness(t)

	created := h.do(http.MethodPost, "/api/v1/venue-bookings", h.player, "book-1", h.venueBody())
	require.Equal(t, http.StatusCreated, created.code, created.err)
	assert.Equal(t, "1180.00", created.data["amount"])
	assert.Equal(t, "pending", created.data["status"])
	id := created.data["id"].(string)

	replay := h.do(http.MethodPost, "/api/v1/venue-bookings", h.player, "book-1", h.venueBody())
	require.Equal(t, http.StatusCreated, replay.code)
	assert.Equal(t, id, replay.data["id"], "replayed key must return the stored reservation")

	order := h.do(http.MethodPost, "/api/v1/reservations/"+id+"/order", h.player, "order-1", nil)
	require.Equal(t, http.StatusCreated, order.code, order.err)
	orderID := order.data["order_id"].(string)
	assert.True(t, strings.HasPrefix(orderID, "wallet_"), orderID)
	assert.EqualValues(t, 118000, order.data["amount_minor"])

	verified := h.do(http.MethodPost, "/api/v1/reservations/"+id+"/verify", h.player, "", map[string]any{"order_id": orderID})
	require.Equal(t, http.StatusOK, verified.code, verified.err)
	assert.Equal(t, "confirmed", verified.data["status"])
	assert.Equal(t, "paid", verified.data["payment_status"])

	read := h.do(http.MethodGet, "/api/v1/reservations/"+id, h.player, "", nil)
	require.Equal(t, http.StatusOK, read.code)
	assert.Equal(t, "confirmed", read.data["status"])

	wallet := h.do(http.MethodGet, "/api/v1/me/wallet", h.player, "", nil)
	require.Equal(t, http.StatusOK, wallet.code)
	assert.Equal(t, "820.00", wallet.data["balance"])

	again := h.do(http.MethodPost, "/api/v1/venue-bookings", h.player, "book-2", h.venueBody())
	assert.Equal(t, http.StatusConflict, again.code)
}

func TestReservationAccessRules(t *testing.T) {
	h := newHarness(t)
	created := h.do(http.MethodPost, "/api/v1/venue-bookings", h.player, "book-1", h.venueBody())
	require.Equal(t, http.StatusCreated, created.code, created.err)
	id := created.data["id"].(string)

	stranger := &models.User{ID: uuid.New(), Role: enums.UserRoleUser}
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/v1/reservations/"+id, stranger, "", nil).code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/v1/reservations/"+id, h.partner, "", nil).code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/v1/reservations/"+id, h.admin, "", nil).code)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/v1/reservations/"+id, nil, "", nil).code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/api/v1/reservations/not-a-uuid", h.player, "", nil).code)

	cancelled := h.do(http.MethodPost, "/api/v1/reservations/"+id+"/cancel", h.player, "", nil)
	require.Equal(t, http.StatusOK, cancelled.code, cancelled.err)
	assert.Equal(t, "cancelled", cancelled.data["status"])
}

func TestCreationRequiresIdempotencyKeyAndValidBody(t *testing.T) {
	h := newHarness(t)

	missingKey := h.do(http.MethodPost, "/api/v1/venue-bookings", h.player, "", h.venueBody())
	assert.Equal(t, http.StatusBadRequest, missingKey.code)

	body := h.venueBody()
	body["payment_method"] = "cash"
	invalid := h.do(http.MethodPost, "/api/v1/venue-bookings", h.player, "bad-1", body)
	assert.Equal(t, http.StatusBadRequest, invalid.code)
	assert.Equal(t, "VALIDATION_ERROR", invalid.err["code"])
}

func TestAdminWalletCredit(t *testing.T) {
	h := newHarness(t)
	path := "/api/v1/admin/users/" + h.player.ID.String() + "/wallet/credit"
	body := map[string]any{"amount": "100.00", "reason": "tournament prize"}

	forbidden := h.do(http.MethodPost, path, h.player, "credit-1", body)
	assert.Equal(t, http.StatusForbidden, forbidden.code)

	credited := h.do(http.MethodPost, path, h.admin, "credit-2", body)
	require.Equal(t, http.StatusOK, credited.code, credited.err)
	assert.Equal(t, "2100.00", credited.data["balance"])

	replayed := h.do(http.MethodPost, path, h.admin, "credit-2", body)
	require.Equal(t, http.StatusOK, replayed.code)
	wallet := h.do(http.MethodGet, "/api/v1/me/wallet", h.player, "", nil)
	assert.Equal(t, "2100.00", wallet.data["balance"], "replay must not credit twice")

	bad := h.do(http.MethodPost, path, h.admin, "credit-3", map[string]any{"amount": "-5", "reason": "oops"})
	assert.Equal(t, http.StatusBadRequest, bad.code)
}

func TestAdminReleaseStale(t *testing.T) {
	h := newHarness(t)
	created := h.do(http.MethodPost, "/api/v1/venue-bookings", h.player, "book-1", h.venueBody())
	require.Equal(t, http.StatusCreated, created.code, created.err)

	fresh := h.do(http.MethodPost, "/api/v1/admin/reservations/release-stale", h.admin, "", map[string]any{"older_than_minutes": 30})
	require.Equal(t, http.StatusOK, fresh.code, fresh.err)
	assert.EqualValues(t, 0, fresh.data["scanned"])

	denied := h.do(http.MethodPost, "/api/v1/admin/reservations/release-stale", h.partner, "", map[string]any{"older_than_minutes": 30})
	assert.Equal(t, http.StatusForbidden, denied.code)
}

func TestHealthEndpoints(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/health/live", nil, "", nil).code)
	ready := h.do(http.MethodGet, "/health/ready", nil, "", nil)
	assert.Equal(t, http.StatusOK, ready.code)
	assert.Equal(t, "ready", ready.data["status"])

	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMyReservationsList(t *testing.T) {
	h := newHarness(t)
	created := h.do(http.MethodPost, "/api/v1/venue-bookings", h.player, "book-1", h.venueBody())
	require.Equal(t, http.StatusCreated, created.code, created.err)

	list := func(query string) (int, []map[string]any) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/me/reservations"+query, nil)
		req.Header.Set("Authorization", "Bearer "+h.token(h.player))
		rec := httptest.NewRecorder()
		h.handler.ServeHTTP(rec, req)
		var envelope struct {
			Data []map[string]any `json:"data"`
		}
		if rec.Code == http.StatusOK {
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
		}
		return rec.Code, envelope.Data
	}

	code, rows := list("")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, rows, 1)
	assert.Equal(t, created.data["id"], rows[0]["id"])

	code, rows = list("?status=confirmed")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, rows)

	code, _ = list("?status=booked")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = list("?limit=500")
	assert.Equal(t, http.StatusBadRequest, code)
}
