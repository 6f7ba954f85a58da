package payment_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hotelbooking/internal/middleware"
	"hotelbooking/internal/modules/payment"
	"hotelbooking/internal/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T, f *fixture) (*gin.Engine, *jwt.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	jwtService := jwt.New("test-secret", time.Hour)

	router := gin.New()
	api := router.Group("/api/v1", middleware.JWTAuth(jwtService))
	payment.NewHandler(f.svc).RegisterRoutes(api)
	return router, jwtService
}

func TestHandler_InitiatePayment(t *testing.T) {
	f := newFixture(t)
	b, _ := pendingBooking(t, f.store)
	router, jwtService := newRouter(t, f)
	token, _ := jwtService.GenerateToken(guest.UserID, "GUEST")

	body := `{"booking_id": ` + jsonInt(b.ID) + `, "amount": "200.00", "payment_method": "card"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			ClientSecret string `json:"client_secret"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.Data.ClientSecret)
}

func TestHandler_InitiatePayment_AmountMismatch(t *testing.T) {
	f := newFixture(t)
	b, _ := pendingBooking(t, f.store)
	router, jwtService := newRouter(t, f)
	token, _ := jwtService.GenerateToken(guest.UserID, "GUEST")

	body := `{"booking_id": ` + jsonInt(b.ID) + `, "amount": "10.00", "payment_method": "CARD"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
}

func TestHandler_FailPayment_RequiresPermission(t *testing.T) {
	f := newFixture(t)
	router, jwtService := newRouter(t, f)
	token, _ := jwtService.GenerateToken(guest.UserID, "GUEST")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/1/fail", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
