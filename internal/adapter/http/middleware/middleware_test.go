package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"vending-gateway/internal/core/ports"
	"vending-gateway/internal/core/ports/mocks"
	"vending-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func okHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "admin": c.GetBool(CtxAdmin), "client_id": c.GetString(CtxClientID)})
}

func TestPresentedKey(t *testing.T) {
	cases := map[string]string{
		"Bearer secret":    "secret",
		"Apikey secret":    "secret",
		"apikey  secret ":  "secret",
		"BEARER secret":    "secret",
		"Basic dXNlcjpwdw": "",
		"secret":           "",
		"":                 "",
	}
	for header, want := range cases {
		assert.Equal(t, want, presentedKey(header), header)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	verifier := mocks.NewMockSecretVerifier(ctrl)
	verifier.EXPECT().VerifyAPIKey("sepay-secret").Return(true).AnyTimes()
	verifier.EXPECT().VerifyAPIKey(gomock.Not("sepay-secret")).Return(false).AnyTimes()

	r := gin.New()
	r.POST("/webhook", APIKeyAuth(verifier, response.AckError, zerolog.Nop()), okHandler)
	r.GET("/admin", APIKeyAuth(verifier, response.Error, zerolog.Nop()), okHandler)

	cases := []struct {
		name   string
		method string
		path   string
		header string
		want   int
	}{
		{"bearer", http.MethodPost, "/webhook", "Bearer sepay-secret", http.StatusOK},
		{"apikey", http.MethodPost, "/webhook", "Apikey sepay-secret", http.StatusOK},
		{"wrong key", http.MethodPost, "/webhook", "Apikey nope", http.StatusUnauthorized},
		{"missing", http.MethodPost, "/webhook", "", http.StatusUnauthorized},
		{"admin ok", http.MethodGet, "/admin", "Bearer sepay-secret", http.StatusOK},
		{"admin wrong", http.MethodGet, "/admin", "Bearer x", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestAPIKeyAuth_WebhookFailureIsAckShaped(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	verifier := mocks.NewMockSecretVerifier(ctrl)
	verifier.EXPECT().VerifyAPIKey(gomock.Any()).Return(false)

	r := gin.New()
	r.POST("/webhook", APIKeyAuth(verifier, response.AckError, zerolog.Nop()), okHandler)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	req.Header.Set("Authorization", "Bearer x")
	r.ServeHTTP(w, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "AUTH_001", body["error_code"])
}

func TestJWTAuth(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tokens := mocks.NewMockTokenService(ctrl)
	tokens.EXPECT().Validate("good").Return(&ports.TokenClaims{ClientID: "shop-bot"}, nil).AnyTimes()
	tokens.EXPECT().Validate("expired").Return(nil, errors.New("token is expired")).AnyTimes()

	r := gin.New()
	r.GET("/wallets", JWTAuth(tokens, zerolog.Nop()), okHandler)

	serve := func(header string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/wallets", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		r.ServeHTTP(w, req)
		return w
	}

	w := serve("Bearer good")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"client_id":"shop-bot"`)

	assert.Equal(t, http.StatusUnauthorized, serve("Bearer expired").Code)
	assert.Equal(t, http.StatusUnauthorized, serve("Apikey good").Code)
	assert.Equal(t, http.StatusUnauthorized, serve("").Code)
}

func TestMaintenance(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	gate := mocks.NewMockMaintenanceGate(ctrl)
	r := gin.New()
	r.POST("/webhook", Maintenance(gate), okHandler)

	gate.EXPECT().Status().Return(true, "Back at 10:00")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhook", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, true, body["maintenance"])
	assert.Equal(t, "Back at 10:00", body["message"])

	gate.EXPECT().Status().Return(false, "")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhook", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) { response.OK(c, nil) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(HeaderRequestID))
	assert.Contains(t, w.Body.String(), `"request_id":"req-123"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Len(t, w.Header().Get(HeaderRequestID), 36)
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(zerolog.Nop()))
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "SYS_001")
}
