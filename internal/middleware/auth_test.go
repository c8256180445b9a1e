package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"backoffice/internal/tenant"
)

const testSecret = "test-secret"

func setupTenantRouter() *gin.Engine {
	r := gin.New()
	r.Use(TenantMiddleware(testSecret))
	r.GET("/test", func(c *gin.Context) {
		orgID, _ := tenant.OrgID(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{
			"org_id":   orgID,
			"actor_id": tenant.Actor(c.Request.Context()),
			"key":      c.GetString(orgIDKey),
		})
	})
	return r
}

func doTenantRequest(r *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestTenantMiddleware(t *testing.T) {
	valid, err := GenerateTenantToken([]byte(testSecret), "org-1", "user-1", time.Hour)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	expired, _ := GenerateTenantToken([]byte(testSecret), "org-1", "user-1", -time.Minute)
	wrongKey, _ := GenerateTenantToken([]byte("other-secret"), "org-1", "user-1", time.Hour)

	noOrg := jwt.NewWithClaims(jwt.SigningMethodHS256, &TenantClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	noOrgToken, _ := noOrg.SignedString([]byte(testSecret))

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"valid_token", "Bearer " + valid, http.StatusOK},
		{"missing_header", "", http.StatusUnauthorized},
		{"bad_format", "Token " + valid, http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong_secret", "Bearer " + wrongKey, http.StatusUnauthorized},
		{"no_organization", "Bearer " + noOrgToken, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doTenantRequest(setupTenantRouter(), tt.header)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			body := parseBody(t, rec)
			if tt.wantStatus == http.StatusOK {
				if body["org_id"] != "org-1" || body["actor_id"] != "user-1" || body["key"] != "org-1" {
					t.Errorf("expected tenant scope on request, got %v", body)
				}
				return
			}
			errObj, ok := body["error"].(map[string]interface{})
			if !ok {
				t.Fatal("expected error object in response")
			}
			if code, _ := errObj["code"].(string); code != "UNAUTHORIZED" {
				t.Errorf("error code = %q, want UNAUTHORIZED", code)
			}
		})
	}
}

func TestGenerateTenantTokenRequiresOrganization(t *testing.T) {
	if _, err := GenerateTenantToken([]byte(testSecret), "", "user-1", time.Hour); err == nil {
		t.Error("expected error for empty organization")
	}
}
