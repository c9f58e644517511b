package middleware

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/huangang/meridian/internal/config"
	"github.com/huangang/meridian/internal/models"
	"github.com/huangang/meridian/internal/services"
	"github.com/huangang/meridian/internal/utils"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("test-secret-for-middleware-testing")
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := models.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:mw_%s?mode=memory&cache=shared", name),
	}, gormlogger.Silent)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func encodePrincipal(t *testing.T, v interface{}) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal principal: %v", err)
	}
	return base64.StdEncoding.EncodeToString(b)
}

func whoAmIRouter(cfg config.AuthConfig, db *gorm.DB) *gin.Engine {
	router := gin.New()
	router.Use(AuthRequired(cfg, services.NewUserService(db)))
	router.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": GetUserID(c), "name": GetUsername(c)})
	})
	return router
}

func TestDecodePrincipal_AADClaims(t *testing.T) {
	header := encodePrincipal(t, map[string]interface{}{
		"identityProvider": "aad",
		"userId":           "fallback-id",
		"userDetails":      "ada@contoso.com",
		"claims": []map[string]string{
			{"typ": claimObjectID, "val": "oid-123"},
			{"typ": claimTenantID, "val": "tenant-9"},
			{"typ": claimEmail, "val": "ada.lovelace@contoso.com"},
			{"typ": "name", "val": "Ada Lovelace"},
		},
	})

	id, err := DecodePrincipal(header)
	if err != nil {
		t.Fatalf("DecodePrincipal: %v", err)
	}
	want := services.Identity{
		Provider:   "aad",
		ExternalID: "oid-123",
		TenantID:   "tenant-9",
		Email:      "ada.lovelace@contoso.com",
		Name:       "Ada Lovelace",
	}
	if *id != want {
		t.Errorf("identity = %+v, want %+v", *id, want)
	}
}

func TestDecodePrincipal_Fallbacks(t *testing.T) {
	header := encodePrincipal(t, map[string]interface{}{
		"identityProvider": "google",
		"userId":           "google-sub",
		"userDetails":      "grace@gmail.com",
	})
	id, err := DecodePrincipal(header)
	if err != nil {
		t.Fatalf("DecodePrincipal: %v", err)
	}
	if id.ExternalID != "google-sub" || id.Email != "grace@gmail.com" || id.Name != "grace@gmail.com" || id.TenantID != "" {
		t.Errorf("unexpected identity: %+v", id)
	}

	short := encodePrincipal(t, map[string]interface{}{
		"identityProvider": "aad",
		"userId":           "ignored",
		"claims": []map[string]string{
			{"typ": "oid", "val": "short-oid"},
			{"typ": "tid", "val": "short-tid"},
			{"typ": "preferred_username", "val": "pu@contoso.com"},
		},
	})
	id, err = DecodePrincipal(short)
	if err != nil {
		t.Fatalf("DecodePrincipal: %v", err)
	}
	if id.ExternalID != "short-oid" || id.TenantID != "short-tid" || id.Email != "pu@contoso.com" {
		t.Errorf("unexpected identity: %+v", id)
	}
}

func TestDecodePrincipal_Invalid(t *testing.T) {
	cases := map[string]string{
		"not base64":   "%%%",
		"not json":     base64.StdEncoding.EncodeToString([]byte("nope")),
		"no user id":   encodePrincipal(t, map[string]string{"identityProvider": "aad"}),
		"empty object": base64.StdEncoding.EncodeToString([]byte("{}")),
	}
	for name, header := range cases {
		if _, err := DecodePrincipal(header); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestAuthRequired_MissingPrincipal(t *testing.T) {
	router := whoAmIRouter(config.AuthConfig{Mode: config.AuthModePrincipal}, newTestDB(t))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/me", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestAuthRequired_PrincipalCreatesUser(t *testing.T) {
	db := newTestDB(t)
	router := whoAmIRouter(config.AuthConfig{Mode: config.AuthModePrincipal}, db)
	header := encodePrincipal(t, map[string]interface{}{
		"identityProvider": "aad",
		"userId":           "u-1",
		"userDetails":      "lin@example.com",
	})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/me", nil)
		req.Header.Set(PrincipalHeader, header)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected status %d, got %d: %s", i, http.StatusOK, w.Code, w.Body.String())
		}
		var body struct {
			ID   uint   `json:"id"`
			Name string `json:"name"`
		}
		json.Unmarshal(w.Body.Bytes(), &body)
		if body.ID == 0 || body.Name != "lin@example.com" {
			t.Errorf("request %d: unexpected caller %+v", i, body)
		}
	}

	var n int64
	db.Model(&models.User{}).Count(&n)
	if n != 1 {
		t.Errorf("expected 1 user, got %d", n)
	}
}

func TestAuthRequired_DisabledUser(t *testing.T) {
	db := newTestDB(t)
	db.Create(&models.User{IdentityProvider: "aad", ExternalID: "gone", DisplayName: "Gone", IsActive: false})
	db.Model(&models.User{}).Where("external_id = ?", "gone").Update("is_active", false)
	router := whoAmIRouter(config.AuthConfig{Mode: config.AuthModePrincipal}, db)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/me", nil)
	req.Header.Set(PrincipalHeader, encodePrincipal(t, map[string]string{"identityProvider": "aad", "userId": "gone"}))
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected status %d, got %d", http.StatusForbidden, w.Code)
	}
}

func TestAuthRequired_JWTMode(t *testing.T) {
	router := whoAmIRouter(config.AuthConfig{Mode: config.AuthModeJWT}, newTestDB(t))

	claims := utils.EdgeClaims{Provider: "aad", Email: "jo@example.com", Name: "Jo"}
	claims.Subject = "jwt-user"
	token, err := utils.GenerateToken(claims, 1)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	cases := []struct {
		header string
		code   int
	}{
		{"", http.StatusUnauthorized},
		{"Basic " + token, http.StatusUnauthorized},
		{"Bearer invalid.jwt.token", http.StatusUnauthorized},
		{"Bearer " + token, http.StatusOK},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/me", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		router.ServeHTTP(w, req)
		if w.Code != tc.code {
			t.Errorf("header %q: expected status %d, got %d", tc.header, tc.code, w.Code)
		}
	}
}

func TestAuthRequired_DevBypass(t *testing.T) {
	db := newTestDB(t)
	router := whoAmIRouter(config.AuthConfig{Mode: config.AuthModePrincipal, DevBypass: true}, db)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/me", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var user models.User
	if err := db.Where("external_id = ?", DevIdentity.ExternalID).Take(&user).Error; err != nil {
		t.Fatalf("dev user not created: %v", err)
	}
	if user.IdentityProvider != "dev" || user.Email != "dev@meridian.local" {
		t.Errorf("unexpected dev user: %+v", user)
	}
}

func TestGetUserID(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if id := GetUserID(c); id != 0 {
		t.Errorf("expected 0 for missing user_id, got %d", id)
	}

	c.Set(ContextUserID, uint(42))
	if id := GetUserID(c); id != 42 {
		t.Errorf("expected 42, got %d", id)
	}
}
