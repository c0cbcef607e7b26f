package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tempero-labs/dispenser-backend/internal/platform/logger"
	"github.com/tempero-labs/dispenser-backend/internal/repos"
	"github.com/tempero-labs/dispenser-backend/internal/repos/testutil"
	"github.com/tempero-labs/dispenser-backend/internal/requestdata"
	"github.com/tempero-labs/dispenser-backend/internal/services"
	"github.com/tempero-labs/dispenser-backend/internal/types"
)

type middlewareFixture struct {
	mw        *AuthMiddleware
	db        *gorm.DB
	deviceID  uuid.UUID
	userToken string
	devToken  string
}

func newMiddlewareFixture(t *testing.T) *middlewareFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	db := testutil.DB(t)
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}

	deviceRepo := repos.NewDeviceRepo(db, log)
	auth := services.NewAuthService(db, log, repos.NewUserRepo(db, log), deviceRepo, "test-secret", time.Hour)
	deviceService := services.NewDeviceService(db, log, deviceRepo, repos.NewDeviceClaimRepo(db, log), auth)
	if _, err := auth.RegisterUser(ctx, "maria", "pw"); err != nil {
		t.Fatalf("register: %v", err)
	}
	userToken, user, err := auth.LoginUser(ctx, "maria", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	device := testutil.SeedDevice(t, ctx, db, user.ID, "hw-0001")
	devToken, err := auth.IssueDeviceToken(device)
	if err != nil {
		t.Fatalf("device token: %v", err)
	}

	return &middlewareFixture{
		mw:        NewAuthMiddleware(log, auth, deviceService),
		db:        db,
		deviceID:  device.ID,
		userToken: userToken,
		devToken:  devToken,
	}
}

func guardedRouter(handler gin.HandlerFunc) (*gin.Engine, *string) {
	router := gin.New()
	var kind string
	router.GET("/guarded", handler, func(c *gin.Context) {
		if rd := requestdata.GetRequestData(c.Request.Context()); rd != nil {
			kind = string(rd.Kind)
		} else {
			kind = "anonymous"
		}
		c.Status(http.StatusNoContent)
	})
	return router, &kind
}

func get(router *gin.Engine, target, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRequireUserAcceptsUserRejectsDevice(t *testing.T) {
	f := newMiddlewareFixture(t)
	router, kind := guardedRouter(f.mw.RequireUser())

	if w := get(router, "/guarded", f.userToken); w.Code != http.StatusNoContent {
		t.Fatalf("user token status = %d, want 204", w.Code)
	}
	if *kind != string(requestdata.PrincipalUser) {
		t.Fatalf("principal = %s, want user", *kind)
	}
	if w := get(router, "/guarded", f.devToken); w.Code != http.StatusForbidden {
		t.Fatalf("device token status = %d, want 403", w.Code)
	}
	if w := get(router, "/guarded", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token status = %d, want 401", w.Code)
	}
	if w := get(router, "/guarded", "garbage"); w.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token status = %d, want 401", w.Code)
	}
}

func TestRequireDeviceAcceptsDeviceRejectsUser(t *testing.T) {
	f := newMiddlewareFixture(t)
	router, kind := guardedRouter(f.mw.RequireDevice())

	if w := get(router, "/guarded", f.devToken); w.Code != http.StatusNoContent {
		t.Fatalf("device token status = %d, want 204", w.Code)
	}
	if *kind != string(requestdata.PrincipalDevice) {
		t.Fatalf("principal = %s, want device", *kind)
	}
	if w := get(router, "/guarded", f.userToken); w.Code != http.StatusForbidden {
		t.Fatalf("user token status = %d, want 403", w.Code)
	}
}

func TestOptionalUserPassesAnonymous(t *testing.T) {
	f := newMiddlewareFixture(t)
	router, kind := guardedRouter(f.mw.OptionalUser())

	if w := get(router, "/guarded", ""); w.Code != http.StatusNoContent {
		t.Fatalf("anonymous status = %d, want 204", w.Code)
	}
	if *kind != "anonymous" {
		t.Fatalf("principal = %s, want anonymous", *kind)
	}

	if w := get(router, "/guarded", f.userToken); w.Code != http.StatusNoContent {
		t.Fatalf("user token status = %d, want 204", w.Code)
	}
	if *kind != string(requestdata.PrincipalUser) {
		t.Fatalf("principal = %s, want user", *kind)
	}
	// A bad token is refused even though identity is optional.
	if w := get(router, "/guarded", "garbage"); w.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token status = %d, want 401", w.Code)
	}
}

func TestTokenFromQueryParameter(t *testing.T) {
	f := newMiddlewareFixture(t)
	router, _ := guardedRouter(f.mw.RequireUser())

	w := get(router, "/guarded?token="+f.userToken, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("query token status = %d, want 204", w.Code)
	}
}

func TestRequireDeviceRefreshesLastSeen(t *testing.T) {
	f := newMiddlewareFixture(t)
	router, _ := guardedRouter(f.mw.RequireDevice())

	stale := time.Now().Add(-10 * time.Minute)
	if err := f.db.Model(&types.Device{}).Where("id = ?", f.deviceID).Update("last_seen", stale).Error; err != nil {
		t.Fatalf("stale last_seen: %v", err)
	}

	// A job poll or report carries no heartbeat, but the authenticated call
	// itself proves the device is alive.
	if w := get(router, "/guarded", f.devToken); w.Code != http.StatusNoContent {
		t.Fatalf("device token status = %d, want 204", w.Code)
	}

	var device types.Device
	if err := f.db.Where("id = ?", f.deviceID).First(&device).Error; err != nil {
		t.Fatalf("reload device: %v", err)
	}
	if device.LastSeen == nil || !device.LastSeen.After(stale) {
		t.Fatalf("last_seen = %v, want refreshed past %v", device.LastSeen, stale)
	}
	if !services.IsOnline(device.LastSeen, time.Now()) {
		t.Fatalf("device should read online after an authenticated call")
	}
}
