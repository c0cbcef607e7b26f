package services

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tempero-labs/dispenser-backend/internal/platform/apierr"
	"github.com/tempero-labs/dispenser-backend/internal/repos"
	"github.com/tempero-labs/dispenser-backend/internal/repos/testutil"
	"github.com/tempero-labs/dispenser-backend/internal/requestdata"
)

func newAuthFixture(t *testing.T) (AuthService, *gorm.DB) {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	auth := NewAuthService(db, log, repos.NewUserRepo(db, log), repos.NewDeviceRepo(db, log), "test-secret", time.Hour)
	return auth, db
}

func TestRegisterAndLoginRoundTrip(t *testing.T) {
	auth, _ := newAuthFixture(t)
	ctx := context.Background()

	user, err := auth.RegisterUser(ctx, "maria", "hunter2")
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if user.PasswordHash == "hunter2" {
		t.Fatal("password stored in the clear")
	}

	token, logged, err := auth.LoginUser(ctx, "maria", "hunter2")
	if err != nil {
		t.Fatalf("LoginUser: %v", err)
	}
	if logged.ID != user.ID || token == "" {
		t.Fatalf("login = %v / %q, want original user and a token", logged.ID, token)
	}

	rdCtx, err := auth.SetContextFromToken(ctx, token)
	if err != nil {
		t.Fatalf("SetContextFromToken: %v", err)
	}
	rd := requestdata.GetRequestData(rdCtx)
	if rd == nil || rd.Kind != requestdata.PrincipalUser || rd.UserID != user.ID {
		t.Fatalf("principal = %+v, want user %s", rd, user.ID)
	}
}

func TestRegisterDuplicateNameConflicts(t *testing.T) {
	auth, _ := newAuthFixture(t)
	ctx := context.Background()

	if _, err := auth.RegisterUser(ctx, "maria", "pw"); err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if _, err := auth.RegisterUser(ctx, "maria", "pw"); apierr.KindOf(err) != apierr.KindConflict {
		t.Fatalf("duplicate register err = %v, want conflict", err)
	}
}

func TestLoginWrongPasswordUnauthorized(t *testing.T) {
	auth, _ := newAuthFixture(t)
	ctx := context.Background()

	if _, err := auth.RegisterUser(ctx, "maria", "pw"); err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if _, _, err := auth.LoginUser(ctx, "maria", "wrong"); apierr.KindOf(err) != apierr.KindUnauthorized {
		t.Fatalf("err = %v, want unauthorized", err)
	}
	if _, _, err := auth.LoginUser(ctx, "nobody", "pw"); apierr.KindOf(err) != apierr.KindUnauthorized {
		t.Fatalf("unknown user err = %v, want unauthorized", err)
	}
}

func TestDeviceTokenResolvesOwner(t *testing.T) {
	auth, db := newAuthFixture(t)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, db, "maria")
	device := testutil.SeedDevice(t, ctx, db, user.ID, "hw-0001")

	token, err := auth.IssueDeviceToken(device)
	if err != nil {
		t.Fatalf("IssueDeviceToken: %v", err)
	}

	rdCtx, err := auth.SetContextFromToken(ctx, token)
	if err != nil {
		t.Fatalf("SetContextFromToken: %v", err)
	}
	rd := requestdata.GetRequestData(rdCtx)
	if rd == nil || rd.Kind != requestdata.PrincipalDevice {
		t.Fatalf("principal = %+v, want device kind", rd)
	}
	if rd.DeviceID != device.ID || rd.UserID != user.ID {
		t.Fatalf("principal = %+v, want device %s owned by %s", rd, device.ID, user.ID)
	}
}

func TestTamperedTokenRejected(t *testing.T) {
	auth, _ := newAuthFixture(t)
	ctx := context.Background()

	if _, err := auth.RegisterUser(ctx, "maria", "pw"); err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	token, _, err := auth.LoginUser(ctx, "maria", "pw")
	if err != nil {
		t.Fatalf("LoginUser: %v", err)
	}

	if _, err := auth.SetContextFromToken(ctx, token+"x"); apierr.KindOf(err) != apierr.KindUnauthorized {
		t.Fatalf("tampered token err = %v, want unauthorized", err)
	}
	if _, err := auth.SetContextFromToken(ctx, "not-a-jwt"); apierr.KindOf(err) != apierr.KindUnauthorized {
		t.Fatalf("garbage token err = %v, want unauthorized", err)
	}
}
