package services

import (
  "context"
  "fmt"
  "strings"
  "time"
  "golang.org/x/crypto/bcrypt"
  "github.com/golang-jwt/jwt/v5"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/tempero-labs/dispenser-backend/internal/platform/apierr"
  "github.com/tempero-labs/dispenser-backend/internal/platform/logger"
  "github.com/tempero-labs/dispenser-backend/internal/repos"
  "github.com/tempero-labs/dispenser-backend/internal/requestdata"
  "github.com/tempero-labs/dispenser-backend/internal/types"
)

// DeviceTokenTTL is the lifetime of the long-lived credential issued to a
// dispenser on claim redemption.
const DeviceTokenTTL = 180 * 24 * time.Hour

// JWTClaims is shared by user and device tokens; TokenType is the tag the
// single verification path dispatches on.
type JWTClaims struct {
  TokenType string `json:"typ"`
  jwt.RegisteredClaims
}

type AuthService interface {
  RegisterUser(ctx context.Context, name, password string) (*types.User, error)
  LoginUser(ctx context.Context, name, password string) (string, *types.User, error)
  IssueDeviceToken(device *types.Device) (string, error)
  // SetContextFromToken verifies a bearer token of either principal kind and
  // stores the resulting identity in the request context.
  SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
}

type authService struct {
  db           *gorm.DB
  log          *logger.Logger
  userRepo     repos.UserRepo
  deviceRepo   repos.DeviceRepo
  jwtSecretKey string
  userTTL      time.Duration
}

func NewAuthService(
  db *gorm.DB,
  log *logger.Logger,
  userRepo repos.UserRepo,
  deviceRepo repos.DeviceRepo,
  jwtSecretKey string,
  userTTL time.Duration,
) AuthService {
  return &authService{
    db:           db,
    log:          log.With("service", "AuthService"),
    userRepo:     userRepo,
    deviceRepo:   deviceRepo,
    jwtSecretKey: jwtSecretKey,
    userTTL:      userTTL,
  }
}

func (as *authService) RegisterUser(ctx context.Context, name, password string) (*types.User, error) {
  name = strings.TrimSpace(name)
  if name == "" || len(name) > 80 {
    return nil, apierr.InvalidState("user_name_invalid", "user name must be 1..80 characters")
  }
  if password == "" {
    return nil, apierr.InvalidState("password_required", "a password is required to register")
  }
  exists, err := as.userRepo.NameExists(ctx, nil, name)
  if err != nil {
    return nil, fmt.Errorf("Failed to check user name: %w", err)
  }
  if exists {
    return nil, apierr.Conflict("user_name_taken", "user name %q is already in use", name)
  }
  hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
  if err != nil {
    return nil, fmt.Errorf("Failed to hash password: %w", err)
  }
  user := &types.User{
    ID:           uuid.New(),
    Name:         name,
    PasswordHash: string(hashed),
  }
  if _, err := as.userRepo.Create(ctx, nil, []*types.User{user}); err != nil {
    return nil, fmt.Errorf("Failed to create user: %w", err)
  }
  return user, nil
}

func (as *authService) LoginUser(ctx context.Context, name, password string) (string, *types.User, error) {
  user, err := as.userRepo.GetByName(ctx, nil, strings.TrimSpace(name))
  if err != nil {
    return "", nil, fmt.Errorf("Failed to load user: %w", err)
  }
  if user == nil {
    return "", nil, apierr.Unauthorized("invalid_credentials", "invalid user name or password")
  }
  if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
    return "", nil, apierr.Unauthorized("invalid_credentials", "invalid user name or password")
  }
  token, err := as.signToken(string(requestdata.PrincipalUser), user.ID, as.userTTL)
  if err != nil {
    return "", nil, fmt.Errorf("Failed to sign user token: %w", err)
  }
  return token, user, nil
}

func (as *authService) IssueDeviceToken(device *types.Device) (string, error) {
  return as.signToken(string(requestdata.PrincipalDevice), device.ID, DeviceTokenTTL)
}

func (as *authService) signToken(tokenType string, subject uuid.UUID, ttl time.Duration) (string, error) {
  claims := JWTClaims{
    TokenType: tokenType,
    RegisteredClaims: jwt.RegisteredClaims{
      Subject:   subject.String(),
      ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
      IssuedAt:  jwt.NewNumericDate(time.Now()),
    },
  }
  token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
  return token.SignedString([]byte(as.jwtSecretKey))
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
  parsedToken, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
    return []byte(as.jwtSecretKey), nil
  })
  if err != nil {
    return ctx, apierr.New(apierr.KindUnauthorized, "token_invalid", err)
  }
  claims, ok := parsedToken.Claims.(*JWTClaims)
  if !ok || !parsedToken.Valid {
    return ctx, apierr.Unauthorized("token_invalid", "invalid or expired token")
  }
  subject, err := uuid.Parse(claims.Subject)
  if err != nil {
    return ctx, apierr.Unauthorized("token_invalid", "invalid subject in token")
  }

  switch requestdata.PrincipalKind(claims.TokenType) {
  case requestdata.PrincipalUser:
    rd := &requestdata.RequestData{
      TokenString: tokenString,
      Kind:        requestdata.PrincipalUser,
      UserID:      subject,
    }
    return requestdata.WithRequestData(ctx, rd), nil
  case requestdata.PrincipalDevice:
    devices, err := as.deviceRepo.GetByIDs(ctx, nil, []uuid.UUID{subject})
    if err != nil {
      return ctx, fmt.Errorf("Failed to load device for token: %w", err)
    }
    if len(devices) == 0 {
      return ctx, apierr.Unauthorized("device_unknown", "device for token no longer exists")
    }
    rd := &requestdata.RequestData{
      TokenString: tokenString,
      Kind:        requestdata.PrincipalDevice,
      UserID:      devices[0].UserID,
      DeviceID:    devices[0].ID,
    }
    return requestdata.WithRequestData(ctx, rd), nil
  default:
    return ctx, apierr.Unauthorized("token_type_unknown", "unknown token type %q", claims.TokenType)
  }
}
