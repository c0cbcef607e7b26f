package services

import (
  "context"
  "crypto/rand"
  "fmt"
  "math/big"
  "strings"
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
  "github.com/tempero-labs/dispenser-backend/internal/platform/apierr"
  "github.com/tempero-labs/dispenser-backend/internal/platform/logger"
  "github.com/tempero-labs/dispenser-backend/internal/repos"
  "github.com/tempero-labs/dispenser-backend/internal/types"
)

const (
  // ClaimCodeTTL bounds how long a pairing code stays redeemable.
  ClaimCodeTTL = 10 * time.Minute
  // HeartbeatInterval is advertised to devices.
  HeartbeatInterval = 30 * time.Second
  // OnlineWindow gives a three-missed-beat grace period.
  OnlineWindow = 90 * time.Second

  claimCodeAttempts = 10
)

// DeviceView pairs a device row with its computed liveness.
type DeviceView struct {
  *types.Device
  Online bool `json:"online"`
}

type DeviceService interface {
  IssueClaimCode(ctx context.Context, userID uuid.UUID) (*types.DeviceClaim, error)
  // RedeemClaim consumes a claim code exactly once, upserts the device row
  // (creating it or reassigning ownership) and issues the long-lived device
  // credential.
  RedeemClaim(ctx context.Context, code, hardwareID, fwVersion string) (*types.Device, string, error)
  Heartbeat(ctx context.Context, deviceID uuid.UUID, fwVersion string, status datatypes.JSON) error
  // MarkSeen refreshes last_seen only. Every authenticated device call counts
  // as liveness, not just explicit heartbeats.
  MarkSeen(ctx context.Context, deviceID uuid.UUID) error
  ListForUser(ctx context.Context, userID uuid.UUID) ([]DeviceView, error)
}

// IsOnline is the liveness predicate: recomputed from the stored timestamp on
// every call, never cached. A nil last_seen means offline.
func IsOnline(lastSeen *time.Time, now time.Time) bool {
  if lastSeen == nil {
    return false
  }
  return now.Sub(*lastSeen) <= OnlineWindow
}

type deviceService struct {
  db         *gorm.DB
  log        *logger.Logger
  deviceRepo repos.DeviceRepo
  claimRepo  repos.DeviceClaimRepo
  auth       AuthService
}

func NewDeviceService(
  db *gorm.DB,
  log *logger.Logger,
  deviceRepo repos.DeviceRepo,
  claimRepo repos.DeviceClaimRepo,
  auth AuthService,
) DeviceService {
  return &deviceService{
    db:         db,
    log:        log.With("service", "DeviceService"),
    deviceRepo: deviceRepo,
    claimRepo:  claimRepo,
    auth:       auth,
  }
}

func (ds *deviceService) IssueClaimCode(ctx context.Context, userID uuid.UUID) (*types.DeviceClaim, error) {
  for attempt := 0; attempt < claimCodeAttempts; attempt++ {
    code, err := randomClaimCode()
    if err != nil {
      return nil, fmt.Errorf("Failed to generate claim code: %w", err)
    }
    inUse, err := ds.claimRepo.CodeInUse(ctx, nil, code)
    if err != nil {
      return nil, fmt.Errorf("Failed to check claim code: %w", err)
    }
    if inUse {
      continue
    }
    claim := &types.DeviceClaim{
      ID:        uuid.New(),
      UserID:    userID,
      Code:      code,
      ExpiresAt: time.Now().Add(ClaimCodeTTL),
    }
    created, err := ds.claimRepo.Create(ctx, nil, []*types.DeviceClaim{claim})
    if err != nil {
      if isUniqueViolation(err) {
        continue
      }
      return nil, fmt.Errorf("Failed to persist claim code: %w", err)
    }
    ds.log.Info("Claim code issued", "user_id", userID, "expires_at", claim.ExpiresAt)
    return created[0], nil
  }
  return nil, apierr.Internal("claim_code_exhausted", fmt.Errorf("could not generate a unique claim code"))
}

func (ds *deviceService) RedeemClaim(ctx context.Context, code, hardwareID, fwVersion string) (*types.Device, string, error) {
  code = strings.TrimSpace(code)
  hardwareID = strings.TrimSpace(hardwareID)
  if code == "" || hardwareID == "" {
    return nil, "", apierr.InvalidState("claim_input_invalid", "claim code and hardware id are required")
  }

  var device *types.Device
  err := ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    claim, err := ds.claimRepo.ConsumeCode(ctx, tx, code)
    if err != nil {
      return fmt.Errorf("Failed to consume claim code: %w", err)
    }
    if claim == nil {
      return apierr.Conflict("claim_code_invalid", "claim code is unknown, expired or already used")
    }

    existing, err := ds.deviceRepo.GetByHardwareID(ctx, tx, hardwareID)
    if err != nil {
      return fmt.Errorf("Failed to look up device: %w", err)
    }
    if existing == nil {
      device = &types.Device{
        ID:              uuid.New(),
        UserID:          claim.UserID,
        HardwareID:      hardwareID,
        FirmwareVersion: fwVersion,
      }
      if _, err := ds.deviceRepo.Create(ctx, tx, []*types.Device{device}); err != nil {
        return fmt.Errorf("Failed to create device: %w", err)
      }
      return nil
    }
    if err := ds.deviceRepo.Reassign(ctx, tx, existing.ID, claim.UserID, fwVersion); err != nil {
      return fmt.Errorf("Failed to reassign device: %w", err)
    }
    existing.UserID = claim.UserID
    device = existing
    return nil
  })
  if err != nil {
    return nil, "", err
  }

  token, err := ds.auth.IssueDeviceToken(device)
  if err != nil {
    return nil, "", fmt.Errorf("Failed to issue device token: %w", err)
  }
  ds.log.Info("Device claimed", "device_id", device.ID, "user_id", device.UserID)
  return device, token, nil
}

func (ds *deviceService) Heartbeat(ctx context.Context, deviceID uuid.UUID, fwVersion string, status datatypes.JSON) error {
  if err := ds.deviceRepo.TouchLastSeen(ctx, nil, deviceID, fwVersion, status); err != nil {
    return fmt.Errorf("Failed to record heartbeat: %w", err)
  }
  return nil
}

func (ds *deviceService) MarkSeen(ctx context.Context, deviceID uuid.UUID) error {
  if err := ds.deviceRepo.TouchLastSeen(ctx, nil, deviceID, "", nil); err != nil {
    return fmt.Errorf("Failed to refresh last_seen: %w", err)
  }
  return nil
}

func (ds *deviceService) ListForUser(ctx context.Context, userID uuid.UUID) ([]DeviceView, error) {
  devices, err := ds.deviceRepo.ListByUser(ctx, nil, userID)
  if err != nil {
    return nil, fmt.Errorf("Failed to list devices: %w", err)
  }
  now := time.Now()
  views := make([]DeviceView, 0, len(devices))
  for _, d := range devices {
    views = append(views, DeviceView{Device: d, Online: IsOnline(d.LastSeen, now)})
  }
  return views, nil
}

func randomClaimCode() (string, error) {
  n, err := rand.Int(rand.Reader, big.NewInt(1000000))
  if err != nil {
    return "", err
  }
  return fmt.Sprintf("%06d", n.Int64()), nil
}
