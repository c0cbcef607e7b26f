package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/tempero-labs/dispenser-backend/internal/platform/logger"
  "github.com/tempero-labs/dispenser-backend/internal/types"
)

type UserRepo interface {
  Create(ctx context.Context, tx *gorm.DB, users []*types.User) ([]*types.User, error)
  GetByIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.User, error)
  GetByName(ctx context.Context, tx *gorm.DB, name string) (*types.User, error)
  NameExists(ctx context.Context, tx *gorm.DB, name string) (bool, error)
}

type userRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
  return &userRepo{db: db, log: baseLog.With("repo", "UserRepo")}
}

func (ur *userRepo) Create(ctx context.Context, tx *gorm.DB, users []*types.User) ([]*types.User, error) {
  transaction := tx
  if transaction == nil {
    transaction = ur.db
  }
  if len(users) == 0 {
    return []*types.User{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&users).Error; err != nil {
    return nil, err
  }
  return users, nil
}

func (ur *userRepo) GetByIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.User, error) {
  transaction := tx
  if transaction == nil {
    transaction = ur.db
  }
  var results []*types.User
  if len(userIDs) == 0 {
    return results, nil
  }
  if err := transaction.WithContext(ctx).
    Where("id IN ?", userIDs).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (ur *userRepo) GetByName(ctx context.Context, tx *gorm.DB, name string) (*types.User, error) {
  transaction := tx
  if transaction == nil {
    transaction = ur.db
  }
  var user types.User
  err := transaction.WithContext(ctx).
    Where("name = ?", name).
    Limit(1).
    Find(&user).Error
  if err != nil {
    return nil, err
  }
  if user.ID == uuid.Nil {
    return nil, nil
  }
  return &user, nil
}

func (ur *userRepo) NameExists(ctx context.Context, tx *gorm.DB, name string) (bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = ur.db
  }
  var count int64
  if err := transaction.WithContext(ctx).
    Model(&types.User{}).
    Where("name = ?", name).
    Count(&count).Error; err != nil {
    return false, err
  }
  return count > 0, nil
}
