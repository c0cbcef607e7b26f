package requestdata

import (
  "context"
  "github.com/google/uuid"
)

type key struct{}

var requestDataKey key

// PrincipalKind tags which credential type authenticated the request. User
// and device tokens share one verification path and differ only by this tag.
type PrincipalKind string

const (
  PrincipalUser   PrincipalKind = "user"
  PrincipalDevice PrincipalKind = "device"
)

type RequestData struct {
  TokenString string
  Kind        PrincipalKind
  UserID      uuid.UUID
  DeviceID    uuid.UUID
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
  return context.WithValue(ctx, requestDataKey, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
  if rd, ok := ctx.Value(requestDataKey).(*RequestData); ok {
    return rd
  }
  return nil
}
