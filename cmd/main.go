package main

import (
  "context"
  "errors"
  "fmt"
  "net/http"
  "os"
  "os/signal"
  "syscall"
  "time"

  "golang.org/x/sync/errgroup"

  "github.com/tempero-labs/dispenser-backend/internal/app"
)

func main() {
  application, err := app.New()
  if err != nil {
    fmt.Printf("Failed to init app: %v\n", err)
    os.Exit(1)
  }
  log := application.Log

  if err := application.Start(); err != nil {
    log.Error("Failed to start background services", "error", err)
    os.Exit(1)
  }

  srv := &http.Server{
    Addr:              application.Cfg.HTTPAddr,
    Handler:           application.Router,
    ReadHeaderTimeout: 10 * time.Second,
  }

  ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
  defer stop()

  g, gctx := errgroup.WithContext(ctx)
  g.Go(func() error {
    log.Info("Server listening", "addr", srv.Addr)
    if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
      return err
    }
    return nil
  })
  g.Go(func() error {
    <-gctx.Done()
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    return srv.Shutdown(shutdownCtx)
  })

  if err := g.Wait(); err != nil {
    log.Error("Server failed", "error", err)
  }

  closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
  defer cancel()
  application.Close(closeCtx)
}
