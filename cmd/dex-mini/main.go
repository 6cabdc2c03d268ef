// Command dex-mini runs the identity provider: it loads configuration
// from the environment (and an optional .env file), opens storage,
// bootstraps the signing-key store, starts the background expiry
// sweepers, and serves HTTP until terminated.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"

	"github.com/dexidp/dex-mini/server"
	"github.com/dexidp/dex-mini/signer"
	"github.com/dexidp/dex-mini/storage"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(logger); err != nil {
		logger.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("could not load .env file", "err", err)
	}

	bindAddr := os.Getenv("BIND_ADDR")
	if bindAddr == "" {
		bindAddr = "localhost:5556"
	}
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	issuerURL := os.Getenv("ISSUER_URL")
	if issuerURL == "" {
		return errors.New("ISSUER_URL is required")
	}

	pepper, pepperGenerated, err := clientSecretPepper()
	if err != nil {
		return fmt.Errorf("derive client secret pepper: %w", err)
	}
	if pepperGenerated {
		logger.Warn("CLIENT_SECRET_PEPPER not set, generated a fresh one for this process; "+
			"every previously registered client secret will stop verifying after restart unless "+
			"this value is persisted and set as CLIENT_SECRET_PEPPER",
			"client_secret_pepper", hex.EncodeToString(pepper))
	}
	csrfKey, err := randomKey()
	if err != nil {
		return fmt.Errorf("derive csrf key: %w", err)
	}

	store, err := storage.Open(databaseURL)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	if err := signer.Bootstrap(store); err != nil {
		return fmt.Errorf("bootstrap signing key: %w", err)
	}
	sign, err := signer.New(store)
	if err != nil {
		return fmt.Errorf("load signing keys: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store.RunSweepers(ctx, logger, clockwork.NewRealClock())

	srv, err := server.New(server.Config{
		Store:              store,
		Signer:             sign,
		CSRFKey:            csrfKey,
		ClientSecretPepper: pepper,
		IssuerURL:          issuerURL,
		Logger:             logger,
	})
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	httpSrv := &http.Server{Addr: bindAddr, Handler: srv}
	go func() {
		<-ctx.Done()
		_ = httpSrv.Close()
	}()

	logger.Info("listening", "addr", bindAddr, "issuer", issuerURL)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// clientSecretPepper returns the pepper to use and whether it was freshly
// generated (as opposed to read from CLIENT_SECRET_PEPPER).
func clientSecretPepper() ([]byte, bool, error) {
	if v := os.Getenv("CLIENT_SECRET_PEPPER"); v != "" {
		return []byte(v), false, nil
	}
	key, err := randomKey()
	if err != nil {
		return nil, false, err
	}
	return key, true, nil
}

func randomKey() ([]byte, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
