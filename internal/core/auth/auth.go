// Package auth provides HMAC-based API key authentication for the HTTP API.
package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// contextKey is a typed key for context values to avoid collisions.
type contextKey string

const keyLabelKey = contextKey("api_key_label")

// Queries defines the database operations authentication needs.
// Implemented by *db.Queries.
type Queries interface {
	GetContext(ctx context.Context, name string, dest any, args ...any) error
	ExecContext(ctx context.Context, name string, args ...any) (sql.Result, error)
}

// Authenticator validates API keys using HMAC-SHA256 signatures.
// Secrets are held in memory for O(1) lookup by secret_id.
type Authenticator struct {
	secrets map[string][]byte
	queries Queries
	logger  *zap.Logger
}

// NewAuthenticator creates an authenticator with HMAC secrets and a query
// interface.
func NewAuthenticator(secrets map[string][]byte, queries Queries, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{
		secrets: secrets,
		queries: queries,
		logger:  logger,
	}
}

// Authenticate validates an API key and returns its label on success.
func (a *Authenticator) Authenticate(ctx context.Context, apiKey string) (string, error) {
	secretID, _, err := ParseAPIKey(apiKey)
	if err != nil {
		return "", err
	}

	secret, ok := a.secrets[secretID]
	if !ok {
		return "", ErrUnknownKey
	}

	computedHash := ComputeHMAC(secret, apiKey)

	var result struct {
		APIKeyID   string         `db:"api_key_id"`
		Label      string         `db:"label"`
		RevokedAt  sql.NullString `db:"revoked_at"`
		LastUsedAt sql.NullString `db:"last_used_at"`
	}

	err = a.queries.GetContext(ctx, "get-api-key-by-hash", &result, computedHash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidKey
	}
	if err != nil {
		return "", fmt.Errorf("database error: %w", err)
	}

	if result.RevokedAt.Valid && result.RevokedAt.String != "" {
		return "", ErrKeyRevoked
	}

	// 1-minute throttle on last_used_at keeps write volume down for
	// chatty clients.
	if shouldUpdateLastUsed(result.LastUsedAt) {
		now := time.Now().UTC().Format(time.RFC3339)
		if _, err := a.queries.ExecContext(ctx, "update-api-key-last-used", now, result.APIKeyID); err != nil {
			a.logger.Warn("failed to update api key last_used_at", zap.Error(err))
		}
	}

	return result.Label, nil
}

func shouldUpdateLastUsed(lastUsed sql.NullString) bool {
	if !lastUsed.Valid || lastUsed.String == "" {
		return true
	}
	ts, err := time.Parse(time.RFC3339, lastUsed.String)
	if err != nil {
		return true
	}
	return time.Since(ts) > time.Minute
}

// Middleware returns a chi-compatible middleware that authenticates every
// request via the X-Api-Key header.
func (a *Authenticator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get("X-Api-Key")
			if apiKey == "" {
				writeAuthError(w, http.StatusUnauthorized, ErrMissingKey)
				return
			}

			label, err := a.Authenticate(r.Context(), apiKey)
			if err != nil {
				switch {
				case errors.Is(err, ErrKeyRevoked):
					writeAuthError(w, http.StatusForbidden, err)
				case errors.Is(err, ErrInvalidKeyFormat),
					errors.Is(err, ErrUnknownKey),
					errors.Is(err, ErrInvalidKey):
					writeAuthError(w, http.StatusUnauthorized, err)
				default:
					// Database faults are 503 rather than 401 so clients
					// do not discard valid keys.
					writeAuthError(w, http.StatusServiceUnavailable, errors.New("authentication unavailable"))
				}
				return
			}

			ctx := context.WithValue(r.Context(), keyLabelKey, label)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// KeyLabelFromContext extracts the authenticated key label from context.
// Returns empty string if not found.
func KeyLabelFromContext(ctx context.Context) string {
	if label, ok := ctx.Value(keyLabelKey).(string); ok {
		return label
	}
	return ""
}

func writeAuthError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
