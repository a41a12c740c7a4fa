// Package auth provides HMAC-based API key authentication for the decision API.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type contextKey string

const apiKeyIDKey = contextKey("api_key_id")

// MetadataKey is the gRPC metadata header carrying the API key.
const MetadataKey = "x-api-key"

// Queries is the subset of *db.Queries used for key lookup.
type Queries interface {
	Get(ctx context.Context, name string, dest any, args ...any) error
	Exec(ctx context.Context, name string, args ...any) (sql.Result, error)
}

// ErrDatabase wraps storage failures so the interceptor can answer
// UNAVAILABLE instead of UNAUTHENTICATED.
var ErrDatabase = errors.New("database error")

// Authenticator validates API keys against their stored HMAC-SHA256 hashes.
type Authenticator struct {
	secrets map[string][]byte
	queries Queries
	logger  *slog.Logger
	now     func() time.Time
}

// NewAuthenticator creates an authenticator over secret_id -> secret.
func NewAuthenticator(secrets map[string][]byte, queries Queries, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		secrets: secrets,
		queries: queries,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Authenticate validates apiKey and returns the api_key_id it belongs to.
func (a *Authenticator) Authenticate(ctx context.Context, apiKey string) (string, error) {
	secretID, _, err := ParseAPIKey(apiKey)
	if err != nil {
		return "", err
	}

	secret, ok := a.secrets[secretID]
	if !ok {
		return "", ErrUnknownKey
	}

	var row struct {
		APIKeyID   string       `db:"api_key_id"`
		RevokedAt  sql.NullTime `db:"revoked_at"`
		LastUsedAt sql.NullTime `db:"last_used_at"`
	}
	err = a.queries.Get(ctx, "get-api-key-by-hash", &row, ComputeHMAC(secret, apiKey))
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidKey
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if row.RevokedAt.Valid {
		return "", ErrKeyRevoked
	}

	// 1-minute throttle keeps busy callers from writing on every request.
	if shouldUpdateLastUsed(row.LastUsedAt, a.now()) {
		if _, err := a.queries.Exec(ctx, "update-last-used", a.now(), row.APIKeyID); err != nil {
			a.logger.Warn("failed to update last_used_at", "api_key_id", row.APIKeyID, "error", err)
		}
	}

	return row.APIKeyID, nil
}

// Issue generates a key under secretID, stores its hash and returns the
// plaintext key with its id. The plaintext is never stored.
func (a *Authenticator) Issue(ctx context.Context, secretID, name string) (key, apiKeyID string, err error) {
	secret, ok := a.secrets[secretID]
	if !ok {
		return "", "", ErrUnknownKey
	}

	key, err = GenerateAPIKey(secretID)
	if err != nil {
		return "", "", err
	}

	apiKeyID = uuid.Must(uuid.NewV7()).String()
	if _, err := a.queries.Exec(ctx, "insert-api-key", apiKeyID, name, ComputeHMAC(secret, key), a.now()); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return key, apiKeyID, nil
}

// Revoke marks a key revoked. Revoking an unknown or already revoked key
// returns ErrInvalidKey.
func (a *Authenticator) Revoke(ctx context.Context, apiKeyID string) error {
	res, err := a.queries.Exec(ctx, "revoke-api-key", a.now(), apiKeyID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	if n == 0 {
		return ErrInvalidKey
	}
	return nil
}

func shouldUpdateLastUsed(lastUsed sql.NullTime, now time.Time) bool {
	if !lastUsed.Valid {
		return true
	}
	return now.Sub(lastUsed.Time) > time.Minute
}

// UnaryInterceptor authenticates every call except the methods in skip
// (typically the health service).
func (a *Authenticator) UnaryInterceptor(skip ...string) grpc.UnaryServerInterceptor {
	open := make(map[string]bool, len(skip))
	for _, m := range skip {
		open[m] = true
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if open[info.FullMethod] {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		keys := md.Get(MetadataKey)
		if len(keys) == 0 {
			return nil, status.Error(codes.Unauthenticated, ErrMissingKey.Error())
		}

		apiKeyID, err := a.Authenticate(ctx, keys[0])
		switch {
		case err == nil:
		case errors.Is(err, ErrKeyRevoked):
			return nil, status.Error(codes.PermissionDenied, err.Error())
		case errors.Is(err, ErrDatabase):
			return nil, status.Error(codes.Unavailable, err.Error())
		default:
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}

		return handler(context.WithValue(ctx, apiKeyIDKey, apiKeyID), req)
	}
}

// APIKeyIDFromContext returns the authenticated key id, or "" when the call
// was not authenticated.
func APIKeyIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(apiKeyIDKey).(string); ok {
		return id
	}
	return ""
}
