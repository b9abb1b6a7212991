package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	serviceName     = "kis"
	typeAccessToken = "access_token"
)

// PostgresStore keeps credentials and the token record in the shared
// api_credentials table so that the scheduled run and manual runs observe
// the same token.
// ⭐ SSOT: 공유 자격증명 조회/저장은 여기서만
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a durable store backed by the given pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Credential fetches the active app key/secret rows for the KIS service.
// 양쪽 중 하나라도 없으면 ErrCredentialMissing.
func (s *PostgresStore) Credential(ctx context.Context) (Credential, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT credential_type, credential_value
		FROM api_credentials
		WHERE service_name = $1 AND is_active AND credential_type IN ('app_key', 'app_secret')
	`, serviceName)
	if err != nil {
		return Credential{}, fmt.Errorf("query credentials: %w", err)
	}
	defer rows.Close()

	var cred Credential
	for rows.Next() {
		var credType, credValue string
		if err := rows.Scan(&credType, &credValue); err != nil {
			return Credential{}, fmt.Errorf("scan credential: %w", err)
		}
		switch credType {
		case "app_key":
			cred.AppKey = credValue
		case "app_secret":
			cred.AppSecret = credValue
		}
	}
	if rows.Err() != nil {
		return Credential{}, fmt.Errorf("iterate credentials: %w", rows.Err())
	}

	if err := cred.Validate(); err != nil {
		return Credential{}, err
	}
	return cred, nil
}

// tokenPayload is the JSON blob stored in credential_value.
type tokenPayload struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   string `json:"expires_at"`
	IssuedAt    string `json:"issued_at"`
}

// LoadToken reads the current token record.
func (s *PostgresStore) LoadToken(ctx context.Context) (TokenRecord, error) {
	var raw string
	err := s.pool.QueryRow(ctx, `
		SELECT credential_value
		FROM api_credentials
		WHERE service_name = $1 AND credential_type = $2 AND is_active
	`, serviceName, typeAccessToken).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return TokenRecord{}, ErrTokenNotFound
	}
	if err != nil {
		return TokenRecord{}, fmt.Errorf("query token: %w", err)
	}

	var payload tokenPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return TokenRecord{}, fmt.Errorf("parse token payload: %w", err)
	}
	if payload.AccessToken == "" {
		return TokenRecord{}, ErrTokenNotFound
	}

	issuedAt, err := ParseTokenTime(payload.IssuedAt)
	if err != nil {
		return TokenRecord{}, err
	}
	expiresAt, err := ParseTokenTime(payload.ExpiresAt)
	if err != nil {
		return TokenRecord{}, err
	}

	return TokenRecord{
		AccessToken: payload.AccessToken,
		IssuedAt:    issuedAt,
		ExpiresAt:   expiresAt,
	}, nil
}

// SaveToken upserts the token record. 엄밀히 더 새로운 issued_at이 이미 있으면
// 덮어쓰지 않는다 — 프로세스 간 재발급 경합 완화 (conditional upsert).
func (s *PostgresStore) SaveToken(ctx context.Context, rec TokenRecord) error {
	payload, err := json.Marshal(tokenPayload{
		AccessToken: rec.AccessToken,
		ExpiresAt:   FormatTokenTime(rec.ExpiresAt),
		IssuedAt:    FormatTokenTime(rec.IssuedAt),
	})
	if err != nil {
		return fmt.Errorf("marshal token payload: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO api_credentials
			(service_name, credential_type, credential_value, expires_at, issued_at, environment, is_active, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'production', TRUE, now())
		ON CONFLICT (service_name, credential_type) DO UPDATE
		SET credential_value = EXCLUDED.credential_value,
		    expires_at       = EXCLUDED.expires_at,
		    issued_at        = EXCLUDED.issued_at,
		    updated_at       = now()
		WHERE api_credentials.issued_at IS NULL
		   OR api_credentials.issued_at <= EXCLUDED.issued_at
	`, serviceName, typeAccessToken, string(payload), rec.ExpiresAt.UTC(), rec.IssuedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert token: %w", err)
	}

	return nil
}

// ensure interface compliance
var _ Store = (*PostgresStore)(nil)
var _ Store = (*FileStore)(nil)
