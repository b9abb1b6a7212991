package credstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sentinel/backend/pkg/logger"
)

func TestParseTokenTime(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{
			name:  "naive ISO",
			input: "2026-08-27T23:15:47",
			want:  time.Date(2026, 8, 27, 23, 15, 47, 0, time.UTC),
		},
		{
			name:  "Z suffix",
			input: "2026-08-27T23:15:47Z",
			want:  time.Date(2026, 8, 27, 23, 15, 47, 0, time.UTC),
		},
		{
			name:  "offset normalized to UTC",
			input: "2026-08-28T08:15:47+09:00",
			want:  time.Date(2026, 8, 27, 23, 15, 47, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTokenTime(tt.input)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %v want %v", got, tt.want)
		})
	}

	_, err := ParseTokenTime("yesterday")
	assert.Error(t, err)
}

func TestTokenTimeRoundTrip(t *testing.T) {
	orig := time.Date(2026, 8, 27, 23, 15, 47, 0, time.UTC)

	formatted := FormatTokenTime(orig)
	assert.Equal(t, "2026-08-27T23:15:47", formatted)

	parsed, err := ParseTokenTime(formatted)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(orig))
}

func TestCredentialValidate(t *testing.T) {
	assert.ErrorIs(t, Credential{}.Validate(), ErrCredentialMissing)
	assert.ErrorIs(t, Credential{AppKey: "k"}.Validate(), ErrCredentialMissing)
	assert.NoError(t, Credential{AppKey: "k", AppSecret: "s"}.Validate())
}

func TestCredentialMaskedKey(t *testing.T) {
	cred := Credential{AppKey: "PSabcdefghijklmnop"}
	masked := cred.MaskedKey()
	assert.Equal(t, "PSab****mnop", masked)

	short := Credential{AppKey: "short"}
	assert.Equal(t, "NOT_SET", short.MaskedKey())
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".kis_token_cache.json")
	store := NewFileStore(path)
	ctx := context.Background()

	_, err := store.LoadToken(ctx)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	rec := TokenRecord{
		AccessToken: "tok-123",
		IssuedAt:    time.Date(2026, 8, 27, 23, 0, 0, 0, time.UTC),
		ExpiresAt:   time.Date(2026, 8, 28, 23, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.SaveToken(ctx, rec))

	loaded, err := store.LoadToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, rec.AccessToken, loaded.AccessToken)
	assert.True(t, loaded.IssuedAt.Equal(rec.IssuedAt))
	assert.True(t, loaded.ExpiresAt.Equal(rec.ExpiresAt))
}

// memStore is a test double for the durable backend.
type memStore struct {
	rec     *TokenRecord
	loadErr error
	saveErr error
	saves   []TokenRecord
}

func (m *memStore) LoadToken(context.Context) (TokenRecord, error) {
	if m.loadErr != nil {
		return TokenRecord{}, m.loadErr
	}
	if m.rec == nil {
		return TokenRecord{}, ErrTokenNotFound
	}
	return *m.rec, nil
}

func (m *memStore) SaveToken(_ context.Context, rec TokenRecord) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves = append(m.saves, rec)
	m.rec = &rec
	return nil
}

func TestChainDurableFirst(t *testing.T) {
	ctx := context.Background()
	durableRec := TokenRecord{
		AccessToken: "from-durable",
		IssuedAt:    time.Date(2026, 8, 27, 1, 0, 0, 0, time.UTC),
		ExpiresAt:   time.Date(2026, 8, 28, 1, 0, 0, 0, time.UTC),
	}

	durable := &memStore{rec: &durableRec}
	local := &memStore{rec: &TokenRecord{AccessToken: "from-local"}}

	chain := NewChain(durable, local, logger.Nop())

	loaded, err := chain.LoadToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "from-durable", loaded.AccessToken)

	// 공유 저장소에서 읽은 토큰이 로컬에 미러링되어야 함
	assert.Equal(t, "from-durable", local.rec.AccessToken)
}

func TestChainLocalFallback(t *testing.T) {
	ctx := context.Background()
	local := &memStore{rec: &TokenRecord{
		AccessToken: "from-local",
		IssuedAt:    time.Date(2026, 8, 27, 1, 0, 0, 0, time.UTC),
		ExpiresAt:   time.Date(2026, 8, 28, 1, 0, 0, 0, time.UTC),
	}}

	tests := []struct {
		name    string
		durable Store
	}{
		{"durable empty", &memStore{}},
		{"durable failing", &memStore{loadErr: errors.New("connection refused")}},
		{"no durable", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := NewChain(tt.durable, local, logger.Nop())
			loaded, err := chain.LoadToken(ctx)
			require.NoError(t, err)
			assert.Equal(t, "from-local", loaded.AccessToken)
		})
	}
}

func TestChainSaveWritesDurableFirst(t *testing.T) {
	ctx := context.Background()
	durable := &memStore{}
	local := &memStore{}
	chain := NewChain(durable, local, logger.Nop())

	rec := TokenRecord{
		AccessToken: "fresh",
		IssuedAt:    time.Now().UTC(),
		ExpiresAt:   time.Now().UTC().Add(24 * time.Hour),
	}
	require.NoError(t, chain.SaveToken(ctx, rec))

	assert.Len(t, durable.saves, 1)
	assert.Len(t, local.saves, 1)
}

func TestChainSaveDurableFailureAborts(t *testing.T) {
	ctx := context.Background()
	durable := &memStore{saveErr: errors.New("timeout")}
	local := &memStore{}
	chain := NewChain(durable, local, logger.Nop())

	err := chain.SaveToken(ctx, TokenRecord{AccessToken: "x"})
	assert.Error(t, err)
	// 공유 저장 실패 시 로컬에도 쓰지 않음 (순서 보장)
	assert.Empty(t, local.saves)
}
