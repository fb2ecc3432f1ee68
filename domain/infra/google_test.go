package infra

import (
	"context"
	"encoding/base64"
	"testing"

	googleAuthIDTokenVerifier "github.com/futurenda/google-auth-id-token-verifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 署名は検証しないので Decode にだけ通せるトークンを作る
func unsignedIDToken(payload string) string {
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`)) + "." +
		enc.EncodeToString([]byte(payload)) + "." +
		enc.EncodeToString([]byte("sig"))
}

func TestIdentityFromClaims(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    *Identity
		wantErr bool
	}{
		{
			name:    "verified email",
			payload: `{"sub":"123","email":"admin@example.ac.jp","email_verified":true,"name":"鈴木"}`,
			want:    &Identity{Email: "admin@example.ac.jp", Name: "鈴木", Subject: "123"},
		},
		{
			name:    "unverified email",
			payload: `{"sub":"123","email":"admin@example.ac.jp","email_verified":false}`,
			wantErr: true,
		},
		{
			name:    "email_verified missing",
			payload: `{"sub":"123","email":"admin@example.ac.jp"}`,
			wantErr: true,
		},
		{
			name:    "no email",
			payload: `{"sub":"123","email_verified":true}`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claimSet, err := googleAuthIDTokenVerifier.Decode(unsignedIDToken(tt.payload))
			require.NoError(t, err)

			got, err := identityFromClaims(claimSet)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGoogleVerifier_Verify_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewGoogleVerifier("client-id").Verify(ctx, unsignedIDToken(`{"email":"a@example.com","email_verified":true}`))
	assert.ErrorIs(t, err, context.Canceled)
}
