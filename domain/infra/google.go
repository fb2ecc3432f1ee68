package infra

import (
	"context"
	"errors"
	"fmt"

	googleAuthIDTokenVerifier "github.com/futurenda/google-auth-id-token-verifier"
)

//go:generate mockgen -destination=mock/identity.go -package=mock . IdentityVerifier

type Identity struct {
	Email   string
	Name    string
	Subject string
}

type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (*Identity, error)
}

type GoogleVerifier struct {
	clientID string
}

var _ IdentityVerifier = (*GoogleVerifier)(nil)

func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{clientID: clientID}
}

func (g *GoogleVerifier) Verify(ctx context.Context, idToken string) (*Identity, error) {
	// 証明書の取得は ctx を受け取らないので、開始前にだけ確認する
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v := googleAuthIDTokenVerifier.Verifier{}
	if err := v.VerifyIDToken(idToken, []string{g.clientID}); err != nil {
		return nil, fmt.Errorf("invalid google id token: %w", err)
	}
	claimSet, err := googleAuthIDTokenVerifier.Decode(idToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decode google id token: %w", err)
	}
	return identityFromClaims(claimSet)
}

// 確認済みでないメールアドレスは許可リストとの照合に使わない
func identityFromClaims(claimSet *googleAuthIDTokenVerifier.ClaimSet) (*Identity, error) {
	if claimSet.Email == "" {
		return nil, errors.New("google id token has no email")
	}
	if !claimSet.EmailVerified {
		return nil, fmt.Errorf("email %s is not verified", claimSet.Email)
	}
	return &Identity{
		Email:   claimSet.Email,
		Name:    claimSet.Name,
		Subject: claimSet.Sub,
	}, nil
}
