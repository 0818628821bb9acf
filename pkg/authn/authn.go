// Package authn resolves bearer credentials to platform identities. Tokens are
// stored hashed; a credential names its class (issuer, issuer agent, investor)
// and, for agents, the issuer that appointed them.
package authn

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RoterHund/securities-manager/pkg/apperr"
)

// Class is the identity class a credential grants.
type Class string

const (
	ClassIssuer   Class = "ISSUER"
	ClassAgent    Class = "ISSUER_AGENT"
	ClassInvestor Class = "INVESTOR"
)

func ParseClass(s string) (Class, error) {
	switch Class(s) {
	case ClassIssuer, ClassAgent, ClassInvestor:
		return Class(s), nil
	}
	return "", apperr.Newf(apperr.InvalidArgument, "invalid identity class %q", s)
}

// Identity is a verified credential holder.
type Identity struct {
	CredentialID string `json:"credential_id"`
	Class        Class  `json:"class"`
	// IssuerID is the appointing issuer's credential id. For issuers it is
	// their own id; for investors it is empty.
	IssuerID   string `json:"issuer_id,omitempty"`
	CompanyLEI string `json:"company_lei,omitempty"`
}

var ErrUnauthorized = apperr.New(apperr.Unauthorized, "unauthorized")

// NewToken mints a fresh bearer token and its storable hash.
func NewToken() (token, tokenHash string) {
	b := make([]byte, 24)
	_, _ = rand.Read(b)
	token = "tok_" + hex.EncodeToString(b)
	return token, HashToken(token)
}

func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// VerifyBearer resolves an Authorization header to an identity of the required
// class. A revoked, unknown, or wrong-class credential is Unauthorized.
func VerifyBearer(ctx context.Context, db *pgxpool.Pool, authorization string, required Class) (*Identity, error) {
	token, ok := parseBearerToken(authorization)
	if !ok {
		return nil, ErrUnauthorized
	}
	return VerifyToken(ctx, db, token, required)
}

func VerifyToken(ctx context.Context, db *pgxpool.Pool, token string, required Class) (*Identity, error) {
	out, err := Lookup(ctx, db, token)
	if err != nil {
		return nil, err
	}
	if out.Class != required {
		return nil, ErrUnauthorized
	}
	return out, nil
}

// Lookup resolves a token to its identity without a class requirement.
func Lookup(ctx context.Context, db *pgxpool.Pool, token string) (*Identity, error) {
	var out Identity
	var issuerID *string
	err := db.QueryRow(ctx, `
SELECT credential_id,class,issuer_id,company_lei
FROM credentials
WHERE token_hash=$1 AND revoked_at IS NULL
`, HashToken(token)).Scan(&out.CredentialID, &out.Class, &issuerID, &out.CompanyLEI)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if issuerID != nil {
		out.IssuerID = *issuerID
	}
	return &out, nil
}

func parseBearerToken(authorization string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(authorization, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authorization, prefix))
	return token, token != ""
}
