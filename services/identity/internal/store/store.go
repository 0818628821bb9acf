// Package store persists credentials for the identity service. Tokens are
// never stored; only their hash is.
package store

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RoterHund/securities-manager/pkg/authn"
)

//go:embed schema.sql
var schemaSQL string

type Store struct{ DB *pgxpool.Pool }

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.DB.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// CreateIssuer mints an issuer credential. The issuer_id of an issuer is its
// own credential id.
func (s *Store) CreateIssuer(ctx context.Context, name, companyLEI string) (*authn.Identity, string, error) {
	id := &authn.Identity{
		CredentialID: "cred_" + uuid.NewString(),
		Class:        authn.ClassIssuer,
		CompanyLEI:   companyLEI,
	}
	id.IssuerID = id.CredentialID
	token, hash := authn.NewToken()
	_, err := s.DB.Exec(ctx, `
INSERT INTO credentials(credential_id,class,issuer_id,company_lei,display_name,token_hash)
VALUES($1,$2,$3,$4,$5,$6)
`, id.CredentialID, id.Class, id.IssuerID, companyLEI, name, hash)
	if err != nil {
		return nil, "", err
	}
	return id, token, nil
}

// CreateAgent mints an agent credential appointed by the given issuer.
func (s *Store) CreateAgent(ctx context.Context, issuerID, companyLEI string) (*authn.Identity, string, error) {
	id := &authn.Identity{
		CredentialID: "cred_" + uuid.NewString(),
		Class:        authn.ClassAgent,
		IssuerID:     issuerID,
		CompanyLEI:   companyLEI,
	}
	token, hash := authn.NewToken()
	_, err := s.DB.Exec(ctx, `
INSERT INTO credentials(credential_id,class,issuer_id,company_lei,display_name,token_hash)
VALUES($1,$2,$3,$4,'',$5)
`, id.CredentialID, id.Class, id.IssuerID, companyLEI, hash)
	if err != nil {
		return nil, "", err
	}
	return id, token, nil
}

// CreateInvestor mints an investor credential after the KYC checks passed.
func (s *Store) CreateInvestor(ctx context.Context) (*authn.Identity, string, error) {
	id := &authn.Identity{
		CredentialID: "cred_" + uuid.NewString(),
		Class:        authn.ClassInvestor,
	}
	token, hash := authn.NewToken()
	_, err := s.DB.Exec(ctx, `
INSERT INTO credentials(credential_id,class,issuer_id,company_lei,display_name,token_hash)
VALUES($1,$2,NULL,'','',$3)
`, id.CredentialID, id.Class, hash)
	if err != nil {
		return nil, "", err
	}
	return id, token, nil
}
