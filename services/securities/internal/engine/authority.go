package engine

import (
	"github.com/google/uuid"

	"github.com/RoterHund/securities-manager/pkg/apperr"
)

// Authority is the platform's internal operator capability. Privileged
// mutations (minting events and vintages, writing instrument metadata,
// flipping escrow status) run through Authorize so every call site states the
// capability it is exercising instead of relying on ambient trust.
type Authority struct {
	id string
}

func NewAuthority() *Authority {
	return &Authority{id: "sys_" + uuid.NewString()}
}

func (a *Authority) Authorize(fn func() error) error {
	if a == nil {
		return apperr.New(apperr.Forbidden, "system authority unavailable")
	}
	return fn()
}
