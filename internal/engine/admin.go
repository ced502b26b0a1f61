package engine

import (
	"errors"

	"github.com/predictory-labs/predictory/internal/codec"
	"github.com/predictory-labs/predictory/internal/domain"
	"github.com/predictory-labs/predictory/internal/ledger"
	"github.com/predictory-labs/predictory/internal/registry"
)

// InitializeContractState creates the protocol configuration singleton. It can
// succeed at most once per ledger.
func (e *Engine) InitializeContractState(authority domain.PublicKey, multiplier, eventPrice, platformFee, orgReward uint64) (*Receipt, error) {
	return e.run("initializeContractState", nil, func(tx *ledger.Txn, _ int64, rcp *Receipt) error {
		state := domain.ContractState{
			Version:     domain.ContractStateVersion,
			Authority:   authority,
			Multiplier:  multiplier,
			EventPrice:  eventPrice,
			PlatformFee: platformFee,
			OrgReward:   orgReward,
		}
		addr := registry.State()
		if err := tx.Create(addr, domain.KindContractState, codec.EncodeContractState(state)); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				return domain.ErrStateInitialized
			}
			return err
		}
		rcp.touch(addr)
		return nil
	})
}

// SetContractAuthority hands the configuration singleton to a new authority.
func (e *Engine) SetContractAuthority(authority, newAuthority domain.PublicKey) (*Receipt, error) {
	return e.updateState("setContractAuthority", authority, func(s *domain.ContractState) error {
		s.Authority = newAuthority
		return nil
	})
}

// SetContractMultiplier updates the trust accrual rate.
func (e *Engine) SetContractMultiplier(authority domain.PublicKey, multiplier uint64) (*Receipt, error) {
	return e.updateState("setContractMultiplier", authority, func(s *domain.ContractState) error {
		s.Multiplier = multiplier
		return nil
	})
}

// SetEventPrice updates the escrowed event creation fee.
func (e *Engine) SetEventPrice(authority domain.PublicKey, eventPrice uint64) (*Receipt, error) {
	return e.updateState("setEventPrice", authority, func(s *domain.ContractState) error {
		s.EventPrice = eventPrice
		return nil
	})
}

func (e *Engine) updateState(instruction string, authority domain.PublicKey, mutate func(*domain.ContractState) error) (*Receipt, error) {
	return e.run(instruction, nil, func(tx *ledger.Txn, _ int64, rcp *Receipt) error {
		state, err := getState(tx)
		if err != nil {
			return err
		}
		if state.Authority != authority {
			return domain.ErrAuthorityMismatch
		}
		if err := mutate(&state); err != nil {
			return err
		}
		if err := putState(tx, state); err != nil {
			return err
		}
		rcp.touch(registry.State())
		return nil
	})
}
