package engine

import (
	"errors"

	"github.com/predictory-labs/predictory/internal/codec"
	"github.com/predictory-labs/predictory/internal/domain"
	"github.com/predictory-labs/predictory/internal/ledger"
	"github.com/predictory-labs/predictory/internal/registry"
)

// CreateUser registers a wallet with zero stake and the initial trust level.
func (e *Engine) CreateUser(owner domain.PublicKey, name string) (*Receipt, error) {
	return e.run("createUser", nil, func(tx *ledger.Txn, _ int64, rcp *Receipt) error {
		fixedName, err := domain.Name32(name)
		if err != nil {
			return domain.NewError(domain.KindArithmetic, err.Error())
		}
		user := domain.User{
			Version:    domain.UserVersion,
			Owner:      owner,
			TrustLevel: domain.InitialTrust,
			Name:       fixedName,
		}
		addr := registry.User(owner)
		if err := tx.Create(addr, domain.KindUser, codec.EncodeUser(user)); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				return domain.ErrUserExists
			}
			return err
		}
		rcp.touch(addr)
		return nil
	})
}

// TransferStake moves amount from the caller's external balance into their
// unlocked stake. The external debit is the runtime's responsibility.
func (e *Engine) TransferStake(owner domain.PublicKey, amount uint64) (*Receipt, error) {
	return e.run("transferStake", nil, func(tx *ledger.Txn, _ int64, rcp *Receipt) error {
		if amount == 0 {
			return domain.ErrInvalidAmount
		}
		user, err := getUser(tx, owner)
		if err != nil {
			return err
		}
		user.Stake += amount
		if err := putUser(tx, user); err != nil {
			return err
		}
		rcp.touch(registry.User(owner))
		return nil
	})
}

// WithdrawStake returns unlocked stake to the caller's external balance. A nil
// amount withdraws the full unlocked stake. Locked stake is never touchable
// here; it only returns through claim, recharge, or burn paths.
func (e *Engine) WithdrawStake(owner domain.PublicKey, amount *uint64) (*Receipt, error) {
	return e.run("withdrawStake", nil, func(tx *ledger.Txn, _ int64, rcp *Receipt) error {
		user, err := getUser(tx, owner)
		if err != nil {
			return err
		}
		requested := user.Stake
		if amount != nil {
			requested = *amount
		}
		if requested == 0 {
			return domain.ErrInvalidAmount
		}
		if requested > user.Stake {
			return domain.ErrInsufficientStake
		}
		user.Stake -= requested
		if err := putUser(tx, user); err != nil {
			return err
		}
		rcp.touch(registry.User(owner))
		rcp.credit(owner, requested)
		return nil
	})
}
