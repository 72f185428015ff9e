package repository

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/goal_vault/model"
)

var ErrWalletLinkedElsewhere = errors.New("wallet is already linked to another account")

var ErrWalletNotLinked = errors.New("wallet is not linked to this account")

type WalletLinkRepository struct {
	db *gorm.DB
}

func NewWalletLinkRepository(db *gorm.DB) *WalletLinkRepository {
	return &WalletLinkRepository{db: db}
}

// Link binds the address to the owner. Linking an address the owner already
// holds is a no-op; an address actively held by another owner is rejected.
// The first link for an owner becomes the primary wallet.
func (r *WalletLinkRepository) Link(ctx context.Context, ownerID, address string) (*model.WalletLink, error) {
	addr := strings.ToLower(address)
	var link model.WalletLink
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("address = ?", addr).First(&link).Error
		switch {
		case err == nil:
			if link.IsActive && link.OwnerID != ownerID {
				return ErrWalletLinkedElsewhere
			}
			if link.IsActive && link.OwnerID == ownerID {
				return nil // already linked, idempotent
			}
			link.OwnerID = ownerID
			link.IsActive = true
			link.LinkedAt = time.Now()
			link.UnlinkedAt = nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			link = model.WalletLink{
				Address:  addr,
				OwnerID:  ownerID,
				IsActive: true,
				LinkedAt: time.Now(),
			}
		default:
			return err
		}

		var active int64
		if err := tx.Model(&model.WalletLink{}).
			Where("owner_id = ? AND is_active = ? AND address <> ?", ownerID, true, addr).
			Count(&active).Error; err != nil {
			return err
		}
		link.IsPrimary = active == 0
		return tx.Save(&link).Error
	})
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *WalletLinkRepository) Unlink(ctx context.Context, ownerID, address string) error {
	addr := strings.ToLower(address)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var link model.WalletLink
		if err := tx.Where("address = ? AND owner_id = ? AND is_active = ?", addr, ownerID, true).
			First(&link).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrWalletNotLinked
			}
			return err
		}
		now := time.Now()
		link.IsActive = false
		link.IsPrimary = false
		link.UnlinkedAt = &now
		if err := tx.Save(&link).Error; err != nil {
			return err
		}
		// Promote the oldest remaining link so the owner keeps a primary.
		var next model.WalletLink
		err := tx.Where("owner_id = ? AND is_active = ?", ownerID, true).
			Order("linked_at asc").First(&next).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return tx.Model(&next).Update("is_primary", true).Error
	})
}

// SetPrimary marks one of the owner's linked wallets primary and clears the
// flag on the rest.
func (r *WalletLinkRepository) SetPrimary(ctx context.Context, ownerID, address string) error {
	addr := strings.ToLower(address)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var link model.WalletLink
		if err := tx.Where("address = ? AND owner_id = ? AND is_active = ?", addr, ownerID, true).
			First(&link).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrWalletNotLinked
			}
			return err
		}
		if err := tx.Model(&model.WalletLink{}).
			Where("owner_id = ?", ownerID).
			Update("is_primary", false).Error; err != nil {
			return err
		}
		return tx.Model(&link).Update("is_primary", true).Error
	})
}

// FindOwner resolves the active owner of a wallet address.
func (r *WalletLinkRepository) FindOwner(ctx context.Context, address string) (string, error) {
	var link model.WalletLink
	err := r.db.WithContext(ctx).
		Where("address = ? AND is_active = ?", strings.ToLower(address), true).
		First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return link.OwnerID, nil
}

// ListByOwner returns the owner's active links, primary first.
func (r *WalletLinkRepository) ListByOwner(ctx context.Context, ownerID string) ([]model.WalletLink, error) {
	var links []model.WalletLink
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND is_active = ?", ownerID, true).
		Order("is_primary desc, linked_at asc").
		Find(&links).Error
	if err != nil {
		return nil, err
	}
	return links, nil
}
