package service

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/goal_vault/model"
	"github.com/goal_vault/repository"
)

// WalletService manages the wallet-to-owner links goals are filed under.
type WalletService struct {
	links *repository.WalletLinkRepository
	log   zerolog.Logger
}

func NewWalletService(links *repository.WalletLinkRepository, log zerolog.Logger) *WalletService {
	return &WalletService{
		links: links,
		log:   log.With().Str("component", "wallet_service").Logger(),
	}
}

func (s *WalletService) Link(ctx context.Context, ownerID, address string) (*model.WalletLink, error) {
	if ownerID == "" {
		return nil, &ValidationError{Field: "ownerId", Reason: "required"}
	}
	if !common.IsHexAddress(address) {
		return nil, &ValidationError{Field: "address", Reason: "not a valid wallet address"}
	}
	link, err := s.links.Link(ctx, ownerID, address)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("owner", ownerID).Str("address", link.Address).Msg("wallet linked")
	return link, nil
}

func (s *WalletService) Unlink(ctx context.Context, ownerID, address string) error {
	if !common.IsHexAddress(address) {
		return &ValidationError{Field: "address", Reason: "not a valid wallet address"}
	}
	return s.links.Unlink(ctx, ownerID, address)
}

func (s *WalletService) SetPrimary(ctx context.Context, ownerID, address string) error {
	if !common.IsHexAddress(address) {
		return &ValidationError{Field: "address", Reason: "not a valid wallet address"}
	}
	return s.links.SetPrimary(ctx, ownerID, address)
}

// FindOwner resolves which owner, if any, holds the wallet.
func (s *WalletService) FindOwner(ctx context.Context, address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", &ValidationError{Field: "address", Reason: "not a valid wallet address"}
	}
	return s.links.FindOwner(ctx, address)
}

func (s *WalletService) ListWallets(ctx context.Context, ownerID string) ([]model.WalletLink, error) {
	return s.links.ListByOwner(ctx, ownerID)
}
