package usecase

import (
	"context"

	"github.com/cardapiodigital/cardapio-mcp/internal/domain"
)

// StoreInfoUseCase serves the static vendor sheet. No store query is issued;
// the data is fixed at startup.
type StoreInfoUseCase struct {
	info domain.StoreInfo
}

// NewStoreInfoUseCase creates a new StoreInfoUseCase around the immutable
// store sheet.
func NewStoreInfoUseCase(info domain.StoreInfo) *StoreInfoUseCase {
	return &StoreInfoUseCase{info: info}
}

// Execute returns the store sheet. It never fails; the context parameter
// keeps the signature uniform with the other use cases.
func (uc *StoreInfoUseCase) Execute(_ context.Context) domain.StoreInfo {
	return uc.info
}
