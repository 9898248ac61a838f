package transactions

import (
	"github.com/shopspring/decimal"

	"github.com/lxlibrary/lx-backend/api/validators"
	txsvc "github.com/lxlibrary/lx-backend/internal/transactions"
	pkgerrors "github.com/lxlibrary/lx-backend/pkg/errors"
)

// bookRequest is the catalog entry the storefront sends when staging or
// renting a title.
type bookRequest struct {
	ID        string          `json:"id" validate:"required,max=64"`
	Title     string          `json:"title" validate:"required,max=512"`
	SalePrice decimal.Decimal `json:"salePrice"`
	CoverURL  string          `json:"coverUrl" validate:"omitempty,max=2048"`
}

// toBook validates the price and trims the free-text fields.
func (b bookRequest) toBook() (txsvc.Book, error) {
	if b.SalePrice.IsNegative() {
		return txsvc.Book{}, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"salePrice": "must be greater than or equal to 0"})
	}
	return txsvc.Book{
		ID:        validators.SanitizeString(b.ID, 64),
		Title:     validators.SanitizeString(b.Title, 512),
		SalePrice: b.SalePrice,
		CoverURL:  validators.SanitizeString(b.CoverURL, 2048),
	}, nil
}

type checkoutRequest struct {
	Method string `json:"method" validate:"omitempty,oneof=tarjeta transferencia efectivo"`
}
