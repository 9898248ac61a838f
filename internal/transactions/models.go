package transactions

import (
	"encoding/json"
	"time"

	"github.com/lxlibrary/lx-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// Book is the catalog projection handed in by callers.
type Book struct {
	ID        string
	Title     string
	SalePrice decimal.Decimal
	CoverURL  string
}

// CartItem is a staged purchase; unique by ID within the cart.
type CartItem struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	SalePrice decimal.Decimal `json:"salePrice"`
	CoverURL  string          `json:"coverUrl"`
}

// MarshalJSON writes salePrice as a JSON number, the shape the web client
// already stores. Unmarshalling accepts both numbers and strings.
func (c CartItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID        string      `json:"id"`
		Title     string      `json:"title"`
		SalePrice json.Number `json:"salePrice"`
		CoverURL  string      `json:"coverUrl"`
	}{c.ID, c.Title, JSONAmount(c.SalePrice), c.CoverURL})
}

// LoanRecord is the evidence that a rental was initiated.
type LoanRecord struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	DueAt time.Time `json:"dueAt"`
}

// PaymentResult is returned by a completed checkout.
type PaymentResult struct {
	OK     bool                `json:"ok"`
	Method enums.PaymentMethod `json:"method"`
	Total  decimal.Decimal     `json:"total"`
}

func (p PaymentResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		OK     bool                `json:"ok"`
		Method enums.PaymentMethod `json:"method"`
		Total  json.Number         `json:"total"`
	}{p.OK, p.Method, JSONAmount(p.Total)})
}

// RentalConfirmation carries the new loan and the text shown to the user.
type RentalConfirmation struct {
	Loan    LoanRecord `json:"loan"`
	Message string     `json:"message"`
}

func cartItemFrom(book Book) CartItem {
	return CartItem{
		ID:        book.ID,
		Title:     book.Title,
		SalePrice: book.SalePrice,
		CoverURL:  book.CoverURL,
	}
}

func sumSalePrices(items []CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.SalePrice)
	}
	return total
}

// JSONAmount renders d as an unquoted JSON number.
func JSONAmount(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}
