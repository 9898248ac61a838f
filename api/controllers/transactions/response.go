package transactions

import (
	"encoding/json"

	txsvc "github.com/lxlibrary/lx-backend/internal/transactions"
)

type cartView struct {
	Items []txsvc.CartItem `json:"items"`
	Count int              `json:"count"`
	Total json.Number      `json:"total"`
}

func newCartView(store *txsvc.Store) cartView {
	items := store.Cart()
	return cartView{
		Items: items,
		Count: len(items),
		Total: txsvc.JSONAmount(store.CartTotal()),
	}
}

type loansView struct {
	Loans []txsvc.LoanRecord `json:"loans"`
	Count int                `json:"count"`
}

func newLoansView(store *txsvc.Store) loansView {
	loans := store.Loans()
	return loansView{Loans: loans, Count: len(loans)}
}
