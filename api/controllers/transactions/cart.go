package transactions

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lxlibrary/lx-backend/api/middleware"
	"github.com/lxlibrary/lx-backend/api/responses"
	"github.com/lxlibrary/lx-backend/api/validators"
	txsvc "github.com/lxlibrary/lx-backend/internal/transactions"
	"github.com/lxlibrary/lx-backend/pkg/enums"
	pkgerrors "github.com/lxlibrary/lx-backend/pkg/errors"
	"github.com/lxlibrary/lx-backend/pkg/logger"
)

// StoreResolver yields the transaction store owned by a client.
type StoreResolver interface {
	Store(ctx context.Context, clientID string) (*txsvc.Store, error)
}

// CartFetch returns the client's cart and its running total.
func CartFetch(stores StoreResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := resolveStore(r, stores)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartView(store))
	}
}

// CartAddItem stages a book; adding a book already in the cart is a no-op.
func CartAddItem(stores StoreResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := resolveStore(r, stores)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload bookRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		book, err := payload.toBook()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := store.AddToCart(r.Context(), book); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartView(store))
	}
}

// CartRemoveItem drops a book by id; unknown ids leave the cart unchanged.
func CartRemoveItem(stores StoreResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := resolveStore(r, stores)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := store.RemoveFromCart(r.Context(), chi.URLParam(r, "itemId")); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartView(store))
	}
}

func CartClear(stores StoreResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := resolveStore(r, stores)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := store.ClearCart(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartView(store))
	}
}

// CartCheckout settles the cart with the chosen payment method. The request
// blocks for the simulated payment latency.
func CartCheckout(stores StoreResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := resolveStore(r, stores)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := enums.ParsePaymentMethod(payload.Method)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		result, err := store.PayCart(r.Context(), method)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// resolveStore looks up the store for the client id carried in the request.
func resolveStore(r *http.Request, stores StoreResolver) (*txsvc.Store, error) {
	if stores == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction stores unavailable")
	}
	clientID := middleware.ClientIDFromContext(r.Context())
	if clientID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "missing "+middleware.ClientIDHeader+" header")
	}
	return stores.Store(r.Context(), clientID)
}
