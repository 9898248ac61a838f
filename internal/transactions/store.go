package transactions

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lxlibrary/lx-backend/pkg/enums"
	pkgerrors "github.com/lxlibrary/lx-backend/pkg/errors"
	"github.com/lxlibrary/lx-backend/pkg/logger"
	"github.com/lxlibrary/lx-backend/pkg/metrics"
	"github.com/lxlibrary/lx-backend/pkg/storage"
	"github.com/shopspring/decimal"
)

const (
	DefaultLoanPeriodDays  = 14
	DefaultCheckoutLatency = 800 * time.Millisecond

	confirmationDateLayout = "02-01-2006"
)

// Params wires a Store.
type Params struct {
	Slots           storage.Slots
	Logger          *logger.Logger
	Metrics         *metrics.StateMetrics
	Clock           func() time.Time
	Location        *time.Location
	LoanPeriodDays  int
	CheckoutLatency time.Duration
}

// Store owns one origin's cart and loans. Every mutation writes the full
// snapshot through to its slot before the in-memory state changes, so the
// stored snapshot and memory never diverge.
type Store struct {
	mu    sync.Mutex
	cart  []CartItem
	loans []LoanRecord

	slots      storage.Slots
	logg       *logger.Logger
	metrics    *metrics.StateMetrics
	clock      func() time.Time
	location   *time.Location
	loanPeriod int
	latency    time.Duration

	checkouts atomic.Int32
}

// NewStore loads the prior snapshots from slots. A corrupt snapshot yields an
// empty state; a storage read failure is returned.
func NewStore(ctx context.Context, p Params) (*Store, error) {
	if p.Slots == nil {
		return nil, fmt.Errorf("slot store required")
	}
	s := &Store{
		slots:      p.Slots,
		logg:       p.Logger,
		metrics:    p.Metrics,
		clock:      p.Clock,
		location:   p.Location,
		loanPeriod: p.LoanPeriodDays,
		latency:    p.CheckoutLatency,
	}
	if s.logg == nil {
		s.logg = logger.Nop()
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.location == nil {
		s.location = time.Local
	}
	if s.loanPeriod <= 0 {
		s.loanPeriod = DefaultLoanPeriodDays
	}
	if s.latency < 0 {
		s.latency = 0
	}

	cart, err := loadSnapshot[CartItem](ctx, s.slots, storage.KeyCartItems, s.logg)
	if err != nil {
		return nil, err
	}
	loans, err := loadSnapshot[LoanRecord](ctx, s.slots, storage.KeyLoans, s.logg)
	if err != nil {
		return nil, err
	}
	s.cart = cart
	s.loans = loans
	return s, nil
}

func loadSnapshot[T any](ctx context.Context, slots storage.Slots, key string, logg *logger.Logger) ([]T, error) {
	payload, ok, err := slots.Load(ctx, key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+key)
	}
	if !ok {
		return []T{}, nil
	}
	var items []T
	if err := json.Unmarshal(payload, &items); err != nil {
		ctx = logg.WithFields(ctx, map[string]any{"slot": key, "error": err.Error()})
		logg.Warn(ctx, "transactions.snapshot_corrupt")
		return []T{}, nil
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// Cart returns a copy of the cart in insertion order.
func (s *Store) Cart() []CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.cart)
}

// Loans returns a copy of the loan records in creation order.
func (s *Store) Loans() []LoanRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.loans)
}

// CartTotal sums the sale price of everything in the cart.
func (s *Store) CartTotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sumSalePrices(s.cart)
}

// Busy reports whether a PayCart call is still in flight.
func (s *Store) Busy() bool {
	return s.checkouts.Load() > 0
}

// AddToCart inserts book unless an item with the same id is already present.
func (s *Store) AddToCart(ctx context.Context, book Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOfLocked(book.ID) >= 0 {
		return nil
	}
	next := append(slices.Clone(s.cart), cartItemFrom(book))
	if err := s.persist(ctx, storage.KeyCartItems, next); err != nil {
		return err
	}
	s.cart = next
	s.metrics.IncMutation("add_to_cart")
	return nil
}

// RemoveFromCart drops the item with id; absent ids are a no-op.
func (s *Store) RemoveFromCart(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOfLocked(id)
	if idx < 0 {
		return nil
	}
	next := slices.Delete(slices.Clone(s.cart), idx, idx+1)
	if err := s.persist(ctx, storage.KeyCartItems, next); err != nil {
		return err
	}
	s.cart = next
	s.metrics.IncMutation("remove_from_cart")
	return nil
}

// ClearCart empties the cart unconditionally.
func (s *Store) ClearCart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked(ctx)
}

func (s *Store) clearLocked(ctx context.Context) error {
	next := []CartItem{}
	if err := s.persist(ctx, storage.KeyCartItems, next); err != nil {
		return err
	}
	s.cart = next
	s.metrics.IncMutation("clear_cart")
	return nil
}

// RentBook opens a loan due LoanPeriodDays calendar days from now.
func (s *Store) RentBook(ctx context.Context, book Book) (RentalConfirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	due := s.clock().In(s.location).AddDate(0, 0, s.loanPeriod)
	loan := LoanRecord{ID: book.ID, Title: book.Title, DueAt: due.UTC()}

	next := append(slices.Clone(s.loans), loan)
	if err := s.persist(ctx, storage.KeyLoans, next); err != nil {
		return RentalConfirmation{}, err
	}
	s.loans = next
	s.metrics.IncMutation("rent_book")

	ctx = s.logg.WithFields(ctx, map[string]any{"book_id": book.ID, "due_at": loan.DueAt})
	s.logg.Info(ctx, "transactions.loan_created")

	return RentalConfirmation{
		Loan:    loan,
		Message: fmt.Sprintf("Arriendo iniciado: \"%s\" hasta %s", book.Title, due.Format(confirmationDateLayout)),
	}, nil
}

// PayCart totals the cart as it stands at call time, waits out the simulated
// payment latency, then clears the cart. An empty cart settles with total 0
// and no further mutation.
func (s *Store) PayCart(ctx context.Context, method enums.PaymentMethod) (PaymentResult, error) {
	if method == "" {
		method = enums.DefaultPaymentMethod
	}
	if !method.IsValid() {
		return PaymentResult{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported payment method %q", method))
	}

	s.checkouts.Add(1)
	defer s.checkouts.Add(-1)

	s.mu.Lock()
	total := sumSalePrices(s.cart)
	empty := len(s.cart) == 0
	s.mu.Unlock()

	if s.latency > 0 {
		timer := time.NewTimer(s.latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return PaymentResult{}, pkgerrors.Wrap(pkgerrors.CodeCanceled, ctx.Err(), "checkout interrupted")
		case <-timer.C:
		}
	}

	if !empty {
		// The payment has settled; a late cancellation must not keep the cart.
		s.mu.Lock()
		err := s.clearLocked(context.WithoutCancel(ctx))
		s.mu.Unlock()
		if err != nil {
			return PaymentResult{}, err
		}
	}

	s.metrics.IncMutation("pay_cart")
	ctx = s.logg.WithFields(ctx, map[string]any{"method": method, "total": total.String()})
	s.logg.Info(ctx, "transactions.checkout_completed")

	return PaymentResult{OK: true, Method: method, Total: total}, nil
}

func (s *Store) indexOfLocked(id string) int {
	return slices.IndexFunc(s.cart, func(item CartItem) bool { return item.ID == id })
}

func (s *Store) persist(ctx context.Context, key string, snapshot any) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode "+key)
	}
	if err := s.slots.Save(ctx, key, payload); err != nil {
		s.metrics.IncSlotFailure(key)
		s.logg.Error(s.logg.WithField(ctx, "slot", key), "transactions.persist_failed", err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist "+key)
	}
	return nil
}
