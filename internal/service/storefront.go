package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/fjod/go_cart/storefront/internal/backend"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/options"
	"github.com/fjod/go_cart/storefront/internal/orders"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	actionPlaceOrder  = "place-order"
	defaultOrderLimit = 20
)

// Backend is the subset of the external catalog/order API the storefront uses.
type Backend interface {
	ListMenuItems(ctx context.Context, token string) ([]domain.MenuItem, error)
	GetMenuItem(ctx context.Context, token string, id int64) (domain.MenuItem, error)
	ListOptionGroups(ctx context.Context, token string, menuItemID int64) ([]domain.OptionGroup, error)
	PlaceOrder(ctx context.Context, token string, req domain.PlaceOrderRequest) (domain.PlaceOrderResult, error)
}

// Caller identifies the signed-in user a request acts for.
type Caller struct {
	UserID string
	Token  string
}

type AddLineInput struct {
	MenuItemID int64
	// Selections maps option group id to the chosen value id.
	Selections map[int64]int64
	Quantity   int
}

type PlaceOrderInput struct {
	ShippingAddress string
	Note            string
	PaymentMethod   string
	BranchID        int64
	IdempotencyKey  string
}

type OptionGroups struct {
	Groups []domain.OptionGroup
	// Unavailable lists groups the backend returned without values.
	Unavailable []domain.OptionGroup
}

type StorefrontService struct {
	backend  Backend
	sessions *session.Manager
	receipts orders.ReceiptStore
	logger   *zap.Logger
	now      func() time.Time
}

// NewStorefrontService wires the service. receipts may be nil, in which case orders are placed
// without idempotency records and ListOrders fails with ErrReceiptsDisabled.
func NewStorefrontService(b Backend, sessions *session.Manager, receipts orders.ReceiptStore, logger *zap.Logger) *StorefrontService {
	return &StorefrontService{
		backend:  b,
		sessions: sessions,
		receipts: receipts,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *StorefrontService) ListMenuItems(ctx context.Context, caller Caller) ([]domain.MenuItem, error) {
	sess := s.sessions.Start(caller.UserID, caller.Token)
	items, err := s.backend.ListMenuItems(ctx, sess.Token())
	if err != nil {
		return nil, s.backendFailed(ctx, caller.UserID, err)
	}
	return items, nil
}

func (s *StorefrontService) GetMenuItem(ctx context.Context, caller Caller, id int64) (domain.MenuItem, error) {
	sess := s.sessions.Start(caller.UserID, caller.Token)
	item, err := s.backend.GetMenuItem(ctx, sess.Token(), id)
	if err != nil {
		return domain.MenuItem{}, s.backendFailed(ctx, caller.UserID, err)
	}
	return item, nil
}

func (s *StorefrontService) ListOptionGroups(ctx context.Context, caller Caller, menuItemID int64) (OptionGroups, error) {
	sess := s.sessions.Start(caller.UserID, caller.Token)
	groups, err := s.backend.ListOptionGroups(ctx, sess.Token(), menuItemID)
	if err != nil {
		return OptionGroups{}, s.backendFailed(ctx, caller.UserID, err)
	}
	return OptionGroups{Groups: groups, Unavailable: options.UnavailableGroups(groups)}, nil
}

func (s *StorefrontService) GetCart(ctx context.Context, caller Caller) (domain.Cart, error) {
	return s.sessions.Start(caller.UserID, caller.Token).Cart(ctx)
}

// AddLine fetches the item and its option groups, runs the customization flow with the
// requested selections and appends a new line priced from the fetched catalog data.
func (s *StorefrontService) AddLine(ctx context.Context, caller Caller, in AddLineInput) (domain.CartLineItem, domain.Cart, error) {
	if in.Quantity > MaxQuantity {
		return domain.CartLineItem{}, domain.Cart{}, ErrQuantityLimit
	}
	sess := s.sessions.Start(caller.UserID, caller.Token)
	generation := sess.Generation()

	item, err := s.backend.GetMenuItem(ctx, sess.Token(), in.MenuItemID)
	if err != nil {
		return domain.CartLineItem{}, domain.Cart{}, s.backendFailed(ctx, caller.UserID, err)
	}

	c := options.NewCustomization()
	if err := c.Open(item); err != nil {
		return domain.CartLineItem{}, domain.Cart{}, err
	}

	groups, err := s.backend.ListOptionGroups(ctx, sess.Token(), in.MenuItemID)
	if err != nil {
		c.Cancel()
		return domain.CartLineItem{}, domain.Cart{}, s.backendFailed(ctx, caller.UserID, err)
	}
	if err := c.OptionsLoaded(groups); err != nil {
		return domain.CartLineItem{}, domain.Cart{}, err
	}

	commit, err := confirmSelections(c, in)
	if err != nil {
		c.Cancel()
		return domain.CartLineItem{}, domain.Cart{}, err
	}

	if err := ctx.Err(); err != nil {
		return domain.CartLineItem{}, domain.Cart{}, err
	}

	var line domain.CartLineItem
	snapshot, err := sess.Mutate(ctx, generation, func(c *cart.Cart) error {
		line = c.AddLine(commit.Item, commit.Options, commit.Quantity)
		return nil
	})
	if err != nil {
		return domain.CartLineItem{}, domain.Cart{}, err
	}

	s.logger.Debug("line added",
		zap.String("user_id", caller.UserID),
		zap.String("line_id", line.ID),
		zap.Int64("menu_item_id", item.ID),
		zap.Int64("total_price", int64(snapshot.TotalPrice)))
	return line, snapshot, nil
}

func confirmSelections(c *options.Customization, in AddLineInput) (options.Commit, error) {
	groupIDs := make([]int64, 0, len(in.Selections))
	for groupID := range in.Selections {
		groupIDs = append(groupIDs, groupID)
	}
	slices.Sort(groupIDs)

	for _, groupID := range groupIDs {
		if err := c.Select(groupID, in.Selections[groupID]); err != nil {
			return options.Commit{}, err
		}
	}
	if err := c.SetQuantity(in.Quantity); err != nil {
		return options.Commit{}, err
	}
	return c.Confirm()
}

func (s *StorefrontService) UpdateQuantity(ctx context.Context, caller Caller, lineID string, quantity int) (domain.Cart, error) {
	if quantity > MaxQuantity {
		return domain.Cart{}, ErrQuantityLimit
	}
	return s.mutate(ctx, caller, func(c *cart.Cart) error {
		return c.UpdateQuantity(lineID, quantity)
	})
}

func (s *StorefrontService) Increment(ctx context.Context, caller Caller, lineID string) (domain.Cart, error) {
	return s.mutate(ctx, caller, func(c *cart.Cart) error {
		line, err := c.Line(lineID)
		if err != nil {
			return err
		}
		if line.Quantity >= MaxQuantity {
			return ErrQuantityLimit
		}
		return c.Increment(lineID)
	})
}

func (s *StorefrontService) Decrement(ctx context.Context, caller Caller, lineID string) (domain.Cart, error) {
	return s.mutate(ctx, caller, func(c *cart.Cart) error {
		return c.Decrement(lineID)
	})
}

func (s *StorefrontService) RemoveLine(ctx context.Context, caller Caller, lineID string) (domain.Cart, error) {
	return s.mutate(ctx, caller, func(c *cart.Cart) error {
		return c.RemoveLine(lineID)
	})
}

func (s *StorefrontService) ResetCart(ctx context.Context, caller Caller) (domain.Cart, error) {
	s.sessions.Start(caller.UserID, caller.Token)
	if err := s.sessions.ResetCart(ctx, caller.UserID); err != nil {
		return domain.Cart{}, fmt.Errorf("reset cart: %w", err)
	}
	return s.GetCart(ctx, caller)
}

func (s *StorefrontService) mutate(ctx context.Context, caller Caller, fn func(c *cart.Cart) error) (domain.Cart, error) {
	sess := s.sessions.Start(caller.UserID, caller.Token)
	return sess.Mutate(ctx, sess.Generation(), fn)
}

// PlaceOrder submits the current cart. A second submission while one is running fails with
// session.ErrInFlight. Repeating a finished submission with the same idempotency key returns
// the original receipt without contacting the backend again. On success the ordered lines
// leave the cart; lines added while the order was placed stay.
func (s *StorefrontService) PlaceOrder(ctx context.Context, caller Caller, in PlaceOrderInput) (domain.OrderReceipt, error) {
	sess := s.sessions.Start(caller.UserID, caller.Token)

	release, err := sess.Begin(actionPlaceOrder)
	if err != nil {
		return domain.OrderReceipt{}, err
	}
	defer release()

	if in.IdempotencyKey == "" {
		in.IdempotencyKey = uuid.New().String()
	}
	existing, err := s.lookupReceipt(ctx, caller.UserID, in.IdempotencyKey)
	if err != nil {
		return domain.OrderReceipt{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	if in.ShippingAddress == "" {
		return domain.OrderReceipt{}, ErrMissingAddress
	}
	if in.PaymentMethod == "" {
		return domain.OrderReceipt{}, ErrMissingPayment
	}

	current, err := sess.Cart(ctx)
	if err != nil {
		return domain.OrderReceipt{}, err
	}
	if len(current.Items) == 0 {
		return domain.OrderReceipt{}, ErrEmptyCart
	}

	result, err := s.backend.PlaceOrder(ctx, sess.Token(), domain.PlaceOrderRequest{
		CartID:          current.ID,
		ShippingAddress: in.ShippingAddress,
		Note:            in.Note,
		PaymentMethod:   in.PaymentMethod,
		UserID:          caller.UserID,
		BranchID:        in.BranchID,
	})
	if err != nil {
		return domain.OrderReceipt{}, s.backendFailed(ctx, caller.UserID, err)
	}

	receipt := domain.OrderReceipt{
		IdempotencyKey: in.IdempotencyKey,
		UserID:         caller.UserID,
		CartID:         current.ID,
		OrderCode:      result.OrderCode,
		TotalPrice:     current.TotalPrice,
		ItemCount:      len(current.Items),
		CreatedAt:      s.now().UTC(),
	}

	// The backend accepted the order; local bookkeeping finishes even if the caller went away.
	bookkeeping := context.WithoutCancel(ctx)
	if s.receipts != nil {
		if err := s.receipts.SaveReceipt(bookkeeping, &receipt); err != nil {
			s.logger.Error("save order receipt failed",
				zap.String("user_id", caller.UserID),
				zap.String("order_code", receipt.OrderCode),
				zap.Error(err))
		}
	}
	left, err := s.sessions.SettleOrder(bookkeeping, caller.UserID, current)
	if err != nil {
		s.logger.Error("reset cart after order failed", zap.String("user_id", caller.UserID), zap.Error(err))
	} else if len(left.Items) > 0 {
		s.logger.Info("lines added during order kept in cart",
			zap.String("user_id", caller.UserID),
			zap.Int("lines", len(left.Items)))
	}

	s.logger.Info("order placed",
		zap.String("user_id", caller.UserID),
		zap.String("order_code", receipt.OrderCode),
		zap.Int64("total_price", int64(receipt.TotalPrice)))
	return receipt, nil
}

func (s *StorefrontService) lookupReceipt(ctx context.Context, userID, key string) (*domain.OrderReceipt, error) {
	if s.receipts == nil {
		return nil, nil
	}
	existing, err := s.receipts.GetByIdempotencyKey(ctx, key)
	if errors.Is(err, orders.ErrReceiptNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup idempotency key: %w", err)
	}
	if existing.UserID != userID {
		return nil, ErrKeyOwnedByOther
	}
	return existing, nil
}

func (s *StorefrontService) ListOrders(ctx context.Context, caller Caller, limit int) ([]domain.OrderReceipt, error) {
	if s.receipts == nil {
		return nil, ErrReceiptsDisabled
	}
	if limit <= 0 {
		limit = defaultOrderLimit
	}
	return s.receipts.ListByUser(ctx, caller.UserID, limit)
}

func (s *StorefrontService) Logout(ctx context.Context, caller Caller) error {
	return s.sessions.End(ctx, caller.UserID, "logout")
}

// TokenExpired ends the session when token, now expired, is still its credential.
func (s *StorefrontService) TokenExpired(ctx context.Context, userID, token string) error {
	_, err := s.sessions.EndIfToken(context.WithoutCancel(ctx), userID, token, "token expired")
	return err
}

// backendFailed ends the session when the backend reports expired credentials.
func (s *StorefrontService) backendFailed(ctx context.Context, userID string, err error) error {
	if errors.Is(err, backend.ErrAuthExpired) {
		if endErr := s.sessions.End(context.WithoutCancel(ctx), userID, "auth expired"); endErr != nil {
			s.logger.Error("end session failed", zap.String("user_id", userID), zap.Error(endErr))
		}
	}
	return err
}
