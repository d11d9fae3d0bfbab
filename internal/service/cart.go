package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/soss111/maker-set-sub000/pkg/errors"

	"github.com/soss111/maker-set-sub000/internal/domain"
	"github.com/soss111/maker-set-sub000/internal/repository"
)

// Cart operation upper-bound limits to prevent abuse.
const (
	// MaxQuantityPerItem is the maximum quantity allowed for a single cart line.
	MaxQuantityPerItem = 100
	// MaxItemsPerCart is the maximum number of distinct sets allowed in a cart.
	MaxItemsPerCart = 50
)

// CatalogGateway fetches set descriptors.
type CatalogGateway interface {
	GetSet(ctx context.Context, setID int64) (*domain.Set, error)
}

// InventoryGateway manages stock reservations and checkout validation.
type InventoryGateway interface {
	Reserve(ctx context.Context, userID string, setID int64, quantity int) error
	Release(ctx context.Context, userID string, setID int64, quantity int) error
	ReleaseAll(ctx context.Context, userID string) error
	ValidateStock(ctx context.Context, items []domain.StockCheckItem) (*domain.StockValidation, error)
}

// EventPublisher publishes cart domain events.
type EventPublisher interface {
	PublishCartUpdated(ctx context.Context, cart *domain.Cart) error
	PublishCartCleared(ctx context.Context, userID string, expired bool) error
}

// AddItemInput holds the parameters for adding a set to the cart.
type AddItemInput struct {
	SetID    int64
	Quantity int
}

// ApplyDiscountInput holds the parameters for applying a discount.
type ApplyDiscountInput struct {
	Code   string
	Amount decimal.Decimal
}

// ExpiryCheckResult reports the outcome of an expiry check.
type ExpiryCheckResult struct {
	Expired bool         `json:"expired"`
	Cart    *domain.Cart `json:"cart"`
}

// CartService implements the business logic for cart operations.
type CartService struct {
	repo         repository.CartRepository
	catalog      CatalogGateway
	inventory    InventoryGateway
	producer     EventPublisher
	logger       *slog.Logger
	cartTTL      time.Duration
	shippingCost decimal.Decimal
}

// NewCartService creates a new cart service. shippingCost is the flat
// handling fee resolved once at startup.
func NewCartService(
	repo repository.CartRepository,
	catalog CatalogGateway,
	inventory InventoryGateway,
	producer EventPublisher,
	logger *slog.Logger,
	cartTTL time.Duration,
	shippingCost decimal.Decimal,
) *CartService {
	return &CartService{
		repo:         repo,
		catalog:      catalog,
		inventory:    inventory,
		producer:     producer,
		logger:       logger,
		cartTTL:      cartTTL,
		shippingCost: shippingCost,
	}
}

// ShippingCost returns the flat handling fee the service applies.
func (s *CartService) ShippingCost() decimal.Decimal {
	return s.shippingCost
}

// GetCart retrieves the cart for a user. A missing, expired, or unreadable
// cart yields a fresh empty one. Line totals and the handling fee are
// recomputed on every load; stored totals are never trusted.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}

	cart, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.normalize(cart)

	return cart, nil
}

// AddItem adds a set to the user's cart, snapshotting the catalog data at add
// time. An existing line for the same set merges by increasing quantity.
func (s *CartService) AddItem(ctx context.Context, userID string, input AddItemInput) (cart *domain.Cart, err error) {
	defer func() { observeOp("add_item", err) }()

	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	if input.SetID == domain.HandlingFeeSetID {
		return nil, apperrors.InvalidInput("the handling fee cannot be added directly")
	}
	if input.SetID <= 0 {
		return nil, apperrors.InvalidInput("set id is required")
	}
	if input.Quantity <= 0 {
		return nil, apperrors.InvalidInput("quantity must be greater than 0")
	}
	if input.Quantity > MaxQuantityPerItem {
		return nil, apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", MaxQuantityPerItem))
	}

	set, err := s.catalog.GetSet(ctx, input.SetID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("set", fmt.Sprintf("%d", input.SetID))
		}
		return nil, fmt.Errorf("fetch set %d: %w", input.SetID, err)
	}

	if len(set.Parts) == 0 {
		return nil, apperrors.Unprocessable("PARTS_NOT_CONFIGURED",
			fmt.Sprintf("set %q has no parts configured and cannot be purchased", set.Name))
	}
	if len(set.RequiredParts()) == 0 {
		return nil, apperrors.Unprocessable("NO_REQUIRED_PARTS",
			fmt.Sprintf("set %q has no required parts and cannot be purchased", set.Name))
	}

	cart, err = s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	if item, ok := cart.FirstRealItem(); ok && !domain.SameProvider(item.ProviderID, set.ProviderID) {
		providerConflictsTotal.Inc()
		return nil, apperrors.Conflict(
			fmt.Sprintf("your cart contains items from %s; complete or clear that order before adding items from %s",
				providerDisplayName(item.ProviderID, domain.ResolveProviderName(item)),
				providerDisplayName(set.ProviderID, domain.ResolveProviderName(&domain.CartItem{
					ProviderID:      set.ProviderID,
					ProviderCompany: set.ProviderCompany,
					ProviderName:    set.ProviderName,
					ProviderCode:    set.ProviderCode,
				})),
			),
		).WithCode("PROVIDER_CONFLICT")
	}

	if idx := cart.FindItemIndex(input.SetID); idx >= 0 {
		newQty := cart.Items[idx].Quantity + input.Quantity
		if newQty > MaxQuantityPerItem {
			return nil, apperrors.InvalidInput(fmt.Sprintf("combined quantity must not exceed %d", MaxQuantityPerItem))
		}
		// The add-time snapshot stays; a merge only grows the quantity.
		cart.Items[idx].Quantity = newQty
		cart.Items[idx].RecalculateTotal()
	} else {
		if cart.RealItemCount() >= MaxItemsPerCart {
			return nil, apperrors.InvalidInput(fmt.Sprintf("cart must not contain more than %d items", MaxItemsPerCart))
		}
		cart.Items = append(cart.Items, set.NewCartItem(input.Quantity))
	}

	s.tryReserve(ctx, userID, input.SetID, input.Quantity)

	if err := s.saveCart(ctx, cart); err != nil {
		return nil, err
	}

	s.publishUpdated(ctx, cart)

	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("user_id", userID),
		slog.Int64("set_id", input.SetID),
		slog.Int("quantity", input.Quantity),
	)

	return cart, nil
}

// UpdateItemQuantity sets the quantity of a cart line. A quantity of zero or
// less removes the line.
func (s *CartService) UpdateItemQuantity(ctx context.Context, userID string, setID int64, quantity int) (cart *domain.Cart, err error) {
	defer func() { observeOp("update_quantity", err) }()

	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	if setID == domain.HandlingFeeSetID {
		return nil, apperrors.InvalidInput("the handling fee cannot be modified directly")
	}
	if quantity > MaxQuantityPerItem {
		return nil, apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", MaxQuantityPerItem))
	}

	if quantity <= 0 {
		return s.RemoveItem(ctx, userID, setID)
	}

	cart, err = s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	idx := cart.FindItemIndex(setID)
	if idx < 0 {
		return nil, apperrors.NotFound("cart item", fmt.Sprintf("%d", setID))
	}

	delta := quantity - cart.Items[idx].Quantity
	cart.Items[idx].Quantity = quantity
	cart.Items[idx].RecalculateTotal()

	switch {
	case delta > 0:
		s.tryReserve(ctx, userID, setID, delta)
	case delta < 0:
		s.tryRelease(ctx, userID, setID, -delta)
	}

	if err := s.saveCart(ctx, cart); err != nil {
		return nil, err
	}

	s.publishUpdated(ctx, cart)

	s.logger.InfoContext(ctx, "cart item quantity updated",
		slog.String("user_id", userID),
		slog.Int64("set_id", setID),
		slog.Int("quantity", quantity),
	)

	return cart, nil
}

// RemoveItem removes a single line from the cart and releases its
// reservation. Removing a line that is not there is a no-op. Removing the
// last real line also drops the handling fee.
func (s *CartService) RemoveItem(ctx context.Context, userID string, setID int64) (cart *domain.Cart, err error) {
	defer func() { observeOp("remove_item", err) }()

	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	if setID == domain.HandlingFeeSetID {
		return nil, apperrors.InvalidInput("the handling fee cannot be removed directly")
	}

	cart, err = s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	idx := cart.FindItemIndex(setID)
	if idx < 0 {
		s.normalize(cart)
		return cart, nil
	}

	released := cart.Items[idx].Quantity
	cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)

	s.tryRelease(ctx, userID, setID, released)

	if err := s.saveCart(ctx, cart); err != nil {
		return nil, err
	}

	s.publishUpdated(ctx, cart)

	s.logger.InfoContext(ctx, "item removed from cart",
		slog.String("user_id", userID),
		slog.Int64("set_id", setID),
	)

	return cart, nil
}

// ClearCart removes all items from the user's cart. A discount already
// applied stays on the cart so it survives into a new basket.
func (s *CartService) ClearCart(ctx context.Context, userID string) (cart *domain.Cart, err error) {
	defer func() { observeOp("clear_cart", err) }()

	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}

	cart, err = s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	cart.Items = nil

	if err := s.inventory.ReleaseAll(ctx, userID); err != nil {
		s.logger.WarnContext(ctx, "failed to release reservations",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	if cart.Discount.IsZero() && cart.DiscountCode == nil {
		if err := s.repo.Delete(ctx, userID); err != nil {
			return nil, fmt.Errorf("delete cart: %w", err)
		}
	} else {
		if err := s.saveCart(ctx, cart); err != nil {
			return nil, err
		}
	}

	if err := s.producer.PublishCartCleared(ctx, userID, false); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.cleared event",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "cart cleared",
		slog.String("user_id", userID),
	)

	return cart, nil
}

// ApplyDiscount attaches a discount to the cart.
func (s *CartService) ApplyDiscount(ctx context.Context, userID string, input ApplyDiscountInput) (cart *domain.Cart, err error) {
	defer func() { observeOp("apply_discount", err) }()

	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	if input.Code == "" {
		return nil, apperrors.InvalidInput("discount code is required")
	}
	if input.Amount.IsNegative() {
		return nil, apperrors.InvalidInput("discount amount must not be negative")
	}

	cart, err = s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	code := input.Code
	cart.Discount = input.Amount
	cart.DiscountCode = &code

	if err := s.saveCart(ctx, cart); err != nil {
		return nil, err
	}

	s.publishUpdated(ctx, cart)

	s.logger.InfoContext(ctx, "discount applied",
		slog.String("user_id", userID),
		slog.String("code", code),
	)

	return cart, nil
}

// RemoveDiscount detaches any discount from the cart.
func (s *CartService) RemoveDiscount(ctx context.Context, userID string) (cart *domain.Cart, err error) {
	defer func() { observeOp("remove_discount", err) }()

	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}

	cart, err = s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	cart.Discount = decimal.Zero
	cart.DiscountCode = nil

	if len(cart.Items) == 0 {
		if err := s.repo.Delete(ctx, userID); err != nil {
			return nil, fmt.Errorf("delete cart: %w", err)
		}
	} else {
		if err := s.saveCart(ctx, cart); err != nil {
			return nil, err
		}
	}

	s.publishUpdated(ctx, cart)

	s.logger.InfoContext(ctx, "discount removed",
		slog.String("user_id", userID),
	)

	return cart, nil
}

// ValidateStock runs the authoritative checkout-time stock check. An empty
// cart validates trivially without calling the inventory service.
func (s *CartService) ValidateStock(ctx context.Context, userID string) (validation *domain.StockValidation, err error) {
	defer func() { observeOp("validate_stock", err) }()

	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}

	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := cart.StockCheckItems()
	if len(items) == 0 {
		return &domain.StockValidation{Valid: true}, nil
	}

	result, err := s.inventory.ValidateStock(ctx, items)
	if err != nil {
		s.logger.ErrorContext(ctx, "stock validation failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, apperrors.BadGateway("STOCK_VALIDATION_FAILED",
			"stock could not be validated, please try again")
	}

	return result, nil
}

// CheckExpiry clears the cart if it has passed its deadline and reports
// whether it did. The returned cart is the post-check state.
func (s *CartService) CheckExpiry(ctx context.Context, userID string) (*ExpiryCheckResult, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}

	cart, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return &ExpiryCheckResult{Expired: false, Cart: s.newEmptyCart(userID)}, nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	if !cart.IsExpired(time.Now().UTC()) {
		if !cart.ValidateSingleProvider() {
			s.discardMixedProviders(ctx, userID)
			return &ExpiryCheckResult{Expired: false, Cart: s.newEmptyCart(userID)}, nil
		}
		s.normalize(cart)
		return &ExpiryCheckResult{Expired: false, Cart: cart}, nil
	}

	s.discardExpired(ctx, cart)

	return &ExpiryCheckResult{Expired: true, Cart: s.newEmptyCart(userID)}, nil
}

// loadCart fetches the user's cart. Every read and write path loads through
// here: a missing cart yields a fresh empty one, an expired cart is cleared,
// and a stored cart mixing providers is discarded so it can never flow into
// a mutation or back to Redis.
func (s *CartService) loadCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return s.newEmptyCart(userID), nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	if cart.IsExpired(time.Now().UTC()) {
		s.discardExpired(ctx, cart)
		return s.newEmptyCart(userID), nil
	}

	if !cart.ValidateSingleProvider() {
		s.discardMixedProviders(ctx, userID)
		return s.newEmptyCart(userID), nil
	}

	return cart, nil
}

// discardMixedProviders deletes a stored cart that violates provider
// homogeneity. Deletion failure is logged; the caller proceeds with a fresh
// cart either way.
func (s *CartService) discardMixedProviders(ctx context.Context, userID string) {
	s.logger.WarnContext(ctx, "discarding cart with mixed providers",
		slog.String("user_id", userID),
	)
	if err := s.repo.Delete(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "failed to delete corrupt cart",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

// saveCart recomputes derived state, refreshes the expiry window, and
// persists the cart. Last writer wins.
func (s *CartService) saveCart(ctx context.Context, cart *domain.Cart) error {
	s.normalize(cart)

	now := time.Now().UTC()
	cart.UpdatedAt = now
	cart.ExpiresAt = now.Add(s.cartTTL)

	if err := s.repo.Save(ctx, cart); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

// normalize recomputes line totals and the handling fee.
func (s *CartService) normalize(cart *domain.Cart) {
	for i := range cart.Items {
		cart.Items[i].RecalculateTotal()
	}
	cart.RecalculateHandlingFee(s.shippingCost)
}

// discardExpired deletes an expired cart, releases its reservations, and
// publishes a cart.expired event. All failures are logged, not returned;
// the caller proceeds with a fresh cart either way.
func (s *CartService) discardExpired(ctx context.Context, cart *domain.Cart) {
	userID := cart.UserID

	if err := s.repo.Delete(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "failed to delete expired cart",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.inventory.ReleaseAll(ctx, userID); err != nil {
		s.logger.WarnContext(ctx, "failed to release reservations for expired cart",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.producer.PublishCartCleared(ctx, userID, true); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.expired event",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	cartsExpiredTotal.Inc()

	s.logger.InfoContext(ctx, "expired cart discarded",
		slog.String("user_id", userID),
		slog.Time("expired_at", cart.ExpiresAt),
	)
}

// providerDisplayName resolves a provider identity to something a user can
// read in a conflict message.
func providerDisplayName(providerID *int64, resolved string) string {
	if providerID == nil {
		return domain.PlatformProviderName
	}
	if resolved == "" {
		return domain.UnknownProviderName
	}
	return resolved
}

// tryReserve asks the inventory service for a soft hold on stock. Reservation
// is optimistic; a failure is logged and the add proceeds, because the
// checkout-time validation is authoritative.
func (s *CartService) tryReserve(ctx context.Context, userID string, setID int64, quantity int) {
	if err := s.inventory.Reserve(ctx, userID, setID, quantity); err != nil {
		reservationSoftFailuresTotal.Inc()
		s.logger.WarnContext(ctx, "stock reservation failed",
			slog.String("user_id", userID),
			slog.Int64("set_id", setID),
			slog.Int("quantity", quantity),
			slog.String("error", err.Error()),
		)
	}
}

// tryRelease returns reserved stock, best effort.
func (s *CartService) tryRelease(ctx context.Context, userID string, setID int64, quantity int) {
	if err := s.inventory.Release(ctx, userID, setID, quantity); err != nil {
		s.logger.WarnContext(ctx, "stock release failed",
			slog.String("user_id", userID),
			slog.Int64("set_id", setID),
			slog.Int("quantity", quantity),
			slog.String("error", err.Error()),
		)
	}
}

// publishUpdated emits a cart.updated event, best effort.
func (s *CartService) publishUpdated(ctx context.Context, cart *domain.Cart) {
	if err := s.producer.PublishCartUpdated(ctx, cart); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.updated event",
			slog.String("user_id", cart.UserID),
			slog.String("error", err.Error()),
		)
	}
}

// newEmptyCart creates a new empty cart for the given user.
func (s *CartService) newEmptyCart(userID string) *domain.Cart {
	now := time.Now().UTC()
	return &domain.Cart{
		UserID:    userID,
		Items:     []domain.CartItem{},
		Discount:  decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.cartTTL),
	}
}
