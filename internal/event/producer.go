package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	pkgkafka "github.com/soss111/maker-set-sub000/pkg/kafka"
	"github.com/soss111/maker-set-sub000/pkg/logger"

	"github.com/soss111/maker-set-sub000/internal/domain"
)

// Kafka topic constants for cart domain events.
const (
	TopicCartUpdated = "makerset.cart.updated"
	TopicCartCleared = "makerset.cart.cleared"
	TopicCartExpired = "makerset.cart.expired"
)

// Aggregate type constant.
const AggregateTypeCart = "cart"

// Source identifier for events originating from the cart service.
const SourceCartService = "cart-service"

// CartUpdatedData is the payload for a cart.updated event.
type CartUpdatedData struct {
	UserID     string          `json:"user_id"`
	Items      []CartItemData  `json:"items"`
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Discount   decimal.Decimal `json:"discount"`
	ProviderID *int64          `json:"provider_id,omitempty"`
}

// CartItemData is the item payload within cart events.
type CartItemData struct {
	SetID     int64           `json:"set_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// CartClearedData is the payload for cart.cleared and cart.expired events.
type CartClearedData struct {
	UserID  string `json:"user_id"`
	Expired bool   `json:"expired"`
}

// Producer publishes cart domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the cart service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishCartUpdated publishes a cart.updated event.
func (p *Producer) PublishCartUpdated(ctx context.Context, cart *domain.Cart) error {
	items := make([]CartItemData, len(cart.Items))
	for i, item := range cart.Items {
		items[i] = CartItemData{
			SetID:     item.SetID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		}
	}

	data := CartUpdatedData{
		UserID:     cart.UserID,
		Items:      items,
		TotalItems: cart.TotalItems(),
		TotalPrice: cart.TotalPrice(),
		Discount:   cart.Discount,
	}
	if provider, ok := cart.Provider(); ok {
		data.ProviderID = provider.ID
	}

	event, err := pkgkafka.NewEvent(TopicCartUpdated, cart.UserID, AggregateTypeCart, SourceCartService, data)
	if err != nil {
		return fmt.Errorf("create cart.updated event: %w", err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, TopicCartUpdated, event); err != nil {
		return fmt.Errorf("publish cart.updated event: %w", err)
	}

	p.logger.DebugContext(ctx, "published cart.updated event",
		slog.String("user_id", cart.UserID),
		slog.Int("total_items", data.TotalItems),
	)

	return nil
}

// PublishCartCleared publishes a cart.cleared event, or cart.expired when the
// clear was triggered by the cart passing its deadline.
func (p *Producer) PublishCartCleared(ctx context.Context, userID string, expired bool) error {
	topic := TopicCartCleared
	if expired {
		topic = TopicCartExpired
	}

	data := CartClearedData{UserID: userID, Expired: expired}

	event, err := pkgkafka.NewEvent(topic, userID, AggregateTypeCart, SourceCartService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published cart cleared event",
		slog.String("user_id", userID),
		slog.Bool("expired", expired),
	)

	return nil
}
