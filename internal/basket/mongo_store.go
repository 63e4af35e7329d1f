package basket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mvoss/storefront/internal/domain"
)

// basketDoc is the persisted shape of a basket. Prices are stored as
// strings to keep decimal values exact in BSON.
type basketDoc struct {
	SessionID     string    `bson:"session_id"`
	Lines         []lineDoc `bson:"lines"`
	DeliveryPrice string    `bson:"delivery_price"`
	CreatedAt     time.Time `bson:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

type lineDoc struct {
	ProductID int64     `bson:"product_id"`
	Title     string    `bson:"title"`
	UnitPrice string    `bson:"unit_price"`
	Quantity  int       `bson:"quantity"`
	AddedAt   time.Time `bson:"added_at"`
}

func (d *basketDoc) toDomain() (*domain.Basket, error) {
	deliveryPrice := decimal.Zero
	if d.DeliveryPrice != "" {
		var err error
		deliveryPrice, err = decimal.NewFromString(d.DeliveryPrice)
		if err != nil {
			return nil, fmt.Errorf("invalid delivery price %q: %w", d.DeliveryPrice, err)
		}
	}

	b := &domain.Basket{
		SessionID:     d.SessionID,
		DeliveryPrice: deliveryPrice,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
	for _, l := range d.Lines {
		price, err := decimal.NewFromString(l.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("invalid unit price %q for product %d: %w", l.UnitPrice, l.ProductID, err)
		}
		b.Lines = append(b.Lines, domain.Line{
			ProductID: l.ProductID,
			Title:     l.Title,
			UnitPrice: price,
			Quantity:  l.Quantity,
			AddedAt:   l.AddedAt,
		})
	}
	return b, nil
}

type MongoStore struct {
	collection *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		collection: db.Collection("baskets"),
	}
}

func (m *MongoStore) Get(ctx context.Context, sessionID string) (*domain.Basket, error) {
	var doc basketDoc

	filter := bson.M{"session_id": sessionID}
	err := m.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrBasketNotFound
		}
		return nil, fmt.Errorf("failed to get basket: %w", err)
	}

	return doc.toDomain()
}

// AddLine is cumulative: an existing line's quantity is incremented, a new
// line is appended with the given unit price.
func (m *MongoStore) AddLine(ctx context.Context, sessionID string, line domain.Line) error {
	now := time.Now()
	filter := bson.M{"session_id": sessionID}

	var existing basketDoc
	err := m.collection.FindOne(ctx, filter).Decode(&existing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			doc := basketDoc{
				SessionID: sessionID,
				Lines: []lineDoc{{
					ProductID: line.ProductID,
					Title:     line.Title,
					UnitPrice: line.UnitPrice.String(),
					Quantity:  line.Quantity,
					AddedAt:   now,
				}},
				DeliveryPrice: "0",
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			if _, e2 := m.collection.InsertOne(ctx, doc); e2 != nil {
				return fmt.Errorf("failed to create basket with line: %w", e2)
			}
			return nil
		}
		return fmt.Errorf("failed to check existing basket: %w", err)
	}

	lineExists := false
	for _, l := range existing.Lines {
		if l.ProductID == line.ProductID {
			lineExists = true
			break
		}
	}

	if lineExists {
		// The captured unit price is kept; only the quantity grows.
		update := bson.M{
			"$inc": bson.M{"lines.$[elem].quantity": line.Quantity},
			"$set": bson.M{"updated_at": now},
		}
		arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{
				bson.M{"elem.product_id": line.ProductID},
			},
		})
		if _, e2 := m.collection.UpdateOne(ctx, filter, update, arrayFilters); e2 != nil {
			return fmt.Errorf("failed to increment existing line: %w", e2)
		}
		return nil
	}

	update := bson.M{
		"$push": bson.M{"lines": lineDoc{
			ProductID: line.ProductID,
			Title:     line.Title,
			UnitPrice: line.UnitPrice.String(),
			Quantity:  line.Quantity,
			AddedAt:   now,
		}},
		"$set": bson.M{"updated_at": now},
	}
	if _, e2 := m.collection.UpdateOne(ctx, filter, update); e2 != nil {
		return fmt.Errorf("failed to add new line: %w", e2)
	}
	return nil
}

func (m *MongoStore) SetLineQuantity(ctx context.Context, sessionID string, productID int64, quantity int) error {
	filter := bson.M{
		"session_id":       sessionID,
		"lines.product_id": productID,
	}
	update := bson.M{
		"$set": bson.M{
			"lines.$[elem].quantity": quantity,
			"updated_at":             time.Now(),
		},
	}
	arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{
			bson.M{"elem.product_id": productID},
		},
	})

	result, err := m.collection.UpdateOne(ctx, filter, update, arrayFilters)
	if err != nil {
		return fmt.Errorf("failed to set line quantity: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrLineNotFound
	}
	return nil
}

func (m *MongoStore) RemoveLine(ctx context.Context, sessionID string, productID int64) error {
	filter := bson.M{"session_id": sessionID}
	update := bson.M{
		"$pull": bson.M{
			"lines": bson.M{"product_id": productID},
		},
		"$set": bson.M{"updated_at": time.Now()},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to remove line: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrBasketNotFound
	}
	return nil
}

func (m *MongoStore) SetDeliveryPrice(ctx context.Context, sessionID string, price decimal.Decimal) error {
	filter := bson.M{"session_id": sessionID}
	update := bson.M{
		"$set": bson.M{
			"delivery_price": price.String(),
			"updated_at":     time.Now(),
		},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to set delivery price: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrBasketNotFound
	}
	return nil
}

// Clear empties the basket but keeps the session document, so the session
// keeps its TTL window.
func (m *MongoStore) Clear(ctx context.Context, sessionID string) error {
	filter := bson.M{"session_id": sessionID}
	update := bson.M{
		"$set": bson.M{
			"lines":          []lineDoc{},
			"delivery_price": "0",
			"updated_at":     time.Now(),
		},
	}

	if _, err := m.collection.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to clear basket: %w", err)
	}
	return nil
}

func (m *MongoStore) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(14 * 24 * 60 * 60), // 14 days TTL
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
