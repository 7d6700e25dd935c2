package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/farmconnect/marketplace-api/internal/core/domain"
)

type OrderRepository struct {
	col *mongo.Collection
}

func NewOrderRepository(db *mongo.Database) *OrderRepository {
	return &OrderRepository{col: db.Collection(collectionOrders)}
}

type mongoOrderLine struct {
	ProductID primitive.ObjectID `bson:"product_id"`
	Quantity  int                `bson:"quantity"`
	Price     float64            `bson:"price"`
}

type mongoHistoryEntry struct {
	Status    string    `bson:"status"`
	Timestamp time.Time `bson:"timestamp"`
	ActorID   string    `bson:"actor_id,omitempty"`
}

type mongoOrder struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty"`
	BuyerID         primitive.ObjectID  `bson:"buyer_id"`
	SellerID        primitive.ObjectID  `bson:"seller_id"`
	Products        []mongoOrderLine    `bson:"products"`
	TotalAmount     float64             `bson:"total_amount"`
	Status          string              `bson:"status"`
	DeliveryAddress string              `bson:"delivery_address"`
	ContactNumber   string              `bson:"contact_number"`
	StatusHistory   []mongoHistoryEntry `bson:"status_history"`
	CreatedAt       time.Time           `bson:"created_at"`
	UpdatedAt       time.Time           `bson:"updated_at"`
}

func historyDoc(e domain.StatusHistoryEntry) mongoHistoryEntry {
	return mongoHistoryEntry{Status: string(e.Status), Timestamp: e.Timestamp.UTC(), ActorID: e.ActorID}
}

func toMongoOrder(o *domain.Order) (*mongoOrder, error) {
	buyer, err := primitive.ObjectIDFromHex(o.BuyerID)
	if err != nil {
		return nil, fmt.Errorf("invalid buyer reference %q: %w", o.BuyerID, err)
	}
	seller, err := primitive.ObjectIDFromHex(o.SellerID)
	if err != nil {
		return nil, fmt.Errorf("invalid seller reference %q: %w", o.SellerID, err)
	}

	doc := &mongoOrder{
		ID:              primitive.NewObjectID(),
		BuyerID:         buyer,
		SellerID:        seller,
		Products:        make([]mongoOrderLine, 0, len(o.Lines)),
		TotalAmount:     o.TotalAmount,
		Status:          string(o.Status),
		DeliveryAddress: o.DeliveryAddress,
		ContactNumber:   o.ContactNumber,
		StatusHistory:   make([]mongoHistoryEntry, 0, len(o.StatusHistory)),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	for _, l := range o.Lines {
		pid, err := primitive.ObjectIDFromHex(l.ProductID)
		if err != nil {
			return nil, fmt.Errorf("invalid product reference %q: %w", l.ProductID, err)
		}
		doc.Products = append(doc.Products, mongoOrderLine{ProductID: pid, Quantity: l.Quantity, Price: l.Price})
	}
	for _, h := range o.StatusHistory {
		doc.StatusHistory = append(doc.StatusHistory, historyDoc(h))
	}
	return doc, nil
}

func (mo *mongoOrder) toDomain() *domain.Order {
	o := &domain.Order{
		ID:              mo.ID.Hex(),
		BuyerID:         hexOrEmpty(mo.BuyerID),
		SellerID:        hexOrEmpty(mo.SellerID),
		Lines:           make([]domain.OrderLine, 0, len(mo.Products)),
		TotalAmount:     mo.TotalAmount,
		Status:          domain.OrderStatus(mo.Status),
		DeliveryAddress: mo.DeliveryAddress,
		ContactNumber:   mo.ContactNumber,
		StatusHistory:   make([]domain.StatusHistoryEntry, 0, len(mo.StatusHistory)),
		CreatedAt:       mo.CreatedAt.UTC(),
		UpdatedAt:       mo.UpdatedAt.UTC(),
	}
	for _, l := range mo.Products {
		o.Lines = append(o.Lines, domain.OrderLine{ProductID: hexOrEmpty(l.ProductID), Quantity: l.Quantity, Price: l.Price})
	}
	for _, h := range mo.StatusHistory {
		o.StatusHistory = append(o.StatusHistory, domain.StatusHistoryEntry{
			Status:    domain.OrderStatus(h.Status),
			Timestamp: h.Timestamp.UTC(),
			ActorID:   h.ActorID,
		})
	}
	return o
}

// Create inserts a new order document and sets o.ID.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) error {
	doc, err := toMongoOrder(o)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	o.ID = doc.ID.Hex()
	return nil
}

// FindByID returns ErrOrderNotFound for unknown or malformed IDs.
func (r *OrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrOrderNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mo mongoOrder
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&mo); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("find order: %w", err)
	}
	return mo.toDomain(), nil
}

func (r *OrderRepository) ListByBuyer(ctx context.Context, buyerID string) ([]*domain.Order, error) {
	return r.listBy(ctx, "buyer_id", buyerID)
}

func (r *OrderRepository) ListBySeller(ctx context.Context, sellerID string) ([]*domain.Order, error) {
	return r.listBy(ctx, "seller_id", sellerID)
}

func (r *OrderRepository) listBy(ctx context.Context, field, id string) ([]*domain.Order, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return []*domain.Order{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := r.col.Find(ctx, bson.M{field: oid}, opts)
	if err != nil {
		return nil, fmt.Errorf("find orders: %w", err)
	}
	var docs []mongoOrder
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}

	out := make([]*domain.Order, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toDomain())
	}
	return out, nil
}

// UpdateStatus atomically sets the new status and appends a history entry,
// conditional on the stored status still being `from`.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, entry domain.StatusHistoryEntry) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, domain.ErrOrderNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": oid, "status": string(from)},
		bson.M{
			"$set":  bson.M{"status": string(to), "updated_at": entry.Timestamp.UTC()},
			"$push": bson.M{"status_history": historyDoc(entry)},
		},
	)
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}
	return res.MatchedCount == 1, nil
}
