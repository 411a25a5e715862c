package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
	"storefront/internal/domain"
)

const mongoCollection = "carts"

type mongoCart struct {
	SessionID string            `bson:"_id"`
	Items     []domain.LineItem `bson:"items"`
	UpdatedAt time.Time         `bson:"updated_at"`
}

// Mongo stores one document per session in the carts collection.
type Mongo struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

func NewMongo(db *mongo.Database, logger *zap.Logger) *Mongo {
	return &Mongo{collection: db.Collection(mongoCollection), logger: orNop(logger)}
}

// ConnectMongo opens a client and verifies it with a ping.
func ConnectMongo(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return client.Database(database), nil
}

func (m *Mongo) Load(ctx context.Context, sessionID string) ([]domain.LineItem, error) {
	res := m.collection.FindOne(ctx, bson.M{"_id": sessionID})
	if err := res.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return []domain.LineItem{}, nil
		}
		return nil, fmt.Errorf("load cart: %w", err)
	}
	var doc mongoCart
	if err := res.Decode(&doc); err != nil {
		m.logger.Warn("cart store: corrupt cart treated as empty",
			zap.String("backend", "mongo"),
			zap.String("session_id", sessionID),
			zap.Error(err))
		return []domain.LineItem{}, nil
	}
	return domain.NormalizeItems(doc.Items), nil
}

func (m *Mongo) Save(ctx context.Context, sessionID string, items []domain.LineItem) error {
	if items == nil {
		items = []domain.LineItem{}
	}
	doc := mongoCart{SessionID: sessionID, Items: items, UpdatedAt: time.Now().UTC()}
	opts := options.Replace().SetUpsert(true)
	if _, err := m.collection.ReplaceOne(ctx, bson.M{"_id": sessionID}, doc, opts); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (m *Mongo) Delete(ctx context.Context, sessionID string) error {
	if _, err := m.collection.DeleteOne(ctx, bson.M{"_id": sessionID}); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.collection.Database().Client().Ping(ctx, readpref.Primary())
}
