package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Priya8975/forge-storefront/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names match the ones the storefront has always used.
const (
	eventsCollection      = "webhookevents"
	submissionsCollection = "submissions"
	usersCollection       = "users"
	productsCollection    = "product"
)

type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongo(ctx context.Context, mongoURL, dbName string) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(mongoURL))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	return &MongoStore{client: client, db: client.Database(dbName)}, nil
}

// NewMongoFromDatabase wraps an already connected database.
func NewMongoFromDatabase(db *mongo.Database) *MongoStore {
	return &MongoStore{client: db.Client(), db: db}
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes the queries below rely on. Safe to run on
// every start.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		eventsCollection: {
			{Keys: bson.D{{Key: "received_at", Value: -1}}},
			{Keys: bson.D{{Key: "submission_id", Value: 1}}},
		},
		submissionsCollection: {
			{Keys: bson.D{{Key: "submission_id", Value: 1}}},
		},
		productsCollection: {
			{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}

	for coll, models := range indexes {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("creating %s indexes: %w", coll, err)
		}
	}
	return nil
}

func (s *MongoStore) CreateWebhookEvent(ctx context.Context, ev *domain.WebhookEvent) error {
	if ev.ID == "" {
		ev.ID = primitive.NewObjectID().Hex()
	}
	now := time.Now().UTC()
	ev.CreatedAt, ev.UpdatedAt = now, now

	if _, err := s.db.Collection(eventsCollection).InsertOne(ctx, ev); err != nil {
		return fmt.Errorf("inserting webhook event: %w", err)
	}
	return nil
}

func (s *MongoStore) CreateSubmission(ctx context.Context, sub *domain.Submission) error {
	if sub.ID == "" {
		sub.ID = primitive.NewObjectID().Hex()
	}
	sub.CreatedAt = time.Now().UTC()

	if _, err := s.db.Collection(submissionsCollection).InsertOne(ctx, sub); err != nil {
		return fmt.Errorf("inserting submission: %w", err)
	}
	return nil
}

func (s *MongoStore) GetWebhookEvent(ctx context.Context, id string) (*domain.WebhookEvent, error) {
	var ev domain.WebhookEvent
	if err := s.findOne(ctx, eventsCollection, bson.M{"_id": id}, &ev); err != nil {
		return nil, fmt.Errorf("querying webhook event: %w", err)
	}
	return &ev, nil
}

func (s *MongoStore) ListWebhookEvents(ctx context.Context, f EventFilter) ([]domain.WebhookEvent, error) {
	filter := bson.M{}
	if f.Event != "" {
		filter["event"] = f.Event
	}
	if f.FormID != "" {
		filter["form_id"] = f.FormID
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "received_at", Value: -1}}).
		SetLimit(int64(eventLimit(f.Limit)))

	cur, err := s.db.Collection(eventsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("querying webhook events: %w", err)
	}

	events := []domain.WebhookEvent{}
	if err := cur.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("decoding webhook events: %w", err)
	}
	return events, nil
}

func (s *MongoStore) CreateUser(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = primitive.NewObjectID().Hex()
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now

	_, err := s.db.Collection(usersCollection).InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("inserting user %s: %w", u.Email, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	if err := s.findOne(ctx, usersCollection, bson.M{"email": email}, &u); err != nil {
		return nil, fmt.Errorf("querying user by email: %w", err)
	}
	return &u, nil
}

func (s *MongoStore) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	if err := s.findOne(ctx, usersCollection, bson.M{"_id": id}, &u); err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return &u, nil
}

func (s *MongoStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	opts := options.Find().SetSort(bson.D{{Key: "pid", Value: 1}})
	cur, err := s.db.Collection(productsCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("querying products: %w", err)
	}

	products := []domain.Product{}
	if err := cur.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("decoding products: %w", err)
	}
	return products, nil
}

func (s *MongoStore) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	if err := s.findOne(ctx, productsCollection, bson.M{"_id": id}, &p); err != nil {
		return nil, fmt.Errorf("querying product: %w", err)
	}
	return &p, nil
}

func (s *MongoStore) GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	var p domain.Product
	if err := s.findOne(ctx, productsCollection, bson.M{"slug": slug}, &p); err != nil {
		return nil, fmt.Errorf("querying product by slug: %w", err)
	}
	return &p, nil
}

// UpsertProduct inserts p or replaces the product with the same id.
func (s *MongoStore) UpsertProduct(ctx context.Context, p *domain.Product) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err := s.db.Collection(productsCollection).ReplaceOne(ctx,
		bson.M{"_id": p.ID}, p, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upserting product %s: %w", p.ID, err)
	}
	return nil
}

func (s *MongoStore) findOne(ctx context.Context, coll string, filter bson.M, out any) error {
	err := s.db.Collection(coll).FindOne(ctx, filter).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}
