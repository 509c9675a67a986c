package store

import (
	"context"
	"testing"
	"time"

	"github.com/Priya8975/forge-storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func newMockMongo(t *testing.T) *mtest.T {
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
}

func TestMongo_CreateWebhookEvent(t *testing.T) {
	mt := newMockMongo(t)

	mt.Run("assigns id and timestamps", func(mt *mtest.T) {
		s := NewMongoFromDatabase(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		ev := &domain.WebhookEvent{Event: "form.submitted", SubmissionID: "s1", ReceivedAt: time.Now()}
		require.NoError(mt, s.CreateWebhookEvent(context.Background(), ev))

		assert.Len(mt, ev.ID, 24)
		assert.False(mt, ev.CreatedAt.IsZero())
		assert.Equal(mt, ev.CreatedAt, ev.UpdatedAt)
	})

	mt.Run("write error", func(mt *mtest.T) {
		s := NewMongoFromDatabase(mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code: 2, Name: "BadValue", Message: "boom",
		}))

		err := s.CreateWebhookEvent(context.Background(), &domain.WebhookEvent{SubmissionID: "s1"})
		assert.ErrorContains(mt, err, "inserting webhook event")
	})
}

func TestMongo_CreateSubmission(t *testing.T) {
	mt := newMockMongo(t)

	mt.Run("success", func(mt *mtest.T) {
		s := NewMongoFromDatabase(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		sub := &domain.Submission{SubmissionID: "s1", Data: map[string]any{"email": "a@b.c"}}
		require.NoError(mt, s.CreateSubmission(context.Background(), sub))
		assert.NotEmpty(mt, sub.ID)
	})
}

func TestMongo_GetWebhookEvent(t *testing.T) {
	mt := newMockMongo(t)
	ns := "forge.webhookevents"

	mt.Run("found", func(mt *mtest.T) {
		s := NewMongoFromDatabase(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "65f0c0ffee"},
			{Key: "event", Value: "form.submitted"},
			{Key: "form_id", Value: "f1"},
			{Key: "submission_id", Value: "s1"},
		}))

		ev, err := s.GetWebhookEvent(context.Background(), "65f0c0ffee")
		require.NoError(mt, err)
		assert.Equal(mt, "65f0c0ffee", ev.ID)
		assert.Equal(mt, "s1", ev.SubmissionID)
	})

	mt.Run("not found", func(mt *mtest.T) {
		s := NewMongoFromDatabase(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := s.GetWebhookEvent(context.Background(), "nope")
		assert.ErrorIs(mt, err, ErrNotFound)
	})
}

func TestMongo_ListWebhookEvents(t *testing.T) {
	mt := newMockMongo(t)
	ns := "forge.webhookevents"

	mt.Run("decodes all batches", func(mt *mtest.T) {
		s := NewMongoFromDatabase(mt.DB)
		first := mtest.CreateCursorResponse(1, ns, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "a"}, {Key: "submission_id", Value: "s2"}},
			bson.D{{Key: "_id", Value: "b"}, {Key: "submission_id", Value: "s1"}},
		)
		last := mtest.CreateCursorResponse(0, ns, mtest.NextBatch)
		mt.AddMockResponses(first, last)

		events, err := s.ListWebhookEvents(context.Background(), EventFilter{Event: "form.submitted"})
		require.NoError(mt, err)
		require.Len(mt, events, 2)
		assert.Equal(mt, "s2", events[0].SubmissionID)
	})

	mt.Run("empty result is not nil", func(mt *mtest.T) {
		s := NewMongoFromDatabase(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		events, err := s.ListWebhookEvents(context.Background(), EventFilter{})
		require.NoError(mt, err)
		assert.NotNil(mt, events)
		assert.Empty(mt, events)
	})
}

func TestMongo_CreateUser(t *testing.T) {
	mt := newMockMongo(t)

	mt.Run("success", func(mt *mtest.T) {
		s := NewMongoFromDatabase(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		u := &domain.User{Name: "Ada", Email: "ada@example.com", PasswordHash: "hash"}
		require.NoError(mt, s.CreateUser(context.Background(), u))
		assert.NotEmpty(mt, u.ID)
	})

	mt.Run("duplicate email", func(mt *mtest.T) {
		s := NewMongoFromDatabase(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		err := s.CreateUser(context.Background(), &domain.User{Email: "ada@example.com"})
		assert.ErrorIs(mt, err, ErrDuplicate)
	})
}

func TestMongo_GetUserByEmail(t *testing.T) {
	mt := newMockMongo(t)
	ns := "forge.users"

	mt.Run("found", func(mt *mtest.T) {
		s := NewMongoFromDatabase(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "u1"},
			{Key: "name", Value: "Ada"},
			{Key: "email", Value: "ada@example.com"},
			{Key: "password", Value: "hash"},
		}))

		u, err := s.GetUserByEmail(context.Background(), "ada@example.com")
		require.NoError(mt, err)
		assert.Equal(mt, "u1", u.ID)
		assert.Equal(mt, "hash", u.PasswordHash)
	})

	mt.Run("missing", func(mt *mtest.T) {
		s := NewMongoFromDatabase(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := s.GetUserByID(context.Background(), "u404")
		assert.ErrorIs(mt, err, ErrNotFound)
	})
}

func TestMongo_Products(t *testing.T) {
	mt := newMockMongo(t)
	ns := "forge.product"

	mt.Run("list", func(mt *mtest.T) {
		s := NewMongoFromDatabase(mt.DB)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(1, ns, mtest.FirstBatch,
				bson.D{{Key: "_id", Value: "P0001"}, {Key: "slug", Value: "rust-casual-combo"}, {Key: "price", Value: 59.99}, {Key: "salePrice", Value: 49.99}},
				bson.D{{Key: "_id", Value: "P0002"}, {Key: "slug", Value: "beige-formal-combo"}, {Key: "price", Value: 69.99}},
			),
			mtest.CreateCursorResponse(0, ns, mtest.NextBatch),
		)

		products, err := s.ListProducts(context.Background())
		require.NoError(mt, err)
		require.Len(mt, products, 2)
		require.NotNil(mt, products[0].SalePrice)
		assert.Equal(mt, 49.99, *products[0].SalePrice)
		assert.Nil(mt, products[1].SalePrice)
	})

	mt.Run("by slug", func(mt *mtest.T) {
		s := NewMongoFromDatabase(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "P0002"}, {Key: "slug", Value: "beige-formal-combo"}}))

		p, err := s.GetProductBySlug(context.Background(), "beige-formal-combo")
		require.NoError(mt, err)
		assert.Equal(mt, "P0002", p.ID)
	})

	mt.Run("upsert", func(mt *mtest.T) {
		s := NewMongoFromDatabase(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 0},
		))

		p := &domain.Product{ID: "P0001", Slug: "rust-casual-combo"}
		require.NoError(mt, s.UpsertProduct(context.Background(), p))
		assert.False(mt, p.UpdatedAt.IsZero())
	})
}

func TestMongo_EnsureIndexes(t *testing.T) {
	mt := newMockMongo(t)

	mt.Run("creates every index", func(mt *mtest.T) {
		s := NewMongoFromDatabase(mt.DB)
		for i := 0; i < 4; i++ {
			mt.AddMockResponses(mtest.CreateSuccessResponse())
		}
		assert.NoError(mt, s.EnsureIndexes(context.Background()))
	})
}
