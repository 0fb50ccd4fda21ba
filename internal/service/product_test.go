package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tuanvumaihuynh/storefront/internal/apperr"
	"github.com/tuanvumaihuynh/storefront/internal/config"
	"github.com/tuanvumaihuynh/storefront/internal/event"
	"github.com/tuanvumaihuynh/storefront/internal/model"
	"github.com/tuanvumaihuynh/storefront/internal/repository"
	"github.com/tuanvumaihuynh/storefront/internal/service"
	"github.com/tuanvumaihuynh/storefront/pkg/ptr"
)

var testCfg = service.ProductServiceConfig{
	QueryTimeout: time.Second,
	Rating: config.Rating{
		MaxRetries: 2,
		RetryBase:  time.Millisecond,
	},
}

func newProductService() (service.ProductService, *mockProductRepo, *mockOutboxRepo) {
	productRepo := new(mockProductRepo)
	outboxRepo := new(mockOutboxRepo)
	return service.NewProductService(testCfg, txDB{}, productRepo, outboxRepo), productRepo, outboxRepo
}

func validCreateParams() service.CreateProductParams {
	return service.CreateProductParams{
		Name:        "Desk Lamp",
		Category:    "home",
		Price:       19.99,
		Quantity:    3,
		Description: "Warm light",
		Image:       "data:image/png;base64,iVBORw0KGgo=",
		Actor:       "user-1",
	}
}

func storedProduct(id uuid.UUID, version int64, ratings ...float64) model.Product {
	return model.Product{
		ID:          id,
		Name:        "Desk Lamp",
		Category:    "home",
		Price:       19.99,
		Quantity:    3,
		Description: "Warm light",
		Image:       "data:image/png;base64,iVBORw0KGgo=",
		Status:      model.ProductStatusActive,
		Ratings:     ratings,
		Version:     version,
		CreatedBy:   "user-1",
		UpdatedBy:   "user-1",
	}
}

func TestCreateProduct(t *testing.T) {
	ctx := context.Background()

	t.Run("Should persist product and created event", func(t *testing.T) {
		svc, productRepo, outboxRepo := newProductService()
		productRepo.On("CreateProduct", mock.Anything, mock.Anything).Return(nil).Once()
		outboxRepo.On("CreateOutboxMsg", mock.Anything, topic(event.TopicProductCreated)).Return(nil).Once()

		params := validCreateParams()
		params.Rating = ptr.New(3.7)

		product, err := svc.CreateProduct(ctx, params)
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, product.ID)
		assert.Equal(t, model.ProductStatusActive, product.Status)
		assert.Equal(t, 3.5, product.Rating)
		assert.Empty(t, product.Ratings)
		assert.Equal(t, "user-1", product.CreatedBy)
		assert.Equal(t, "user-1", product.UpdatedBy)
		assert.Equal(t, product.CreatedAt, product.UpdatedAt)

		productRepo.AssertCalled(t, "CreateProduct", mock.Anything, product)
		outboxRepo.AssertExpectations(t)

		msg := outboxRepo.Calls[0].Arguments.Get(1).(repository.CreateOutboxMsgParams)
		require.NotNil(t, msg.PartitionKey)
		assert.Equal(t, product.ID.String(), *msg.PartitionKey)

		var ev event.ProductCreatedEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &ev))
		assert.Equal(t, product.ID.String(), ev.ProductID)
		assert.Equal(t, "user-1", ev.CreatedBy)
	})

	t.Run("Should default rating to zero", func(t *testing.T) {
		svc, productRepo, outboxRepo := newProductService()
		productRepo.On("CreateProduct", mock.Anything, mock.Anything).Return(nil).Once()
		outboxRepo.On("CreateOutboxMsg", mock.Anything, mock.Anything).Return(nil).Once()

		product, err := svc.CreateProduct(ctx, validCreateParams())
		require.NoError(t, err)
		assert.Zero(t, product.Rating)
	})

	t.Run("Should reject missing fields without persisting", func(t *testing.T) {
		mutations := map[string]func(*service.CreateProductParams){
			"name":        func(p *service.CreateProductParams) { p.Name = "" },
			"category":    func(p *service.CreateProductParams) { p.Category = "" },
			"price":       func(p *service.CreateProductParams) { p.Price = 0 },
			"quantity":    func(p *service.CreateProductParams) { p.Quantity = 0 },
			"description": func(p *service.CreateProductParams) { p.Description = "" },
			"image":       func(p *service.CreateProductParams) { p.Image = "" },
		}

		for field, mutate := range mutations {
			t.Run(field, func(t *testing.T) {
				svc, productRepo, outboxRepo := newProductService()
				params := validCreateParams()
				mutate(&params)

				_, err := svc.CreateProduct(ctx, params)
				assert.ErrorIs(t, err, apperr.MissingFieldsErr)
				productRepo.AssertNotCalled(t, "CreateProduct", mock.Anything, mock.Anything)
				outboxRepo.AssertNotCalled(t, "CreateOutboxMsg", mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("Should round price to cents before persisting", func(t *testing.T) {
		svc, productRepo, outboxRepo := newProductService()
		productRepo.On("CreateProduct", mock.Anything, mock.MatchedBy(func(p model.Product) bool {
			return p.Price == 10
		})).Return(nil).Once()
		outboxRepo.On("CreateOutboxMsg", mock.Anything, mock.Anything).Return(nil).Once()

		params := validCreateParams()
		params.Price = 9.999

		product, err := svc.CreateProduct(ctx, params)
		require.NoError(t, err)
		assert.Equal(t, 10.0, product.Price)
		productRepo.AssertExpectations(t)
	})

	t.Run("Should treat a price that rounds to zero as missing", func(t *testing.T) {
		svc, productRepo, _ := newProductService()
		params := validCreateParams()
		params.Price = 0.004

		_, err := svc.CreateProduct(ctx, params)
		assert.ErrorIs(t, err, apperr.MissingFieldsErr)
		productRepo.AssertNotCalled(t, "CreateProduct", mock.Anything, mock.Anything)
	})

	t.Run("Should reject out of range rating seed", func(t *testing.T) {
		svc, productRepo, _ := newProductService()
		params := validCreateParams()
		params.Rating = ptr.New(5.5)

		_, err := svc.CreateProduct(ctx, params)
		assert.ErrorIs(t, err, apperr.ValidationErr)
		productRepo.AssertNotCalled(t, "CreateProduct", mock.Anything, mock.Anything)
	})

	t.Run("Should map storage failure to persistence error", func(t *testing.T) {
		svc, productRepo, _ := newProductService()
		productRepo.On("CreateProduct", mock.Anything, mock.Anything).Return(errors.New("connection reset")).Once()

		_, err := svc.CreateProduct(ctx, validCreateParams())
		assert.ErrorIs(t, err, apperr.PersistenceErr)
	})
}

func TestGetProduct(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("Should return not found", func(t *testing.T) {
		svc, productRepo, _ := newProductService()
		productRepo.On("GetProduct", mock.Anything, id).Return(model.Product{}, apperr.ProductNotFoundErr).Once()

		_, err := svc.GetProduct(ctx, id)
		assert.ErrorIs(t, err, apperr.ProductNotFoundErr)
	})

	t.Run("Should map deadline to timeout", func(t *testing.T) {
		svc, productRepo, _ := newProductService()
		productRepo.On("GetProduct", mock.Anything, id).Return(model.Product{}, context.DeadlineExceeded).Once()

		_, err := svc.GetProduct(ctx, id)
		assert.ErrorIs(t, err, apperr.TimeoutErr)
	})

	t.Run("Should bound the storage call with a deadline", func(t *testing.T) {
		svc, productRepo, _ := newProductService()
		productRepo.On("GetProduct", mock.MatchedBy(func(ctx context.Context) bool {
			_, ok := ctx.Deadline()
			return ok
		}), id).Return(storedProduct(id, 1), nil).Once()

		product, err := svc.GetProduct(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, product.ID)
	})
}

func TestListTopRatedProducts(t *testing.T) {
	ctx := context.Background()

	for _, tc := range []struct {
		name  string
		limit int
		want  int32
	}{
		{"Should default non-positive limit", 0, service.TopRatedLimit},
		{"Should cap large limit", 50, service.TopRatedLimit},
		{"Should keep valid limit", 3, 3},
	} {
		t.Run(tc.name, func(t *testing.T) {
			svc, productRepo, _ := newProductService()
			productRepo.On("ListTopRatedProducts", mock.Anything, tc.want).Return([]model.Product{}, nil).Once()

			_, err := svc.ListTopRatedProducts(ctx, tc.limit)
			require.NoError(t, err)
			productRepo.AssertExpectations(t)
		})
	}
}

func TestUpdateProduct(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("Should return not found and persist nothing", func(t *testing.T) {
		svc, productRepo, outboxRepo := newProductService()
		productRepo.On("GetProduct", mock.Anything, id).Return(model.Product{}, apperr.ProductNotFoundErr).Once()

		_, err := svc.UpdateProduct(ctx, service.UpdateProductParams{ID: id, Name: ptr.New("Other"), Actor: "user-2"})
		assert.ErrorIs(t, err, apperr.ProductNotFoundErr)
		productRepo.AssertNotCalled(t, "UpdateProduct", mock.Anything, mock.Anything, mock.Anything)
		outboxRepo.AssertNotCalled(t, "CreateOutboxMsg", mock.Anything, mock.Anything)
	})

	t.Run("Should reject update without observable change", func(t *testing.T) {
		svc, productRepo, _ := newProductService()
		productRepo.On("GetProduct", mock.Anything, id).Return(storedProduct(id, 1), nil).Once()

		_, err := svc.UpdateProduct(ctx, service.UpdateProductParams{ID: id, Name: ptr.New("Desk Lamp"), Actor: "user-2"})
		assert.ErrorIs(t, err, apperr.NoChangesErr)
		productRepo.AssertNotCalled(t, "UpdateProduct", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Should compare price at stored precision", func(t *testing.T) {
		svc, productRepo, _ := newProductService()
		productRepo.On("GetProduct", mock.Anything, id).Return(storedProduct(id, 1), nil).Once()

		_, err := svc.UpdateProduct(ctx, service.UpdateProductParams{ID: id, Price: ptr.New(19.994), Actor: "user-2"})
		assert.ErrorIs(t, err, apperr.NoChangesErr)
		productRepo.AssertNotCalled(t, "UpdateProduct", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Should store and return the rounded price", func(t *testing.T) {
		svc, productRepo, outboxRepo := newProductService()
		productRepo.On("GetProduct", mock.Anything, id).Return(storedProduct(id, 2), nil).Once()
		productRepo.On("UpdateProduct", mock.Anything, mock.MatchedBy(func(p model.Product) bool {
			return p.Price == 21.5
		}), int64(2)).Return(nil).Once()
		outboxRepo.On("CreateOutboxMsg", mock.Anything, topic(event.TopicProductUpdated)).Return(nil).Once()

		product, err := svc.UpdateProduct(ctx, service.UpdateProductParams{ID: id, Price: ptr.New(21.499), Actor: "user-2"})
		require.NoError(t, err)
		assert.Equal(t, 21.5, product.Price)
		productRepo.AssertExpectations(t)
	})

	t.Run("Should merge fields and aggregate rating in one write", func(t *testing.T) {
		svc, productRepo, outboxRepo := newProductService()
		productRepo.On("GetProduct", mock.Anything, id).Return(storedProduct(id, 4, 3, 4), nil).Once()
		productRepo.On("UpdateProduct", mock.Anything, mock.Anything, int64(4)).Return(nil).Once()
		outboxRepo.On("CreateOutboxMsg", mock.Anything, topic(event.TopicProductUpdated)).Return(nil).Once()
		outboxRepo.On("CreateOutboxMsg", mock.Anything, topic(event.TopicProductRated)).Return(nil).Once()

		product, err := svc.UpdateProduct(ctx, service.UpdateProductParams{
			ID:       id,
			Quantity: ptr.New(10),
			Rating:   ptr.New(5.0),
			Actor:    "user-2",
		})
		require.NoError(t, err)

		assert.Equal(t, 10, product.Quantity)
		assert.Equal(t, []float64{3, 4, 5}, product.Ratings)
		assert.Equal(t, 4.0, product.Rating)
		assert.Equal(t, "user-2", product.UpdatedBy)
		assert.Equal(t, "user-1", product.CreatedBy)
		assert.Equal(t, int64(5), product.Version)

		written := productRepo.Calls[1].Arguments.Get(1).(model.Product)
		assert.Equal(t, []float64{3, 4, 5}, written.Ratings)
		assert.Equal(t, 10, written.Quantity)

		productRepo.AssertExpectations(t)
		outboxRepo.AssertExpectations(t)
	})

	t.Run("Should accept rating alone even when fields are unchanged", func(t *testing.T) {
		svc, productRepo, outboxRepo := newProductService()
		productRepo.On("GetProduct", mock.Anything, id).Return(storedProduct(id, 1, 3, 3, 4), nil).Once()
		productRepo.On("UpdateProduct", mock.Anything, mock.Anything, int64(1)).Return(nil).Once()
		outboxRepo.On("CreateOutboxMsg", mock.Anything, topic(event.TopicProductRated)).Return(nil).Once()

		product, err := svc.UpdateProduct(ctx, service.UpdateProductParams{
			ID:     id,
			Name:   ptr.New("Desk Lamp"),
			Rating: ptr.New(4.0),
			Actor:  "user-2",
		})
		require.NoError(t, err)
		assert.Equal(t, 3.5, product.Rating)
		outboxRepo.AssertNotCalled(t, "CreateOutboxMsg", mock.Anything, topic(event.TopicProductUpdated))
	})

	t.Run("Should retry on version conflict", func(t *testing.T) {
		svc, productRepo, outboxRepo := newProductService()
		productRepo.On("GetProduct", mock.Anything, id).Return(storedProduct(id, 1), nil).Once()
		productRepo.On("UpdateProduct", mock.Anything, mock.Anything, int64(1)).Return(repository.ErrVersionConflict).Once()
		productRepo.On("GetProduct", mock.Anything, id).Return(storedProduct(id, 2, 5), nil).Once()
		productRepo.On("UpdateProduct", mock.Anything, mock.Anything, int64(2)).Return(nil).Once()
		outboxRepo.On("CreateOutboxMsg", mock.Anything, topic(event.TopicProductRated)).Return(nil).Once()

		product, err := svc.UpdateProduct(ctx, service.UpdateProductParams{ID: id, Rating: ptr.New(4.0), Actor: "user-2"})
		require.NoError(t, err)

		// the concurrent rating is kept
		assert.Equal(t, []float64{5, 4}, product.Ratings)
		assert.Equal(t, 4.5, product.Rating)
		productRepo.AssertExpectations(t)
	})

	t.Run("Should give up after retries are exhausted", func(t *testing.T) {
		svc, productRepo, outboxRepo := newProductService()
		productRepo.On("GetProduct", mock.Anything, id).Return(storedProduct(id, 1), nil)
		productRepo.On("UpdateProduct", mock.Anything, mock.Anything, int64(1)).Return(repository.ErrVersionConflict)

		_, err := svc.UpdateProduct(ctx, service.UpdateProductParams{ID: id, Rating: ptr.New(4.0), Actor: "user-2"})
		assert.ErrorIs(t, err, apperr.ConcurrentUpdateErr)
		productRepo.AssertNumberOfCalls(t, "UpdateProduct", int(testCfg.Rating.MaxRetries)+1)
		outboxRepo.AssertNotCalled(t, "CreateOutboxMsg", mock.Anything, mock.Anything)
	})

	t.Run("Should reject out of range rating before storage access", func(t *testing.T) {
		svc, productRepo, _ := newProductService()

		_, err := svc.UpdateProduct(ctx, service.UpdateProductParams{ID: id, Rating: ptr.New(-1.0), Actor: "user-2"})
		assert.ErrorIs(t, err, apperr.ValidationErr)
		productRepo.AssertNotCalled(t, "GetProduct", mock.Anything, mock.Anything)
	})
}
