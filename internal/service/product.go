package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/tuanvumaihuynh/storefront/internal/apperr"
	"github.com/tuanvumaihuynh/storefront/internal/config"
	"github.com/tuanvumaihuynh/storefront/internal/event"
	"github.com/tuanvumaihuynh/storefront/internal/model"
	"github.com/tuanvumaihuynh/storefront/internal/rating"
	"github.com/tuanvumaihuynh/storefront/internal/repository"
	"github.com/tuanvumaihuynh/storefront/internal/storage/db"
	"github.com/tuanvumaihuynh/storefront/pkg/outbox"
	"github.com/tuanvumaihuynh/storefront/pkg/ptr"
)

// TopRatedLimit is the default and maximum size of the top rated listing.
const TopRatedLimit = 8

type CreateProductParams struct {
	Name        string
	Category    string
	Price       float64
	Quantity    int
	Description string
	Image       string
	// Rating seeds the displayed rating. Nil means 0.
	Rating *float64
	Actor  string
}

// UpdateProductParams describes a partial update. Nil fields are left as
// stored; a non-nil Rating is folded into the product's ratings.
type UpdateProductParams struct {
	ID          uuid.UUID
	Name        *string
	Category    *string
	Price       *float64
	Quantity    *int
	Description *string
	Image       *string
	Status      *model.ProductStatus
	Rating      *float64
	Actor       string
}

type ProductService interface {
	CreateProduct(ctx context.Context, params CreateProductParams) (model.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (model.Product, error)
	ListAllProducts(ctx context.Context) ([]model.Product, error)
	ListTopRatedProducts(ctx context.Context, limit int) ([]model.Product, error)
	UpdateProduct(ctx context.Context, params UpdateProductParams) (model.Product, error)
}

type ProductServiceConfig struct {
	QueryTimeout time.Duration
	Rating       config.Rating
}

type productService struct {
	cfg           ProductServiceConfig
	db            db.DB
	productRepo   repository.ProductRepository
	outboxMsgRepo repository.OutboxMsgRepository
	now           func() time.Time
}

func NewProductService(
	cfg ProductServiceConfig,
	db db.DB,
	productRepo repository.ProductRepository,
	outboxMsgRepo repository.OutboxMsgRepository,
) ProductService {
	return &productService{
		cfg:           cfg,
		db:            db,
		productRepo:   productRepo,
		outboxMsgRepo: outboxMsgRepo,
		now:           time.Now,
	}
}

func (s *productService) CreateProduct(ctx context.Context, params CreateProductParams) (model.Product, error) {
	params.Price = model.RoundPrice(params.Price)
	if params.Name == "" || params.Category == "" || params.Description == "" || params.Image == "" ||
		params.Price <= 0 || params.Quantity <= 0 {
		return model.Product{}, apperr.MissingFieldsErr
	}

	seed := ptr.Deref(params.Rating, 0)
	if !rating.Valid(seed) {
		return model.Product{}, apperr.ValidationErr.WithMsg("Rating must be between 0 and 5")
	}
	seed = rating.RoundHalf(seed)

	id, err := uuid.NewV7()
	if err != nil {
		return model.Product{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	now := s.timestamp()
	product := model.Product{
		ID:          id,
		Name:        params.Name,
		Category:    params.Category,
		Price:       params.Price,
		Quantity:    params.Quantity,
		Description: params.Description,
		Image:       params.Image,
		Status:      model.ProductStatusActive,
		Rating:      seed,
		Ratings:     []float64{},
		Version:     1,
		CreatedBy:   params.Actor,
		UpdatedBy:   params.Actor,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.db.WithTx(ctx, func(db db.DB) error {
		if err := s.productRepo.
			WithDB(db).
			CreateProduct(ctx, product); err != nil {
			return fmt.Errorf("product repository create product: %w", err)
		}

		return s.writeEvent(ctx, db, event.TopicProductCreated, product.ID, event.ProductCreatedEvent{
			ProductID: product.ID.String(),
			Name:      product.Name,
			Category:  product.Category,
			Price:     product.Price,
			Quantity:  product.Quantity,
			Rating:    product.Rating,
			CreatedBy: product.CreatedBy,
		})
	}); err != nil {
		return model.Product{}, fmt.Errorf("db with tx: %w", apperr.FromStorage(err))
	}

	return product, nil
}

func (s *productService) GetProduct(ctx context.Context, id uuid.UUID) (model.Product, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	product, err := s.productRepo.GetProduct(ctx, id)
	if err != nil {
		return model.Product{}, fmt.Errorf("product repository get product: %w", apperr.FromStorage(err))
	}

	return product, nil
}

func (s *productService) ListAllProducts(ctx context.Context) ([]model.Product, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	products, err := s.productRepo.ListAllProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("product repository list all products: %w", apperr.FromStorage(err))
	}

	return products, nil
}

func (s *productService) ListTopRatedProducts(ctx context.Context, limit int) ([]model.Product, error) {
	if limit <= 0 || limit > TopRatedLimit {
		limit = TopRatedLimit
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	//nolint:gosec
	products, err := s.productRepo.ListTopRatedProducts(ctx, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("product repository list top rated products: %w", apperr.FromStorage(err))
	}

	return products, nil
}

// UpdateProduct merges params into the stored product and writes it back with
// a compare-and-swap on the version. A lost race re-reads and retries with
// exponential backoff until the configured attempts run out.
func (s *productService) UpdateProduct(ctx context.Context, params UpdateProductParams) (model.Product, error) {
	if params.Rating != nil && !rating.Valid(*params.Rating) {
		return model.Product{}, apperr.ValidationErr.WithMsg("Rating must be between 0 and 5")
	}

	var updated model.Product

	backoff := retry.WithMaxRetries(s.cfg.Rating.MaxRetries, retry.NewExponential(s.cfg.Rating.RetryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		product, err := s.tryUpdateProduct(ctx, params)
		if err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				return retry.RetryableError(err)
			}
			return err
		}

		updated = product
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return model.Product{}, apperr.ConcurrentUpdateErr.WrapParent(err)
		}
		return model.Product{}, fmt.Errorf("update product: %w", apperr.FromStorage(err))
	}

	return updated, nil
}

func (s *productService) tryUpdateProduct(ctx context.Context, params UpdateProductParams) (model.Product, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var updated model.Product

	err := s.db.WithTx(ctx, func(db db.DB) error {
		current, err := s.productRepo.
			WithDB(db).
			GetProduct(ctx, params.ID)
		if err != nil {
			return fmt.Errorf("product repository get product: %w", err)
		}

		next, fields := mergeProduct(current, params)

		var rated *rating.Result
		if params.Rating != nil {
			res := rating.Aggregate(current.Ratings, *params.Rating)
			rated = &res
			next.Ratings = res.Ratings
			next.Rating = res.Rating
		}

		if len(fields) == 0 && rated == nil {
			return apperr.NoChangesErr
		}

		next.UpdatedBy = params.Actor
		next.UpdatedAt = s.timestamp()

		if err := s.productRepo.
			WithDB(db).
			UpdateProduct(ctx, next, current.Version); err != nil {
			return fmt.Errorf("product repository update product: %w", err)
		}
		next.Version = current.Version + 1

		if len(fields) > 0 {
			if err := s.writeEvent(ctx, db, event.TopicProductUpdated, next.ID, event.ProductUpdatedEvent{
				ProductID: next.ID.String(),
				Fields:    fields,
				Version:   next.Version,
				UpdatedBy: next.UpdatedBy,
			}); err != nil {
				return err
			}
		}

		if rated != nil {
			if err := s.writeEvent(ctx, db, event.TopicProductRated, next.ID, event.ProductRatedEvent{
				ProductID:    next.ID.String(),
				Score:        *params.Rating,
				Rating:       rated.Rating,
				RatingsCount: len(rated.Ratings),
				RatedBy:      next.UpdatedBy,
			}); err != nil {
				return err
			}
		}

		updated = next
		return nil
	})
	if err != nil {
		return model.Product{}, fmt.Errorf("db with tx: %w", err)
	}

	return updated, nil
}

func (s *productService) writeEvent(ctx context.Context, db db.DB, topic string, productID uuid.UUID, ev any) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	key := productID.String()
	if err := s.outboxMsgRepo.
		WithDB(db).
		CreateOutboxMsg(ctx, repository.CreateOutboxMsgParams{
			Topic:        topic,
			Headers:      outbox.BuildHeaders(ctx, topic),
			Payload:      payload,
			PartitionKey: &key,
		}); err != nil {
		return fmt.Errorf("outbox msg repository create outbox msg: %w", err)
	}

	return nil
}

func (s *productService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.QueryTimeout)
}

// timestamp matches the microsecond precision of timestamptz so a stored
// product reads back equal to the value returned on write.
func (s *productService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// mergeProduct applies the non-nil fields of params that differ from current
// and reports the names of the fields that changed.
func mergeProduct(current model.Product, params UpdateProductParams) (model.Product, []string) {
	next := current
	var fields []string

	mergeField(&next.Name, params.Name, "name", &fields)
	mergeField(&next.Category, params.Category, "category", &fields)
	if params.Price != nil {
		mergeField(&next.Price, ptr.New(model.RoundPrice(*params.Price)), "price", &fields)
	}
	mergeField(&next.Quantity, params.Quantity, "quantity", &fields)
	mergeField(&next.Description, params.Description, "description", &fields)
	mergeField(&next.Image, params.Image, "image", &fields)
	mergeField(&next.Status, params.Status, "status", &fields)

	return next, fields
}

func mergeField[T comparable](dst *T, src *T, name string, fields *[]string) {
	if src == nil || *src == *dst {
		return
	}
	*dst = *src
	*fields = append(*fields, name)
}
