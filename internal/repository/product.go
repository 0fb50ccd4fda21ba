package repository

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tuanvumaihuynh/storefront/internal/apperr"
	"github.com/tuanvumaihuynh/storefront/internal/model"
	"github.com/tuanvumaihuynh/storefront/internal/storage/db"
)

// ErrVersionConflict is returned by UpdateProduct when the stored version no
// longer matches the one the update was computed from.
var ErrVersionConflict = errors.New("product version conflict")

type ProductRepository interface {
	WithDB(db db.DB) ProductRepository
	CreateProduct(ctx context.Context, product model.Product) error
	GetProduct(ctx context.Context, id uuid.UUID) (model.Product, error)
	ListAllProducts(ctx context.Context) ([]model.Product, error)
	ListTopRatedProducts(ctx context.Context, limit int32) ([]model.Product, error)
	// UpdateProduct overwrites the mutable fields of product if the stored
	// version still equals expectedVersion, bumping the version by one.
	UpdateProduct(ctx context.Context, product model.Product, expectedVersion int64) error
}

type productRepository struct {
	db db.DB
}

func NewProductRepository(db db.DB) ProductRepository {
	return &productRepository{
		db: db,
	}
}

func (r productRepository) WithDB(db db.DB) ProductRepository {
	return &productRepository{
		db: db,
	}
}

const productColumns = `id, name, category, price, quantity, description, image, status,
	rating, ratings, version, created_by, updated_by, created_at, updated_at`

func (r productRepository) CreateProduct(ctx context.Context, product model.Product) error {
	price, err := toNumeric(product.Price)
	if err != nil {
		return err
	}

	quantity, err := toInt32(product.Quantity)
	if err != nil {
		return err
	}

	if _, err := r.db.Exec(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES (
			@id, @name, @category, @price, @quantity, @description, @image, @status,
			@rating, @ratings, @version, @created_by, @updated_by, @created_at, @updated_at
		)
	`, pgx.NamedArgs{
		"id":          product.ID,
		"name":        product.Name,
		"category":    product.Category,
		"price":       price,
		"quantity":    quantity,
		"description": product.Description,
		"image":       product.Image,
		"status":      string(product.Status),
		"rating":      product.Rating,
		"ratings":     nonNilRatings(product.Ratings),
		"version":     product.Version,
		"created_by":  product.CreatedBy,
		"updated_by":  product.UpdatedBy,
		"created_at":  product.CreatedAt,
		"updated_at":  product.UpdatedAt,
	}); err != nil {
		return fmt.Errorf("insert product: %w", err)
	}

	return nil
}

func (r productRepository) GetProduct(ctx context.Context, id uuid.UUID) (model.Product, error) {
	row := r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)

	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Product{}, apperr.ProductNotFoundErr.WrapParent(err)
		}
		return model.Product{}, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

func (r productRepository) ListAllProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := r.db.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list all products: %w", err)
	}

	products, err := pgx.CollectRows(rows, collectProduct)
	if err != nil {
		return nil, fmt.Errorf("collect products: %w", err)
	}

	return products, nil
}

func (r productRepository) ListTopRatedProducts(ctx context.Context, limit int32) ([]model.Product, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE status = $1
		ORDER BY rating DESC, created_at DESC
		LIMIT $2
	`, string(model.ProductStatusActive), limit)
	if err != nil {
		return nil, fmt.Errorf("list top rated products: %w", err)
	}

	products, err := pgx.CollectRows(rows, collectProduct)
	if err != nil {
		return nil, fmt.Errorf("collect products: %w", err)
	}

	return products, nil
}

func (r productRepository) UpdateProduct(ctx context.Context, product model.Product, expectedVersion int64) error {
	price, err := toNumeric(product.Price)
	if err != nil {
		return err
	}

	quantity, err := toInt32(product.Quantity)
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE products
		SET
			name        = @name,
			category    = @category,
			price       = @price,
			quantity    = @quantity,
			description = @description,
			image       = @image,
			status      = @status,
			rating      = @rating,
			ratings     = @ratings,
			updated_by  = @updated_by,
			updated_at  = @updated_at,
			version     = version + 1
		WHERE id = @id AND version = @version
	`, pgx.NamedArgs{
		"id":          product.ID,
		"version":     expectedVersion,
		"name":        product.Name,
		"category":    product.Category,
		"price":       price,
		"quantity":    quantity,
		"description": product.Description,
		"image":       product.Image,
		"status":      string(product.Status),
		"rating":      product.Rating,
		"ratings":     nonNilRatings(product.Ratings),
		"updated_by":  product.UpdatedBy,
		"updated_at":  product.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}

	return nil
}

func collectProduct(row pgx.CollectableRow) (model.Product, error) {
	return scanProduct(row)
}

func scanProduct(row pgx.Row) (model.Product, error) {
	var (
		p        model.Product
		price    pgtype.Numeric
		quantity int32
		status   string
	)

	if err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Category,
		&price,
		&quantity,
		&p.Description,
		&p.Image,
		&status,
		&p.Rating,
		&p.Ratings,
		&p.Version,
		&p.CreatedBy,
		&p.UpdatedBy,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return model.Product{}, err
	}

	priceValue, err := price.Float64Value()
	if err != nil {
		return model.Product{}, fmt.Errorf("convert price to float64: %w", err)
	}

	p.Price = priceValue.Float64
	p.Quantity = int(quantity)
	p.Status = model.ProductStatus(status)

	return p, nil
}

// nonNilRatings keeps an empty sequence from being encoded as SQL NULL.
func nonNilRatings(ratings []float64) []float64 {
	if ratings == nil {
		return []float64{}
	}
	return ratings
}

func toNumeric(v float64) (pgtype.Numeric, error) {
	var n pgtype.Numeric
	if err := n.Scan(model.FormatPrice(v)); err != nil {
		return n, fmt.Errorf("scan price: %w", err)
	}
	return n, nil
}

func toInt32(v int) (int32, error) {
	if v > math.MaxInt32 || v < math.MinInt32 {
		return 0, apperr.ValidationErr.WithMsg(fmt.Sprintf("Quantity out of range: %d", v))
	}
	return int32(v), nil
}
