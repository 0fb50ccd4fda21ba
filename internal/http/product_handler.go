package http

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"

	"github.com/tuanvumaihuynh/storefront/internal/apperr"
	"github.com/tuanvumaihuynh/storefront/internal/auth"
	"github.com/tuanvumaihuynh/storefront/internal/http/metric"
	"github.com/tuanvumaihuynh/storefront/internal/model"
	"github.com/tuanvumaihuynh/storefront/internal/service"
	"github.com/tuanvumaihuynh/storefront/pkg/validator"
)

type CreateProductRequest struct {
	Name        string   `json:"name" validate:"required"`
	Category    string   `json:"category" validate:"required"`
	Price       float64  `json:"price" validate:"required,gt=0,lte=9999999999.99"`
	Quantity    int      `json:"quantity" validate:"required,gt=0,lte=2147483647"`
	Description string   `json:"description" validate:"required"`
	Rating      *float64 `json:"rating" validate:"omitnil,gte=0,lte=5"`
	Image       string   `json:"image" validate:"required,imagedataurl"`
	// CreatedBy is accepted for older clients; the verified identity wins.
	CreatedBy string `json:"created_by"`
}

type UpdateProductRequest struct {
	ID          *string              `json:"_id"`
	Name        *string              `json:"name" validate:"omitnil,min=1"`
	Category    *string              `json:"category" validate:"omitnil,min=1"`
	Price       *float64             `json:"price" validate:"omitnil,gte=0,lte=9999999999.99"`
	Quantity    *int                 `json:"quantity" validate:"omitnil,gte=0,lte=2147483647"`
	Description *string              `json:"description" validate:"omitnil,min=1"`
	Image       *string              `json:"image" validate:"omitnil,imagedataurl"`
	Status      *model.ProductStatus `json:"status" validate:"omitnil,enum"`
	Rating      *float64             `json:"rating" validate:"omitnil,gte=0,lte=5"`
}

func (r *UpdateProductRequest) precheck() error {
	_, err := r.productID()
	return err
}

func (r *UpdateProductRequest) productID() (uuid.UUID, error) {
	if r.ID == nil || *r.ID == "" {
		return uuid.Nil, apperr.ProductIDRequiredErr
	}
	id, err := uuid.Parse(*r.ID)
	if err != nil {
		return uuid.Nil, apperr.InvalidIDErr.WrapParent(err)
	}
	return id, nil
}

type ProductResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message,omitempty"`
	Product model.Product `json:"product"`
}

type ProductListResponse struct {
	Success  bool            `json:"success"`
	Products []model.Product `json:"products"`
}

type productHandler struct {
	productSvc service.ProductService
	metrics    *metric.Metrics
}

func newProductHandler(productSvc service.ProductService, metrics *metric.Metrics) *productHandler {
	return &productHandler{
		productSvc: productSvc,
		metrics:    metrics,
	}
}

func (h *productHandler) ListProducts(w http.ResponseWriter, r *http.Request, _ decoder) error {
	products, err := h.productSvc.ListAllProducts(r.Context())
	if err != nil {
		return fmt.Errorf("product service list all products: %w", err)
	}

	writeJSON(w, http.StatusOK, ProductListResponse{
		Success:  true,
		Products: nonNilProducts(products),
	})
	return nil
}

func (h *productHandler) ListTopRatedProducts(w http.ResponseWriter, r *http.Request, _ decoder) error {
	var limit *int
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		return apperr.ValidationErr.WithMsg("Invalid limit").WrapParent(err)
	}

	n := service.TopRatedLimit
	if limit != nil {
		if *limit < 1 || *limit > service.TopRatedLimit {
			return apperr.ValidationErr.WithMsg(fmt.Sprintf("limit must be between 1 and %d", service.TopRatedLimit))
		}
		n = *limit
	}

	products, err := h.productSvc.ListTopRatedProducts(r.Context(), n)
	if err != nil {
		return fmt.Errorf("product service list top rated products: %w", err)
	}

	writeJSON(w, http.StatusOK, ProductListResponse{
		Success:  true,
		Products: nonNilProducts(products),
	})
	return nil
}

func (h *productHandler) GetProduct(w http.ResponseWriter, r *http.Request, _ decoder) error {
	var id uuid.UUID
	if err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	}); err != nil {
		return apperr.InvalidIDErr.WrapParent(err)
	}

	product, err := h.productSvc.GetProduct(r.Context(), id)
	if err != nil {
		return fmt.Errorf("product service get product: %w", err)
	}

	writeJSON(w, http.StatusOK, ProductResponse{
		Success: true,
		Product: product,
	})
	return nil
}

func (h *productHandler) CreateProduct(w http.ResponseWriter, r *http.Request, decode decoder) error {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		return apperr.UnauthorizedErr
	}

	var req CreateProductRequest
	if err := decode(&req); err != nil {
		if validator.IsValidationError(err) {
			return apperr.MissingFieldsErr.WrapParent(err)
		}
		return err
	}

	product, err := h.productSvc.CreateProduct(r.Context(), service.CreateProductParams{
		Name:        req.Name,
		Category:    req.Category,
		Price:       req.Price,
		Quantity:    req.Quantity,
		Description: req.Description,
		Image:       req.Image,
		Rating:      req.Rating,
		Actor:       identity.Subject,
	})
	if err != nil {
		return fmt.Errorf("product service create product: %w", err)
	}

	h.metrics.ProductsCreated.Inc()

	writeJSON(w, http.StatusCreated, ProductResponse{
		Success: true,
		Message: "Product created successfully",
		Product: product,
	})
	return nil
}

func (h *productHandler) UpdateProduct(w http.ResponseWriter, r *http.Request, decode decoder) error {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		return apperr.UnauthorizedErr
	}

	var req UpdateProductRequest
	if err := decode(&req); err != nil {
		return err
	}

	id, err := req.productID()
	if err != nil {
		return err
	}

	product, err := h.productSvc.UpdateProduct(r.Context(), service.UpdateProductParams{
		ID:          id,
		Name:        req.Name,
		Category:    req.Category,
		Price:       req.Price,
		Quantity:    req.Quantity,
		Description: req.Description,
		Image:       req.Image,
		Status:      req.Status,
		Rating:      req.Rating,
		Actor:       identity.Subject,
	})
	if err != nil {
		return fmt.Errorf("product service update product: %w", err)
	}

	h.metrics.ProductsUpdated.Inc()
	if req.Rating != nil {
		h.metrics.RatingsSubmitted.Inc()
	}

	writeJSON(w, http.StatusOK, ProductResponse{
		Success: true,
		Message: "Product updated successfully",
		Product: product,
	})
	return nil
}

func nonNilProducts(products []model.Product) []model.Product {
	if products == nil {
		return []model.Product{}
	}
	return products
}
