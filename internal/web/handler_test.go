package web

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuanvumaihuynh/storefront/internal/apiclient"
	"github.com/tuanvumaihuynh/storefront/internal/config"
	"github.com/tuanvumaihuynh/storefront/internal/model"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

type fakeAPI struct {
	fakeSource

	product   model.Product
	getErr    error
	uploadErr error
	rateErr   error
	token     string
	authErr   error

	uploaded  []apiclient.UploadProductInput
	rated     []float64
	authTypes []string
}

func (f *fakeAPI) GetProduct(_ context.Context, id string) (model.Product, error) {
	if f.getErr != nil {
		return model.Product{}, f.getErr
	}
	return f.product, nil
}

func (f *fakeAPI) UploadProduct(_ context.Context, _ string, in apiclient.UploadProductInput) (model.Product, error) {
	f.uploaded = append(f.uploaded, in)
	return model.Product{Name: in.Name}, f.uploadErr
}

func (f *fakeAPI) RateProduct(_ context.Context, _, _ string, score float64) (model.Product, error) {
	f.rated = append(f.rated, score)
	return f.product, f.rateErr
}

func (f *fakeAPI) Authenticate(_ context.Context, _, _, authType string) (string, error) {
	f.authTypes = append(f.authTypes, authType)
	return f.token, f.authErr
}

type webFixture struct {
	api     *fakeAPI
	router  chi.Router
	changes []AuthChange
}

func newWebFixture(t *testing.T) *webFixture {
	t.Helper()

	f := &webFixture{api: &fakeAPI{token: signedToken(t, "user-1", "a@example.com")}}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	events := NewEvents()
	require.NoError(t, events.OnAuthChanged(func(c AuthChange) { f.changes = append(f.changes, c) }))

	catalog, err := NewCatalog(f.api, time.Hour, 8, events)
	require.NoError(t, err)

	sessions := NewSessionStore(config.Web{SessionKey: "0123456789abcdef0123456789abcdef"})
	h, err := NewHandler(logger, f.api, sessions, events, catalog)
	require.NoError(t, err)

	f.router = chi.NewRouter()
	h.Register(f.router)
	return f
}

func (f *webFixture) serve(req *http.Request, cookies []*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *webFixture) login(t *testing.T) []*http.Cookie {
	t.Helper()

	rec := f.serve(formRequest("/login", url.Values{"email": {"a@example.com"}, "password": {"secret123"}}), nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	return rec.Result().Cookies()
}

func signedToken(t *testing.T, sub, email string) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   sub,
		"email": email,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func formRequest(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func uploadRequest(t *testing.T, fields map[string]string, image []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if image != nil {
		fw, err := mw.CreateFormFile("image", "product.png")
		require.NoError(t, err)
		_, err = fw.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func validUploadFields() map[string]string {
	return map[string]string{
		"name":        "Desk Lamp",
		"description": "Warm light",
		"category":    "Home",
		"price":       "19.99",
		"quantity":    "3",
		"rating":      "4",
	}
}

func TestCatalogPage(t *testing.T) {
	t.Run("Should render top rated and all products", func(t *testing.T) {
		f := newWebFixture(t)
		f.api.top = []model.Product{{ID: uuid.New(), Name: "Best Lamp", Rating: 5}}
		f.api.products = []model.Product{{ID: uuid.New(), Name: "Plain Chair", Status: model.ProductStatusInactive}}

		rec := f.serve(httptest.NewRequest(http.MethodGet, "/", nil), nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Best Lamp")
		assert.Contains(t, rec.Body.String(), "Plain Chair")
		assert.Contains(t, rec.Body.String(), "inactive")
		assert.Contains(t, rec.Body.String(), `href="/login"`)
	})

	t.Run("Should show an error when the API is unreachable", func(t *testing.T) {
		f := newWebFixture(t)
		f.api.err = assert.AnError

		rec := f.serve(httptest.NewRequest(http.MethodGet, "/", nil), nil)

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, rec.Body.String(), "Failed to fetch products")
	})

	t.Run("Should only inline image data urls", func(t *testing.T) {
		f := newWebFixture(t)
		f.api.products = []model.Product{
			{ID: uuid.New(), Name: "Good", Image: "data:image/png;base64,iVBORw0KGgo="},
			{ID: uuid.New(), Name: "Bad", Image: "javascript:alert(1)"},
		}

		rec := f.serve(httptest.NewRequest(http.MethodGet, "/", nil), nil)

		assert.Contains(t, rec.Body.String(), `src="data:image/png;base64,iVBORw0KGgo="`)
		assert.NotContains(t, rec.Body.String(), "javascript:")
	})
}

func TestProductPage(t *testing.T) {
	t.Run("Should render the product with a rate form for signed in users", func(t *testing.T) {
		f := newWebFixture(t)
		f.api.product = model.Product{ID: uuid.New(), Name: "Desk Lamp", Rating: 3.5, Ratings: []float64{3, 4}}
		cookies := f.login(t)

		rec := f.serve(httptest.NewRequest(http.MethodGet, "/products/"+f.api.product.ID.String(), nil), cookies)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Desk Lamp")
		assert.Contains(t, rec.Body.String(), "3.5 from 2 ratings")
		assert.Contains(t, rec.Body.String(), "/products/"+f.api.product.ID.String()+"/rate")
	})

	t.Run("Should pass through a not found from the API", func(t *testing.T) {
		f := newWebFixture(t)
		f.api.getErr = &apiclient.Error{StatusCode: http.StatusNotFound, Code: "PRODUCT_NOT_FOUND", Message: "Product not found"}

		rec := f.serve(httptest.NewRequest(http.MethodGet, "/products/"+uuid.NewString(), nil), nil)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "Product not found")
	})
}

func TestAuthPages(t *testing.T) {
	t.Run("Should store the session and publish the login", func(t *testing.T) {
		f := newWebFixture(t)

		cookies := f.login(t)

		require.NotEmpty(t, cookies)
		assert.Equal(t, []string{"login"}, f.api.authTypes)
		require.Len(t, f.changes, 1)
		assert.Equal(t, AuthChange{Subject: "user-1", Email: "a@example.com", LoggedIn: true}, f.changes[0])

		rec := f.serve(httptest.NewRequest(http.MethodGet, "/", nil), cookies)
		assert.Contains(t, rec.Body.String(), "a@example.com")
		assert.Contains(t, rec.Body.String(), `href="/upload"`)
	})

	t.Run("Should sign up through the API", func(t *testing.T) {
		f := newWebFixture(t)

		rec := f.serve(formRequest("/signup", url.Values{"email": {"a@example.com"}, "password": {"secret123"}}), nil)

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, []string{"signup"}, f.api.authTypes)
	})

	t.Run("Should re-render the form on rejected credentials", func(t *testing.T) {
		f := newWebFixture(t)
		f.api.authErr = &apiclient.Error{StatusCode: http.StatusUnauthorized, Message: "Invalid email or password"}

		rec := f.serve(formRequest("/login", url.Values{"email": {"a@example.com"}, "password": {"nope"}}), nil)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid email or password")
		assert.Contains(t, rec.Body.String(), `value="a@example.com"`)
		assert.Empty(t, f.changes)
	})

	t.Run("Should clear the session on logout", func(t *testing.T) {
		f := newWebFixture(t)
		cookies := f.login(t)

		rec := f.serve(httptest.NewRequest(http.MethodPost, "/logout", nil), cookies)

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		require.Len(t, f.changes, 2)
		assert.False(t, f.changes[1].LoggedIn)

		rec = f.serve(httptest.NewRequest(http.MethodGet, "/upload", nil), rec.Result().Cookies())
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
	})
}

func TestUploadPage(t *testing.T) {
	t.Run("Should redirect anonymous users to login", func(t *testing.T) {
		f := newWebFixture(t)

		rec := f.serve(uploadRequest(t, validUploadFields(), pngHeader), nil)

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
		assert.Empty(t, f.api.uploaded)
	})

	t.Run("Should submit the product and refresh the catalog", func(t *testing.T) {
		f := newWebFixture(t)
		cookies := f.login(t)

		rec := f.serve(httptest.NewRequest(http.MethodGet, "/", nil), cookies)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, 1, f.api.listCalls)

		rec = f.serve(uploadRequest(t, validUploadFields(), pngHeader), cookies)

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/", rec.Header().Get("Location"))
		require.Len(t, f.api.uploaded, 1)

		in := f.api.uploaded[0]
		assert.Equal(t, "Desk Lamp", in.Name)
		assert.Equal(t, 19.99, in.Price)
		assert.Equal(t, 3, in.Quantity)
		require.NotNil(t, in.Rating)
		assert.Equal(t, 4.0, *in.Rating)
		assert.True(t, strings.HasPrefix(in.Image, "data:image/png;base64,"))

		rec = f.serve(httptest.NewRequest(http.MethodGet, "/", nil), rec.Result().Cookies())
		assert.Equal(t, 2, f.api.listCalls)
		assert.Contains(t, rec.Body.String(), "Product added successfully!")
	})

	t.Run("Should keep entered values when the API rejects the product", func(t *testing.T) {
		f := newWebFixture(t)
		f.api.uploadErr = &apiclient.Error{StatusCode: http.StatusBadRequest, Code: "VALIDATION_FAILED", Message: "Missing required fields"}
		cookies := f.login(t)

		rec := f.serve(uploadRequest(t, validUploadFields(), pngHeader), cookies)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Missing required fields")
		assert.Contains(t, rec.Body.String(), `value="Desk Lamp"`)
	})

	t.Run("Should reject a file that is not an image", func(t *testing.T) {
		f := newWebFixture(t)
		cookies := f.login(t)

		rec := f.serve(uploadRequest(t, validUploadFields(), []byte("just some text")), cookies)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "not an image")
		assert.Empty(t, f.api.uploaded)
	})

	t.Run("Should require a positive price", func(t *testing.T) {
		f := newWebFixture(t)
		cookies := f.login(t)

		fields := validUploadFields()
		fields["price"] = "0"
		rec := f.serve(uploadRequest(t, fields, pngHeader), cookies)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Price must be a positive number")
	})

	t.Run("Should drop the session when the API rejects the token", func(t *testing.T) {
		f := newWebFixture(t)
		f.api.uploadErr = &apiclient.Error{StatusCode: http.StatusForbidden, Code: "INVALID_TOKEN"}
		cookies := f.login(t)

		rec := f.serve(uploadRequest(t, validUploadFields(), pngHeader), cookies)

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
		require.Len(t, f.changes, 2)
		assert.False(t, f.changes[1].LoggedIn)
	})
}

func TestRate(t *testing.T) {
	t.Run("Should submit the score and flash a thank you", func(t *testing.T) {
		f := newWebFixture(t)
		id := uuid.New()
		f.api.product = model.Product{ID: id, Name: "Desk Lamp"}
		cookies := f.login(t)

		rec := f.serve(formRequest("/products/"+id.String()+"/rate", url.Values{"rating": {"4.5"}}), cookies)

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/products/"+id.String(), rec.Header().Get("Location"))
		assert.Equal(t, []float64{4.5}, f.api.rated)

		rec = f.serve(httptest.NewRequest(http.MethodGet, "/products/"+id.String(), nil), rec.Result().Cookies())
		assert.Contains(t, rec.Body.String(), "Thanks for rating!")
	})

	t.Run("Should redirect anonymous users to login", func(t *testing.T) {
		f := newWebFixture(t)

		rec := f.serve(formRequest("/products/"+uuid.NewString()+"/rate", url.Values{"rating": {"4"}}), nil)

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Empty(t, f.api.rated)
	})
}

func TestStars(t *testing.T) {
	assert.Equal(t, "☆☆☆☆☆", stars(0))
	assert.Equal(t, "★★★⯨☆", stars(3.5))
	assert.Equal(t, "★★★★★", stars(5))
}
