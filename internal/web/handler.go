// Package web serves the server-rendered catalog, product, upload and login
// pages. Every read and write goes through the public API over HTTP.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tuanvumaihuynh/storefront/internal/apiclient"
	"github.com/tuanvumaihuynh/storefront/internal/model"
	"github.com/tuanvumaihuynh/storefront/pkg/dataurl"
)

// maxUploadBytes keeps the base64 encoded image under the API body limit.
const maxUploadBytes = 6 << 20

//go:embed templates/*.html
var templateFS embed.FS

// API is the part of the public API the pages use.
type API interface {
	ProductSource
	GetProduct(ctx context.Context, id string) (model.Product, error)
	UploadProduct(ctx context.Context, token string, in apiclient.UploadProductInput) (model.Product, error)
	RateProduct(ctx context.Context, token, id string, score float64) (model.Product, error)
	Authenticate(ctx context.Context, email, password, authType string) (string, error)
}

type Handler struct {
	logger   *slog.Logger
	api      API
	sessions *SessionStore
	events   Events
	catalog  *Catalog
	pages    map[string]*template.Template
}

func NewHandler(logger *slog.Logger, api API, sessions *SessionStore, events Events, catalog *Catalog) (*Handler, error) {
	pages, err := parsePages("catalog.html", "product.html", "upload.html", "auth.html")
	if err != nil {
		return nil, err
	}

	h := &Handler{
		logger:   logger.With(slog.String("service", "web")),
		api:      api,
		sessions: sessions,
		events:   events,
		catalog:  catalog,
		pages:    pages,
	}

	if err := events.OnAuthChanged(h.logAuthChange); err != nil {
		return nil, err
	}

	return h, nil
}

// Register mounts the pages on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/", h.Catalog)
	r.Get("/products/{id}", h.Product)
	r.Post("/products/{id}/rate", h.Rate)
	r.Get("/upload", h.UploadForm)
	r.Post("/upload", h.Upload)
	r.Get("/login", h.LoginForm)
	r.Post("/login", h.Login)
	r.Get("/signup", h.SignupForm)
	r.Post("/signup", h.Signup)
	r.Post("/logout", h.Logout)
}

type page struct {
	Session Session
	Flashes []string
	Error   string
	Data    any
}

type uploadForm struct {
	Name        string
	Description string
	Category    string
	Price       string
	Quantity    string
	Rating      string
}

type authForm struct {
	Title  string
	Action string
	Email  string
}

func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Load(r)

	view, err := h.catalog.View(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "error loading catalog", slog.Any("error", err))
		h.render(w, r, http.StatusBadGateway, "catalog.html", page{
			Session: sess,
			Error:   "Failed to fetch products",
			Data:    CatalogView{},
		})
		return
	}

	h.render(w, r, http.StatusOK, "catalog.html", page{Session: sess, Data: view})
}

func (h *Handler) Product(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Load(r)

	product, err := h.api.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		status, msg := h.apiFailure(r, err, "Failed to fetch product")
		h.render(w, r, status, "catalog.html", page{Session: sess, Error: msg, Data: CatalogView{}})
		return
	}

	h.render(w, r, http.StatusOK, "product.html", page{Session: sess, Data: product})
}

func (h *Handler) Rate(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Load(r)
	if !sess.Authenticated() {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	id := chi.URLParam(r, "id")
	back := "/products/" + id

	score, err := strconv.ParseFloat(r.FormValue("rating"), 64)
	if err != nil {
		h.flashAndRedirect(w, r, "Rating must be a number", back)
		return
	}

	if _, err := h.api.RateProduct(r.Context(), sess.Token, id, score); err != nil {
		if apiclient.IsUnauthorized(err) {
			h.expireSession(w, r, sess)
			return
		}
		_, msg := h.apiFailure(r, err, "Failed to submit rating")
		h.flashAndRedirect(w, r, msg, back)
		return
	}

	h.events.PublishCatalogChanged()
	h.flashAndRedirect(w, r, "Thanks for rating!", back)
}

func (h *Handler) UploadForm(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Load(r)
	if !sess.Authenticated() {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	h.render(w, r, http.StatusOK, "upload.html", page{Session: sess, Data: uploadForm{}})
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Load(r)
	if !sess.Authenticated() {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.render(w, r, http.StatusBadRequest, "upload.html", page{
			Session: sess,
			Error:   "Upload is too large or malformed",
			Data:    uploadForm{},
		})
		return
	}

	form := uploadForm{
		Name:        strings.TrimSpace(r.FormValue("name")),
		Description: strings.TrimSpace(r.FormValue("description")),
		Category:    strings.TrimSpace(r.FormValue("category")),
		Price:       r.FormValue("price"),
		Quantity:    r.FormValue("quantity"),
		Rating:      r.FormValue("rating"),
	}

	in, err := buildUploadInput(r, form)
	if err != nil {
		msg := "Could not read the upload"
		var fe formError
		if errors.As(err, &fe) {
			msg = string(fe)
		} else {
			h.logger.WarnContext(r.Context(), "error reading upload", slog.Any("error", err))
		}
		h.render(w, r, http.StatusBadRequest, "upload.html", page{Session: sess, Error: msg, Data: form})
		return
	}

	if _, err := h.api.UploadProduct(r.Context(), sess.Token, in); err != nil {
		if apiclient.IsUnauthorized(err) {
			h.expireSession(w, r, sess)
			return
		}
		status, msg := h.apiFailure(r, err, "Failed to upload product")
		h.render(w, r, status, "upload.html", page{Session: sess, Error: msg, Data: form})
		return
	}

	h.events.PublishCatalogChanged()
	h.flashAndRedirect(w, r, "Product added successfully!", "/")
}

func (h *Handler) LoginForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "auth.html", page{
		Session: h.sessions.Load(r),
		Data:    authForm{Title: "Login", Action: "/login"},
	})
}

func (h *Handler) SignupForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "auth.html", page{
		Session: h.sessions.Load(r),
		Data:    authForm{Title: "Sign up", Action: "/signup"},
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, "login", authForm{Title: "Login", Action: "/login"})
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, "signup", authForm{Title: "Sign up", Action: "/signup"})
}

func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request, authType string, form authForm) {
	form.Email = strings.TrimSpace(r.FormValue("email"))

	token, err := h.api.Authenticate(r.Context(), form.Email, r.FormValue("password"), authType)
	if err != nil {
		status, msg := h.apiFailure(r, err, "Authentication failed")
		h.render(w, r, status, "auth.html", page{Error: msg, Data: form})
		return
	}

	sess, err := h.sessions.Login(w, r, token)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "error storing session", slog.Any("error", err))
		h.render(w, r, http.StatusInternalServerError, "auth.html", page{Error: "Could not start session", Data: form})
		return
	}

	h.events.PublishAuthChanged(AuthChange{Subject: sess.Subject, Email: sess.Email, LoggedIn: true})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Load(r)

	if err := h.sessions.Logout(w, r); err != nil {
		h.logger.ErrorContext(r.Context(), "error clearing session", slog.Any("error", err))
	}

	if sess.Authenticated() {
		h.events.PublishAuthChanged(AuthChange{Subject: sess.Subject, Email: sess.Email, LoggedIn: false})
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// expireSession drops a session whose token the API no longer accepts.
func (h *Handler) expireSession(w http.ResponseWriter, r *http.Request, sess Session) {
	//nolint:errcheck
	h.sessions.Logout(w, r)
	h.events.PublishAuthChanged(AuthChange{Subject: sess.Subject, Email: sess.Email, LoggedIn: false})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *Handler) flashAndRedirect(w http.ResponseWriter, r *http.Request, msg, to string) {
	if err := h.sessions.AddFlash(w, r, msg); err != nil {
		h.logger.WarnContext(r.Context(), "error storing flash", slog.Any("error", err))
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// apiFailure maps an API client error to the status and message shown to the
// user. Messages of API rejections are safe to show; transport errors are not.
func (h *Handler) apiFailure(r *http.Request, err error, fallback string) (int, string) {
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError {
		return apiErr.StatusCode, apiErr.Message
	}

	h.logger.ErrorContext(r.Context(), "api call failed", slog.Any("error", err))
	return http.StatusBadGateway, fallback
}

func (h *Handler) logAuthChange(change AuthChange) {
	h.logger.Info("session auth changed",
		slog.String("subject", change.Subject),
		slog.Bool("logged_in", change.LoggedIn),
	)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, p page) {
	if p.Flashes == nil {
		p.Flashes = h.sessions.PopFlashes(w, r)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	if err := h.pages[name].ExecuteTemplate(w, "layout", p); err != nil {
		h.logger.ErrorContext(r.Context(), "error rendering page",
			slog.String("page", name), slog.Any("error", err))
	}
}

// formError is a message about the submitted form, shown to the user as is.
type formError string

func (e formError) Error() string { return string(e) }

func buildUploadInput(r *http.Request, form uploadForm) (apiclient.UploadProductInput, error) {
	if form.Name == "" || form.Description == "" || form.Category == "" {
		return apiclient.UploadProductInput{}, formError("All fields are required")
	}

	price, err := strconv.ParseFloat(form.Price, 64)
	if err != nil || price <= 0 {
		return apiclient.UploadProductInput{}, formError("Price must be a positive number")
	}

	quantity, err := strconv.Atoi(form.Quantity)
	if err != nil || quantity <= 0 {
		return apiclient.UploadProductInput{}, formError("Quantity must be a positive whole number")
	}

	in := apiclient.UploadProductInput{
		Name:        form.Name,
		Category:    form.Category,
		Price:       price,
		Quantity:    quantity,
		Description: form.Description,
	}

	if form.Rating != "" {
		score, err := strconv.ParseFloat(form.Rating, 64)
		if err != nil {
			return apiclient.UploadProductInput{}, formError("Rating must be a number")
		}
		in.Rating = &score
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		return apiclient.UploadProductInput{}, formError("Please upload an image")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return apiclient.UploadProductInput{}, fmt.Errorf("read image: %w", err)
	}

	in.Image, err = dataurl.EncodeImage(data)
	if err != nil {
		return apiclient.UploadProductInput{}, formError("The uploaded file is not an image")
	}

	return in, nil
}

func parsePages(names ...string) (map[string]*template.Template, error) {
	funcs := template.FuncMap{
		"imageURL": imageURL,
		"price":    func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) },
		"rating":   func(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) },
		"stars":    stars,
	}

	pages := make(map[string]*template.Template, len(names))
	for _, name := range names {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse page %s: %w", name, err)
		}
		pages[name] = t
	}

	return pages, nil
}

// imageURL marks inline image data as safe for a src attribute. Anything
// other than an image data URL is dropped.
func imageURL(s string) template.URL {
	if !strings.HasPrefix(s, "data:image/") {
		return ""
	}
	//nolint:gosec
	return template.URL(s)
}

// stars renders a 0-5 rating in half steps as text.
func stars(v float64) string {
	full := int(v)
	half := v-float64(full) >= 0.5

	var b strings.Builder
	for i := 0; i < 5; i++ {
		switch {
		case i < full:
			b.WriteString("★")
		case i == full && half:
			b.WriteString("⯨")
		default:
			b.WriteString("☆")
		}
	}
	return b.String()
}
