package product

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/weddify/binks/internal/apperr"
	"github.com/weddify/binks/internal/infrastructure/store"
	"github.com/weddify/binks/internal/model"
)

var (
	ErrProductNotFound = apperr.NotFound("product")
	ErrInvalidPrice    = apperr.BadRequest("price must not be negative")
	ErrInvalidTitle    = apperr.BadRequest("title is required")
	ErrDuplicateSlug   = apperr.Conflict("product slug already exists")
)

// Input carries the editable catalogue fields. An empty Slug is derived from Title.
type Input struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Price       int64  `json:"price"`
	IsActive    *bool  `json:"is_active,omitempty"`
}

// Service is the product catalogue. Stock counters are owned by the ledger.
type Service struct {
	store store.Store
	now   func() time.Time
}

func NewService(st store.Store) *Service {
	return &Service{store: st, now: time.Now}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// List returns the catalogue, newest first.
func (s *Service) List(ctx context.Context, activeOnly bool) ([]model.Product, error) {
	var products []model.Product
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		products, err = tx.ListProducts(ctx, activeOnly)
		return err
	})
	if products == nil {
		products = []model.Product{}
	}
	return products, err
}

// Get looks a product up by id or slug. Inactive products are hidden unless includeInactive.
func (s *Service) Get(ctx context.Context, idOrSlug string, includeInactive bool) (*model.Product, error) {
	var p *model.Product
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		p, err = tx.GetProduct(ctx, idOrSlug)
		return err
	})
	if errors.Is(err, store.ErrNotFound) || (err == nil && !p.IsActive && !includeInactive) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Create(ctx context.Context, in Input) (*model.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	p := &model.Product{
		ID:          uuid.New().String(),
		Slug:        in.slug(),
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Image:       in.Image,
		Price:       in.Price,
		IsActive:    in.IsActive == nil || *in.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertProduct(ctx, p)
	})
	if errors.Is(err, store.ErrDuplicateKey) {
		return nil, ErrDuplicateSlug
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Update rewrites the catalogue fields of an existing product.
func (s *Service) Update(ctx context.Context, id string, in Input) (*model.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var p *model.Product
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		p, err = tx.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		p.Slug = in.slug()
		p.Title = strings.TrimSpace(in.Title)
		p.Description = in.Description
		p.Image = in.Image
		p.Price = in.Price
		if in.IsActive != nil {
			p.IsActive = *in.IsActive
		}
		p.UpdatedAt = s.now()
		return tx.UpdateProduct(ctx, p)
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, ErrProductNotFound
	case errors.Is(err, store.ErrDuplicateKey):
		return nil, ErrDuplicateSlug
	case err != nil:
		return nil, err
	}
	return p, nil
}

func (in Input) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return ErrInvalidTitle
	}
	if in.Price < 0 {
		return ErrInvalidPrice
	}
	return nil
}

func (in Input) slug() string {
	if s := Slugify(in.Slug); s != "" {
		return s
	}
	return Slugify(in.Title)
}

// Slugify lowercases s and joins its alphanumeric runs with hyphens.
func Slugify(s string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('-')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}
