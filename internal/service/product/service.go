package product

import (
	"context"
	"errors"
	"sort"
	"strings"

	"storefront/internal/domain"
)

const FeaturedLimit = 8

var ErrUnknownSort = errors.New("unknown sort")

const (
	SortDefault   = ""
	SortPriceLow  = "price-low"
	SortPriceHigh = "price-high"
	SortName      = "name"
	SortNewest    = "newest"
)

var categorySlugs = map[string]string{
	"caps":    "caps",
	"hoodies": "hoodies",
	"pants":   "pants",
	"tshirts": "t-shirts",
}

// CategoryName maps a URL slug to the lowercase category name.
func CategoryName(slug string) string {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if name, ok := categorySlugs[slug]; ok {
		return name
	}
	return slug
}

type catalog interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id domain.ProductID) (*domain.Product, error)
}

type Service struct {
	catalog catalog
}

func New(catalog catalog) *Service {
	return &Service{catalog: catalog}
}

type ListInput struct {
	Category string
	Query    string
	Sort     string
}

// List filters by category and search text, then sorts. An empty or "all"
// category keeps every product.
func (s *Service) List(ctx context.Context, in ListInput) ([]domain.Product, error) {
	less, err := sorter(in.Sort)
	if err != nil {
		return nil, err
	}
	products, err := s.catalog.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	category := strings.TrimSpace(in.Category)
	query := strings.ToLower(strings.TrimSpace(in.Query))
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if category != "" && !strings.EqualFold(category, "all") &&
			strings.ToLower(p.CategoryName) != CategoryName(category) {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(p.Name), query) &&
			!strings.Contains(strings.ToLower(p.Description), query) {
			continue
		}
		out = append(out, p)
	}
	if less != nil {
		sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	}
	return out, nil
}

// Featured returns the first products in backend order.
func (s *Service) Featured(ctx context.Context) ([]domain.Product, error) {
	products, err := s.catalog.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	if len(products) > FeaturedLimit {
		products = products[:FeaturedLimit]
	}
	return products, nil
}

func (s *Service) Get(ctx context.Context, id domain.ProductID) (*domain.Product, error) {
	return s.catalog.GetProduct(ctx, id)
}

func sorter(name string) (func(a, b domain.Product) bool, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case SortDefault:
		return nil, nil
	case SortPriceLow:
		return func(a, b domain.Product) bool { return a.Price.LessThan(b.Price) }, nil
	case SortPriceHigh:
		return func(a, b domain.Product) bool { return a.Price.GreaterThan(b.Price) }, nil
	case SortName:
		return func(a, b domain.Product) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }, nil
	case SortNewest:
		return func(a, b domain.Product) bool { return a.CreatedTime().After(b.CreatedTime()) }, nil
	}
	return nil, ErrUnknownSort
}
