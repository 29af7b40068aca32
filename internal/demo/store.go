package demo

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Product statuses.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Product is one demo row.
type Product struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	SKU       string    `json:"sku"`
	Category  string    `json:"category"`
	Status    string    `json:"status"`
	Price     float64   `json:"price"`
	Stock     int       `json:"stock"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SortColumns lists the columns the store can order by.
//
//nolint:gochecknoglobals // Lookup table.
var SortColumns = []string{"id", "name", "sku", "category", "status", "price", "stock", "updated_at"}

//nolint:gochecknoglobals // Seed vocabulary.
var (
	seedAdjectives = []string{"Classic", "Deluxe", "Mini", "Rustic", "Spicy", "Golden", "Smoky", "Frozen"}
	seedNouns      = []string{"Pizza", "Pizza Stone", "Pasta Bowl", "Espresso Cup", "Bread Knife", "Olive Oil", "Cutting Board", "Tea Kettle"}
	seedCategories = []string{"food", "kitchen", "drinks"}
)

// ListQuery selects a page of products.
type ListQuery struct {
	Search    string
	Status    string
	Category  string
	PriceMin  *float64
	PriceMax  *float64
	Sort      string
	Direction string
	Page      int
	PerPage   int
}

// ListResult is one page of products.
type ListResult struct {
	Rows        []Product
	Total       int
	CurrentPage int
	LastPage    int
	PerPage     int
}

// Store is a concurrency-safe in-memory product table. Every mutation bumps
// a version counter that serves as the freshness watermark.
type Store struct {
	mu       sync.RWMutex
	products []Product
	version  int64
	now      func() time.Time
}

// NewStore seeds n deterministic products.
func NewStore(n int) *Store {
	s := &Store{now: time.Now, version: 1}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.products = make([]Product, 0, n)
	for i := range n {
		id := i + 1
		status := StatusActive
		if id%4 == 0 {
			status = StatusInactive
		}
		s.products = append(s.products, Product{
			ID:        id,
			Name:      seedAdjectives[i%len(seedAdjectives)] + " " + seedNouns[(i/len(seedAdjectives))%len(seedNouns)],
			SKU:       fmt.Sprintf("SKU-%05d", id),
			Category:  seedCategories[i%len(seedCategories)],
			Status:    status,
			Price:     float64(5+(i*37)%200) + 0.99,
			Stock:     (i * 13) % 120,
			UpdatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	return s
}

// Watermark returns the current freshness token.
func (s *Store) Watermark() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return strconv.FormatInt(s.version, 10)
}

// Len returns the number of products.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products)
}

// Get returns the product with id.
func (s *Store) Get(id int) (Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

// List filters, sorts and pages the products. Pages past the end return no rows.
func (s *Store) List(q ListQuery) ListResult {
	s.mu.RLock()
	matched := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		if q.matches(p) {
			matched = append(matched, p)
		}
	}
	s.mu.RUnlock()

	sortProducts(matched, q.Sort, q.Direction)

	perPage := q.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	page := max(q.Page, 1)
	lastPage := max((len(matched)+perPage-1)/perPage, 1)

	res := ListResult{
		Total:       len(matched),
		CurrentPage: page,
		LastPage:    lastPage,
		PerPage:     perPage,
		Rows:        []Product{},
	}
	start := (page - 1) * perPage
	if start < len(matched) {
		end := min(start+perPage, len(matched))
		res.Rows = matched[start:end]
	}
	return res
}

func (q ListQuery) matches(p Product) bool {
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		if !strings.Contains(strings.ToLower(p.Name), needle) &&
			!strings.Contains(strings.ToLower(p.SKU), needle) {
			return false
		}
	}
	if q.Status != "" && p.Status != q.Status {
		return false
	}
	if q.Category != "" && p.Category != q.Category {
		return false
	}
	if q.PriceMin != nil && p.Price < *q.PriceMin {
		return false
	}
	if q.PriceMax != nil && p.Price > *q.PriceMax {
		return false
	}
	return true
}

func sortProducts(rows []Product, column, direction string) {
	if column == "" {
		column = "id"
	}
	desc := direction == "desc"
	slices.SortStableFunc(rows, func(a, b Product) int {
		var c int
		switch column {
		case "name":
			c = strings.Compare(a.Name, b.Name)
		case "sku":
			c = strings.Compare(a.SKU, b.SKU)
		case "category":
			c = strings.Compare(a.Category, b.Category)
		case "status":
			c = strings.Compare(a.Status, b.Status)
		case "price":
			c = cmp.Compare(a.Price, b.Price)
		case "stock":
			c = cmp.Compare(a.Stock, b.Stock)
		case "updated_at":
			c = a.UpdatedAt.Compare(b.UpdatedAt)
		default:
			c = cmp.Compare(a.ID, b.ID)
		}
		if desc {
			return -c
		}
		return c
	})
}

// Delete removes the products with the given ids and returns how many existed.
func (s *Store) Delete(ids []int) int {
	drop := make(map[int]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.products)
	s.products = slices.DeleteFunc(s.products, func(p Product) bool { return drop[p.ID] })
	removed := before - len(s.products)
	if removed > 0 {
		s.version++
	}
	return removed
}

// SetStatus updates the status of the given products and returns how many matched.
func (s *Store) SetStatus(ids []int, status string) int {
	want := make(map[int]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	updated := 0
	for i := range s.products {
		if want[s.products[i].ID] {
			s.products[i].Status = status
			s.products[i].UpdatedAt = now
			updated++
		}
	}
	if updated > 0 {
		s.version++
	}
	return updated
}

// Touch marks a product as changed out of band, bumping the watermark.
func (s *Store) Touch(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.products {
		if s.products[i].ID == id {
			s.products[i].UpdatedAt = s.now()
			s.products[i].Stock++
			s.version++
			return true
		}
	}
	return false
}
