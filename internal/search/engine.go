package search

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"listmyspace/server/internal/geometry"
	"listmyspace/server/internal/models"
)

// Summary is the search view of a listing
type Summary struct {
	ID           uint                `json:"id"`
	PropertyType models.PropertyKind `json:"property_type"`
	Title        string              `json:"title"`
	Description  string              `json:"description"`
	AdAction     models.AdAction     `json:"ad_action"`
	City         string              `json:"city"`
	State        string              `json:"state"`
	Price        float64             `json:"price"`
	SurfaceArea  *float64            `json:"surface_area,omitempty"`
	LandArea     *float64            `json:"land_area,omitempty"`
	Latitude     float64             `json:"latitude"`
	Longitude    float64             `json:"longitude"`
	CreatedAt    time.Time           `json:"created_at"`
	Images       []string            `json:"images"`
	DistanceKm   *float64            `json:"distance_km,omitempty"`
}

// Page is one page of results with totals over the whole match set
type Page struct {
	Properties []Summary `json:"properties"`
	Page       int       `json:"page"`
	Pages      int       `json:"pages"`
	Total      int64     `json:"total_properties"`
}

func copyArea(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

// Summarize builds the search view of p
func Summarize(p models.Property) Summary {
	b := p.Base()
	surface, land := p.Areas()
	return Summary{
		ID:           b.ID,
		PropertyType: p.Kind(),
		Title:        b.Title,
		Description:  b.Description,
		AdAction:     b.AdAction,
		City:         b.City,
		State:        b.State,
		Price:        b.Price,
		SurfaceArea:  copyArea(surface),
		LandArea:     copyArea(land),
		Latitude:     b.Latitude,
		Longitude:    b.Longitude,
		CreatedAt:    b.CreatedAt,
		Images:       models.ImageURLs(p),
	}
}

type Engine struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewEngine(db *gorm.DB, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{db: db, logger: logger}
}

// Search returns the requested page of listings matching f, newest first.
// Without a kind the three variant tables are searched and merged.
func (e *Engine) Search(ctx context.Context, f Filter) (*Page, error) {
	if f.Page < 1 {
		f.Page = 1
	}

	var (
		results []models.Property
		total   int64
		err     error
	)
	if f.Kind != nil {
		results, total, err = e.searchKind(ctx, *f.Kind, f)
	} else {
		results, total, err = e.searchAll(ctx, f)
	}
	if err != nil {
		return nil, err
	}

	page := &Page{
		Properties: make([]Summary, 0, len(results)),
		Page:       f.Page,
		Pages:      int((total + PageSize - 1) / PageSize),
		Total:      total,
	}
	for _, p := range results {
		s := Summarize(p)
		if f.Near != nil {
			d := geometry.DistanceKm(f.Near.Center, geometry.Point(s.Latitude, s.Longitude))
			s.DistanceKm = &d
		}
		page.Properties = append(page.Properties, s)
	}

	e.logger.WithFields(logrus.Fields{
		"page":  page.Page,
		"total": page.Total,
		"kinds": len(f.Kinds()),
	}).Debug("Property search completed")

	return page, nil
}

func (e *Engine) searchKind(ctx context.Context, kind models.PropertyKind, f Filter) ([]models.Property, int64, error) {
	var total int64
	if err := e.query(ctx, kind, f).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count %s listings: %w", kind, err)
	}
	offset := f.offset()
	if offset < 0 || total <= int64(offset) {
		return nil, total, nil
	}

	rows, err := e.fetch(ctx, kind, f, PageSize, offset)
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// searchAll merges the variant tables. Each table only has to supply its first
// page*PageSize rows for the merged window to be exact.
func (e *Engine) searchAll(ctx context.Context, f Filter) ([]models.Property, int64, error) {
	counts := make(map[models.PropertyKind]int64, len(models.PropertyKinds))
	var total int64
	for _, kind := range models.PropertyKinds {
		var n int64
		if err := e.query(ctx, kind, f).Count(&n).Error; err != nil {
			return nil, 0, fmt.Errorf("failed to count %s listings: %w", kind, err)
		}
		counts[kind] = n
		total += n
	}

	offset := f.offset()
	if offset < 0 || total <= int64(offset) {
		return nil, total, nil
	}

	// offset < total here, so the limit cannot overflow
	limit := offset + PageSize
	var merged []models.Property
	for _, kind := range models.PropertyKinds {
		if counts[kind] == 0 {
			continue
		}
		rows, err := e.fetch(ctx, kind, f, limit, 0)
		if err != nil {
			return nil, 0, err
		}
		merged = append(merged, rows...)
	}

	sortNewestFirst(merged)

	end := limit
	if end > len(merged) {
		end = len(merged)
	}
	return merged[offset:end], total, nil
}

// sortNewestFirst orders by created_at desc, then variant order, then id desc
func sortNewestFirst(props []models.Property) {
	sort.SliceStable(props, func(i, j int) bool {
		a, b := props[i].Base(), props[j].Base()
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		if ka, kb := props[i].Kind().Order(), props[j].Kind().Order(); ka != kb {
			return ka < kb
		}
		return a.ID > b.ID
	})
}

// query applies the filters that make sense for kind
func (e *Engine) query(ctx context.Context, kind models.PropertyKind, f Filter) *gorm.DB {
	model, _ := models.NewProperty(kind)
	table := kind.Table()
	col := func(name string) string { return table + "." + name }

	q := e.db.WithContext(ctx).Model(model)

	if f.AdAction != "" {
		q = q.Where("LOWER("+col("ad_action")+") = LOWER(?)", f.AdAction)
	}
	if f.City != "" {
		q = q.Where("LOWER("+col("city")+") = LOWER(?)", f.City)
	}
	if f.State != "" {
		q = q.Where("LOWER("+col("state")+") = LOWER(?)", f.State)
	}

	q = applyRange(q, col("price"), f.Price)
	if kind != models.KindLand {
		q = applyRange(q, col("surface_area"), f.SurfaceArea)
	}
	if kind != models.KindCommercial {
		// NULL land areas never satisfy a bound
		q = applyRange(q, col("land_area"), f.LandArea)
	}

	if len(f.Features) > 0 {
		join := kind.FeatureTable()
		fk := join + "." + kind.ForeignKey()
		tagged := e.db.Table(join).
			Select(fk).
			Joins("JOIN features ON features.id = "+join+".feature_id").
			Where("features.name IN ?", f.Features).
			Group(fk).
			Having("COUNT(DISTINCT features.id) = ?", len(f.Features))
		q = q.Where(col("id")+" IN (?)", tagged)
	}

	if f.Near != nil {
		bound := geometry.BoundAround(f.Near.Center, f.Near.RadiusKm)
		q = q.Where(col("latitude")+" BETWEEN ? AND ?", bound.Min.Lat(), bound.Max.Lat()).
			Where(col("longitude")+" BETWEEN ? AND ?", bound.Min.Lon(), bound.Max.Lon())
	}
	return q
}

func applyRange(q *gorm.DB, column string, r Range) *gorm.DB {
	if r.empty() {
		return q
	}
	if r.Min != nil {
		q = q.Where(column+" >= ?", *r.Min)
	}
	if r.Max != nil {
		q = q.Where(column+" <= ?", *r.Max)
	}
	return q
}

func (e *Engine) fetch(ctx context.Context, kind models.PropertyKind, f Filter, limit, offset int) ([]models.Property, error) {
	table := kind.Table()
	q := e.query(ctx, kind, f).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("images.id") }).
		Order(table + ".created_at DESC").
		Order(table + ".id DESC").
		Limit(limit).
		Offset(offset)

	var (
		rows []models.Property
		err  error
	)
	switch kind {
	case models.KindResidence:
		rows, err = find[models.Residence](q)
	case models.KindCommercial:
		rows, err = find[models.Commercial](q)
	case models.KindLand:
		rows, err = find[models.Land](q)
	default:
		return nil, fmt.Errorf("invalid property type: %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s listings: %w", kind, err)
	}
	return rows, nil
}

func find[T any, PT interface {
	*T
	models.Property
}](q *gorm.DB) ([]models.Property, error) {
	var rows []T
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.Property, len(rows))
	for i := range rows {
		out[i] = PT(&rows[i])
	}
	return out, nil
}
