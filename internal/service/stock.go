package service

import (
	"context"
	"time"

	"conversation-analytics/backend/internal/models"
	"conversation-analytics/backend/pkg/query"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
)

const stockColumns = `st.id, st.company_name, st.brand, st.model, st.year, st.price, st.mileage,
	st.category, st.fuel_type, st.transmission, st.location, st.media_urls, st.created_at`

type stockRow struct {
	ID           int64     `db:"id"`
	CompanyName  string    `db:"company_name"`
	Brand        *string   `db:"brand"`
	Model        *string   `db:"model"`
	Year         *int      `db:"year"`
	Price        *float64  `db:"price"`
	Mileage      *float64  `db:"mileage"`
	Category     *string   `db:"category"`
	FuelType     *string   `db:"fuel_type"`
	Transmission *string   `db:"transmission"`
	Location     *string   `db:"location"`
	MediaURLs    []byte    `db:"media_urls"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r stockRow) item() models.StockItem {
	media := datatypes.JSON(r.MediaURLs)
	if len(media) == 0 {
		media = datatypes.JSON(`[]`)
	}
	return models.StockItem{
		ID:           r.ID,
		CompanyName:  r.CompanyName,
		Brand:        r.Brand,
		Model:        r.Model,
		Year:         r.Year,
		Price:        r.Price,
		Mileage:      r.Mileage,
		Category:     r.Category,
		FuelType:     r.FuelType,
		Transmission: r.Transmission,
		Location:     r.Location,
		MediaURLs:    media,
		CreatedAt:    r.CreatedAt,
	}
}

// StockFilter narrows the inventory list. Empty strings and nil bounds are ignored.
type StockFilter struct {
	Brand        string
	Model        string
	Location     string
	Category     string
	FuelType     string
	Transmission string
	MinPrice     *float64
	MaxPrice     *float64
	MinYear      *int
	MaxYear      *int
	Page         query.Page
}

// StockFilters lists the distinct values available to filter on
type StockFilters struct {
	Brands        []string `json:"brands"`
	Categories    []string `json:"categories"`
	FuelTypes     []string `json:"fuel_types"`
	Transmissions []string `json:"transmissions"`
	Locations     []string `json:"locations"`
}

// StockService serves inventory. Stock rows are keyed by company name, so
// every call resolves the tenant's name first.
type StockService struct {
	db query.Querier
}

// NewStockService creates a stock service
func NewStockService(db query.Querier) *StockService {
	return &StockService{db: db}
}

func (s *StockService) companyName(ctx context.Context, companyID int64) (string, error) {
	sql, args := query.Compose(query.Raw("SELECT name FROM companies WHERE id = ?", companyID))
	var name string
	if err := s.db.QueryRow(ctx, sql, args...).Scan(&name); err != nil {
		return "", notFound(err, "Company")
	}
	return name, nil
}

// List returns the tenant's inventory, newest first
func (s *StockService) List(ctx context.Context, companyID int64, f StockFilter) (query.Result[models.StockItem], error) {
	name, err := s.companyName(ctx, companyID)
	if err != nil {
		return query.Result[models.StockItem]{}, err
	}

	where := query.NewBuilder(query.Raw("st.company_name = ?", name)).
		Contains(f.Brand, "st.brand").
		Contains(f.Model, "st.model").
		Contains(f.Location, "st.location").
		EqualFold("st.category", f.Category).
		EqualFold("st.fuel_type", f.FuelType).
		EqualFold("st.transmission", f.Transmission)
	where.When(f.MinPrice != nil, "st.price >= ?", deref(f.MinPrice))
	where.When(f.MaxPrice != nil, "st.price <= ?", deref(f.MaxPrice))
	where.When(f.MinYear != nil, "st.year >= ?", deref(f.MinYear))
	where.When(f.MaxYear != nil, "st.year <= ?", deref(f.MaxYear))

	q := query.PageQuery{
		Columns:  query.Expr{SQL: stockColumns},
		From:     query.Expr{SQL: "stock st"},
		Where:    where,
		OrderBy:  "st.created_at DESC, st.id DESC",
		CountKey: "st.id",
	}

	res, err := query.Paginate[stockRow](ctx, s.db, q, f.Page)
	if err != nil {
		return query.Result[models.StockItem]{}, storageErr(err)
	}
	return query.MapResult(res, stockRow.item), nil
}

// Get returns one inventory item of the tenant
func (s *StockService) Get(ctx context.Context, companyID, stockID int64) (models.StockItem, error) {
	name, err := s.companyName(ctx, companyID)
	if err != nil {
		return models.StockItem{}, err
	}
	where := query.NewBuilder(
		query.Raw("st.company_name = ?", name),
		query.Raw("st.id = ?", stockID),
	)
	row, err := query.One[stockRow](ctx, s.db, query.Select(stockColumns, "stock st", where)...)
	if err != nil {
		return models.StockItem{}, notFound(err, "Stock item")
	}
	return row.item(), nil
}

// Filters returns the distinct non-empty values of each categorical column
func (s *StockService) Filters(ctx context.Context, companyID int64) (StockFilters, error) {
	name, err := s.companyName(ctx, companyID)
	if err != nil {
		return StockFilters{}, err
	}

	var out StockFilters
	targets := []struct {
		column string
		dest   *[]string
	}{
		{"brand", &out.Brands},
		{"category", &out.Categories},
		{"fuel_type", &out.FuelTypes},
		{"transmission", &out.Transmissions},
		{"location", &out.Locations},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range targets {
		g.Go(func() error {
			sql, args := query.Compose(query.Raw(
				"SELECT DISTINCT "+t.column+" FROM stock WHERE company_name = ? AND "+
					t.column+" IS NOT NULL AND "+t.column+" <> '' ORDER BY "+t.column, name))
			rows, err := s.db.Query(gctx, sql, args...)
			if err != nil {
				return err
			}
			values, err := pgx.CollectRows(rows, pgx.RowTo[string])
			if err != nil {
				return err
			}
			if values == nil {
				values = []string{}
			}
			*t.dest = values
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return StockFilters{}, storageErr(err)
	}
	return out, nil
}

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
