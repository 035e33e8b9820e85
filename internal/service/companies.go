package service

import (
	"context"
	"encoding/json"
	"strings"

	"conversation-analytics/backend/internal/models"
	apperrors "conversation-analytics/backend/pkg/errors"
	"conversation-analytics/backend/pkg/query"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CompanyInput is the writable part of a company. Nil fields are left
// unchanged on update.
type CompanyInput struct {
	Name       *string         `json:"name"`
	Context    *string         `json:"context"`
	DealerInfo json.RawMessage `json:"dealer_info"`
}

func (in CompanyInput) validate(create bool) error {
	if in.Name == nil {
		if create {
			return apperrors.BadRequestWithDetails(apperrors.CodeInvalidInput, "name is required", map[string]any{"field": "name"})
		}
	} else if strings.TrimSpace(*in.Name) == "" {
		return apperrors.BadRequestWithDetails(apperrors.CodeInvalidInput, "name must not be empty", map[string]any{"field": "name"})
	}
	if len(in.DealerInfo) > 0 && !json.Valid(in.DealerInfo) {
		return apperrors.BadRequestWithDetails(apperrors.CodeInvalidInput, "dealer_info must be valid JSON", map[string]any{"field": "dealer_info"})
	}
	return nil
}

// CompanyService manages tenants through the ORM
type CompanyService struct {
	orm *gorm.DB
}

// NewCompanyService creates a company service
func NewCompanyService(orm *gorm.DB) *CompanyService {
	return &CompanyService{orm: orm}
}

// Create inserts a company; a duplicate name is a conflict
func (s *CompanyService) Create(ctx context.Context, in CompanyInput) (models.Company, error) {
	if err := in.validate(true); err != nil {
		return models.Company{}, err
	}
	company := models.Company{Name: *in.Name, DealerInfo: datatypes.JSON(in.DealerInfo)}
	if in.Context != nil {
		company.Context = *in.Context
	}
	if err := s.orm.WithContext(ctx).Create(&company).Error; err != nil {
		return models.Company{}, storageErr(err)
	}
	return company, nil
}

// CompanyFilter narrows the company list. When Restricted is set only the
// companies in IDs are listed.
type CompanyFilter struct {
	Search     string
	IDs        []int64
	Restricted bool
	Page       query.Page
}

// List returns companies ordered by name, optionally filtered by a name substring
func (s *CompanyService) List(ctx context.Context, f CompanyFilter) (query.Result[models.Company], error) {
	p := f.Page
	if f.Restricted && len(f.IDs) == 0 {
		return query.Result[models.Company]{Items: []models.Company{}, Pagination: query.NewPagination(p, 0)}, nil
	}

	db := s.orm.WithContext(ctx).Model(&models.Company{})
	if f.Restricted {
		db = db.Where("id IN ?", f.IDs)
	}
	if f.Search != "" {
		db = db.Where("name ILIKE ?", "%"+query.EscapeLike(f.Search)+"%")
	}
	db = db.Session(&gorm.Session{})

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return query.Result[models.Company]{}, storageErr(err)
	}
	items := []models.Company{}
	if err := db.Order("name ASC, id ASC").Limit(p.Limit).Offset(p.Offset()).Find(&items).Error; err != nil {
		return query.Result[models.Company]{}, storageErr(err)
	}
	return query.Result[models.Company]{Items: items, Pagination: query.NewPagination(p, total)}, nil
}

// Get returns one company
func (s *CompanyService) Get(ctx context.Context, id int64) (models.Company, error) {
	var company models.Company
	if err := s.orm.WithContext(ctx).First(&company, id).Error; err != nil {
		return models.Company{}, notFound(err, "Company")
	}
	return company, nil
}

// Update applies the non-nil fields of in
func (s *CompanyService) Update(ctx context.Context, id int64, in CompanyInput) (models.Company, error) {
	if err := in.validate(false); err != nil {
		return models.Company{}, err
	}
	changes := map[string]any{}
	if in.Name != nil {
		changes["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Context != nil {
		changes["context"] = *in.Context
	}
	if len(in.DealerInfo) > 0 {
		changes["dealer_info"] = datatypes.JSON(in.DealerInfo)
	}

	var company models.Company
	err := s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&company, id).Error; err != nil {
			return err
		}
		if len(changes) == 0 {
			return nil
		}
		if err := tx.Model(&models.Company{}).Where("id = ?", id).Updates(changes).Error; err != nil {
			return err
		}
		return tx.First(&company, id).Error
	})
	if err != nil {
		return models.Company{}, notFound(err, "Company")
	}
	return company, nil
}

// Dependents counts the rows that reference a company
func (s *CompanyService) Dependents(ctx context.Context, id int64) (models.CompanyDependents, error) {
	deps, err := countDependents(s.orm.WithContext(ctx), id)
	return deps, storageErr(err)
}

func countDependents(tx *gorm.DB, id int64) (models.CompanyDependents, error) {
	var deps models.CompanyDependents
	if err := tx.Model(&models.ContactCompany{}).Where("company_id = ?", id).Count(&deps.Contacts).Error; err != nil {
		return deps, err
	}
	if err := tx.Model(&models.Session{}).Where("company_id = ?", id).Count(&deps.Sessions).Error; err != nil {
		return deps, err
	}
	if err := tx.Model(&models.Lead{}).Where("company_id = ?", id).Count(&deps.Leads).Error; err != nil {
		return deps, err
	}
	return deps, nil
}

// Delete removes a company that nothing references. The row is locked for
// the check so a concurrent insert of a dependent cannot slip in between.
func (s *CompanyService) Delete(ctx context.Context, id int64) error {
	err := s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var company models.Company
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&company, id).Error; err != nil {
			return err
		}
		deps, err := countDependents(tx, id)
		if err != nil {
			return err
		}
		if deps.Any() {
			return apperrors.ConflictWithDetails(apperrors.CodeDependentsExist,
				"Company has associated records and cannot be deleted", deps)
		}
		return tx.Delete(&models.Company{}, id).Error
	})
	if err != nil {
		return notFound(err, "Company")
	}
	return nil
}
