package ledger

import (
	"context"
	"strings"

	"meter-billing/internal/apperr"
	"meter-billing/internal/models"

	"gorm.io/gorm"
)

// Tenants owns the write path for tenant records.
type Tenants struct {
	DB *gorm.DB
}

func NewTenants(db *gorm.DB) *Tenants {
	return &Tenants{DB: db}
}

// TenantInput carries the writable tenant fields.
type TenantInput struct {
	Name          string
	Type          string
	Address       string
	ContactPerson string
	Phone         string
	Email         string
}

func validateTenantInput(in *TenantInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.ContactPerson = strings.TrimSpace(in.ContactPerson)
	in.Phone = strings.TrimSpace(in.Phone)

	if in.Name == "" {
		return apperr.InvalidField("tenant", "name", "名称不能为空")
	}
	if in.Type != models.TenantTypeOffice && in.Type != models.TenantTypeStorefront {
		return apperr.InvalidField("tenant", "type", "类型必须是 office 或 storefront")
	}
	if in.ContactPerson == "" {
		return apperr.InvalidField("tenant", "contact_person", "联系人不能为空")
	}
	if in.Phone == "" {
		return apperr.InvalidField("tenant", "phone", "电话不能为空")
	}
	return nil
}

// Create inserts a tenant after validation.
func (l *Tenants) Create(ctx context.Context, caller *Caller, in TenantInput) (*models.Tenant, error) {
	if err := requireCaller(caller, "tenant"); err != nil {
		return nil, err
	}
	if err := validateTenantInput(&in); err != nil {
		return nil, err
	}
	t := models.Tenant{
		Name:          in.Name,
		Type:          in.Type,
		Address:       in.Address,
		ContactPerson: in.ContactPerson,
		Phone:         in.Phone,
		Email:         in.Email,
	}
	if err := l.DB.WithContext(ctx).Create(&t).Error; err != nil {
		return nil, storeErr("tenant", in.Name, err)
	}
	return &t, nil
}

// Get loads one tenant.
func (l *Tenants) Get(ctx context.Context, id uint) (*models.Tenant, error) {
	var t models.Tenant
	if err := l.DB.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, storeErr("tenant", itoa(id), err)
	}
	return &t, nil
}

// Update rewrites the writable fields of a tenant.
func (l *Tenants) Update(ctx context.Context, caller *Caller, id uint, in TenantInput) (*models.Tenant, error) {
	if err := requireCaller(caller, "tenant"); err != nil {
		return nil, err
	}
	if err := validateTenantInput(&in); err != nil {
		return nil, err
	}
	t, err := l.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Name = in.Name
	t.Type = in.Type
	t.Address = in.Address
	t.ContactPerson = in.ContactPerson
	t.Phone = in.Phone
	t.Email = in.Email
	if err := l.DB.WithContext(ctx).Save(t).Error; err != nil {
		return nil, storeErr("tenant", itoa(id), err)
	}
	return t, nil
}

// SetDeactivated soft-deactivates or reactivates a tenant. Historical
// meters and charges keep referencing it.
func (l *Tenants) SetDeactivated(ctx context.Context, caller *Caller, id uint, deactivated bool) error {
	if err := requireCaller(caller, "tenant"); err != nil {
		return err
	}
	res := l.DB.WithContext(ctx).Model(&models.Tenant{}).Where("id = ?", id).
		Update("deactivated", deactivated)
	if res.Error != nil {
		return storeErr("tenant", itoa(id), res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.NotFound, "tenant", itoa(id), "租户不存在")
	}
	return nil
}

// Delete hard-deletes a tenant. Preflight: any reading under any owned
// meter, or any charge referencing the tenant, rejects the delete.
func (l *Tenants) Delete(ctx context.Context, caller *Caller, id uint) error {
	if err := requireCaller(caller, "tenant"); err != nil {
		return err
	}
	return l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t models.Tenant
		if err := tx.First(&t, id).Error; err != nil {
			return storeErr("tenant", itoa(id), err)
		}

		var readings int64
		if err := tx.Model(&models.MeterReading{}).
			Joins("JOIN meters ON meters.id = meter_readings.meter_id").
			Where("meters.tenant_id = ?", id).
			Count(&readings).Error; err != nil {
			return storeErr("tenant", itoa(id), err)
		}
		if readings > 0 {
			return apperr.Newf(apperr.HasDependents, "tenant", itoa(id), "名下水电表已有 %d 条抄表记录", readings)
		}

		var charges int64
		if err := tx.Model(&models.Charge{}).Where("tenant_id = ?", id).Count(&charges).Error; err != nil {
			return storeErr("tenant", itoa(id), err)
		}
		if charges > 0 {
			return apperr.Newf(apperr.HasDependents, "tenant", itoa(id), "存在 %d 条历史账单", charges)
		}

		// Owned meters without readings go with the tenant.
		if err := tx.Where("tenant_id = ?", id).Delete(&models.Meter{}).Error; err != nil {
			return storeErr("tenant", itoa(id), err)
		}
		if err := tx.Delete(&models.Tenant{}, id).Error; err != nil {
			return storeErr("tenant", itoa(id), err)
		}
		return nil
	})
}

// TenantFilter narrows List results. Keyword is a fuzzy substring match
// over name, address, contact person and phone.
type TenantFilter struct {
	Keyword         string
	Type            string
	IncludeInactive bool
}

// List returns tenants matching the filter, newest first.
func (l *Tenants) List(ctx context.Context, f TenantFilter) ([]models.Tenant, error) {
	q := l.DB.WithContext(ctx).Model(&models.Tenant{})
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		like := "%" + kw + "%"
		q = q.Where("name LIKE ? OR address LIKE ? OR contact_person LIKE ? OR phone LIKE ?",
			like, like, like, like)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if !f.IncludeInactive {
		q = q.Where("deactivated = ?", false)
	}
	var out []models.Tenant
	if err := q.Order("id DESC").Find(&out).Error; err != nil {
		return nil, storeErr("tenant", "", err)
	}
	return out, nil
}
