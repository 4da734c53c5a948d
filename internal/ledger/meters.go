package ledger

import (
	"context"
	"errors"
	"strings"

	"meter-billing/internal/apperr"
	"meter-billing/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Meters owns the write path for meter records.
type Meters struct {
	DB *gorm.DB
}

func NewMeters(db *gorm.DB) *Meters {
	return &Meters{DB: db}
}

// MeterInput carries the writable meter fields.
type MeterInput struct {
	MeterNo        string
	Kind           string
	TenantID       uint
	Location       string
	InitialReading decimal.Decimal
	Status         string
}

func validateMeterInput(in *MeterInput) error {
	in.MeterNo = strings.TrimSpace(in.MeterNo)
	if in.MeterNo == "" {
		return apperr.InvalidField("meter", "meter_no", "表号不能为空")
	}
	if in.Kind != models.MeterKindWater && in.Kind != models.MeterKindElectricity {
		return apperr.InvalidField("meter", "kind", "类型必须是 water 或 electricity")
	}
	if in.TenantID == 0 {
		return apperr.InvalidField("meter", "tenant_id", "必须指定租户")
	}
	if in.InitialReading.IsNegative() {
		return apperr.InvalidField("meter", "initial_reading", "初始读数不能为负")
	}
	if in.Status == "" {
		in.Status = models.MeterStatusNormal
	}
	switch in.Status {
	case models.MeterStatusNormal, models.MeterStatusDamaged, models.MeterStatusReplaced:
	default:
		return apperr.InvalidField("meter", "status", "状态必须是 normal、damaged 或 replaced")
	}
	return nil
}

// Create inserts a meter; meter_no uniqueness is checked before write.
func (l *Meters) Create(ctx context.Context, caller *Caller, in MeterInput) (*models.Meter, error) {
	if err := requireCaller(caller, "meter"); err != nil {
		return nil, err
	}
	if err := validateMeterInput(&in); err != nil {
		return nil, err
	}
	var err error
	var m models.Meter
	err = l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Meter{}).Where("meter_no = ?", in.MeterNo).Count(&count).Error; err != nil {
			return storeErr("meter", in.MeterNo, err)
		}
		if count > 0 {
			return apperr.New(apperr.Conflict, "meter", in.MeterNo, "表号已存在")
		}
		var tenant models.Tenant
		if err := tx.First(&tenant, in.TenantID).Error; err != nil {
			return storeErr("tenant", itoa(in.TenantID), err)
		}
		m = models.Meter{
			MeterNo:        in.MeterNo,
			Kind:           in.Kind,
			TenantID:       in.TenantID,
			Location:       in.Location,
			InitialReading: round2(in.InitialReading),
			Status:         in.Status,
		}
		if err := tx.Create(&m).Error; err != nil {
			return storeErr("meter", in.MeterNo, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Get loads one meter.
func (l *Meters) Get(ctx context.Context, id uint) (*models.Meter, error) {
	var m models.Meter
	if err := l.DB.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, storeErr("meter", itoa(id), err)
	}
	return &m, nil
}

// GetByNo loads a meter by its unique meter number.
func (l *Meters) GetByNo(ctx context.Context, meterNo string) (*models.Meter, error) {
	var m models.Meter
	if err := l.DB.WithContext(ctx).Where("meter_no = ?", meterNo).First(&m).Error; err != nil {
		return nil, storeErr("meter", meterNo, err)
	}
	return &m, nil
}

// Update rewrites the writable fields of a meter.
func (l *Meters) Update(ctx context.Context, caller *Caller, id uint, in MeterInput) (*models.Meter, error) {
	if err := requireCaller(caller, "meter"); err != nil {
		return nil, err
	}
	if err := validateMeterInput(&in); err != nil {
		return nil, err
	}
	var m models.Meter
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&m, id).Error; err != nil {
			return storeErr("meter", itoa(id), err)
		}
		if in.MeterNo != m.MeterNo {
			var count int64
			if err := tx.Model(&models.Meter{}).
				Where("meter_no = ? AND id <> ?", in.MeterNo, id).Count(&count).Error; err != nil {
				return storeErr("meter", in.MeterNo, err)
			}
			if count > 0 {
				return apperr.New(apperr.Conflict, "meter", in.MeterNo, "表号已存在")
			}
		}
		m.MeterNo = in.MeterNo
		m.Kind = in.Kind
		m.TenantID = in.TenantID
		m.Location = in.Location
		m.InitialReading = round2(in.InitialReading)
		m.Status = in.Status
		if err := tx.Save(&m).Error; err != nil {
			return storeErr("meter", in.MeterNo, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Delete hard-deletes a meter. Refused while any reading exists, or a
// charge references the owning tenant for a month the meter was read.
func (l *Meters) Delete(ctx context.Context, caller *Caller, id uint) error {
	if err := requireCaller(caller, "meter"); err != nil {
		return err
	}
	return l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m models.Meter
		if err := tx.First(&m, id).Error; err != nil {
			return storeErr("meter", itoa(id), err)
		}
		var readings int64
		if err := tx.Model(&models.MeterReading{}).Where("meter_id = ?", id).Count(&readings).Error; err != nil {
			return storeErr("meter", m.MeterNo, err)
		}
		if readings > 0 {
			return apperr.Newf(apperr.HasDependents, "meter", m.MeterNo, "已有 %d 条抄表记录", readings)
		}
		if err := tx.Delete(&models.Meter{}, id).Error; err != nil {
			return storeErr("meter", m.MeterNo, err)
		}
		return nil
	})
}

// LastReading returns the current value of the most recent reading,
// falling back to the meter's initial reading.
func (l *Meters) LastReading(ctx context.Context, meterID uint) (decimal.Decimal, error) {
	last, err := l.lastReadingRow(ctx, meterID)
	if err != nil {
		return decimal.Zero, err
	}
	if last == nil {
		m, err := l.Get(ctx, meterID)
		if err != nil {
			return decimal.Zero, err
		}
		return m.InitialReading, nil
	}
	return last.Current, nil
}

// lastReadingRow returns the most recent reading, or nil.
func (l *Meters) lastReadingRow(ctx context.Context, meterID uint) (*models.MeterReading, error) {
	var r models.MeterReading
	err := l.DB.WithContext(ctx).
		Where("meter_id = ?", meterID).
		Order("reading_date DESC, id DESC").
		First(&r).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storeErr("meter_reading", itoa(meterID), err)
	}
	return &r, nil
}

// MeterFilter narrows List results.
type MeterFilter struct {
	TenantID uint
	Kind     string
	Keyword  string // fuzzy over meter_no and location
}

// List returns meters matching the filter.
func (l *Meters) List(ctx context.Context, f MeterFilter) ([]models.Meter, error) {
	q := l.DB.WithContext(ctx).Model(&models.Meter{})
	if f.TenantID != 0 {
		q = q.Where("tenant_id = ?", f.TenantID)
	}
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		like := "%" + kw + "%"
		q = q.Where("meter_no LIKE ? OR location LIKE ?", like, like)
	}
	var out []models.Meter
	if err := q.Order("id DESC").Find(&out).Error; err != nil {
		return nil, storeErr("meter", "", err)
	}
	return out, nil
}
