package ledger

import (
	"context"

	"meter-billing/internal/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Row import outcomes.
const (
	ImportInserted = "inserted"
	ImportUpdated  = "updated"
	ImportRejected = "rejected"
)

// ReadingImportRow is one reading in the row-stream shape. Dates arrive
// as canonical YYYY-MM-DD strings; the importer caller normalizes Excel
// serials and other variants beforehand.
type ReadingImportRow struct {
	MeterNo     string `json:"meter_no"`
	ReadingDate string `json:"reading_date"`
	Current     string `json:"current"`
	Adjustment  string `json:"adjustment"`
	Reader      string `json:"reader"`
	Remark      string `json:"remark"`
}

// RowOutcome is the per-row result of a batch import.
type RowOutcome struct {
	RowIndex int    `json:"row_index"`
	Status   string `json:"status"` // inserted / updated / rejected
	Reason   string `json:"reason,omitempty"`
}

// Importer applies row streams through the same validators as
// interactive writes. One bad row never aborts its siblings.
type Importer struct {
	Meters   *Meters
	Readings *ReadingLedger
	Log      *zap.Logger
}

func NewImporter(meters *Meters, readings *ReadingLedger, log *zap.Logger) *Importer {
	return &Importer{Meters: meters, Readings: readings, Log: log}
}

// ImportReadings records each row through the reading ledger. Rows that
// fail validation (including anomaly warnings, which an import cannot
// acknowledge) are rejected with the reason.
func (im *Importer) ImportReadings(ctx context.Context, caller *Caller, rows []ReadingImportRow) ([]RowOutcome, error) {
	if err := requireCaller(caller, "meter_reading"); err != nil {
		return nil, err
	}
	batch := uuid.NewString()
	out := make([]RowOutcome, 0, len(rows))
	inserted, updated := 0, 0

	for i, row := range rows {
		status, err := im.importOne(ctx, caller, row)
		if err != nil {
			out = append(out, RowOutcome{RowIndex: i, Status: ImportRejected, Reason: err.Error()})
			continue
		}
		if status == ImportInserted {
			inserted++
		} else {
			updated++
		}
		out = append(out, RowOutcome{RowIndex: i, Status: status})
	}

	im.Log.Info("reading import finished",
		zap.String("batch", batch),
		zap.Int("rows", len(rows)),
		zap.Int("inserted", inserted),
		zap.Int("updated", updated),
		zap.Int("rejected", len(rows)-inserted-updated))
	return out, nil
}

func (im *Importer) importOne(ctx context.Context, caller *Caller, row ReadingImportRow) (string, error) {
	meter, err := im.Meters.GetByNo(ctx, row.MeterNo)
	if err != nil {
		return "", err
	}
	date, err := ParseDate(row.ReadingDate)
	if err != nil {
		return "", err
	}
	current, err := decimal.NewFromString(row.Current)
	if err != nil {
		return "", apperr.InvalidField("meter_reading", "current", "本期读数不是有效数字")
	}
	adjustment := decimal.Zero
	if row.Adjustment != "" {
		adjustment, err = decimal.NewFromString(row.Adjustment)
		if err != nil {
			return "", apperr.InvalidField("meter_reading", "adjustment", "调整量不是有效数字")
		}
	}

	// Existence before the write decides inserted vs updated.
	existing, err := im.Readings.List(ctx, ReadingFilter{MeterID: meter.ID, Month: MonthOf(date)})
	if err != nil {
		return "", err
	}

	if _, err := im.Readings.Record(ctx, caller, RecordReadingInput{
		MeterID:     meter.ID,
		ReadingDate: date,
		Current:     current,
		Adjustment:  adjustment,
		Reader:      row.Reader,
		Remark:      row.Remark,
	}); err != nil {
		return "", err
	}
	if len(existing) > 0 {
		return ImportUpdated, nil
	}
	return ImportInserted, nil
}
