package handler

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"
	"time"

	"meter-billing/internal/ledger"
	"meter-billing/internal/models"
	"meter-billing/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// ImportExportHandler 负责报表导出和抄表导入接口
type ImportExportHandler struct {
	Rows     *ledger.Rows
	Importer *ledger.Importer
}

func NewImportExportHandler(rows *ledger.Rows, importer *ledger.Importer) *ImportExportHandler {
	return &ImportExportHandler{Rows: rows, Importer: importer}
}

// ---------- 展示文案 ----------

func tenantTypeText(t string) string {
	if t == models.TenantTypeStorefront {
		return "门面"
	}
	return "办公室"
}

func kindText(k string) string {
	if k == models.MeterKindElectricity {
		return "电"
	}
	return "水"
}

func statusText(s string) string {
	switch s {
	case models.ChargeStatusPaid:
		return "已缴"
	case models.ChargeStatusPartiallyPaid:
		return "部分缴纳"
	default:
		return "未缴"
	}
}

func methodText(m string) string {
	switch m {
	case models.PayMethodBankTransfer:
		return "银行转账"
	case models.PayMethodWeChat:
		return "微信"
	case models.PayMethodAlipay:
		return "支付宝"
	default:
		return "现金"
	}
}

func dateText(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// ---------- 账单导出 ----------

// ExportChargesCSV 导出账单为 CSV
func (h *ImportExportHandler) ExportChargesCSV(c *gin.Context) {
	rows, err := h.Rows.ChargeRows(c.Request.Context(), c.Query("month"))
	if err != nil {
		util.FromError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"charges_%s.csv\"",
		time.Now().Format("20060102")))

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	// UTF-8 BOM（让 Excel 正确识别中文）
	c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})

	writer.Write([]string{"类型", "租户", "月份",
		"水上期", "水本期", "水用量", "水单价", "水费",
		"电上期", "电本期", "电用量", "电单价", "电费",
		"合计", "已缴", "欠费", "状态"})

	for _, r := range rows {
		writer.Write([]string{
			tenantTypeText(r.TenantType), r.TenantName, r.Month,
			r.WaterPrev.String(), r.WaterCurr.String(), r.WaterUsage.String(),
			r.WaterUnitPrice.String(), r.WaterAmount.String(),
			r.ElecPrev.String(), r.ElecCurr.String(), r.ElecUsage.String(),
			r.ElecUnitPrice.String(), r.ElecAmount.String(),
			r.Total.String(), r.Paid.String(), r.Due.String(), statusText(r.Status),
		})
	}
}

// ExportChargesXLSX 导出账单为 XLSX
func (h *ImportExportHandler) ExportChargesXLSX(c *gin.Context) {
	rows, err := h.Rows.ChargeRows(c.Request.Context(), c.Query("month"))
	if err != nil {
		util.FromError(c, err)
		return
	}

	headers := []string{"类型", "租户", "月份",
		"水上期", "水本期", "水用量", "水单价", "水费",
		"电上期", "电本期", "电用量", "电单价", "电费",
		"合计", "已缴", "欠费", "状态"}
	records := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		records = append(records, []interface{}{
			tenantTypeText(r.TenantType), r.TenantName, r.Month,
			r.WaterPrev.String(), r.WaterCurr.String(), r.WaterUsage.String(),
			r.WaterUnitPrice.String(), r.WaterAmount.String(),
			r.ElecPrev.String(), r.ElecCurr.String(), r.ElecUsage.String(),
			r.ElecUnitPrice.String(), r.ElecAmount.String(),
			r.Total.String(), r.Paid.String(), r.Due.String(), statusText(r.Status),
		})
	}
	writeXLSX(c, "账单明细", "charges", headers, records)
}

// ExportPaymentsXLSX 导出缴费记录为 XLSX
func (h *ImportExportHandler) ExportPaymentsXLSX(c *gin.Context) {
	rows, err := h.Rows.PaymentRows(c.Request.Context(), c.Query("month"))
	if err != nil {
		util.FromError(c, err)
		return
	}
	headers := []string{"租户", "月份", "缴费日期", "金额", "方式", "缴费人", "备注", "结算日期"}
	records := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		records = append(records, []interface{}{
			r.Tenant, r.Month, r.PaymentDate.Format("2006-01-02"),
			r.Amount.String(), methodText(r.Method), r.Payer, r.Notes,
			dateText(r.SettlementDate),
		})
	}
	writeXLSX(c, "缴费明细", "payments", headers, records)
}

// ExportSettlementsXLSX 导出结算记录为 XLSX
func (h *ImportExportHandler) ExportSettlementsXLSX(c *gin.Context) {
	rows, err := h.Rows.SettlementRows(c.Request.Context())
	if err != nil {
		util.FromError(c, err)
		return
	}
	headers := []string{"月份", "结算日期", "结算金额", "收银员", "备注"}
	records := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		records = append(records, []interface{}{
			r.Month, dateText(r.SettleDate), r.TotalAmount.String(), r.Cashier, r.Notes,
		})
	}
	writeXLSX(c, "结算明细", "settlements", headers, records)
}

// ExportReadingsXLSX 导出抄表记录为 XLSX
func (h *ImportExportHandler) ExportReadingsXLSX(c *gin.Context) {
	rows, err := h.Rows.ReadingRows(c.Request.Context(), c.Query("month"))
	if err != nil {
		util.FromError(c, err)
		return
	}
	headers := []string{"月份", "租户", "表号", "类型", "上期", "本期", "调整", "用量",
		"备注", "抄表日期", "算费时间", "抄表员"}
	records := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		billing := ""
		if r.BillingTime != nil {
			billing = r.BillingTime.Format("2006-01-02 15:04:05")
		}
		records = append(records, []interface{}{
			r.Month, r.Tenant, r.MeterNo, kindText(r.Kind),
			r.Previous.String(), r.Current.String(), r.Adjustment.String(), r.Usage.String(),
			r.Remark, r.ReadingDate.Format("2006-01-02"), billing, r.Reader,
		})
	}
	writeXLSX(c, "抄表明细", "readings", headers, records)
}

// writeXLSX 生成工作表并写入响应
func writeXLSX(c *gin.Context, sheetName, filePrefix string, headers []string, records [][]interface{}) {
	f := excelize.NewFile()
	index, err := f.NewSheet(sheetName)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "创建工作表失败")
		return
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	for i, hd := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, hd)
	}
	for idx, record := range records {
		for i, v := range record {
			cell, _ := excelize.CoordinatesToCellName(i+1, idx+2)
			f.SetCellValue(sheetName, cell, v)
		}
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s_%s.xlsx\"",
		filePrefix, time.Now().Format("20060102")))

	if err := f.Write(c.Writer); err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "导出失败")
	}
}

// ---------- 抄表导入 ----------

// ImportReadingsXLSX 从上传的 XLSX 导入抄表记录。
// 列顺序：表号、抄表日期(YYYY-MM-DD)、本期读数、调整量、抄表员、备注。
// 逐行校验，单行失败不影响其他行。
func (h *ImportExportHandler) ImportReadingsXLSX(c *gin.Context) {
	caller := currentCaller(c)
	if caller == nil {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "请选择要导入的文件")
		return
	}
	src, err := file.Open()
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "读取文件失败")
		return
	}
	defer src.Close()

	f, err := excelize.OpenReader(src)
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "文件格式错误，仅支持 XLSX")
		return
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	cells, err := f.GetRows(sheet)
	if err != nil || len(cells) < 2 {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "文件为空或缺少数据行")
		return
	}

	// 第一行为表头
	rows := make([]ledger.ReadingImportRow, 0, len(cells)-1)
	for _, cell := range cells[1:] {
		row := ledger.ReadingImportRow{}
		for i, v := range cell {
			v = strings.TrimSpace(v)
			switch i {
			case 0:
				row.MeterNo = v
			case 1:
				row.ReadingDate = v
			case 2:
				row.Current = v
			case 3:
				row.Adjustment = v
			case 4:
				row.Reader = v
			case 5:
				row.Remark = v
			}
		}
		rows = append(rows, row)
	}

	outcomes, err := h.Importer.ImportReadings(c.Request.Context(), caller, rows)
	if err != nil {
		util.FromError(c, err)
		return
	}
	util.Success(c, util.Response{"outcomes": outcomes, "total": len(outcomes)})
}
