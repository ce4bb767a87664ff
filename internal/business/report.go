package business

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/freitasmatheusrn/pricecompare/internal/database"
	"github.com/freitasmatheusrn/pricecompare/internal/database/postgres/repo"
	"github.com/freitasmatheusrn/pricecompare/pkg/rest"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const maxReportRows = 10000

func (s *svc) ConversionsReport(ctx context.Context, businessID pgtype.UUID) (*bytes.Buffer, *rest.ApiErr) {
	rows, err := s.repo.ListConversionsByBusiness(ctx, repo.ListByBusinessParams{
		BusinessID: businessID,
		Limit:      maxReportRows,
		Offset:     0,
	})
	if err != nil {
		s.logger.Error("failed to list conversions for report", zap.Error(err))
		return nil, database.HandleError(err, "empresa não encontrada")
	}

	buf, err := writeConversionsSheet(rows)
	if err != nil {
		s.logger.Error("failed to write conversions report", zap.Error(err))
		return nil, rest.NewInternalServerError("erro ao gerar planilha")
	}
	return buf, nil
}

func writeConversionsSheet(rows []repo.ConversionWithCommissionRow) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Conversões"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	border := []excelize.Border{
		{Type: "left", Color: "#000000", Style: 1},
		{Type: "top", Color: "#000000", Style: 1},
		{Type: "bottom", Color: "#000000", Style: 1},
		{Type: "right", Color: "#000000", Style: 1},
	}
	headerStyleID, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF", Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#1F4E78"}, Pattern: 1},
		Border:    border,
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	dataStyleID, _ := f.NewStyle(&excelize.Style{Border: border})

	moneyFmt := "#,##0.00"
	moneyStyleID, _ := f.NewStyle(&excelize.Style{Border: border, CustomNumFmt: &moneyFmt})

	headers := []string{"Data", "Pedido", "Click ID", "Origem", "Moeda", "Valor", "Comissão", "Status"}
	colMaxWidth := make([]float64, len(headers))
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, h)
		colMaxWidth[i] = float64(len([]rune(h)))
	}
	f.SetCellStyle(sheetName, "A1", "H1", headerStyleID)

	for i, r := range rows {
		row := strconv.Itoa(i + 2)
		values := []string{
			r.CreatedAt.Time.Format("2006-01-02 15:04"),
			r.OrderID,
			r.ClickID.String,
			r.Source,
			r.Currency,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			f.SetCellValue(sheetName, cell, v)
			if w := float64(len([]rune(v))); w > colMaxWidth[col] {
				colMaxWidth[col] = w
			}
		}

		f.SetCellValue(sheetName, "F"+row, float64(r.AmountCents)/100)
		if r.CommissionCents.Valid {
			f.SetCellValue(sheetName, "G"+row, float64(r.CommissionCents.Int64)/100)
		}
		f.SetCellValue(sheetName, "H"+row, r.CommissionStatus.String)

		f.SetCellStyle(sheetName, "A"+row, "E"+row, dataStyleID)
		f.SetCellStyle(sheetName, "F"+row, "G"+row, moneyStyleID)
		f.SetCellStyle(sheetName, "H"+row, "H"+row, dataStyleID)
	}

	for i, maxW := range colMaxWidth {
		col, _ := excelize.ColumnNumberToName(i + 1)
		width := maxW*1.2 + 4
		if width < 12 {
			width = 12
		}
		f.SetColWidth(sheetName, col, col, width)
	}

	f.AutoFilter(sheetName, fmt.Sprintf("A1:H%d", len(rows)+1), nil)

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, err
	}
	return buf, nil
}
