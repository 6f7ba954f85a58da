package reconciliation

import (
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet  = "Summary"
	paymentsSheet = "Payments"
	refundsSheet  = "Refunds"
)

// ExportXLSX renders a report as a workbook with Summary, Payments and Refunds sheets.
func ExportXLSX(r *Report) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	for _, name := range []string{paymentsSheet, refundsSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}

	summary := [][]interface{}{
		{"From", r.From.Format(time.RFC3339)},
		{"To", r.To.Format(time.RFC3339)},
		{"Gross revenue", r.GrossRevenue.StringFixed(2)},
		{"Total refunds", r.TotalRefunds.StringFixed(2)},
		{"Net revenue", r.NetRevenue.StringFixed(2)},
		{"Refund rate", r.RefundRate.StringFixed(4)},
		{"Payments", r.PaymentCount},
		{"Refunds", r.RefundCount},
	}
	summary = append(summary, []interface{}{})
	for _, method := range sortedKeys(r.Payments) {
		t := r.Payments[method]
		summary = append(summary, []interface{}{"Payments " + method, t.Amount.StringFixed(2), t.Count})
	}
	for _, method := range sortedKeys(r.Refunds) {
		t := r.Refunds[method]
		summary = append(summary, []interface{}{"Refunds " + method, t.Amount.StringFixed(2), t.Count})
	}
	if err := writeRows(f, summarySheet, summary); err != nil {
		return nil, err
	}

	payments := [][]interface{}{{"ID", "Booking", "Transaction", "Method", "Status", "Amount", "Processed at"}}
	for _, p := range r.paymentRows {
		payments = append(payments, []interface{}{
			p.ID, p.BookingID, p.TransactionID, string(p.PaymentMethod), string(p.Status),
			p.Amount.StringFixed(2), formatTime(p.ProcessedAt),
		})
	}
	if err := writeRows(f, paymentsSheet, payments); err != nil {
		return nil, err
	}

	refunds := [][]interface{}{{"ID", "Booking", "Transaction", "Method", "Amount", "Processed at", "Notes"}}
	for _, rf := range r.refundRows {
		refunds = append(refunds, []interface{}{
			rf.ID, rf.BookingID, rf.TransactionID, string(rf.RefundMethod),
			rf.Amount.StringFixed(2), formatTime(rf.ProcessedAt), rf.Notes,
		})
	}
	if err := writeRows(f, refundsSheet, refunds); err != nil {
		return nil, err
	}

	for _, sheet := range []string{summarySheet, paymentsSheet, refundsSheet} {
		if err := f.SetColWidth(sheet, "A", "G", 18); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, values := range rows {
		for j, v := range values {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func sortedKeys(m map[string]MethodTotal) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
