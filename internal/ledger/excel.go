// File: internal/ledger/excel.go
package ledger

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Transactions"

var workbookHeader = []string{
	"Target", "Kind", "Username", "Amount", "Elapsed (ms)", "Message", "Success", "Host", "Created At",
}

// Workbook renders the transactions into an xlsx workbook ready to stream.
func Workbook(txs []Transaction) (*excelize.File, error) {
	f := excelize.NewFile()
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create worksheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to drop default worksheet: %w", err)
	}

	for col, title := range workbookHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheetName, cell, title); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	for row, tx := range txs {
		values := []any{
			tx.Target,
			tx.Kind,
			tx.Username,
			tx.Amount,
			tx.ElapsedMS,
			tx.Message,
			tx.Success,
			tx.Host,
			tx.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return nil, fmt.Errorf("failed to write row %d: %w", row+1, err)
			}
		}
	}

	return f, nil
}
