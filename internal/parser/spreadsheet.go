package parser

import (
	"context"
	"fmt"
	"strings"

	"github.com/tealeg/xlsx"
	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
	"github.com/xuri/excelize/v2"
)

var (
	_ documentloaders.Loader = (*XLSXLoader)(nil)
	_ documentloaders.Loader = (*ODSLoader)(nil)
)

// XLSXLoader yields one document per non-empty sheet. A sheet's 1-based
// position in the workbook is its page number.
type XLSXLoader struct {
	path string
}

func (l *XLSXLoader) Load(ctx context.Context) ([]schema.Document, error) {
	f, err := xlsx.OpenFile(l.path)
	if err != nil {
		return nil, err
	}

	var docs []schema.Document
	for sheetNum, sheet := range f.Sheets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows := make([][]string, 0, len(sheet.Rows))
		for _, row := range sheet.Rows {
			if row == nil {
				continue
			}
			cells := make([]string, len(row.Cells))
			for i, cell := range row.Cells {
				cells[i] = cell.String()
			}
			rows = append(rows, cells)
		}
		if content := sheetText(sheet.Name, rows); content != "" {
			docs = append(docs, newDocument(content, l.path, sheetNum+1))
		}
	}
	return docs, nil
}

func (l *XLSXLoader) LoadAndSplit(ctx context.Context, splitter textsplitter.TextSplitter) ([]schema.Document, error) {
	return loadAndSplit(ctx, l, splitter)
}

// ODSLoader reads a workbook through excelize, one document per non-empty
// sheet. excelize opens Office Open XML packages only, so a file has to be
// saved in that format whatever its extension.
type ODSLoader struct {
	path string
}

func (l *ODSLoader) Load(ctx context.Context) ([]schema.Document, error) {
	f, err := excelize.OpenFile(l.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var docs []schema.Document
	for sheetNum, name := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", name, err)
		}
		if content := sheetText(name, rows); content != "" {
			docs = append(docs, newDocument(content, l.path, sheetNum+1))
		}
	}
	return docs, nil
}

func (l *ODSLoader) LoadAndSplit(ctx context.Context, splitter textsplitter.TextSplitter) ([]schema.Document, error) {
	return loadAndSplit(ctx, l, splitter)
}

// sheetText renders rows as tab-separated lines under a "Sheet: <name>"
// heading. Blank rows are dropped; a sheet without text yields "".
func sheetText(name string, rows [][]string) string {
	var lines []string
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = strings.TrimSpace(cell)
		}
		line := strings.TrimRight(strings.Join(cells, "\t"), "\t")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return "Sheet: " + name + "\n" + strings.Join(lines, "\n")
}
