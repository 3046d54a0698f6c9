package parser

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/xuri/excelize/v2"

	"pdf-rag/internal/models"
)

// writeWorkbook saves a three-sheet workbook whose middle sheet is empty.
func writeWorkbook(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	steps := []func() error{
		func() error { return f.SetSheetName("Sheet1", "Prices") },
		func() error { return f.SetSheetRow("Prices", "A1", &[]any{"Item", "Price"}) },
		func() error { return f.SetSheetRow("Prices", "A2", &[]any{"Lamp", "20 EUR"}) },
		func() error { _, err := f.NewSheet("Blank"); return err },
		func() error { _, err := f.NewSheet("Returns"); return err },
		func() error { return f.SetCellValue("Returns", "A1", "Refunds within thirty days") },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			t.Fatal(err)
		}
	}

	path := filepath.Join(t.TempDir(), "prices.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSpreadsheetLoaders(t *testing.T) {
	path := writeWorkbook(t)

	loaders := map[string]documentloaders.Loader{
		"xlsx":     &XLSXLoader{path: path},
		"excelize": &ODSLoader{path: path},
	}
	for name, loader := range loaders {
		t.Run(name, func(t *testing.T) {
			docs, err := loader.Load(context.Background())
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if len(docs) != 2 {
				t.Fatalf("Load() returned %d sheets, want 2 (blank sheet skipped)", len(docs))
			}

			prices := docs[0].PageContent
			for _, want := range []string{"Sheet: Prices", "Item\tPrice", "Lamp\t20 EUR"} {
				if !strings.Contains(prices, want) {
					t.Errorf("sheet 1 = %q, missing %q", prices, want)
				}
			}
			if !strings.Contains(docs[1].PageContent, "Refunds within thirty days") {
				t.Errorf("sheet 3 = %q", docs[1].PageContent)
			}
			if docs[0].Metadata[models.MetaPage] != 1 || docs[1].Metadata[models.MetaPage] != 3 {
				t.Errorf("pages = %v, %v; want sheet positions 1 and 3",
					docs[0].Metadata[models.MetaPage], docs[1].Metadata[models.MetaPage])
			}
			if docs[0].Metadata[models.MetaSource] != path {
				t.Errorf("source = %v", docs[0].Metadata[models.MetaSource])
			}
		})
	}
}

func TestSpreadsheetMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.xlsx")
	for name, loader := range map[string]documentloaders.Loader{
		"xlsx":     &XLSXLoader{path: missing},
		"excelize": &ODSLoader{path: missing},
	} {
		if _, err := loader.Load(context.Background()); err == nil {
			t.Errorf("%s: Load() expected error for a missing file", name)
		}
	}
}

func TestSheetText(t *testing.T) {
	tests := []struct {
		name string
		rows [][]string
		want string
	}{
		{name: "empty", rows: nil, want: ""},
		{name: "blank cells", rows: [][]string{{"", " "}, {}}, want: ""},
		{
			name: "trailing cells trimmed",
			rows: [][]string{{"Item", "Price", ""}, {"", ""}, {" Lamp ", "20"}},
			want: "Sheet: S\nItem\tPrice\nLamp\t20",
		},
		{name: "leading gap kept", rows: [][]string{{"", "B"}}, want: "Sheet: S\n\tB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sheetText("S", tt.rows); got != tt.want {
				t.Errorf("sheetText() = %q, want %q", got, tt.want)
			}
		})
	}
}
