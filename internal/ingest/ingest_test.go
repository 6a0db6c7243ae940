package ingest

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/microlens-cli/internal/table"
)

const quickCSV = `Region,Seafood_Intake,Bottled_Water_Intake,Salt_Intake,Sugar_Intake,Packaged_Food_Intake
Japan,85,180,25,8,220
China,280,420,65,18,380
Norway,60,120,15,5,140
USA,120,250,35,12,290
Brazil,95,200,30,10,260
India,220,380,55,15,350
`

func TestReadFileCSV(t *testing.T) {
	p := filepath.Join(t.TempDir(), "quick_test_data.csv")
	require.NoError(t, os.WriteFile(p, []byte(quickCSV), 0o644))

	tbl, err := ReadFile(p, DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, 6, tbl.Len())
	assert.Equal(t, "India", tbl.Label(5))
	assert.Equal(t, []float64{85, 180, 25, 8, 220}, tbl.Rows[0].Values)
}

func TestReadSemicolonLocale(t *testing.T) {
	data := "\xef\xbb\xbfRegion;Seafood_Intake;Bottled_Water_Intake;Salt_Intake;Sugar_Intake;Packaged_Food_Intake\n" +
		"Spain;1.234,5;10,5;3;4;5\n"
	tbl, err := Read("eu.csv", []byte(data), DefaultOptions())
	require.NoError(t, err)
	assert.InDelta(t, 1234.5, tbl.Rows[0].Values[0], 1e-9)
	assert.InDelta(t, 10.5, tbl.Rows[0].Values[1], 1e-9)
}

func TestReadTSVInferSchema(t *testing.T) {
	data := "Country\tRice_Intake\tTea_Intake\nPeru\t12\t3\n"
	opt := DefaultOptions()
	opt.Schema = table.Schema{Label: "Country", Infer: true}
	tbl, err := Read("custom.tsv", []byte(data), opt)
	require.NoError(t, err)
	assert.Equal(t, []string{"Rice_Intake", "Tea_Intake"}, tbl.Columns)
}

func TestReadRejects(t *testing.T) {
	_, err := Read("notes.txt", []byte("hello"), DefaultOptions())
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = Read("empty.csv", nil, DefaultOptions())
	assert.ErrorIs(t, err, table.ErrNoRows)

	_, err = Read("", nil, DefaultOptions())
	assert.ErrorIs(t, err, table.ErrNoFile)

	_, err = Read("bad.csv", []byte("Region,Seafood_Intake\nA,1\n"), DefaultOptions())
	assert.ErrorIs(t, err, table.ErrMissingColumn)
	assert.True(t, table.IsInputError(err))

	_, err = Read("broken.xlsx", []byte("not a zip"), DefaultOptions())
	assert.True(t, table.IsInputError(err))
}

func TestParseNumeric(t *testing.T) {
	tests := []struct {
		in   string
		opt  Options
		want float64
		ok   bool
	}{
		{"42", Options{}, 42, true},
		{"1,234.5", Options{}, 1234.5, true},
		{"1.234,5", Options{}, 1234.5, true},
		{"3,5", Options{}, 3.5, true},
		{"1e3", Options{}, 1000, true},
		{"1 000", Options{}, 1000, true},
		{"1,000", Options{DecimalSeparator: '.', ThousandsSeparator: ','}, 1000, true},
		{"abc", Options{}, 0, false},
	}
	for _, tt := range tests {
		got, ok := parseNumeric(tt.in, tt.opt)
		assert.Equal(t, tt.ok, ok, tt.in)
		if tt.ok {
			assert.InDelta(t, tt.want, got, 1e-9, tt.in)
		}
	}
}

func TestSniffDelimiter(t *testing.T) {
	assert.Equal(t, '\t', sniffDelimiter("a.TSV", []byte("a,b")))
	assert.Equal(t, ';', sniffDelimiter("a.csv", []byte("a;b;c\n1,2;3;4")))
	assert.Equal(t, ',', sniffDelimiter("a.csv", []byte("a")))
}

func buildXLSX(t *testing.T, sheet string) []byte {
	t.Helper()
	files := map[string]string{
		"xl/workbook.xml": `<?xml version="1.0"?><workbook xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"><sheets>` +
			`<sheet name="Intake" sheetId="1" r:id="rId1"/></sheets></workbook>`,
		"xl/_rels/workbook.xml.rels": `<?xml version="1.0"?><Relationships>` +
			`<Relationship Id="rId1" Target="/xl/worksheets/sheet1.xml"/></Relationships>`,
		"xl/sharedStrings.xml": `<?xml version="1.0"?><sst><si><t>Region</t></si><si><t>Seafood_Intake</t></si>` +
			`<si><t>Bottled_Water_Intake</t></si><si><t>Salt_Intake</t></si><si><t>Sugar_Intake</t></si>` +
			`<si><t>Packaged_Food_Intake</t></si><si><t>Japan</t></si></sst>`,
		"xl/worksheets/sheet1.xml": sheet,
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestReadXLSX(t *testing.T) {
	sheet := `<?xml version="1.0"?><worksheet><sheetData>` +
		`<row r="1"><c r="A1" t="s"><v>0</v></c><c r="B1" t="s"><v>1</v></c><c r="C1" t="s"><v>2</v></c>` +
		`<c r="D1" t="s"><v>3</v></c><c r="E1" t="s"><v>4</v></c><c r="F1" t="s"><v>5</v></c></row>` +
		`<row r="2"><c r="A2" t="s"><v>6</v></c><c r="B2"><v>85</v></c><c r="C2"><v>180</v></c>` +
		`<c r="D2"><v>25</v></c><c r="E2"><v>8</v></c><c r="F2"><v>220</v></c></row>` +
		`<row r="3"><c r="B3"><v>60</v></c><c r="C3"><v>120</v></c><c r="D3"><v>15</v></c>` +
		`<c r="E3"><v>5</v></c><c r="F3" t="inlineStr"><is><t>140</t></is></c></row>` +
		`</sheetData></worksheet>`
	data := buildXLSX(t, sheet)

	tbl, err := Read("intake.xlsx", data, DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, "Japan", tbl.Label(0))
	assert.Equal(t, "Sample 2", tbl.Label(1))
	assert.Equal(t, 140.0, tbl.Rows[1].Values[4])

	opt := DefaultOptions()
	opt.SheetName = "intake"
	_, err = Read("intake.xlsx", data, opt)
	require.NoError(t, err)

	opt.SheetName = "Missing"
	_, err = Read("intake.xlsx", data, opt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "available sheets: Intake")
}

func TestNormalizeRelPath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"/xl/worksheets/sheet1.xml", "xl/worksheets/sheet1.xml"},
		{"xl/worksheets/sheet1.xml", "xl/worksheets/sheet1.xml"},
		{"/worksheets/sheet1.xml", "xl/worksheets/sheet1.xml"},
		{"worksheets/sheet1.xml", "xl/worksheets/sheet1.xml"},
		{"styles.xml", "xl/styles.xml"},
	}
	for _, tt := range tests {
		if got := normalizeRelPath(tt.input); got != tt.expected {
			t.Errorf("normalizeRelPath(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestColIndexFromRef(t *testing.T) {
	assert.Equal(t, 0, colIndexFromRef("A1"))
	assert.Equal(t, 2, colIndexFromRef("c12"))
	assert.Equal(t, 27, colIndexFromRef("AB3"))
	assert.Equal(t, -1, colIndexFromRef("12"))
}
