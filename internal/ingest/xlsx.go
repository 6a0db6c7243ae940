package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

type xlsxReader struct{}

func (xlsxReader) CanRead(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".xlsx")
}

// Records reads every row of the selected sheet. Rows shorter than the header
// are padded with empty cells.
func (xlsxReader) Records(name string, data []byte, opt Options) ([]string, [][]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, fmt.Errorf("open xlsx: %w", err)
	}
	book, err := openWorkbook(zr)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", name, err)
	}
	target, err := book.sheetPath(opt.SheetName, opt.SheetIndex)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", name, err)
	}
	sheetXML, err := zipEntry(zr, target)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: worksheet %s: %w", name, target, err)
	}
	rr := newSheetRowReader(sheetXML, book.shared)
	header, ok := rr.Next()
	if !ok || len(header) == 0 {
		return nil, nil, nil
	}
	var rows [][]string
	for {
		row, ok := rr.Next()
		if !ok {
			break
		}
		if len(row) < len(header) {
			row = append(row, make([]string, len(header)-len(row))...)
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

type workbookXML struct {
	Sheets []struct {
		Name    string `xml:"name,attr"`
		SheetID int    `xml:"sheetId,attr"`
		RID     string `xml:"id,attr"` // r: namespace
	} `xml:"sheets>sheet"`
}

type relationshipsXML struct {
	Relationships []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

// sharedStringsXML holds plain (<si><t>) and rich-text (<si><r><t>) entries.
type sharedStringsXML struct {
	Items []struct {
		Text string `xml:"t"`
		Runs []struct {
			Text string `xml:"t"`
		} `xml:"r"`
	} `xml:"si"`
}

// workbook is the sheet directory of an XLSX file plus its shared strings.
type workbook struct {
	sheets []wbSheet
	rels   map[string]string // relationship id -> zip entry
	shared []string
}

type wbSheet struct {
	Name    string
	SheetID int
	RID     string
}

func openWorkbook(zr *zip.Reader) (*workbook, error) {
	wb := &workbook{rels: map[string]string{}}

	raw, err := zipEntry(zr, "xl/workbook.xml")
	if err != nil {
		return nil, fmt.Errorf("workbook: %w", err)
	}
	var w workbookXML
	if err := xml.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("parse workbook: %w", err)
	}
	for _, s := range w.Sheets {
		wb.sheets = append(wb.sheets, wbSheet{Name: s.Name, SheetID: s.SheetID, RID: s.RID})
	}

	// Relationships and shared strings are optional parts.
	if raw, err := zipEntry(zr, "xl/_rels/workbook.xml.rels"); err == nil {
		var rels relationshipsXML
		if err := xml.Unmarshal(raw, &rels); err != nil {
			return nil, fmt.Errorf("parse workbook relationships: %w", err)
		}
		for _, r := range rels.Relationships {
			if r.ID != "" && r.Target != "" {
				wb.rels[r.ID] = normalizeRelPath(r.Target)
			}
		}
	}
	if raw, err := zipEntry(zr, "xl/sharedStrings.xml"); err == nil {
		var sst sharedStringsXML
		if err := xml.Unmarshal(raw, &sst); err != nil {
			return nil, fmt.Errorf("parse shared strings: %w", err)
		}
		wb.shared = make([]string, len(sst.Items))
		for i, it := range sst.Items {
			var b strings.Builder
			b.WriteString(it.Text)
			for _, r := range it.Runs {
				b.WriteString(r.Text)
			}
			wb.shared[i] = b.String()
		}
	}
	return wb, nil
}

// sheetPath resolves the worksheet entry by name (case-insensitive), else by
// 1-based sheet id, else the conventional sheetN.xml path.
func (wb *workbook) sheetPath(name string, index int) (string, error) {
	if name != "" {
		for _, s := range wb.sheets {
			if strings.EqualFold(s.Name, name) {
				if rel, ok := wb.rels[s.RID]; ok {
					return rel, nil
				}
				break
			}
		}
		available := make([]string, len(wb.sheets))
		for i, s := range wb.sheets {
			available[i] = s.Name
		}
		return "", fmt.Errorf("sheet '%s' not found (available sheets: %s)", name, strings.Join(available, ", "))
	}
	if index <= 0 {
		index = 1
	}
	for _, s := range wb.sheets {
		if s.SheetID == index {
			if rel, ok := wb.rels[s.RID]; ok {
				return rel, nil
			}
			break
		}
	}
	return path.Join("xl", "worksheets", fmt.Sprintf("sheet%d.xml", index)), nil
}

var errNoEntry = errors.New("missing zip entry")

func zipEntry(zr *zip.Reader, name string) ([]byte, error) {
	f, err := zr.Open(name)
	if err != nil {
		return nil, errNoEntry
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return b, nil
}

type sheetRowReader struct {
	dec    *xml.Decoder
	shared []string
	inRow  bool
	curRow []string
	maxCol int
}

func newSheetRowReader(data []byte, shared []string) *sheetRowReader {
	return &sheetRowReader{dec: xml.NewDecoder(bytes.NewReader(data)), shared: shared}
}

func (r *sheetRowReader) Next() ([]string, bool) {
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, false
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "row" {
				r.inRow = true
				r.curRow = nil
				r.maxCol = 0
			}
			if r.inRow && se.Name.Local == "c" {
				var rAttr, tAttr string
				for _, a := range se.Attr {
					switch a.Name.Local {
					case "r":
						rAttr = a.Value
					case "t":
						tAttr = a.Value
					}
				}
				colIdx := colIndexFromRef(rAttr)
				if colIdx < 0 {
					colIdx = len(r.curRow)
				}
				if colIdx+1 > r.maxCol {
					r.maxCol = colIdx + 1
				}
				val := r.readCellValue(tAttr)
				if len(r.curRow) <= colIdx {
					tmp := make([]string, colIdx+1)
					copy(tmp, r.curRow)
					r.curRow = tmp
				}
				r.curRow[colIdx] = val
			}
		case xml.EndElement:
			if se.Name.Local == "row" {
				if len(r.curRow) < r.maxCol {
					tmp := make([]string, r.maxCol)
					copy(tmp, r.curRow)
					r.curRow = tmp
				}
				r.inRow = false
				return r.curRow, true
			}
		}
	}
}

// readCellValue consumes tokens up to </c>, capturing <v> or inline <is><t>.
func (r *sheetRowReader) readCellValue(tAttr string) string {
	var val string
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return val
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "v" || se.Name.Local == "t" {
				var sb strings.Builder
				for {
					tk, er := r.dec.Token()
					if er != nil {
						break
					}
					if ed, ok := tk.(xml.EndElement); ok && (ed.Name.Local == "v" || ed.Name.Local == "t") {
						break
					}
					if ch, ok := tk.(xml.CharData); ok {
						sb.Write(ch)
					}
				}
				val = sb.String()
			}
		case xml.EndElement:
			if se.Name.Local == "c" {
				switch tAttr {
				case "s":
					idx := atoiSafe(val)
					if idx >= 0 && idx < len(r.shared) {
						return r.shared[idx]
					}
					return ""
				case "e":
					// #N/A, #DIV/0! and friends read as blank cells
					return ""
				}
				return val
			}
		}
	}
}

// colIndexFromRef maps refs like "C12" to a 0-based column index (2), or -1 without letters.
func colIndexFromRef(ref string) int {
	i := 0
	for i < len(ref) {
		c := ref[i]
		if c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' {
			i++
			continue
		}
		break
	}
	s := strings.ToUpper(ref[:i])
	idx := 0
	for j := 0; j < len(s); j++ {
		idx = idx*26 + int(s[j]-'A'+1)
	}
	return idx - 1
}

func atoiSafe(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// normalizeRelPath converts relationship Target paths to ZIP entry names.
// Targets may carry a leading slash ("/xl/worksheets/sheet1.xml"); ZIP entries don't.
func normalizeRelPath(rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if strings.HasPrefix(rel, "xl/") {
		return rel
	}
	return path.Join("xl", rel)
}
