// Package catalog reads the storefront item spreadsheet and the leaflet
// catalog, and rebuilds the output spreadsheet with generated content
// applied to the rows that succeeded.
package catalog

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

// Item spreadsheet column names, following the VTEX export model.
const (
	ColSKU         = "_EANSKU"
	ColName        = "_NomeProduto (Obrigatório)"
	ColTitle       = "_TituloSite"
	ColMeta        = "_DescricaoMetaTag"
	ColDescription = "_DescricaoProduto"
	ColBrand       = "_Marca"
)

// Leaflet catalog column names. Catalog headers are normalized to upper
// case before matching.
const (
	catColBarcode   = "CODIGO_BARRAS"
	catColLeaflet   = "BULA"
	catColValidated = "LINK_VALIDACAO"
)

// Item is one product row from the items spreadsheet.
type Item struct {
	SKU         string
	Name        string
	Brand       string
	Description string
}

// Sheet is the parsed items spreadsheet. It keeps every original column
// so the output artifact preserves rows that were not updated.
type Sheet struct {
	headers []string
	rows    []map[string]string
}

// ParseItems reads the items spreadsheet from CSV bytes. A read failure
// here is fatal for the whole batch.
func ParseItems(data []byte) (*Sheet, error) {
	headers, rows, err := parseCSV(data)
	if err != nil {
		return nil, fmt.Errorf("failed to read items spreadsheet: %w", err)
	}
	return &Sheet{headers: headers, rows: rows}, nil
}

// Len returns the number of item rows.
func (s *Sheet) Len() int { return len(s.rows) }

// Items returns the product view of every row.
func (s *Sheet) Items() []Item {
	items := make([]Item, 0, len(s.rows))
	for _, row := range s.rows {
		items = append(items, Item{
			SKU:         strings.TrimSpace(row[ColSKU]),
			Name:        row[ColName],
			Brand:       row[ColBrand],
			Description: row[ColDescription],
		})
	}
	return items
}

// Update is the generated content for one SKU.
type Update struct {
	SKU             string
	SEOTitle        string
	MetaDescription string
	HTMLContent     string
}

// ApplyUpdates writes generated content into the matching rows. Rows
// without an update keep their original values.
func (s *Sheet) ApplyUpdates(updates []Update) {
	for _, col := range []string{ColTitle, ColMeta, ColDescription} {
		s.ensureColumn(col)
	}
	bysku := make(map[string]Update, len(updates))
	for _, u := range updates {
		bysku[strings.TrimSpace(u.SKU)] = u
	}
	for _, row := range s.rows {
		u, ok := bysku[strings.TrimSpace(row[ColSKU])]
		if !ok {
			continue
		}
		row[ColTitle] = u.SEOTitle
		row[ColMeta] = u.MetaDescription
		row[ColDescription] = u.HTMLContent
	}
}

// ExportCSV renders the sheet back to CSV bytes in the original column
// order.
func (s *Sheet) ExportCSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(s.headers); err != nil {
		return nil, fmt.Errorf("failed to write spreadsheet header: %w", err)
	}
	for _, row := range s.rows {
		record := make([]string, len(s.headers))
		for i, h := range s.headers {
			record[i] = row[h]
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write spreadsheet row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush spreadsheet: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Sheet) ensureColumn(name string) {
	for _, h := range s.headers {
		if h == name {
			return
		}
	}
	s.headers = append(s.headers, name)
}

// Entry is one product in the leaflet catalog.
type Entry struct {
	Barcode     string
	LeafletLink string
	Validated   bool
}

// Catalog maps barcodes to leaflet entries.
type Catalog struct {
	entries map[string]Entry
}

// ParseCatalog reads the leaflet catalog from CSV bytes. Header names are
// normalized to upper case; the validated flag is the literal "sim".
func ParseCatalog(data []byte) (*Catalog, error) {
	headers, rows, err := parseCSV(data)
	if err != nil {
		return nil, fmt.Errorf("failed to read leaflet catalog: %w", err)
	}

	normalized := make(map[string]string, len(headers))
	for _, h := range headers {
		normalized[strings.ToUpper(strings.TrimSpace(h))] = h
	}

	entries := make(map[string]Entry, len(rows))
	for _, row := range rows {
		barcode := strings.TrimSpace(row[normalized[catColBarcode]])
		if barcode == "" {
			continue
		}
		entries[barcode] = Entry{
			Barcode:     barcode,
			LeafletLink: strings.TrimSpace(row[normalized[catColLeaflet]]),
			Validated:   strings.EqualFold(strings.TrimSpace(row[normalized[catColValidated]]), "sim"),
		}
	}
	return &Catalog{entries: entries}, nil
}

// Lookup finds the catalog entry for a barcode.
func (c *Catalog) Lookup(barcode string) (Entry, bool) {
	e, ok := c.entries[strings.TrimSpace(barcode)]
	return e, ok
}

// parseCSV decodes CSV bytes into a header list and per-row column maps,
// tolerating a UTF-8 BOM and ragged rows.
func parseCSV(data []byte) ([]string, []map[string]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("spreadsheet has no header row")
	}

	headers := records[0]
	rows := make([]map[string]string, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(record) {
				row[h] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return headers, rows, nil
}
