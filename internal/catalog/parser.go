package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Column names recognised in upload headers, mapped case-insensitively.
// Supplier exports disagree on naming, so common synonyms are accepted.
var headerSynonyms = map[string]string{
	"sku":            "sku",
	"suppliersku":    "sku",
	"supplier_sku":   "sku",
	"articlenumber":  "sku",
	"article_number": "sku",
	"gtin":           "gtin",
	"ean":            "gtin",
	"barcode":        "gtin",
	"name":           "name",
	"productname":    "name",
	"product_name":   "name",
	"title":          "name",
	"brand":          "brand",
	"manufacturer":   "brand",
	"description":    "description",
	"unitprice":      "unitPrice",
	"unit_price":     "unitPrice",
	"price":          "unitPrice",
	"currency":       "currency",
	"minorderqty":    "minOrderQty",
	"min_order_qty":  "minOrderQty",
	"moq":            "minOrderQty",
	"stocklevel":     "stockLevel",
	"stock_level":    "stockLevel",
	"stock":          "stockLevel",
	"leadtimedays":   "leadTimeDays",
	"lead_time_days": "leadTimeDays",
	"leadtime":       "leadTimeDays",
}

// Parser turns raw delimited text into validated candidate rows.
type Parser struct {
	// MaxRows caps the number of data rows accepted per file; zero means
	// no cap.
	MaxRows int
}

// Parse reads delimited text with a header row and returns accepted rows
// and rejected ones. A row without a name is rejected; when
// skipInvalidRows is false the first rejection fails the whole parse.
// Unparseable numeric fields become nil with a warning on the row.
func (p Parser) Parse(r io.Reader, skipInvalidRows bool) ([]ImportRow, []RowError, error) {
	buffered, delim, err := detectDelimiter(r)
	if err != nil {
		return nil, nil, err
	}

	reader := csv.NewReader(buffered)
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, ErrEmptyFile
		}
		return nil, nil, fmt.Errorf("catalog: read header: %w", err)
	}
	columns := mapHeader(header)
	if _, ok := hasColumn(columns, "name"); !ok {
		return nil, nil, fmt.Errorf("%w: no name column in header", ErrValidation)
	}

	var rows []ImportRow
	var rejected []RowError
	index := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		index++
		if err != nil {
			rejected = append(rejected, RowError{Index: index, Message: err.Error()})
			if !skipInvalidRows {
				return nil, rejected, fmt.Errorf("catalog: row %d: %w", index, err)
			}
			continue
		}
		if p.MaxRows > 0 && len(rows) >= p.MaxRows {
			return nil, nil, fmt.Errorf("%w: more than %d rows", ErrValidation, p.MaxRows)
		}

		row := buildRow(index, record, columns)
		if row.Name == "" {
			rejected = append(rejected, RowError{Index: index, Message: "missing product name"})
			if !skipInvalidRows {
				return nil, rejected, fmt.Errorf("catalog: row %d: %w", index, ErrValidation)
			}
			continue
		}
		rows = append(rows, row)
	}
	if index == 0 {
		return nil, nil, ErrEmptyFile
	}
	return rows, rejected, nil
}

// detectDelimiter sniffs the first line for semicolon or tab separated
// files; comma is the default.
func detectDelimiter(r io.Reader) (io.Reader, rune, error) {
	head := make([]byte, 4096)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, 0, fmt.Errorf("catalog: read input: %w", err)
	}
	head = head[:n]
	line := string(head)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	delim := ','
	if strings.Count(line, ";") > strings.Count(line, ",") {
		delim = ';'
	}
	if strings.Count(line, "\t") > strings.Count(line, string(delim)) {
		delim = '\t'
	}
	return io.MultiReader(strings.NewReader(string(head)), r), delim, nil
}

func mapHeader(header []string) map[int]string {
	columns := make(map[int]string, len(header))
	for i, raw := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff")))
		key = strings.ReplaceAll(key, " ", "")
		if field, ok := headerSynonyms[key]; ok {
			columns[i] = field
		}
		// Unknown columns are ignored.
	}
	return columns
}

func hasColumn(columns map[int]string, field string) (int, bool) {
	for i, f := range columns {
		if f == field {
			return i, true
		}
	}
	return 0, false
}

func buildRow(index int, record []string, columns map[int]string) ImportRow {
	row := ImportRow{Index: index}
	for i, field := range columns {
		if i >= len(record) {
			continue
		}
		value := strings.TrimSpace(record[i])
		if value == "" {
			continue
		}
		switch field {
		case "sku":
			row.SKU = value
		case "gtin":
			row.GTIN = NormalizeGTIN(value)
		case "name":
			row.Name = value
		case "brand":
			row.Brand = value
		case "description":
			row.Description = value
		case "currency":
			row.Currency = strings.ToUpper(value)
		case "unitPrice":
			if f, err := parsePrice(value); err == nil {
				row.UnitPrice = &f
			} else {
				row.Warnings = append(row.Warnings, fmt.Sprintf("unparseable unit price %q", value))
			}
		case "minOrderQty":
			row.MinOrderQty = parseIntField(value, field, &row)
		case "stockLevel":
			row.StockLevel = parseIntField(value, field, &row)
		case "leadTimeDays":
			row.LeadTimeDays = parseIntField(value, field, &row)
		}
	}
	return row
}

// parsePrice accepts both decimal-point and decimal-comma notation.
func parsePrice(value string) (float64, error) {
	value = strings.ReplaceAll(value, " ", "")
	if strings.Count(value, ",") == 1 && strings.Count(value, ".") == 0 {
		value = strings.Replace(value, ",", ".", 1)
	} else {
		value = strings.ReplaceAll(value, ",", "")
	}
	return strconv.ParseFloat(value, 64)
}

func parseIntField(value, field string, row *ImportRow) *int {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		row.Warnings = append(row.Warnings, fmt.Sprintf("unparseable %s %q", field, value))
		return nil
	}
	return &n
}
