package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Locator type discriminators. The set is deliberately closed: code that
// interprets a locator must handle every variant, and adding one is a
// checked change across the span generators and search citations.
const (
	LocatorTypeText  = "text"
	LocatorTypeCSV   = "csv"
	LocatorTypeExcel = "excel"
	LocatorTypeImage = "image"
)

// Locator pinpoints a span inside its source document. It is a tagged union
// discriminated by Type; only the fields for the active variant are set.
// Stored as canonical JSON so the span hash is reproducible.
type Locator struct {
	Type string `json:"type"`

	// text
	OffsetStart int `json:"offset_start,omitempty"`
	OffsetEnd   int `json:"offset_end,omitempty"`
	PageHint    int `json:"page_hint,omitempty"`

	// csv
	RowStart   int `json:"row_start,omitempty"`
	RowEnd     int `json:"row_end,omitempty"`
	ColStart   int `json:"col_start,omitempty"`
	ColEnd     int `json:"col_end,omitempty"`
	TableIndex int `json:"table_index,omitempty"`

	// excel
	Sheet     string `json:"sheet,omitempty"`
	CellRange string `json:"cell_range,omitempty"`

	// image
	Filename   string `json:"filename,omitempty"`
	ImageIndex int    `json:"image_index,omitempty"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	PageNumber int    `json:"page_number,omitempty"`
}

// TextLocator builds a text-variant locator
func TextLocator(offsetStart, offsetEnd, pageHint int) Locator {
	return Locator{
		Type:        LocatorTypeText,
		OffsetStart: offsetStart,
		OffsetEnd:   offsetEnd,
		PageHint:    pageHint,
	}
}

// CSVLocator builds a csv-variant locator covering a row/column range
func CSVLocator(rowStart, rowEnd, colStart, colEnd, tableIndex int) Locator {
	return Locator{
		Type:       LocatorTypeCSV,
		RowStart:   rowStart,
		RowEnd:     rowEnd,
		ColStart:   colStart,
		ColEnd:     colEnd,
		TableIndex: tableIndex,
	}
}

// ExcelLocator builds an excel-variant locator with an A1 cell range
func ExcelLocator(sheet, cellRange string) Locator {
	return Locator{
		Type:      LocatorTypeExcel,
		Sheet:     sheet,
		CellRange: cellRange,
	}
}

// ImageLocator builds an image-variant locator
func ImageLocator(filename string, imageIndex, width, height, pageNumber int) Locator {
	return Locator{
		Type:       LocatorTypeImage,
		Filename:   filename,
		ImageIndex: imageIndex,
		Width:      width,
		Height:     height,
		PageNumber: pageNumber,
	}
}

// Validate checks the discriminator is a known variant
func (l Locator) Validate() error {
	switch l.Type {
	case LocatorTypeText, LocatorTypeCSV, LocatorTypeExcel, LocatorTypeImage:
		return nil
	default:
		return fmt.Errorf("unknown locator type: %q", l.Type)
	}
}

// CanonicalJSON serializes the locator with keys sorted. Only the active
// variant's fields are written, and its optional fields (page hint, table
// index, image size, page number) are omitted when zero. The span hash is
// computed over this form, so two locators with equal content always
// serialize to the same bytes.
func (l Locator) CanonicalJSON() string {
	fields := map[string]interface{}{"type": l.Type}

	switch l.Type {
	case LocatorTypeText:
		fields["offset_start"] = l.OffsetStart
		fields["offset_end"] = l.OffsetEnd
		if l.PageHint > 0 {
			fields["page_hint"] = l.PageHint
		}
	case LocatorTypeCSV:
		fields["row_start"] = l.RowStart
		fields["row_end"] = l.RowEnd
		fields["col_start"] = l.ColStart
		fields["col_end"] = l.ColEnd
		if l.TableIndex > 0 {
			fields["table_index"] = l.TableIndex
		}
	case LocatorTypeExcel:
		fields["sheet"] = l.Sheet
		fields["cell_range"] = l.CellRange
	case LocatorTypeImage:
		fields["filename"] = l.Filename
		fields["image_index"] = l.ImageIndex
		if l.Width > 0 {
			fields["width"] = l.Width
		}
		if l.Height > 0 {
			fields["height"] = l.Height
		}
		if l.PageNumber > 0 {
			fields["page_number"] = l.PageNumber
		}
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		keyJSON, _ := json.Marshal(k)
		valJSON, _ := json.Marshal(fields[k])
		sb.Write(keyJSON)
		sb.WriteByte(':')
		sb.Write(valJSON)
	}
	sb.WriteByte('}')
	return sb.String()
}
