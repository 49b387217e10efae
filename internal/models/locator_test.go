package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocatorCanonicalJSON(t *testing.T) {
	tests := []struct {
		name    string
		locator Locator
		want    string
	}{
		{
			name:    "text locator",
			locator: TextLocator(0, 500, 1),
			want:    `{"offset_end":500,"offset_start":0,"page_hint":1,"type":"text"}`,
		},
		{
			name:    "text locator without page hint",
			locator: TextLocator(100, 600, 0),
			want:    `{"offset_end":600,"offset_start":100,"type":"text"}`,
		},
		{
			name:    "excel locator",
			locator: ExcelLocator("Sales", "A2:D26"),
			want:    `{"cell_range":"A2:D26","sheet":"Sales","type":"excel"}`,
		},
		{
			name:    "csv locator",
			locator: CSVLocator(0, 25, 0, 4, 0),
			want:    `{"col_end":4,"col_start":0,"row_end":25,"row_start":0,"type":"csv"}`,
		},
		{
			name:    "image locator",
			locator: ImageLocator("chart.png", 0, 800, 600, 3),
			want:    `{"filename":"chart.png","height":600,"image_index":0,"page_number":3,"type":"image","width":800}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.locator.CanonicalJSON())
		})
	}
}

func TestLocatorCanonicalJSONDeterministic(t *testing.T) {
	locator := CSVLocator(10, 35, 0, 6, 2)
	first := locator.CanonicalJSON()
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, locator.CanonicalJSON())
	}
}

func TestLocatorValidate(t *testing.T) {
	require.NoError(t, TextLocator(0, 10, 0).Validate())
	require.NoError(t, ExcelLocator("S", "A1:B2").Validate())

	bad := Locator{Type: "pdf_page"}
	assert.Error(t, bad.Validate())
}

func TestComputeSpanHashStable(t *testing.T) {
	locator := TextLocator(0, 500, 1)
	text := "Revenue grew 40% year over year."

	first := ComputeSpanHash(locator, text)
	second := ComputeSpanHash(locator, text)
	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestComputeSpanHashDiffers(t *testing.T) {
	locator := TextLocator(0, 500, 1)
	h1 := ComputeSpanHash(locator, "some text")
	h2 := ComputeSpanHash(locator, "other text")
	assert.NotEqual(t, h1, h2)

	h3 := ComputeSpanHash(TextLocator(500, 1000, 1), "some text")
	assert.NotEqual(t, h1, h3)
}

func TestComputeSpanHashUsesTextPrefix(t *testing.T) {
	locator := TextLocator(0, 5000, 0)
	long := make([]byte, 3000)
	for i := range long {
		long[i] = 'a'
	}
	// Text beyond the first 1000 chars does not change the hash
	h1 := ComputeSpanHash(locator, string(long))
	h2 := ComputeSpanHash(locator, string(long[:1500])+"DIFFERENT TAIL")
	assert.Equal(t, h1, h2)
}
