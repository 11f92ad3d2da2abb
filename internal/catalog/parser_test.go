package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCommaSeparated(t *testing.T) {
	input := "sku,ean,name,brand,price,currency,moq\n" +
		"GZ-100,4006381333931,Gauze Pads 10x10,Hartmann,12.50,EUR,10\n" +
		"NG-200,,Nitrile Gloves M,MediSafe,8.90,EUR,\n"

	rows, rejected, err := Parser{}.Parse(strings.NewReader(input), false)
	require.NoError(t, err)
	require.Empty(t, rejected)
	require.Len(t, rows, 2)

	require.Equal(t, "GZ-100", rows[0].SKU)
	require.Equal(t, "4006381333931", rows[0].GTIN)
	require.Equal(t, "Gauze Pads 10x10", rows[0].Name)
	require.Equal(t, "Hartmann", rows[0].Brand)
	require.NotNil(t, rows[0].UnitPrice)
	require.Equal(t, 12.50, *rows[0].UnitPrice)
	require.Equal(t, "EUR", rows[0].Currency)
	require.NotNil(t, rows[0].MinOrderQty)
	require.Equal(t, 10, *rows[0].MinOrderQty)

	require.Empty(t, rows[1].GTIN)
	require.Nil(t, rows[1].MinOrderQty)
}

func TestParseSemicolonWithDecimalComma(t *testing.T) {
	input := "article_number;barcode;product_name;unit_price\n" +
		"GZ-100;4006381333931;Gauze Pads;12,50\n"

	rows, rejected, err := Parser{}.Parse(strings.NewReader(input), false)
	require.NoError(t, err)
	require.Empty(t, rejected)
	require.Len(t, rows, 1)
	require.Equal(t, "GZ-100", rows[0].SKU)
	require.Equal(t, "4006381333931", rows[0].GTIN)
	require.NotNil(t, rows[0].UnitPrice)
	require.Equal(t, 12.50, *rows[0].UnitPrice)
}

func TestParseTabSeparated(t *testing.T) {
	input := "sku\tname\tstock\nGZ-100\tGauze Pads\t250\n"

	rows, _, err := Parser{}.Parse(strings.NewReader(input), false)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].StockLevel)
	require.Equal(t, 250, *rows[0].StockLevel)
}

func TestParseRowWithoutNameRejected(t *testing.T) {
	input := "sku,name\nGZ-100,Gauze\nNG-200,\n"

	rows, rejected, err := Parser{}.Parse(strings.NewReader(input), true)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Len(t, rejected, 1)
	require.Equal(t, 2, rejected[0].Index)
}

func TestParseFailFastWithoutSkipOption(t *testing.T) {
	input := "sku,name\nGZ-100,Gauze\nNG-200,\n"

	_, rejected, err := Parser{}.Parse(strings.NewReader(input), false)
	require.Error(t, err)
	require.Len(t, rejected, 1)
}

func TestParseUnparseablePriceBecomesWarning(t *testing.T) {
	input := "name,price\nGauze,abc\n"

	rows, _, err := Parser{}.Parse(strings.NewReader(input), false)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Nil(t, rows[0].UnitPrice)
	require.NotEmpty(t, rows[0].Warnings)
}

func TestParseHeaderWithoutNameColumnFails(t *testing.T) {
	input := "sku,price\nGZ-100,12.50\n"

	_, _, err := Parser{}.Parse(strings.NewReader(input), false)
	require.ErrorIs(t, err, ErrValidation)
}

func TestParseEmptyInput(t *testing.T) {
	_, _, err := Parser{}.Parse(strings.NewReader(""), false)
	require.ErrorIs(t, err, ErrEmptyFile)

	_, _, err = Parser{}.Parse(strings.NewReader("sku,name\n"), false)
	require.ErrorIs(t, err, ErrEmptyFile)
}

func TestParseMaxRowsCap(t *testing.T) {
	input := "name\nA\nB\nC\n"

	_, _, err := Parser{MaxRows: 2}.Parse(strings.NewReader(input), false)
	require.ErrorIs(t, err, ErrValidation)
}

func TestParseBOMHeader(t *testing.T) {
	input := "\ufeffname,ean\nGauze,4006381333931\n"

	rows, _, err := Parser{}.Parse(strings.NewReader(input), false)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "Gauze", rows[0].Name)
}
