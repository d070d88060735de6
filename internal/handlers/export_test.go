// internal/handlers/export_test.go
package handlers_test

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v3"

	"github.com/ammerola/storefront-cart/internal/handlers"
	"github.com/ammerola/storefront-cart/internal/handlers/middleware"
	"github.com/ammerola/storefront-cart/internal/pkg/logger"
)

func TestExportHandler_ExportJSON(t *testing.T) {
	tests := []struct {
		name            string
		query           string
		expectedColumns []string
	}{
		{
			name:            "exports_all_columns_by_default",
			query:           "?format=json",
			expectedColumns: []string{"id", "title", "price", "amount", "subtotal", "image"},
		},
		{
			name:            "exports_selected_columns",
			query:           "?format=json&columns=amount,%20id",
			expectedColumns: []string{"id", "amount"},
		},
		{
			name:            "unknown_columns_fall_back_to_all",
			query:           "?format=json&columns=lot_id",
			expectedColumns: []string{"id", "title", "price", "amount", "subtotal", "image"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, map[int]int{1: 5, 2: 5})
			ts.do(t, "s1", http.MethodPost, "/api/v1/cart/items", `{"product_id":1}`)
			ts.do(t, "s1", http.MethodPost, "/api/v1/cart/items", `{"product_id":2}`)
			ts.do(t, "s1", http.MethodPost, "/api/v1/cart/items", `{"product_id":2}`)

			rec := ts.do(t, "s1", http.MethodGet, "/api/v1/cart/export"+tt.query, "")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var resp handlers.JSONExportResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.expectedColumns, resp.Metadata.Columns)
			assert.Equal(t, "s1", resp.Metadata.SessionID)
			assert.Equal(t, 2, resp.Metadata.TotalItems)
			assert.Equal(t, 3, resp.Summary.ItemCount)
			require.Len(t, resp.Items, 2)
			assert.Len(t, resp.Items[0], len(tt.expectedColumns))
			assert.EqualValues(t, 1, resp.Items[0]["id"])
		})
	}
}

func TestExportHandler_ExportExcel(t *testing.T) {
	ts := newTestServer(t, map[int]int{1: 5})
	ts.do(t, "s1", http.MethodPost, "/api/v1/cart/items", `{"product_id":1}`)
	ts.do(t, "s1", http.MethodPost, "/api/v1/cart/items", `{"product_id":1}`)

	rec := ts.do(t, "s1", http.MethodGet, "/api/v1/cart/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "cart_export_")

	file, err := xlsx.OpenBinary(rec.Body.Bytes())
	require.NoError(t, err)
	sheet, ok := file.Sheet["Cart"]
	require.True(t, ok)

	header, err := sheet.Cell(0, 0)
	require.NoError(t, err)
	assert.Equal(t, "Product ID", header.Value)

	amount, err := sheet.Cell(1, 3)
	require.NoError(t, err)
	assert.Equal(t, "2", amount.Value)

	subtotal, err := sheet.Cell(1, 4)
	require.NoError(t, err)
	assert.Equal(t, "219.90", subtotal.Value)

	total, err := sheet.Cell(2, 0)
	require.NoError(t, err)
	assert.Equal(t, "Total", total.Value)
}

func TestExportHandler_ExcelTotalsFollowColumns(t *testing.T) {
	tests := []struct {
		name      string
		columns   string
		wantCells []string
	}{
		{"title_and_subtotal", "title,subtotal", []string{"Total", "219.90"}},
		{"amount_and_subtotal", "amount,subtotal", []string{"2", "219.90"}},
		{"id_amount_image", "id,amount,image", []string{"Total", "2", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, map[int]int{1: 5})
			ts.do(t, "s1", http.MethodPost, "/api/v1/cart/items", `{"product_id":1}`)
			ts.do(t, "s1", http.MethodPost, "/api/v1/cart/items", `{"product_id":1}`)

			rec := ts.do(t, "s1", http.MethodGet, "/api/v1/cart/export?columns="+tt.columns, "")
			require.Equal(t, http.StatusOK, rec.Code)

			file, err := xlsx.OpenBinary(rec.Body.Bytes())
			require.NoError(t, err)
			sheet := file.Sheet["Cart"]
			require.NotNil(t, sheet)

			for col, want := range tt.wantCells {
				cell, err := sheet.Cell(2, col)
				require.NoError(t, err)
				assert.Equal(t, want, cell.Value, "total row column %d", col)
			}
		})
	}
}

func TestExportHandler_GzipDownloads(t *testing.T) {
	ts := newTestServer(t, map[int]int{1: 5, 2: 5})
	ts.do(t, "s1", http.MethodPost, "/api/v1/cart/items", `{"product_id":1}`)
	ts.do(t, "s1", http.MethodPost, "/api/v1/cart/items", `{"product_id":2}`)

	withSession := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.mux.ServeHTTP(w, r.WithContext(logger.WithSessionID(r.Context(), "s1")))
	})
	srv := httptest.NewServer(middleware.Compression(withSession))
	defer srv.Close()

	client := &http.Client{Transport: &http.Transport{DisableCompression: true}}

	for _, format := range []string{"json", "xlsx"} {
		t.Run(format, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/cart/export?format="+format, nil)
			require.NoError(t, err)
			req.Header.Set("Accept-Encoding", "gzip")

			resp, err := client.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))

			compressed, err := io.ReadAll(resp.Body)
			require.NoError(t, err, "body shorter than the declared length")
			if resp.ContentLength >= 0 {
				assert.EqualValues(t, len(compressed), resp.ContentLength)
			}

			zr, err := gzip.NewReader(bytes.NewReader(compressed))
			require.NoError(t, err)
			body, err := io.ReadAll(zr)
			require.NoError(t, err)

			if format == "json" {
				var export handlers.JSONExportResponse
				require.NoError(t, json.Unmarshal(body, &export))
				assert.Len(t, export.Items, 2)
				return
			}
			_, err = xlsx.OpenBinary(body)
			require.NoError(t, err)
		})
	}
}

func TestExportHandler_Errors(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, "s1", http.MethodGet, "/api/v1/cart/export?format=pdf", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unsupported export format")

	rec = ts.do(t, "", http.MethodGet, "/api/v1/cart/export?format=json", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
