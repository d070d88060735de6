// internal/handlers/export.go
package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tealeg/xlsx/v3"

	"github.com/ammerola/storefront-cart/internal/core/domain"
	"github.com/ammerola/storefront-cart/internal/core/ports"
	"github.com/ammerola/storefront-cart/internal/pkg/logger"
)

// ExportParams defines parameters for export operations
type ExportParams struct {
	Columns []string `json:"columns"`
	Format  string   `json:"format"`
}

// JSONExportResponse represents the JSON export response structure
type JSONExportResponse struct {
	Items    []map[string]any   `json:"items"`
	Summary  domain.CartSummary `json:"summary"`
	Metadata ExportMetadata     `json:"metadata"`
}

// ExportMetadata contains metadata about the export
type ExportMetadata struct {
	ExportDate time.Time `json:"export_date"`
	SessionID  string    `json:"session_id"`
	TotalItems int       `json:"total_items"`
	Columns    []string  `json:"columns"`
}

type exportColumn struct {
	key    string
	header string
	value  func(domain.CartItem) any
}

var exportColumns = []exportColumn{
	{"id", "Product ID", func(i domain.CartItem) any { return i.ProductID }},
	{"title", "Title", func(i domain.CartItem) any { return i.Name }},
	{"price", "Price", func(i domain.CartItem) any { return i.Price.StringFixed(2) }},
	{"amount", "Amount", func(i domain.CartItem) any { return i.Amount }},
	{"subtotal", "Subtotal", func(i domain.CartItem) any { return i.Subtotal().StringFixed(2) }},
	{"image", "Image", func(i domain.CartItem) any { return i.ImageURL }},
}

// ExportHandler handles cart downloads
type ExportHandler struct {
	sessions ports.CartSessions
	logger   *slog.Logger
	now      func() time.Time
}

// NewExportHandler creates a new export handler
func NewExportHandler(sessions ports.CartSessions, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{
		sessions: sessions,
		logger:   logger.With(slog.String("handler", "export")),
		now:      time.Now,
	}
}

// Export handles GET /api/v1/cart/export
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	params := h.parseExportParams(r)
	switch params.Format {
	case "xlsx":
		h.ExportExcel(w, r)
	case "json":
		h.ExportJSON(w, r)
	default:
		h.respondError(w, http.StatusBadRequest, fmt.Sprintf("Unsupported export format %q", params.Format))
	}
}

// ExportExcel writes the cart as a spreadsheet
func (h *ExportHandler) ExportExcel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params := h.parseExportParams(r)

	cart, ok := h.loadCart(w, r)
	if !ok {
		return
	}

	excelData, err := h.generateExcelFile(cart, params)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to generate Excel file", slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to generate Excel file")
		return
	}

	filename := fmt.Sprintf("cart_export_%s.xlsx", h.now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(excelData)))
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

	if _, err := w.Write(excelData); err != nil {
		h.logger.ErrorContext(ctx, "Failed to write Excel response", slog.String("error", err.Error()))
		return
	}

	h.logger.InfoContext(ctx, "Excel export completed",
		slog.Int("total_rows", cart.Len()),
		slog.String("filename", filename))
}

// ExportJSON writes the cart as a JSON document
func (h *ExportHandler) ExportJSON(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params := h.parseExportParams(r)

	cart, ok := h.loadCart(w, r)
	if !ok {
		return
	}

	columns := h.selectColumns(params.Columns)
	items := make([]map[string]any, 0, cart.Len())
	for _, item := range cart.Items {
		row := make(map[string]any, len(columns))
		for _, col := range columns {
			row[col.key] = col.value(item)
		}
		items = append(items, row)
	}

	keys := make([]string, 0, len(columns))
	for _, col := range columns {
		keys = append(keys, col.key)
	}

	responseData, err := json.Marshal(JSONExportResponse{
		Items:   items,
		Summary: cart.Summary(),
		Metadata: ExportMetadata{
			ExportDate: h.now().UTC(),
			SessionID:  logger.SessionID(ctx),
			TotalItems: len(items),
			Columns:    keys,
		},
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to marshal JSON response", slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to generate JSON")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(responseData)))
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

	if _, err := w.Write(responseData); err != nil {
		h.logger.ErrorContext(ctx, "Failed to write JSON response", slog.String("error", err.Error()))
		return
	}

	h.logger.InfoContext(ctx, "JSON export completed",
		slog.Int("total_rows", len(items)))
}

func (h *ExportHandler) loadCart(w http.ResponseWriter, r *http.Request) (domain.Cart, bool) {
	ctx := r.Context()
	sessionID := logger.SessionID(ctx)
	if sessionID == "" {
		h.respondError(w, http.StatusBadRequest, "Missing session id")
		return domain.Cart{}, false
	}

	store, err := h.sessions.Open(ctx, sessionID)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to open cart session", slog.String("error", err.Error()))
		h.respondError(w, http.StatusServiceUnavailable, "Cart storage unavailable")
		return domain.Cart{}, false
	}
	return store.Cart(), true
}

// parseExportParams parses export parameters from the request
func (h *ExportHandler) parseExportParams(r *http.Request) *ExportParams {
	params := &ExportParams{
		Columns: []string{"all"},
	}

	if cols := r.URL.Query().Get("columns"); cols != "" {
		params.Columns = strings.Split(strings.TrimSpace(cols), ",")
		for i, col := range params.Columns {
			params.Columns[i] = strings.TrimSpace(col)
		}
	}

	params.Format = strings.ToLower(r.URL.Query().Get("format"))
	if params.Format == "" {
		params.Format = "xlsx"
	}

	return params
}

// selectColumns returns the requested columns in export order, falling back
// to every column when none match
func (h *ExportHandler) selectColumns(requested []string) []exportColumn {
	if len(requested) == 1 && requested[0] == "all" {
		return exportColumns
	}

	want := make(map[string]bool, len(requested))
	for _, col := range requested {
		want[col] = true
	}

	var selected []exportColumn
	for _, col := range exportColumns {
		if want[col.key] {
			selected = append(selected, col)
		}
	}
	if len(selected) == 0 {
		return exportColumns
	}
	return selected
}

// generateExcelFile creates an Excel file in memory from the cart
func (h *ExportHandler) generateExcelFile(cart domain.Cart, params *ExportParams) ([]byte, error) {
	file := xlsx.NewFile()

	sheet, err := file.AddSheet("Cart")
	if err != nil {
		return nil, fmt.Errorf("failed to add worksheet: %w", err)
	}

	columns := h.selectColumns(params.Columns)
	headerRow := sheet.AddRow()
	for _, col := range columns {
		cell := headerRow.AddCell()
		cell.Value = col.header
		cell.GetStyle().Font.Bold = true
		cell.GetStyle().Fill.PatternType = "solid"
		cell.GetStyle().Fill.FgColor = "CCCCCC"
	}

	for _, item := range cart.Items {
		dataRow := sheet.AddRow()
		for _, col := range columns {
			cell := dataRow.AddCell()
			switch v := col.value(item).(type) {
			case int:
				cell.SetInt(v)
			default:
				cell.SetString(fmt.Sprint(v))
			}
		}
	}

	summary := cart.Summary()
	totalRow := sheet.AddRow()
	for i, col := range columns {
		cell := totalRow.AddCell()
		switch {
		case col.key == "amount":
			cell.SetInt(summary.ItemCount)
		case col.key == "subtotal":
			cell.SetString(summary.Total.StringFixed(2))
		case i == 0:
			cell.Value = "Total"
			cell.GetStyle().Font.Bold = true
		}
	}

	for i := 1; i <= len(columns); i++ {
		sheet.SetColWidth(i, i, 15)
	}

	var buffer bytes.Buffer
	if err := file.Write(&buffer); err != nil {
		return nil, fmt.Errorf("failed to write Excel file to buffer: %w", err)
	}
	return buffer.Bytes(), nil
}

func (h *ExportHandler) respondError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := map[string]string{
		"error":   message,
		"status":  "error",
		"message": message,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode error response", slog.String("error", err.Error()))
	}
}
