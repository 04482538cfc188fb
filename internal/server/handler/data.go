package handler

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

// SymbolLister lists the symbols with stored bars.
type SymbolLister interface {
	Symbols(ctx context.Context) ([]string, error)
}

// DataHandler serves market data metadata.
type DataHandler struct {
	symbols SymbolLister
	logger  *zap.Logger
}

// NewDataHandler creates a DataHandler.
func NewDataHandler(symbols SymbolLister, logger *zap.Logger) *DataHandler {
	return &DataHandler{symbols: symbols, logger: logger.With(zap.String("handler", "data"))}
}

// ListSymbols returns the sorted symbol list.
// GET /api/data/symbols
func (h *DataHandler) ListSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := h.symbols.Symbols(r.Context())
	if err != nil {
		h.logger.Error("list symbols failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list symbols")
		return
	}
	if symbols == nil {
		symbols = []string{}
	}
	writeJSON(w, http.StatusOK, symbols)
}
