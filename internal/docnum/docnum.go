// ABOUTME: Document-type inference and numbering context for the system prompt
// ABOUTME: Pre-assigns sequential numbers so the model never invents its own

package docnum

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/rkartside/docbridge/internal/store"
)

// Document type codes and their labels as they appear on the documents.
var Types = map[string]string{
	"COT":   "Cotización",
	"PRES":  "Presupuesto",
	"REC":   "Recibo",
	"CARTA": "Carta de Compromiso",
}

// keywords map a document type to the substrings that signal a request for
// it. Matching is case-insensitive and prefix-tolerant ("cotizaci" covers
// cotización, cotizacion, cotizaciones).
var keywords = map[string][]string{
	"COT":  {"cotizaci", "cotización"},
	"PRES": {"presupuest"},
	"REC":  {"recibo"},
}

// InferType returns the document type a user text asks for, or empty when
// no type is recognized.
func InferType(text string) string {
	lower := strings.ToLower(text)
	for docType, kws := range keywords {
		for _, kw := range kws {
			if strings.Contains(lower, kw) {
				return docType
			}
		}
	}
	return ""
}

// Assigner renders the numbering section appended to the system prompt for
// each exchange. When the user's text names a document type it pre-assigns
// the next number; otherwise it summarizes the latest numbers so follow-up
// turns stay consistent.
type Assigner struct {
	counters store.Counters
	logger   *slog.Logger
}

func NewAssigner(counters store.Counters, logger *slog.Logger) *Assigner {
	return &Assigner{
		counters: counters,
		logger:   logger.With("component", "docnum"),
	}
}

// Context builds the numbering context for one user turn.
func (a *Assigner) Context(ctx context.Context, userText string, year int) (string, error) {
	if docType := InferType(userText); docType != "" {
		num, err := a.counters.NextDocumentNumber(ctx, docType, year)
		if err != nil {
			return "", fmt.Errorf("assigning document number: %w", err)
		}
		a.logger.Info("pre-assigned document number", "number", num)
		return fmt.Sprintf("\n\n## Numeración de documentos\nUsa exactamente este número para el documento: **%s**", num), nil
	}

	last, err := a.counters.LastDocumentNumbers(ctx, year)
	if err != nil {
		return "", fmt.Errorf("reading document counters: %w", err)
	}
	if len(last) == 0 {
		return fmt.Sprintf("\n\n## Numeración de documentos\nNo hay documentos generados en %d. Formato: TIPO-%d-001 (COT para cotización, PRES para presupuesto, REC para recibo).", year, year), nil
	}

	types := make([]string, 0, len(last))
	for docType := range last {
		types = append(types, docType)
	}
	sort.Strings(types)

	lines := []string{fmt.Sprintf("\n\n## Numeración de documentos\nÚltimos números generados en %d:", year)}
	for _, docType := range types {
		label := Types[docType]
		if label == "" {
			label = docType
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", label, last[docType]))
	}
	lines = append(lines, "Si necesitas generar un documento, usa el siguiente número consecutivo.")
	return strings.Join(lines, "\n"), nil
}
