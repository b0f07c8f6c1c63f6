package handlers

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"p9e.in/tenderdesk/config"
	"p9e.in/tenderdesk/pkg/scoring"
)

var scoringService *scoring.Service

// getScoringService returns the scoring service bound to the application
// database and the (possibly nil) cache client
func getScoringService() *scoring.Service {
	if scoringService == nil {
		scoringService = scoring.NewService(config.DB, config.RDB)
	}
	return scoringService
}

// invalidateBreakdown drops the cached score breakdown after a write
func invalidateBreakdown(r *http.Request, documentID uuid.UUID) {
	getScoringService().Invalidate(r.Context(), documentID)
}

// parseIDList parses the comma-separated ids query parameter. Unparseable
// entries are dropped, matching the silent-skip comparison policy.
func parseIDList(raw string) []uuid.UUID {
	var ids []uuid.UUID
	for _, part := range strings.Split(raw, ",") {
		if id, err := uuid.Parse(strings.TrimSpace(part)); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// CompareTendersHandler computes score breakdowns for a set of tenders,
// sorted descending by total score. Unknown ids are skipped.
// GET /api/v1/tenders/compare?ids=a,b,c
func CompareTendersHandler(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("ids")
	if raw == "" {
		http.Error(w, "missing ids parameter", http.StatusBadRequest)
		return
	}

	ids := parseIDList(raw)
	ranked, err := getScoringService().Rank(r.Context(), ids)
	if err != nil {
		http.Error(w, "failed to compare tenders", http.StatusInternalServerError)
		return
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TotalScore > ranked[j].TotalScore
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": ranked,
		"count":   len(ranked),
	})
}

// ExportComparisonHandler writes the ranking table as an Excel download
// GET /api/v1/tenders/compare/export?ids=a,b,c
func ExportComparisonHandler(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("ids")
	if raw == "" {
		http.Error(w, "missing ids parameter", http.StatusBadRequest)
		return
	}

	ids := parseIDList(raw)
	ranked, err := getScoringService().Rank(r.Context(), ids)
	if err != nil {
		http.Error(w, "failed to compare tenders", http.StatusInternalServerError)
		return
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TotalScore > ranked[j].TotalScore
	})

	f := excelize.NewFile()
	sheet := "Ranking"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Rank", "Title", "Vendor", "Type", "Total Score", "Technical", "Financial", "Experience", "Feasibility"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: &excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
	})
	f.SetRowStyle(sheet, 1, 1, headerStyle)

	for i, b := range ranked {
		row := i + 2
		values := []interface{}{
			i + 1, b.Title, b.VendorName, b.DocumentType,
			b.TotalScore, b.Scores.Technical, b.Scores.Financial,
			b.Scores.Experience, b.FeasibilityScore,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(sheet, cell, v)
		}
	}

	buffer, err := f.WriteToBuffer()
	if err != nil {
		http.Error(w, "failed to generate Excel file", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("tender_comparison_%s.xlsx", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", buffer.Len()))

	w.WriteHeader(http.StatusOK)
	w.Write(buffer.Bytes())
}

// GetScoreBreakdownHandler returns the score breakdown for one tender
// GET /api/v1/tenders/{id}/score
func GetScoreBreakdownHandler(w http.ResponseWriter, r *http.Request) {
	documentID, ok := documentIDFromRequest(r)
	if !ok {
		http.Error(w, "invalid tender ID", http.StatusBadRequest)
		return
	}

	breakdown, err := getScoringService().DocumentBreakdown(r.Context(), documentID)
	if err != nil {
		http.Error(w, "tender not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"score": breakdown,
	})
}
