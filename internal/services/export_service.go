package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/quiz-analytics-service/internal/analytics"
)

type exportService struct {
	sessions SessionService
	mistakes MistakeService
	logger   *slog.Logger
}

func NewExportService(sessions SessionService, mistakes MistakeService, logger *slog.Logger) ExportService {
	return &exportService{
		sessions: sessions,
		mistakes: mistakes,
		logger:   logger,
	}
}

// ExportSessionAnalytics renders a completed session's analytics as an xlsx workbook.
// It returns the file bytes and a suggested file name.
func (s *exportService) ExportSessionAnalytics(ctx context.Context, sessionID uint, userID string) ([]byte, string, error) {
	doc, err := s.sessions.GetAnalytics(ctx, sessionID, userID)
	if err != nil {
		return nil, "", err
	}

	wb := newWorkbook()
	defer wb.close(s.logger)

	wb.sheet("Summary",
		[]interface{}{"Metric", "Value"},
		[][]interface{}{
			{"Total questions", doc.Score.Total},
			{"Correct", doc.Score.Correct},
			{"Incorrect", doc.Score.Incorrect},
			{"Percentage", doc.Score.Percentage},
			{"Average time per question (ms)", doc.AverageTimePerQuestion},
			{"Strong areas", joinLabels(doc.StrongAreas)},
			{"Weak areas", joinLabels(doc.WeakAreas)},
			{"Weak topics", joinLabels(doc.WeakTopics)},
			{"Proctoring events", doc.Proctoring.Total},
			{"Flagged", doc.Proctoring.Flagged},
			{"Generated at", doc.GeneratedAt.Format("2006-01-02 15:04:05")},
		})

	wb.sheet("Categories", performanceHeader, performanceRows(doc.CategoryPerformance))
	wb.sheet("Topics", performanceHeader, performanceRows(doc.TopicPerformance))
	wb.sheet("Difficulty", performanceHeader, performanceRows(doc.DifficultyPerformance))

	data, err := wb.bytes()
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("Exported session analytics", "session_id", sessionID, "user_id", userID, "bytes", len(data))
	return data, fmt.Sprintf("session-%d-analytics.xlsx", sessionID), nil
}

// ExportMistakeReport renders the user's pattern report, remediation plan and
// systematic errors as an xlsx workbook.
func (s *exportService) ExportMistakeReport(ctx context.Context, userID string) ([]byte, string, error) {
	report, err := s.mistakes.GetPatternReport(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	plan, err := s.mistakes.GetRemediationPlan(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	systematic, err := s.mistakes.GetSystematicErrors(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	frequency, err := s.mistakes.GetMistakeFrequency(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	wb := newWorkbook()
	defer wb.close(s.logger)

	var trendRows [][]interface{}
	for _, t := range report.MistakeTrend {
		trendRows = append(trendRows, []interface{}{string(t.Type), t.Count, t.Percentage})
	}
	trendRows = append(trendRows, []interface{}{"total", report.TotalMistakes, 100})
	wb.sheet("Mistake types", []interface{}{"Type", "Count", "Percentage"}, trendRows)

	var categoryRows [][]interface{}
	for _, c := range sortedCounts(report.ByCategory) {
		categoryRows = append(categoryRows, []interface{}{c.Category, c.Count})
	}
	wb.sheet("Categories", []interface{}{"Category", "Mistakes"}, categoryRows)

	var planRows [][]interface{}
	for _, a := range plan.Areas {
		planRows = append(planRows, []interface{}{
			a.Category,
			roundFloat(a.AverageAccuracy*100, 1),
			roundFloat(a.Priority, 2),
			a.RecommendedSessions,
			joinLabels(a.FocusTopics),
		})
	}
	planRows = append(planRows,
		[]interface{}{},
		[]interface{}{"Focus", plan.MistakeFocus},
		[]interface{}{"Estimated sessions to mastery", plan.EstimatedTimeToMastery},
	)
	wb.sheet("Remediation", []interface{}{"Category", "Accuracy %", "Priority", "Sessions", "Focus topics"}, planRows)

	var systematicRows [][]interface{}
	for _, e := range systematic {
		systematicRows = append(systematicRows, []interface{}{e.Pattern, e.ChosenIndex, e.CorrectIndex, e.Count})
	}
	wb.sheet("Systematic errors", []interface{}{"Pattern", "Chosen option", "Correct option", "Count"}, systematicRows)

	var frequencyRows [][]interface{}
	for _, f := range frequency {
		frequencyRows = append(frequencyRows, []interface{}{f.QuestionID, f.MistakeRate})
	}
	wb.sheet("Question frequency", []interface{}{"Question", "Mistake rate %"}, frequencyRows)

	data, err := wb.bytes()
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("Exported mistake report", "user_id", userID, "bytes", len(data))
	return data, "mistake-report.xlsx", nil
}

// ===== WORKBOOK HELPERS =====

var performanceHeader = []interface{}{"Label", "Correct", "Total", "Percentage"}

func performanceRows(perf map[string]analytics.Performance) [][]interface{} {
	labels := make([]string, 0, len(perf))
	for label := range perf {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	rows := make([][]interface{}, 0, len(labels))
	for _, label := range labels {
		p := perf[label]
		rows = append(rows, []interface{}{label, p.Correct, p.Total, p.Percentage})
	}
	return rows
}

func sortedCounts(counts map[string]int) []analytics.CategoryCount {
	out := make([]analytics.CategoryCount, 0, len(counts))
	for category, count := range counts {
		out = append(out, analytics.CategoryCount{Category: category, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func joinLabels(labels []string) string {
	return strings.Join(labels, ", ")
}

// workbook collects the first error so sheet writes can be chained
type workbook struct {
	file   *excelize.File
	header int
	sheets int
	err    error
}

func newWorkbook() *workbook {
	f := excelize.NewFile()
	wb := &workbook{file: f}
	wb.header, wb.err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	return wb
}

func (wb *workbook) sheet(name string, header []interface{}, rows [][]interface{}) {
	if wb.err != nil {
		return
	}

	// The default sheet is renamed for the first call so no empty sheet is left behind.
	if wb.sheets == 0 {
		wb.err = wb.file.SetSheetName("Sheet1", name)
	} else {
		_, wb.err = wb.file.NewSheet(name)
	}
	if wb.err != nil {
		return
	}
	wb.sheets++

	if wb.err = wb.file.SetSheetRow(name, "A1", &header); wb.err != nil {
		return
	}
	if wb.err = wb.file.SetRowStyle(name, 1, 1, wb.header); wb.err != nil {
		return
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			wb.err = err
			return
		}
		if wb.err = wb.file.SetSheetRow(name, cell, &row); wb.err != nil {
			return
		}
	}

	last, err := excelize.ColumnNumberToName(max(len(header), 1))
	if err != nil {
		wb.err = err
		return
	}
	wb.err = wb.file.SetColWidth(name, "A", last, 22)
}

func (wb *workbook) bytes() ([]byte, error) {
	if wb.err != nil {
		return nil, fmt.Errorf("failed to build workbook: %w", wb.err)
	}
	wb.file.SetActiveSheet(0)

	buf, err := wb.file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (wb *workbook) close(logger *slog.Logger) {
	if err := wb.file.Close(); err != nil {
		logger.Warn("Failed to close workbook", "error", err)
	}
}
