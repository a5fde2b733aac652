package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/medcode-academy/assignment-service/internal/repositories"
)

type reportService struct {
	repo     repositories.Repository
	progress ProgressService
	logger   *slog.Logger
}

func NewReportService(repo repositories.Repository, progress ProgressService, logger *slog.Logger) ReportService {
	return &reportService{
		repo:     repo,
		progress: progress,
		logger:   logger,
	}
}

// ExportCategoryStats renders one student's category roll-up as an xlsx
// workbook: the summary block on top, one row per assignment below.
func (s *reportService) ExportCategoryStats(ctx context.Context, category, studentID string) ([]byte, error) {
	stats, err := s.progress.DetailedCategoryStats(ctx, category, studentID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Category Stats"
	f.SetSheetName("Sheet1", sheet)

	summary := [][]interface{}{
		{"Category", stats.Category},
		{"Student", studentID},
		{"Total Assigned", stats.TotalAssigned},
		{"Completed", stats.Completed},
		{"Pending", stats.Pending},
		{"Average Score", stats.AverageScore},
	}
	for i, row := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write summary row: %w", err)
		}
	}

	headerRow := len(summary) + 2
	header := []interface{}{"Assignment ID", "Module", "Submitted", "Completed", "Progress %", "Submitted At"}
	cell, _ := excelize.CoordinatesToCellName(1, headerRow)
	if err := f.SetSheetRow(sheet, cell, &header); err != nil {
		return nil, fmt.Errorf("failed to write header row: %w", err)
	}

	for i, row := range stats.Assignments {
		submittedAt := ""
		if row.SubmittedAt != nil {
			submittedAt = row.SubmittedAt.Format("2006-01-02 15:04:05")
		}
		values := []interface{}{row.AssignmentID, row.ModuleName, row.Submitted, row.Completed, row.OverallProgress, submittedAt}
		cell, _ := excelize.CoordinatesToCellName(1, headerRow+1+i)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write stats row: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}

	s.logger.Info("category stats exported",
		"category", stats.Category,
		"student_id", studentID,
		"rows", len(stats.Assignments))
	return buf.Bytes(), nil
}

// ExportAssignmentResults renders every student's result on one assignment.
func (s *reportService) ExportAssignmentResults(ctx context.Context, assignmentID uint) ([]byte, error) {
	assignment, err := s.repo.Assignment().GetByID(ctx, nil, assignmentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("failed to load assignment: %w", err)
	}

	submissions, _, err := s.repo.Submission().GetByAssignment(ctx, nil, assignmentID, repositories.SubmissionFilters{
		Limit:     100,
		SortBy:    "overall_progress",
		SortOrder: "desc",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get submissions: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Results"
	f.SetSheetName("Sheet1", sheet)

	title := []interface{}{"Module", assignment.ModuleName, "Category", assignment.Category}
	if err := f.SetSheetRow(sheet, "A1", &title); err != nil {
		return nil, fmt.Errorf("failed to write title row: %w", err)
	}

	header := []interface{}{"Student ID", "Submitted At", "Correct", "Wrong", "Progress %"}
	if err := f.SetSheetRow(sheet, "A3", &header); err != nil {
		return nil, fmt.Errorf("failed to write header row: %w", err)
	}

	for i, submission := range submissions {
		values := []interface{}{
			submission.StudentID,
			submission.SubmittedAt.Format("2006-01-02 15:04:05"),
			submission.TotalCorrect,
			submission.TotalWrong,
			submission.OverallProgress,
		}
		cell, _ := excelize.CoordinatesToCellName(1, 4+i)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write result row: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}

	s.logger.Info("assignment results exported",
		"assignment_id", assignmentID,
		"rows", len(submissions))
	return buf.Bytes(), nil
}
