package postgres

import (
	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-analytics-service/internal/repositories"
)

var sessionSortColumns = map[string]bool{
	"created_at":   true,
	"started_at":   true,
	"completed_at": true,
	"percentage":   true,
	"id":           true,
}

// ApplySessionFilters narrows a quiz_sessions query
func ApplySessionFilters(query *gorm.DB, filters repositories.SessionFilters) *gorm.DB {
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.Category != nil {
		query = query.Where("category = ?", *filters.Category)
	}
	if filters.DateFrom != nil {
		query = query.Where("started_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("started_at <= ?", *filters.DateTo)
	}
	return query
}

// ApplyPaginationAndSort orders by a whitelisted column and applies limit/offset
func ApplyPaginationAndSort(query *gorm.DB, sortBy, sortOrder string, limit, offset int) *gorm.DB {
	if sortBy == "" || !sessionSortColumns[sortBy] {
		sortBy = "started_at"
	}

	if sortOrder != "asc" && sortOrder != "ASC" {
		sortOrder = "DESC"
	} else {
		sortOrder = "ASC"
	}

	query = query.Order(sortBy + " " + sortOrder)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	return query
}
