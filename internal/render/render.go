// Package render maps queue items to display rows: the most recent
// submission first, a download affordance for processed files and the queue
// position for pending ones.
package render

import (
	"strconv"

	"upqueue/internal/models"
)

// Category selects how a status cell is styled. Unknown statuses have none.
type Category string

const (
	CategoryNone      Category = ""
	CategoryPending   Category = "pending"
	CategoryProcessed Category = "processed"
	CategoryError     Category = "error"
	CategoryOutdated  Category = "outdated"
)

type Link struct {
	Href  string
	Label string
}

type Row struct {
	FileName string
	Status   string
	Category Category
	// Secondary is extra status content, the queue position of a pending item.
	Secondary string
	Download  *Link
}

// Rows reverses items and maps each to its display row.
func Rows(items []models.QueueItem) []Row {
	rows := make([]Row, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		rows = append(rows, RowFor(items[i]))
	}
	return rows
}

func RowFor(item models.QueueItem) Row {
	row := Row{
		FileName: item.FileName,
		Status:   string(item.Status),
	}

	switch item.Status {
	case models.StatusProcessed:
		row.Category = CategoryProcessed
		row.Download = &Link{Href: item.DownloadLink, Label: item.FileName}
	case models.StatusPending:
		row.Category = CategoryPending
		if item.QueuePosition != nil {
			row.Secondary = strconv.Itoa(*item.QueuePosition)
		}
	case models.StatusError:
		row.Category = CategoryError
	case models.StatusOutdated:
		row.Category = CategoryOutdated
	}

	return row
}
