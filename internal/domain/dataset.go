package domain

import "time"

// DatasetMetadata describes an uploaded dataset.
type DatasetMetadata struct {
	RowCount         int      `json:"rowCount"`
	OriginalFilename string   `json:"originalFilename"`
	Labels           []string `json:"labels"`
}

// Dataset is a user's uploaded replacement for the built-in samples.
type Dataset struct {
	UserID    string          `json:"userId"`
	Samples   []Sample        `json:"samples"`
	Metadata  DatasetMetadata `json:"metadata"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}
