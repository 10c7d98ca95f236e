package api

import (
	"time"

	"github.com/google/uuid"
)

const NoImagesMessage = "Please upload one or more image files of a metal plate to detect holes."

type MessageResponse struct {
	Message string
}

type ImageSummary struct {
	Filename           string
	MemberName         string
	RegularHolesCount  int
	ThreadedHolesCount int
	DroppedCount       int `json:"DroppedCount,omitempty"`
}

type Batch struct {
	Id uuid.UUID

	Status         string
	CreationTime   time.Time
	CompletionTime *time.Time `json:"CompletionTime,omitempty"`

	ImageCount         int
	RegularHolesCount  int
	ThreadedHolesCount int

	ArchiveURL string `json:"ArchiveURL,omitempty"`
	Error      string `json:"Error,omitempty"`

	Images []ImageSummary `json:"Images,omitempty"`
}

type ListBatchesParams struct {
	Limit  int `schema:"limit"`
	Offset int `schema:"offset"`
}
