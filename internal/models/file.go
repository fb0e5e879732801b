package models

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// OrderFile is a brief or reference artifact attached to the order itself.
// Type carries the MIME type.
type OrderFile struct {
	ID         snowflake.ID `json:"id"`
	Name       string       `json:"name"`
	Size       int64        `json:"size"`
	Type       string       `json:"type"`
	URL        string       `json:"url"`
	Status     FileStatus   `json:"status"`
	Comments   []Comment    `json:"comments"`
	UploadedAt time.Time    `json:"uploadedAt"`
}

// ProductFile is a deliverable iteration of a product. Type is the lifecycle
// tag (draft, revision, final) rather than a MIME type.
type ProductFile struct {
	ID        snowflake.ID    `json:"id"`
	Name      string          `json:"name"`
	Type      ProductFileType `json:"type"`
	URL       string          `json:"url"`
	Status    FileStatus      `json:"status"`
	Comments  []Comment       `json:"comments"`
	CreatedAt time.Time       `json:"createdAt"`
}

type FileStatus string

const (
	FilePending  FileStatus = "pending"
	FileApproved FileStatus = "approved"
	FileRejected FileStatus = "rejected"
)

type ProductFileType string

const (
	ProductFileDraft    ProductFileType = "draft"
	ProductFileRevision ProductFileType = "revision"
	ProductFileFinal    ProductFileType = "final"
)

type Comment struct {
	ID       snowflake.ID `json:"id"`
	Text     string       `json:"text"`
	Author   string       `json:"author"`
	AuthorID snowflake.ID `json:"authorId"`
	Date     time.Time    `json:"date"`
}
