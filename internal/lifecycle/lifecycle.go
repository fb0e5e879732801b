// Package lifecycle defines the legal status values for orders, products and
// files, and which status changes are permitted.
//
// Orders and products move freely between their states: the studio reopens
// completed work, so no state is terminal. Files are different: a file leaves
// pending exactly once, to approved or rejected, and a new upload is the only
// way to get a fresh pending file.
package lifecycle

import (
	"errors"
	"fmt"

	"github.com/Bright-River-CGI/lifestyle-app/internal/models"
)

var (
	ErrUnknownStatus     = errors.New("unknown status")
	ErrInvalidTransition = errors.New("invalid status transition")
)

var orderStatuses = []models.OrderStatus{
	models.OrderDraft,
	models.OrderInProgress,
	models.OrderReview,
	models.OrderCompleted,
}

var productStatuses = []models.ProductStatus{
	models.ProductPending,
	models.ProductInProgress,
	models.ProductReview,
	models.ProductCompleted,
}

var productTypes = []models.ProductType{
	models.ProductChair,
	models.ProductTable,
	models.ProductLamp,
	models.ProductSofa,
	models.ProductStorage,
	models.ProductDecor,
	models.ProductOther,
}

var productFileTypes = []models.ProductFileType{
	models.ProductFileDraft,
	models.ProductFileRevision,
	models.ProductFileFinal,
}

// OrderStatuses lists the writable order states in display order.
func OrderStatuses() []models.OrderStatus {
	return append([]models.OrderStatus(nil), orderStatuses...)
}

// ProductStatuses lists the product states in display order.
func ProductStatuses() []models.ProductStatus {
	return append([]models.ProductStatus(nil), productStatuses...)
}

func ValidOrderStatus(s models.OrderStatus) bool {
	for _, v := range orderStatuses {
		if v == s {
			return true
		}
	}
	return false
}

func ValidProductStatus(s models.ProductStatus) bool {
	for _, v := range productStatuses {
		if v == s {
			return true
		}
	}
	return false
}

func ValidProductType(t models.ProductType) bool {
	for _, v := range productTypes {
		if v == t {
			return true
		}
	}
	return false
}

func ValidProductFileType(t models.ProductFileType) bool {
	for _, v := range productFileTypes {
		if v == t {
			return true
		}
	}
	return false
}

func ValidFileStatus(s models.FileStatus) bool {
	switch s {
	case models.FilePending, models.FileApproved, models.FileRejected:
		return true
	}
	return false
}

// OrderTransition checks an order status change. Any writable state may follow
// any other.
func OrderTransition(from, to models.OrderStatus) error {
	if !ValidOrderStatus(to) {
		return fmt.Errorf("%w: order status %q", ErrUnknownStatus, to)
	}
	return nil
}

// ProductTransition checks a product status change.
func ProductTransition(from, to models.ProductStatus) error {
	if !ValidProductStatus(to) {
		return fmt.Errorf("%w: product status %q", ErrUnknownStatus, to)
	}
	return nil
}

// FileTransition checks a file review decision. Only pending files can be
// decided, and only to approved or rejected; deciding twice is an error.
func FileTransition(from, to models.FileStatus) error {
	if !ValidFileStatus(to) {
		return fmt.Errorf("%w: file status %q", ErrUnknownStatus, to)
	}
	if from != models.FilePending || to == models.FilePending {
		return fmt.Errorf("%w: file %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
