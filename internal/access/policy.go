// Package access decides which role may perform which action on orders. The
// same decision drives both server-side enforcement and the capability list
// handed to the UI.
package access

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/Bright-River-CGI/lifestyle-app/internal/models"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

//go:embed model.conf
var modelText string

type Capability string

const (
	ViewOrder           Capability = "view-order"
	CreateOrder         Capability = "create-order"
	AddComment          Capability = "add-comment"
	EditOrder           Capability = "edit-order"
	ChangeOrderStatus   Capability = "change-order-status"
	DeleteOrder         Capability = "delete-order"
	AddProduct          Capability = "add-product"
	ChangeProductStatus Capability = "change-product-status"
	DeleteProduct       Capability = "delete-product"
	UploadFile          Capability = "upload-file"
	DeleteFile          Capability = "delete-file"
	ApproveFile         Capability = "approve-file"
	RejectFile          Capability = "reject-file"
	ChangeFileStatus    Capability = "change-file-status"
)

// ErrDenied is returned by Authorize when the role lacks the capability.
var ErrDenied = errors.New("capability denied")

var all = []Capability{
	ViewOrder, CreateOrder, AddComment,
	EditOrder, ChangeOrderStatus, DeleteOrder,
	AddProduct, ChangeProductStatus, DeleteProduct,
	UploadFile, DeleteFile, ApproveFile, RejectFile, ChangeFileStatus,
}

// Clients read, open orders and comment. Employees inherit that and do
// everything else.
var seed = map[models.UserRole][]Capability{
	models.RoleClient: {ViewOrder, CreateOrder, AddComment},
	models.RoleEmployee: {
		EditOrder, ChangeOrderStatus, DeleteOrder,
		AddProduct, ChangeProductStatus, DeleteProduct,
		UploadFile, DeleteFile, ApproveFile, RejectFile, ChangeFileStatus,
	},
}

type Policy struct {
	enforcer *casbin.SyncedEnforcer
}

func New() (*Policy, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("parse access model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create enforcer: %w", err)
	}

	for role, caps := range seed {
		for _, c := range caps {
			if _, err := enforcer.AddPolicy(subject(role), string(c)); err != nil {
				return nil, err
			}
		}
	}
	if _, err := enforcer.AddGroupingPolicy(subject(models.RoleEmployee), subject(models.RoleClient)); err != nil {
		return nil, err
	}
	return &Policy{enforcer: enforcer}, nil
}

// Allowed reports whether role may exercise capability. Unknown roles and
// capabilities are denied.
func (p *Policy) Allowed(role models.UserRole, c Capability) bool {
	if !role.Valid() {
		return false
	}
	ok, err := p.enforcer.Enforce(subject(role), string(c))
	return err == nil && ok
}

func (p *Policy) Authorize(role models.UserRole, c Capability) error {
	if !p.Allowed(role, c) {
		return fmt.Errorf("%w: %s may not %s", ErrDenied, role, c)
	}
	return nil
}

// Capabilities lists what role may do, in a stable order.
func (p *Policy) Capabilities(role models.UserRole) []Capability {
	out := make([]Capability, 0, len(all))
	for _, c := range all {
		if p.Allowed(role, c) {
			out = append(out, c)
		}
	}
	return out
}

func subject(role models.UserRole) string {
	return "role:" + string(role)
}
