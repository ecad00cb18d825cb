// Package models defines the domain models for the wallet engine.
package models

import (
	"fmt"
	"strings"
)

// ========================================
// Wallet Owners
// ========================================

// WalletOwnerType is the discriminator of the WalletOwner union.
type WalletOwnerType string

const (
	WalletOwnerUser    WalletOwnerType = "user"
	WalletOwnerProject WalletOwnerType = "project"
)

// WalletOwner identifies who a wallet belongs to. Exactly one of Username
// and ProjectID is set, selected by Type.
type WalletOwner struct {
	Type      WalletOwnerType `json:"type" enum:"user,project" doc:"Owner kind"`
	Username  string          `json:"username,omitempty" doc:"Set when type is user"`
	ProjectID string          `json:"projectId,omitempty" doc:"Set when type is project"`
}

// UserOwner returns a user wallet owner.
func UserOwner(username string) WalletOwner {
	return WalletOwner{Type: WalletOwnerUser, Username: username}
}

// ProjectOwner returns a project wallet owner.
func ProjectOwner(projectID string) WalletOwner {
	return WalletOwner{Type: WalletOwnerProject, ProjectID: projectID}
}

// Reference returns the identifier stored for the owner.
func (o WalletOwner) Reference() string {
	switch o.Type {
	case WalletOwnerUser:
		return o.Username
	case WalletOwnerProject:
		return o.ProjectID
	default:
		return ""
	}
}

// Validate checks that the owner is a well-formed union value.
func (o WalletOwner) Validate() error {
	switch o.Type {
	case WalletOwnerUser:
		if o.Username == "" || o.ProjectID != "" {
			return fmt.Errorf("user owner requires only a username")
		}
	case WalletOwnerProject:
		if o.ProjectID == "" || o.Username != "" {
			return fmt.Errorf("project owner requires only a projectId")
		}
	default:
		return fmt.Errorf("unknown owner type %q", o.Type)
	}
	return nil
}

// String renders the owner as type:reference.
func (o WalletOwner) String() string {
	return string(o.Type) + ":" + o.Reference()
}

// OwnerFromStored rebuilds an owner from its persisted columns.
func OwnerFromStored(ownerType, reference string) WalletOwner {
	if WalletOwnerType(ownerType) == WalletOwnerProject {
		return ProjectOwner(reference)
	}
	return UserOwner(reference)
}

// ========================================
// Allocation Selection
// ========================================

// AllocationSelectorPolicy decides the order in which allocations are charged.
type AllocationSelectorPolicy string

const (
	// PolicyExpireFirst charges the allocation expiring soonest first.
	PolicyExpireFirst AllocationSelectorPolicy = "EXPIRE_FIRST"
)

// ========================================
// Wallets and Allocations
// ========================================

// WalletAllocation is a node in the allocation tree. Dates are milliseconds
// since the Unix epoch; a nil EndDate never expires.
type WalletAllocation struct {
	ID               string   `json:"id"`
	AllocationPath   []string `json:"allocationPath" doc:"Ancestor ids from the root down to this allocation"`
	Balance          int64    `json:"balance" doc:"Remaining capacity of this allocation and its descendants"`
	InitialBalance   int64    `json:"initialBalance"`
	LocalBalance     int64    `json:"localBalance" doc:"Remaining capacity ignoring descendants"`
	StartDate        int64    `json:"startDate"`
	EndDate          *int64   `json:"endDate,omitempty"`
	MaxUsableBalance *int64   `json:"maxUsableBalance,omitempty"`

	// Not part of the wire format.
	WalletID int64 `json:"-"`
}

// IsRoot reports whether the allocation has no parent.
func (a *WalletAllocation) IsRoot() bool {
	return len(a.AllocationPath) <= 1
}

// ParentID returns the id of the direct parent, or "" for a root.
func (a *WalletAllocation) ParentID() string {
	if len(a.AllocationPath) < 2 {
		return ""
	}
	return a.AllocationPath[len(a.AllocationPath)-2]
}

// IsValidAt reports whether the allocation is active at now (ms).
func (a *WalletAllocation) IsValidAt(now int64) bool {
	if a.StartDate > now {
		return false
	}
	return a.EndDate == nil || *a.EndDate >= now
}

// Usage is the consumption recorded against this allocation alone.
func (a *WalletAllocation) Usage() int64 {
	return a.InitialBalance - a.LocalBalance
}

// Wallet is the set of allocations an owner holds in one product category.
type Wallet struct {
	ID           int64                    `json:"-"`
	Owner        WalletOwner              `json:"owner"`
	PaysFor      ProductCategoryID        `json:"paysFor"`
	Allocations  []*WalletAllocation      `json:"allocations"`
	ChargePolicy AllocationSelectorPolicy `json:"chargePolicy"`
	ProductType  ProductType              `json:"productType"`
	ChargeType   ChargeType               `json:"chargeType"`
	Unit         ProductPriceUnit         `json:"unit"`
}

// SubAllocation is a parent's view of an allocation granted to another workspace.
type SubAllocation struct {
	ID                 string            `json:"id"`
	Path               string            `json:"path"`
	StartDate          int64             `json:"startDate"`
	EndDate            *int64            `json:"endDate,omitempty"`
	ProductCategoryID  ProductCategoryID `json:"productCategoryId"`
	ProductType        ProductType       `json:"productType"`
	ChargeType         ChargeType        `json:"chargeType"`
	Unit               ProductPriceUnit  `json:"unit"`
	WorkspaceID        string            `json:"workspaceId"`
	WorkspaceIsProject bool              `json:"workspaceIsProject"`
	Remaining          int64             `json:"remaining"`
	InitialBalance     int64             `json:"initialBalance"`
}

// JoinPath renders an allocation path in its stored dotted form.
func JoinPath(path []string) string {
	return strings.Join(path, ".")
}

// SplitPath parses a dotted allocation path.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}
