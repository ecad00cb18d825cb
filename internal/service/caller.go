package service

import (
	"slices"

	"github.com/jmylchreest/wallet-engine/internal/models"
)

// Caller is the authenticated principal a wallet read runs for.
type Caller struct {
	Subject  string
	Projects []string
	Admin    bool
}

// OwnerFor resolves the wallet owner the caller acts as: its own user wallet
// when project is empty, otherwise the project, which the caller must belong
// to unless it is an admin.
func (c Caller) OwnerFor(project string) (models.WalletOwner, error) {
	if c.Subject == "" {
		return models.WalletOwner{}, newError(ErrBadRequest, "caller has no subject")
	}
	if project == "" {
		return models.UserOwner(c.Subject), nil
	}
	if !c.Admin && !slices.Contains(c.Projects, project) {
		return models.WalletOwner{}, newError(ErrForbidden, "%s is not a member of project %s", c.Subject, project)
	}
	return models.ProjectOwner(project), nil
}
