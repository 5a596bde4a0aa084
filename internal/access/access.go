// Package access derives the effective capability of a user on a document.
// It is the only place in the system that makes view/edit/manage decisions;
// every other component delegates here instead of comparing owner ids itself.
package access

import "docvault/internal/model"

// Capability is the effective access a user has on a document. It is
// computed per request and never persisted.
type Capability string

const (
	CapabilityNone   Capability = "none"
	CapabilityViewer Capability = "viewer"
	CapabilityEditor Capability = "editor"
	CapabilityOwner  Capability = "owner"
)

// Evaluate returns the capability of userID on a document given its owner
// and ACL. Pure function: ownership wins, then the ACL entry's level, then
// none. ACL entries whose subject equals the owner are never written, so
// the order of the first two checks is not observable.
func Evaluate(ownerID string, acl []model.Permission, userID string) Capability {
	if userID == ownerID {
		return CapabilityOwner
	}
	for _, p := range acl {
		if p.UserID == userID {
			switch p.Access {
			case model.AccessEditor:
				return CapabilityEditor
			case model.AccessViewer:
				return CapabilityViewer
			}
		}
	}
	return CapabilityNone
}

// ForDocument is a convenience wrapper over Evaluate.
func ForDocument(doc *model.Document, userID string) Capability {
	return Evaluate(doc.OwnerID, doc.ACL, userID)
}

// CanView reports whether the capability allows reading metadata, version
// history, and file content.
func (c Capability) CanView() bool {
	return c != CapabilityNone
}

// CanEdit reports whether the capability allows metadata updates and new
// version uploads.
func (c Capability) CanEdit() bool {
	return c == CapabilityEditor || c == CapabilityOwner
}

// CanManage reports whether the capability allows ACL mutation and delete.
// Only ownership grants it.
func (c Capability) CanManage() bool {
	return c == CapabilityOwner
}
