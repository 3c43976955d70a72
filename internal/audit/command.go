// Package audit records sensitive mutations as activity events. Business operations hand
// it a typed command after they succeed; nothing here can fail the operation itself.
package audit

import (
	"strings"

	"github.com/noah-isme/sma-tenant-api/internal/models"
)

// Command describes one successful mutation. Identifier is the id of the resource that
// was updated and is empty for a create.
type Command interface {
	Kind() models.ResourceKind
	Identifier() string
	CreatedID() string
	Snapshot() models.Metadata
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return strings.TrimSpace(v)
}

// StaffCommand records a staff save.
type StaffCommand struct {
	ID          string `validate:"omitempty,uuid"`
	NewID       string `validate:"omitempty,uuid"`
	FirstName   string `validate:"max=100"`
	LastName    string `validate:"max=100"`
	Designation string `validate:"max=100"`
}

func (c StaffCommand) Kind() models.ResourceKind { return models.KindStaff }
func (c StaffCommand) Identifier() string        { return c.ID }
func (c StaffCommand) CreatedID() string         { return c.NewID }

// Snapshot returns firstName, lastName and designation with placeholders for blanks.
func (c StaffCommand) Snapshot() models.Metadata {
	return models.NewMetadata(
		"firstName", orDefault(c.FirstName, "Unknown"),
		"lastName", orDefault(c.LastName, "User"),
		"designation", orDefault(c.Designation, "Staff"),
	)
}

// StudentCommand records a student save.
type StudentCommand struct {
	ID        string `validate:"omitempty,uuid"`
	NewID     string `validate:"omitempty,uuid"`
	FirstName string `validate:"max=100"`
	LastName  string `validate:"max=100"`
}

func (c StudentCommand) Kind() models.ResourceKind { return models.KindStudent }
func (c StudentCommand) Identifier() string        { return c.ID }
func (c StudentCommand) CreatedID() string         { return c.NewID }

func (c StudentCommand) Snapshot() models.Metadata {
	return models.NewMetadata(
		"firstName", orDefault(c.FirstName, "Unknown"),
		"lastName", orDefault(c.LastName, "Student"),
	)
}

// ParentCommand records a parent save.
type ParentCommand struct {
	ID        string `validate:"omitempty,uuid"`
	NewID     string `validate:"omitempty,uuid"`
	FirstName string `validate:"max=100"`
	LastName  string `validate:"max=100"`
}

func (c ParentCommand) Kind() models.ResourceKind { return models.KindParent }
func (c ParentCommand) Identifier() string        { return c.ID }
func (c ParentCommand) CreatedID() string         { return c.NewID }

func (c ParentCommand) Snapshot() models.Metadata {
	return models.NewMetadata(
		"firstName", orDefault(c.FirstName, "Unknown"),
		"lastName", orDefault(c.LastName, "Parent"),
	)
}
