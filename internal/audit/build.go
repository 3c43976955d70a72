package audit

import (
	"fmt"
	"strings"

	"github.com/noah-isme/sma-tenant-api/internal/models"
)

// Operation is the classification of a command.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
)

// Classify treats a command that names an existing resource as an update.
func Classify(cmd Command) Operation {
	if strings.TrimSpace(cmd.Identifier()) != "" {
		return OpUpdate
	}
	return OpCreate
}

// Actor is who performed the mutation.
type Actor struct {
	UserID string
	Role   string
	Name   string
}

// ActorFrom derives the actor from the principal; the role falls back to "USER".
func ActorFrom(p *models.Principal) Actor {
	if p == nil {
		return Actor{}
	}
	return Actor{UserID: p.UserID, Role: orDefault(p.Authority, "USER"), Name: p.DisplayName()}
}

// entry is the kind-specific part of an event.
type entry struct {
	activity    models.ActivityType
	title       string
	description string
	target      bool
	metadata    bool
}

type profile struct {
	entityType string
	created    func(snap models.Metadata) entry
	updated    func(snap models.Metadata) entry
}

func name(snap models.Metadata) string {
	first, _ := snap.Get("firstName")
	last, _ := snap.Get("lastName")
	return first + " " + last
}

var profiles = map[models.ResourceKind]profile{
	models.KindStaff: {
		entityType: "Staff",
		created: func(snap models.Metadata) entry {
			designation, _ := snap.Get("designation")
			return entry{
				activity:    models.ActivityStaffHired,
				title:       "New staff member hired",
				description: fmt.Sprintf("New %s hired: %s", designation, name(snap)),
				metadata:    true,
			}
		},
		updated: func(snap models.Metadata) entry {
			return entry{
				activity:    models.ActivityStaffUpdated,
				title:       "Staff information updated",
				description: "Staff profile information was modified",
				target:      true,
				metadata:    true,
			}
		},
	},
	models.KindStudent: {
		entityType: "Student",
		created: func(snap models.Metadata) entry {
			return entry{
				activity:    models.ActivityStudentEnrolled,
				title:       "New student enrolled",
				description: "New student enrolled: " + name(snap),
				metadata:    true,
			}
		},
		updated: func(snap models.Metadata) entry {
			return entry{
				activity:    models.ActivityStudentUpdated,
				title:       "Student information updated",
				description: "Student profile information was modified",
				target:      true,
				metadata:    true,
			}
		},
	},
	models.KindParent: {
		entityType: "Parent",
		created: func(snap models.Metadata) entry {
			return entry{
				activity:    models.ActivityParentAdded,
				title:       "New parent added",
				description: "New parent added: " + name(snap),
				metadata:    true,
			}
		},
		updated: func(snap models.Metadata) entry {
			return entry{
				activity:    models.ActivityParentUpdated,
				title:       "Parent information updated",
				description: "Parent profile updated: " + name(snap),
				target:      true,
			}
		},
	},
}

// Build turns a command into an activity event for tenantID. It is the single
// classify-extract-build path shared by every resource kind.
func Build(cmd Command, actor Actor, tenantID string, req *models.RequestContext) (models.ActivityEvent, error) {
	if cmd == nil {
		return models.ActivityEvent{}, fmt.Errorf("audit: nil command")
	}
	p, ok := profiles[cmd.Kind()]
	if !ok {
		return models.ActivityEvent{}, fmt.Errorf("audit: no profile for %s", cmd.Kind())
	}

	snap := cmd.Snapshot()
	op := Classify(cmd)

	var e entry
	entityID := cmd.CreatedID()
	if op == OpUpdate {
		e = p.updated(snap)
		entityID = strings.TrimSpace(cmd.Identifier())
	} else {
		e = p.created(snap)
	}

	ev := models.ActivityEvent{
		TenantID:    tenantID,
		Type:        e.activity,
		Title:       e.title,
		Description: e.description,
		ActorID:     actor.UserID,
		ActorRole:   actor.Role,
		ActorName:   actor.Name,
		EntityType:  p.entityType,
		EntityID:    entityID,
		Request:     req,
	}
	if e.target {
		ev.TargetUserID = entityID
	}
	if e.metadata {
		ev.Metadata = snap
	}
	return ev, nil
}
