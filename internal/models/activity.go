package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ActivityType is the closed set of audited actions.
type ActivityType string

const (
	ActivityUserCreated        ActivityType = "USER_CREATED"
	ActivityUserUpdated        ActivityType = "USER_UPDATED"
	ActivityUserDeleted        ActivityType = "USER_DELETED"
	ActivityUserLogin          ActivityType = "USER_LOGIN"
	ActivityUserLogout         ActivityType = "USER_LOGOUT"
	ActivityPasswordChanged    ActivityType = "PASSWORD_CHANGED"
	ActivityStudentEnrolled    ActivityType = "STUDENT_ENROLLED"
	ActivityStudentUpdated     ActivityType = "STUDENT_UPDATED"
	ActivityStudentTransferred ActivityType = "STUDENT_TRANSFERRED"
	ActivityStudentGraduated   ActivityType = "STUDENT_GRADUATED"
	ActivityStudentSuspended   ActivityType = "STUDENT_SUSPENDED"
	ActivityStaffHired         ActivityType = "STAFF_HIRED"
	ActivityStaffUpdated       ActivityType = "STAFF_UPDATED"
	ActivityStaffTerminated    ActivityType = "STAFF_TERMINATED"
	ActivityStaffPromoted      ActivityType = "STAFF_PROMOTED"
	ActivityParentAdded        ActivityType = "PARENT_ADDED"
	ActivityParentUpdated      ActivityType = "PARENT_UPDATED"
	ActivityParentRemoved      ActivityType = "PARENT_REMOVED"
	ActivityClassCreated       ActivityType = "CLASS_CREATED"
	ActivityClassUpdated       ActivityType = "CLASS_UPDATED"
	ActivitySubjectCreated     ActivityType = "SUBJECT_CREATED"
	ActivitySubjectUpdated     ActivityType = "SUBJECT_UPDATED"
	ActivityAssignmentCreated  ActivityType = "ASSIGNMENT_CREATED"
	ActivityAssignmentSubmit   ActivityType = "ASSIGNMENT_SUBMITTED"
	ActivityGradeEntered       ActivityType = "GRADE_ENTERED"
	ActivityExamCreated        ActivityType = "EXAM_CREATED"
	ActivityExamScheduled      ActivityType = "EXAM_SCHEDULED"
	ActivityFeeCreated         ActivityType = "FEE_CREATED"
	ActivityPaymentReceived    ActivityType = "PAYMENT_RECEIVED"
	ActivityPaymentFailed      ActivityType = "PAYMENT_FAILED"
	ActivityInvoiceGenerated   ActivityType = "INVOICE_GENERATED"
	ActivityDiscountApplied    ActivityType = "DISCOUNT_APPLIED"
	ActivityNotificationSent   ActivityType = "NOTIFICATION_SENT"
	ActivityMessageSent        ActivityType = "MESSAGE_SENT"
	ActivityAnnouncement       ActivityType = "ANNOUNCEMENT_POSTED"
	ActivitySystemBackup       ActivityType = "SYSTEM_BACKUP"
	ActivitySystemMaintenance  ActivityType = "SYSTEM_MAINTENANCE"
	ActivityDataExport         ActivityType = "DATA_EXPORT"
	ActivityDataImport         ActivityType = "DATA_IMPORT"
	ActivitySecurityAlert      ActivityType = "SECURITY_ALERT"
	ActivityPermissionChanged  ActivityType = "PERMISSION_CHANGED"
	ActivityRoleAssigned       ActivityType = "ROLE_ASSIGNED"
	ActivityRoleRemoved        ActivityType = "ROLE_REMOVED"
)

var activityTypes = map[ActivityType]struct{}{
	ActivityUserCreated: {}, ActivityUserUpdated: {}, ActivityUserDeleted: {}, ActivityUserLogin: {},
	ActivityUserLogout: {}, ActivityPasswordChanged: {}, ActivityStudentEnrolled: {}, ActivityStudentUpdated: {},
	ActivityStudentTransferred: {}, ActivityStudentGraduated: {}, ActivityStudentSuspended: {},
	ActivityStaffHired: {}, ActivityStaffUpdated: {}, ActivityStaffTerminated: {}, ActivityStaffPromoted: {},
	ActivityParentAdded: {}, ActivityParentUpdated: {}, ActivityParentRemoved: {},
	ActivityClassCreated: {}, ActivityClassUpdated: {}, ActivitySubjectCreated: {}, ActivitySubjectUpdated: {},
	ActivityAssignmentCreated: {}, ActivityAssignmentSubmit: {}, ActivityGradeEntered: {},
	ActivityExamCreated: {}, ActivityExamScheduled: {}, ActivityFeeCreated: {}, ActivityPaymentReceived: {},
	ActivityPaymentFailed: {}, ActivityInvoiceGenerated: {}, ActivityDiscountApplied: {},
	ActivityNotificationSent: {}, ActivityMessageSent: {}, ActivityAnnouncement: {},
	ActivitySystemBackup: {}, ActivitySystemMaintenance: {}, ActivityDataExport: {}, ActivityDataImport: {},
	ActivitySecurityAlert: {}, ActivityPermissionChanged: {}, ActivityRoleAssigned: {}, ActivityRoleRemoved: {},
}

// Valid reports whether t belongs to the enumeration.
func (t ActivityType) Valid() bool {
	_, ok := activityTypes[t]
	return ok
}

// ParseActivityType validates a raw query or payload value.
func ParseActivityType(raw string) (ActivityType, error) {
	t := ActivityType(raw)
	if !t.Valid() {
		return "", fmt.Errorf("unknown activity type %q", raw)
	}
	return t, nil
}

// MetadataEntry is a single key/value pair of activity metadata.
type MetadataEntry struct {
	Key   string
	Value string
}

// Metadata is an insertion-ordered string map stored as a JSON object.
type Metadata []MetadataEntry

// NewMetadata builds metadata from alternating key, value arguments.
func NewMetadata(pairs ...string) Metadata {
	md := make(Metadata, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		md = md.With(pairs[i], pairs[i+1])
	}
	return md
}

// With sets key, replacing an existing value in place.
func (m Metadata) With(key, value string) Metadata {
	for i := range m {
		if m[i].Key == key {
			m[i].Value = value
			return m
		}
	}
	return append(m, MetadataEntry{Key: key, Value: value})
}

func (m Metadata) Get(key string) (string, bool) {
	for _, e := range m {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

func (m Metadata) Keys() []string {
	keys := make([]string, len(m))
	for i, e := range m {
		keys[i] = e.Key
	}
	return keys
}

// MarshalJSON writes the entries as an object in insertion order.
func (m Metadata) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	for i, e := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object keeping the order keys appear in.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("metadata must be a JSON object")
	}
	out := Metadata{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("metadata key must be a string")
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			value = string(raw)
		}
		out = out.With(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*m = out
	return nil
}

// Value implements driver.Valuer.
func (m Metadata) Value() (driver.Value, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := m.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for TEXT or JSONB columns.
func (m *Metadata) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		return m.UnmarshalJSON(v)
	case string:
		return m.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("unsupported metadata type %T", src)
	}
}

// RequestContext is request-derived enrichment for activity entries.
type RequestContext struct {
	IPAddress string
	UserAgent string
}

// ActivityLog is an immutable audit record scoped to one school.
type ActivityLog struct {
	ID             string       `db:"id" json:"id"`
	SchoolID       string       `db:"school_id" json:"school_id"`
	ActivityType   ActivityType `db:"activity_type" json:"activity_type"`
	Title          string       `db:"title" json:"title"`
	Description    *string      `db:"description" json:"description,omitempty"`
	UserID         string       `db:"user_id" json:"user_id"`
	UserName       string       `db:"user_name" json:"user_name"`
	UserRole       string       `db:"user_role" json:"user_role"`
	TargetUserID   *string      `db:"target_user_id" json:"target_user_id,omitempty"`
	TargetUserName *string      `db:"target_user_name" json:"target_user_name,omitempty"`
	EntityType     *string      `db:"entity_type" json:"entity_type,omitempty"`
	EntityID       *string      `db:"entity_id" json:"entity_id,omitempty"`
	Metadata       Metadata     `db:"metadata" json:"metadata,omitempty"`
	IPAddress      *string      `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent      *string      `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
}

// ActivityEvent is the input to the activity log: everything needed to build one entry.
type ActivityEvent struct {
	// ID is assigned before dispatch so redelivered events insert once.
	ID           string
	TenantID     string       `validate:"required"`
	Type         ActivityType `validate:"required"`
	Title        string       `validate:"required,max=255"`
	Description  string
	ActorID      string `validate:"required"`
	ActorRole    string `validate:"required"`
	ActorName    string
	EntityType   string
	EntityID     string
	TargetUserID string
	Metadata     Metadata
	Request      *RequestContext
	OccurredAt   time.Time
}

// ActivityFilter narrows activity queries. SchoolID is always required.
type ActivityFilter struct {
	SchoolID    string
	RelatedUser string
	Type        *ActivityType
	Role        string
	Since       *time.Time
	Page        int
	PageSize    int
}

// ActivityStat counts entries per type.
type ActivityStat struct {
	ActivityType ActivityType `db:"activity_type" json:"activity_type"`
	Count        int          `db:"count" json:"count"`
}
