package history

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// ULID is a run identifier stored as its 26 character text form.
type ULID ulid.ULID

// ParseULID parses a ULID string.
func ParseULID(s string) (ULID, error) {
	id, err := ulid.Parse(s)
	if err != nil {
		return ULID{}, fmt.Errorf("invalid ULID: %w", err)
	}
	return ULID(id), nil
}

// String returns the string representation of the ULID.
func (u ULID) String() string {
	return ulid.ULID(u).String()
}

// IsZero returns true if the ULID is zero/empty.
func (u ULID) IsZero() bool {
	return ulid.ULID(u).Compare(ulid.ULID{}) == 0
}

// Time returns the timestamp encoded in the ULID.
func (u ULID) Time() time.Time {
	return ulid.Time(ulid.ULID(u).Time())
}

// Value implements driver.Valuer for database storage.
func (u ULID) Value() (driver.Value, error) {
	if u.IsZero() {
		return nil, nil
	}
	return u.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (u *ULID) Scan(value any) error {
	var s string
	switch v := value.(type) {
	case nil:
		*u = ULID{}
		return nil
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("unsupported type for ULID: %T", value)
	}
	if s == "" {
		*u = ULID{}
		return nil
	}
	id, err := ulid.Parse(s)
	if err != nil {
		return fmt.Errorf("scanning ULID: %w", err)
	}
	*u = ULID(id)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (u ULID) MarshalJSON() ([]byte, error) {
	if u.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(u.String())
}

// GormDataType returns the GORM data type for ULID.
func (ULID) GormDataType() string {
	return "varchar(26)"
}

// Details is a result's free-form detail map, stored as JSON text.
type Details map[string]any

// Value implements driver.Valuer.
func (d Details) Value() (driver.Value, error) {
	if len(d) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encoding details: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (d *Details) Scan(value any) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*d = nil
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("unsupported type for details: %T", value)
	}
	if len(data) == 0 {
		*d = nil
		return nil
	}
	m := make(map[string]any)
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("decoding details: %w", err)
	}
	*d = m
	return nil
}

// GormDataType returns the GORM data type for Details.
func (Details) GormDataType() string {
	return "text"
}

// Run is one stored smoke run.
type Run struct {
	ID            ULID      `gorm:"primarykey;type:varchar(26)" json:"id"`
	BaseURL       string    `gorm:"size:512;not null;index" json:"base_url"`
	StartedAt     time.Time `gorm:"not null;index" json:"started_at"`
	FinishedAt    time.Time `gorm:"not null" json:"finished_at"`
	DurationMS    int64     `json:"duration_ms"`
	Success       bool      `json:"success"`
	ChecksTotal   int       `json:"checks_total"`
	ChecksPassed  int       `json:"checks_passed"`
	ResultsTotal  int       `json:"results_total"`
	ResultsPassed int       `json:"results_passed"`
	CreatedAt     time.Time `json:"created_at"`

	Checks  []StoredCheck  `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE" json:"checks,omitempty"`
	Results []StoredResult `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE" json:"results,omitempty"`
}

// TableName returns the table name for Run.
func (Run) TableName() string {
	return "runs"
}

// Duration returns the run's wall time.
func (r Run) Duration() time.Duration {
	return time.Duration(r.DurationMS) * time.Millisecond
}

// StoredCheck is the overall outcome of one check in a stored run.
type StoredCheck struct {
	ID        uint   `gorm:"primarykey" json:"-"`
	RunID     ULID   `gorm:"type:varchar(26);not null;index" json:"run_id"`
	Position  int    `gorm:"not null" json:"position"`
	Name      string `gorm:"size:128;not null" json:"name"`
	Passed    bool   `json:"passed"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

// TableName returns the table name for StoredCheck.
func (StoredCheck) TableName() string {
	return "run_checks"
}

// StoredResult is one recorded result in a stored run.
type StoredResult struct {
	ID        uint    `gorm:"primarykey" json:"-"`
	RunID     ULID    `gorm:"type:varchar(26);not null;index" json:"run_id"`
	Position  int     `gorm:"not null" json:"position"`
	Name      string  `gorm:"size:255;not null" json:"name"`
	Success   bool    `json:"success"`
	Message   string  `gorm:"type:text" json:"message"`
	Details   Details `json:"details,omitempty"`
	ElapsedMS int64   `json:"elapsed_ms"`
}

// TableName returns the table name for StoredResult.
func (StoredResult) TableName() string {
	return "run_results"
}
