package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DeployType tags a deploy request. The backend treats rollbacks differently
// when naming and recording the resulting deployment.
type DeployType string

const (
	DeployClassic  DeployType = "CLASSIC"
	DeployRollback DeployType = "ROLLBACK"
)

// Valid reports whether t is one of the known deploy types.
func (t DeployType) Valid() bool {
	return t == DeployClassic || t == DeployRollback
}

// FlexInt decodes a JSON number, a numeric string or null. The status
// endpoint has shipped pid and port both ways.
type FlexInt struct {
	Value int64
	Set   bool
}

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = FlexInt{}
		return nil
	}
	s := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = FlexInt{}
			return nil
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("flexint: %q is not an integer", s)
	}
	*f = FlexInt{Value: n, Set: true}
	return nil
}

func (f FlexInt) MarshalJSON() ([]byte, error) {
	if !f.Set {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(f.Value, 10)), nil
}

// Int builds a set FlexInt.
func Int(v int64) FlexInt { return FlexInt{Value: v, Set: true} }

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Timestamp accepts RFC 3339 as well as the zone-less local date-times the
// backend emits for its entity fields. Zone-less values are read as UTC.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		*t = Timestamp{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognised value %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

// Application is a registered deployable unit.
type Application struct {
	ID                  int64     `json:"id"`
	Name                string    `json:"name"`
	FolderRoot          string    `json:"folderRoot"`
	Description         string    `json:"description"`
	CreatedAt           Timestamp `json:"createdAt"`
	GitProjectHTTPSURL  string    `json:"gitProjectHttpsUrl"`
	GitProjectSSHURL    string    `json:"gitProjectSshUrl"`
	Port                int       `json:"port"`
	JavaSystemVersionID *int64    `json:"javaSystemVersionId"`
	MvnSystemVersionID  *int64    `json:"mvnSystemVersionId"`
}

// ApplicationInput is the body of an application create or update. Update
// replaces the whole record, so unchanged fields must be sent back.
type ApplicationInput struct {
	Name                string `json:"name"`
	Description         string `json:"description"`
	FolderRoot          string `json:"folderRoot,omitempty"`
	GitProjectHTTPSURL  string `json:"gitProjectHttpsUrl"`
	GitProjectSSHURL    string `json:"gitProjectSshUrl,omitempty"`
	Port                int    `json:"port,omitempty"`
	JavaSystemVersionID *int64 `json:"javaSystemVersionId,omitempty"`
	MvnSystemVersionID  *int64 `json:"mvnSystemVersionId,omitempty"`
}

// Input returns the editable fields of a.
func (a Application) Input() ApplicationInput {
	return ApplicationInput{
		Name:                a.Name,
		Description:         a.Description,
		FolderRoot:          a.FolderRoot,
		GitProjectHTTPSURL:  a.GitProjectHTTPSURL,
		GitProjectSSHURL:    a.GitProjectSSHURL,
		Port:                a.Port,
		JavaSystemVersionID: a.JavaSystemVersionID,
		MvnSystemVersionID:  a.MvnSystemVersionID,
	}
}

// Deployment is one historical or current run of an application branch.
type Deployment struct {
	ID            int64     `json:"id"`
	Version       string    `json:"version"`
	Status        string    `json:"status"`
	PID           FlexInt   `json:"pid"`
	Type          string    `json:"type"`
	CreatedAt     Timestamp `json:"createdAt"`
	ApplicationID int64     `json:"applicationId"`
	Branch        string    `json:"branch"`
	LogsPath      string    `json:"logsPath"`
	Notes         string    `json:"notes"`
	TimeTaken     *int      `json:"timeTaken"`
}

// StatusRunning is the deployment status the backend gives the live row.
const StatusRunning = "RUNNING"

// IsRunning reports whether this row is the live deployment of its application.
func (d Deployment) IsRunning() bool {
	return strings.EqualFold(d.Status, StatusRunning)
}

// DeploymentStatus is the live process state of one application.
type DeploymentStatus struct {
	IsRunning bool    `json:"isRunning"`
	PID       FlexInt `json:"pid"`
	Port      FlexInt `json:"port"`
	Error     string  `json:"error,omitempty"`
}

// CommandResult is the outcome of one backend deploy step.
type CommandResult struct {
	Success  bool   `json:"success"`
	Output   string `json:"output"`
	Error    string `json:"error,omitempty"`
	ExitCode *int   `json:"exitCode,omitempty"`
}

// DeployResult is returned by the deploy endpoint.
type DeployResult struct {
	Success      bool          `json:"success"`
	UpdateResult CommandResult `json:"updateResult"`
	BuildResult  CommandResult `json:"buildResult"`
	RunResult    CommandResult `json:"runResult"`
	BuiltJar     string        `json:"builtJar"`
}

// Page is the backend's paged list envelope.
type Page[T any] struct {
	Content       []T   `json:"content"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	PageNumber    int   `json:"pageNumber,omitempty"`
	PageSize      int   `json:"pageSize,omitempty"`
}

// Audit is one recorded operator action.
type Audit struct {
	ID        int64          `json:"id"`
	Action    string         `json:"action"`
	Timestamp Timestamp      `json:"timestamp"`
	Details   map[string]any `json:"details"`
	User      string         `json:"user"`
}

// LoginResponse captures the token payload emitted by the authentication endpoint.
type LoginResponse struct {
	Token      string `json:"token"`
	Expiration string `json:"expiration"`
	UserID     string `json:"userId"`
	Email      string `json:"email"`
}
