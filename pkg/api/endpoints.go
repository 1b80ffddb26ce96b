package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResponse, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
	}
	data, err := c.do(ctx, ClassDefault, http.MethodPost, "/authentication", body)
	if err != nil {
		return LoginResponse{}, err
	}
	var resp LoginResponse
	if err := decode(data, &resp); err != nil {
		return LoginResponse{}, err
	}
	return resp, nil
}

// ListApplications returns every registered application.
func (c *Client) ListApplications(ctx context.Context) ([]Application, error) {
	data, err := c.do(ctx, ClassSearch, http.MethodGet, "/applications", nil)
	if err != nil {
		return nil, err
	}
	var apps []Application
	if err := decode(data, &apps); err != nil {
		return nil, err
	}
	return apps, nil
}

// DeleteApplication removes an application.
func (c *Client) DeleteApplication(ctx context.Context, id int64) error {
	_, err := c.do(ctx, ClassDelete, http.MethodDelete, "/applications/"+strconv.FormatInt(id, 10), nil)
	return err
}

// CreateApplication registers a new application.
func (c *Client) CreateApplication(ctx context.Context, in ApplicationInput) (Application, error) {
	data, err := c.do(ctx, ClassDefault, http.MethodPost, "/applications", in)
	if err != nil {
		return Application{}, err
	}
	var app Application
	if err := decode(data, &app); err != nil {
		return Application{}, err
	}
	return app, nil
}

// UpdateApplication replaces the editable fields of an application.
func (c *Client) UpdateApplication(ctx context.Context, id int64, in ApplicationInput) (Application, error) {
	data, err := c.do(ctx, ClassDefault, http.MethodPut, "/applications/"+strconv.FormatInt(id, 10), in)
	if err != nil {
		return Application{}, err
	}
	var app Application
	if err := decode(data, &app); err != nil {
		return Application{}, err
	}
	return app, nil
}

// DeploymentStatus returns the live process state of an application.
func (c *Client) DeploymentStatus(ctx context.Context, applicationID int64) (DeploymentStatus, error) {
	q := url.Values{"applicationId": {strconv.FormatInt(applicationID, 10)}}
	data, err := c.do(ctx, ClassStatus, http.MethodGet, "/deployment-manager/status?"+q.Encode(), nil)
	if err != nil {
		return DeploymentStatus{}, err
	}
	var st DeploymentStatus
	if err := decode(data, &st); err != nil {
		return DeploymentStatus{}, err
	}
	return st, nil
}

// Deploy builds and starts branch for the application.
func (c *Client) Deploy(ctx context.Context, applicationID int64, branch string, typ DeployType) (DeployResult, error) {
	if !typ.Valid() {
		return DeployResult{}, fmt.Errorf("invalid deploy type %q", typ)
	}
	q := url.Values{
		"applicationId":  {strconv.FormatInt(applicationID, 10)},
		"branchName":     {branch},
		"deploymentType": {string(typ)},
	}
	data, err := c.do(ctx, ClassDeploy, http.MethodPost, "/deployment-manager/deploy?"+q.Encode(), nil)
	if err != nil {
		return DeployResult{}, err
	}
	var res DeployResult
	if err := decode(data, &res); err != nil {
		return DeployResult{}, err
	}
	return res, nil
}

// Kill terminates a process by pid and returns the backend's textual result.
func (c *Client) Kill(ctx context.Context, pid int64) (string, error) {
	q := url.Values{"pid": {strconv.FormatInt(pid, 10)}}
	data, err := c.do(ctx, ClassKill, http.MethodPost, "/deployment-manager/kill?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(data))
	var quoted string
	if strings.HasPrefix(text, `"`) && json.Unmarshal([]byte(text), &quoted) == nil {
		return quoted, nil
	}
	return text, nil
}

// SearchParams filters the deployment history. Zero values are omitted.
type SearchParams struct {
	ApplicationID int64
	CreatedDate   time.Time
	Page          int
	Size          int
}

// SearchDeployments returns one page of deployment history.
func (c *Client) SearchDeployments(ctx context.Context, p SearchParams) (Page[Deployment], error) {
	q := url.Values{
		"page": {strconv.Itoa(p.Page)},
		"size": {strconv.Itoa(p.Size)},
	}
	if p.ApplicationID > 0 {
		q.Set("applicationId", strconv.FormatInt(p.ApplicationID, 10))
	}
	if !p.CreatedDate.IsZero() {
		q.Set("createdDate", p.CreatedDate.Format("2006-01-02"))
	}
	data, err := c.do(ctx, ClassSearch, http.MethodGet, "/deployments/search?"+q.Encode(), nil)
	if err != nil {
		return Page[Deployment]{}, err
	}
	var page Page[Deployment]
	if err := decode(data, &page); err != nil {
		return Page[Deployment]{}, err
	}
	return page, nil
}

// DeleteDeployment removes a deployment history row.
func (c *Client) DeleteDeployment(ctx context.Context, id int64) error {
	_, err := c.do(ctx, ClassDelete, http.MethodDelete, "/deployments/"+strconv.FormatInt(id, 10), nil)
	return err
}

// UpdateNotes replaces the operator notes of a deployment.
func (c *Client) UpdateNotes(ctx context.Context, id int64, notes string) (Deployment, error) {
	q := url.Values{"value": {notes}}
	path := fmt.Sprintf("/deployments/%d/notes?%s", id, q.Encode())
	data, err := c.do(ctx, ClassDefault, http.MethodPatch, path, nil)
	if err != nil {
		return Deployment{}, err
	}
	var d Deployment
	if err := decode(data, &d); err != nil {
		return Deployment{}, err
	}
	return d, nil
}

// AvailableBranches lists the branches of a Git repository. The backend
// already filters out its own rollback branches.
func (c *Client) AvailableBranches(ctx context.Context, gitURL string) ([]string, error) {
	q := url.Values{"gitUrl": {gitURL}}
	data, err := c.do(ctx, ClassBranches, http.MethodGet, "/git/available-branches?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var branches []string
	if err := decode(data, &branches); err != nil {
		return nil, err
	}
	return branches, nil
}

// SearchAudits returns one page of the audit trail, newest first.
func (c *Client) SearchAudits(ctx context.Context, page, size int) (Page[Audit], error) {
	q := url.Values{
		"page": {strconv.Itoa(page)},
		"size": {strconv.Itoa(size)},
	}
	data, err := c.do(ctx, ClassSearch, http.MethodPost, "/audits/search?"+q.Encode(), map[string]any{})
	if err != nil {
		return Page[Audit]{}, err
	}
	var p Page[Audit]
	if err := decode(data, &p); err != nil {
		return Page[Audit]{}, err
	}
	return p, nil
}
