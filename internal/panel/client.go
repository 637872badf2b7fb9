package panel

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Errors surfaced to callers for distinct operator-facing messages
var (
	// ErrAuthFailed means the panel rejected the application API key and
	// served its login page instead of JSON
	ErrAuthFailed = errors.New("panel authentication failed: check the application API key")

	// ErrTimeout means the panel did not answer within the request deadline
	ErrTimeout = errors.New("panel request timed out")
)

// APIError is a non-2xx JSON response from the panel. Message aggregates the
// remote errors[] list; Status carries the HTTP code for upstream branching.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("panel API error (%d): %s", e.Status, e.Message)
}

// Client wraps the panel application API. Stateless; safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a panel client for the given base URL and application key
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Call performs a single request against /api/application/<path>. A 204
// answer yields an empty result. Timeouts, auth failures and remote error
// lists are normalized into the package error types.
func (c *Client) Call(method, path string, body interface{}) (gjson.Result, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return gjson.Result{}, fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+"/api/application"+path, reqBody)
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return gjson.Result{}, ErrTimeout
		}
		return gjson.Result{}, fmt.Errorf("panel request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return gjson.Result{}, nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("read panel response: %w", err)
	}

	if !gjson.ValidBytes(raw) {
		// A rejected key yields the HTML login page. Match its marker text
		// only; any HTML error page mentioning "login" somewhere must not
		// masquerade as an auth failure.
		lower := strings.ToLower(string(raw))
		if strings.Contains(lower, "login to continue") ||
			resp.StatusCode == http.StatusUnauthorized ||
			resp.StatusCode == http.StatusForbidden {
			return gjson.Result{}, ErrAuthFailed
		}
		return gjson.Result{}, &APIError{
			Status:  resp.StatusCode,
			Message: "malformed response from panel",
		}
	}

	parsed := gjson.ParseBytes(raw)

	if resp.StatusCode >= 400 {
		return gjson.Result{}, &APIError{
			Status:  resp.StatusCode,
			Message: joinErrors(parsed),
		}
	}

	return parsed, nil
}

// joinErrors flattens the panel's errors[] array into one message
func joinErrors(res gjson.Result) string {
	var parts []string
	res.Get("errors").ForEach(func(_, item gjson.Result) bool {
		if detail := item.Get("detail").String(); detail != "" {
			parts = append(parts, detail)
		} else if code := item.Get("code").String(); code != "" {
			parts = append(parts, code)
		}
		return true
	})
	if len(parts) == 0 {
		return "unknown panel error"
	}
	return strings.Join(parts, "; ")
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr) && urlErr.Timeout()
}

// FindUserByEmail looks up a panel user by exact email. Returns nil without
// error when no account matches.
func (c *Client) FindUserByEmail(email string) (*RemoteUser, error) {
	res, err := c.Call("GET", "/users?filter[email]="+url.QueryEscape(email), nil)
	if err != nil {
		return nil, err
	}

	var found *RemoteUser
	res.Get("data").ForEach(func(_, item gjson.Result) bool {
		attrs := item.Get("attributes")
		if attrs.Get("email").String() == email {
			found = &RemoteUser{
				ID:       int(attrs.Get("id").Int()),
				Email:    attrs.Get("email").String(),
				Username: attrs.Get("username").String(),
			}
			return false
		}
		return true
	})
	return found, nil
}

// CreateUser creates a panel user account
func (c *Client) CreateUser(req CreateUserRequest) (*RemoteUser, error) {
	res, err := c.Call("POST", "/users", req)
	if err != nil {
		return nil, err
	}
	attrs := res.Get("attributes")
	return &RemoteUser{
		ID:       int(attrs.Get("id").Int()),
		Email:    attrs.Get("email").String(),
		Username: attrs.Get("username").String(),
	}, nil
}

// ListNodes lists all panel nodes
func (c *Client) ListNodes() ([]Node, error) {
	res, err := c.Call("GET", "/nodes", nil)
	if err != nil {
		return nil, err
	}
	var nodes []Node
	res.Get("data").ForEach(func(_, item gjson.Result) bool {
		attrs := item.Get("attributes")
		nodes = append(nodes, Node{
			ID:   int(attrs.Get("id").Int()),
			Name: attrs.Get("name").String(),
		})
		return true
	})
	return nodes, nil
}

// ListAllocations lists the ip:port allocations of a node
func (c *Client) ListAllocations(nodeID int) ([]Allocation, error) {
	res, err := c.Call("GET", fmt.Sprintf("/nodes/%d/allocations", nodeID), nil)
	if err != nil {
		return nil, err
	}
	var allocs []Allocation
	res.Get("data").ForEach(func(_, item gjson.Result) bool {
		attrs := item.Get("attributes")
		allocs = append(allocs, Allocation{
			ID:       int(attrs.Get("id").Int()),
			IP:       attrs.Get("ip").String(),
			Alias:    attrs.Get("alias").String(),
			Port:     int(attrs.Get("port").Int()),
			Assigned: attrs.Get("assigned").Bool(),
		})
		return true
	})
	return allocs, nil
}

// ListNests lists all template categories
func (c *Client) ListNests() ([]Nest, error) {
	res, err := c.Call("GET", "/nests", nil)
	if err != nil {
		return nil, err
	}
	var nests []Nest
	res.Get("data").ForEach(func(_, item gjson.Result) bool {
		attrs := item.Get("attributes")
		nests = append(nests, Nest{
			ID:   int(attrs.Get("id").Int()),
			Name: attrs.Get("name").String(),
		})
		return true
	})
	return nests, nil
}

// ListEggs lists a nest's eggs with their default variables
func (c *Client) ListEggs(nestID int) ([]Egg, error) {
	res, err := c.Call("GET", fmt.Sprintf("/nests/%d/eggs?include=variables", nestID), nil)
	if err != nil {
		return nil, err
	}
	var eggs []Egg
	res.Get("data").ForEach(func(_, item gjson.Result) bool {
		attrs := item.Get("attributes")
		egg := Egg{
			ID:          int(attrs.Get("id").Int()),
			NestID:      nestID,
			Name:        attrs.Get("name").String(),
			DockerImage: attrs.Get("docker_image").String(),
			Startup:     attrs.Get("startup").String(),
		}
		attrs.Get("relationships.variables.data").ForEach(func(_, v gjson.Result) bool {
			va := v.Get("attributes")
			egg.Variables = append(egg.Variables, EggVariable{
				EnvVariable:  va.Get("env_variable").String(),
				DefaultValue: va.Get("default_value").String(),
			})
			return true
		})
		eggs = append(eggs, egg)
		return true
	})
	return eggs, nil
}

// CreateServer provisions a new panel server
func (c *Client) CreateServer(req CreateServerRequest) (*RemoteServer, error) {
	payload := map[string]interface{}{
		"name":         req.Name,
		"user":         req.UserID,
		"egg":          req.EggID,
		"docker_image": req.DockerImage,
		"startup":      req.Startup,
		"environment":  req.Environment,
		"limits": map[string]int{
			"memory": req.Limits.Memory,
			"swap":   req.Limits.Swap,
			"disk":   req.Limits.Disk,
			"io":     req.Limits.IO,
			"cpu":    req.Limits.CPU,
		},
		"feature_limits": map[string]int{
			"databases":   req.FeatureLimits.Databases,
			"backups":     req.FeatureLimits.Backups,
			"allocations": req.FeatureLimits.Allocations,
		},
		"allocation": map[string]int{
			"default": req.AllocationID,
		},
	}

	res, err := c.Call("POST", "/servers", payload)
	if err != nil {
		return nil, err
	}
	return serverFromAttrs(res.Get("attributes")), nil
}

// GetServer fetches a server with its allocation so the caller gets the
// bound ip:port
func (c *Client) GetServer(id int) (*RemoteServer, error) {
	res, err := c.Call("GET", fmt.Sprintf("/servers/%d?include=allocations", id), nil)
	if err != nil {
		return nil, err
	}
	return serverFromAttrs(res.Get("attributes")), nil
}

// ListServers lists all panel servers (admin proxy surface)
func (c *Client) ListServers() ([]RemoteServer, error) {
	res, err := c.Call("GET", "/servers?include=allocations", nil)
	if err != nil {
		return nil, err
	}
	var servers []RemoteServer
	res.Get("data").ForEach(func(_, item gjson.Result) bool {
		servers = append(servers, *serverFromAttrs(item.Get("attributes")))
		return true
	})
	return servers, nil
}

// ListUsers lists all panel users (admin proxy surface)
func (c *Client) ListUsers() ([]RemoteUser, error) {
	res, err := c.Call("GET", "/users", nil)
	if err != nil {
		return nil, err
	}
	var users []RemoteUser
	res.Get("data").ForEach(func(_, item gjson.Result) bool {
		attrs := item.Get("attributes")
		users = append(users, RemoteUser{
			ID:       int(attrs.Get("id").Int()),
			Email:    attrs.Get("email").String(),
			Username: attrs.Get("username").String(),
		})
		return true
	})
	return users, nil
}

// UpdateServerBuild patches a server's resource limits
func (c *Client) UpdateServerBuild(id int, build BuildUpdate) error {
	payload := map[string]interface{}{
		"allocation": build.AllocationID,
		"limits": map[string]int{
			"memory": build.Limits.Memory,
			"swap":   build.Limits.Swap,
			"disk":   build.Limits.Disk,
			"io":     build.Limits.IO,
			"cpu":    build.Limits.CPU,
		},
		"feature_limits": map[string]int{
			"databases":   build.Features.Databases,
			"backups":     build.Features.Backups,
			"allocations": build.Features.Allocations,
		},
	}
	_, err := c.Call("PATCH", fmt.Sprintf("/servers/%d/build", id), payload)
	return err
}

// SuspendServer suspends a panel server
func (c *Client) SuspendServer(id int) error {
	_, err := c.Call("POST", fmt.Sprintf("/servers/%d/suspend", id), nil)
	return err
}

// UnsuspendServer unsuspends a panel server
func (c *Client) UnsuspendServer(id int) error {
	_, err := c.Call("POST", fmt.Sprintf("/servers/%d/unsuspend", id), nil)
	return err
}

// DeleteServer deletes a panel server, falling back to forced deletion when
// a normal delete is rejected
func (c *Client) DeleteServer(id int, force bool) error {
	path := fmt.Sprintf("/servers/%d", id)
	_, err := c.Call("DELETE", path, nil)
	if err != nil && force {
		_, err = c.Call("DELETE", path+"/force", nil)
	}
	return err
}

func serverFromAttrs(attrs gjson.Result) *RemoteServer {
	s := &RemoteServer{
		ID:           int(attrs.Get("id").Int()),
		Identifier:   attrs.Get("identifier").String(),
		UUID:         attrs.Get("uuid").String(),
		NodeID:       int(attrs.Get("node").Int()),
		UserID:       int(attrs.Get("user").Int()),
		Name:         attrs.Get("name").String(),
		Suspended:    attrs.Get("suspended").Bool(),
		AllocationID: int(attrs.Get("allocation").Int()),
		Limits: Limits{
			Memory: int(attrs.Get("limits.memory").Int()),
			Swap:   int(attrs.Get("limits.swap").Int()),
			Disk:   int(attrs.Get("limits.disk").Int()),
			IO:     int(attrs.Get("limits.io").Int()),
			CPU:    int(attrs.Get("limits.cpu").Int()),
		},
	}

	// Default allocation rides along when allocations are included
	attrs.Get("relationships.allocations.data").ForEach(func(_, item gjson.Result) bool {
		aa := item.Get("attributes")
		if s.AllocationID == 0 || int(aa.Get("id").Int()) == s.AllocationID {
			s.IP = aa.Get("ip").String()
			if alias := aa.Get("alias").String(); alias != "" {
				s.IP = alias
			}
			s.Port = int(aa.Get("port").Int())
		}
		return int(aa.Get("id").Int()) != s.AllocationID
	})

	return s
}
