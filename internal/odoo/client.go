// Package odoo is a thin client for the Odoo external API (XML-RPC).
// It exposes the handful of operations the sync engine needs: search_read,
// create, write, unlink and fields_get, all routed through execute_kw.
package odoo

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kolo/xmlrpc"
)

// DefaultTimeout bounds a single RPC round trip.
const DefaultTimeout = 30 * time.Second

// ErrAuthFailed indicates the server rejected the credentials.
var ErrAuthFailed = errors.New("odoo: authentication failed")

// Config holds the connection parameters for an Odoo server.
type Config struct {
	URL      string
	Database string
	Username string
	Password string
}

// Client is an authenticated connection to one Odoo database.
type Client struct {
	common *xmlrpc.Client
	object *xmlrpc.Client

	db       string
	password string
	uid      int64
}

// Dial connects to the server and authenticates. The returned client is
// ready for execute_kw calls.
func Dial(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.URL, "/")

	transport := &http.Transport{
		ResponseHeaderTimeout: DefaultTimeout,
	}

	common, err := xmlrpc.NewClient(base+"/xmlrpc/2/common", transport)
	if err != nil {
		return nil, fmt.Errorf("odoo: connect %s: %w", cfg.URL, err)
	}
	object, err := xmlrpc.NewClient(base+"/xmlrpc/2/object", transport)
	if err != nil {
		return nil, fmt.Errorf("odoo: connect %s: %w", cfg.URL, err)
	}

	c := &Client{
		common:   common,
		object:   object,
		db:       cfg.Database,
		password: cfg.Password,
	}

	var raw any
	err = common.Call("authenticate", []any{cfg.Database, cfg.Username, cfg.Password, map[string]any{}}, &raw)
	if err != nil {
		return nil, fmt.Errorf("odoo: authenticate: %w", err)
	}
	uid, ok := ToInt64(raw)
	if !ok || uid <= 0 {
		// Odoo returns boolean false for bad credentials.
		return nil, ErrAuthFailed
	}
	c.uid = uid

	return c, nil
}

// UID returns the authenticated user id.
func (c *Client) UID() int64 {
	return c.uid
}

// ServerVersion returns the server_version string reported by the common
// endpoint.
func (c *Client) ServerVersion() (string, error) {
	var raw any
	if err := c.common.Call("version", nil, &raw); err != nil {
		return "", fmt.Errorf("odoo: version: %w", err)
	}
	info, ok := raw.(map[string]any)
	if !ok {
		return "", fmt.Errorf("odoo: unexpected version payload %T", raw)
	}
	v, _ := info["server_version"].(string)
	return v, nil
}

// ExecuteKw invokes an arbitrary model method through execute_kw.
func (c *Client) ExecuteKw(model, method string, args []any, kw map[string]any) (any, error) {
	if args == nil {
		args = []any{}
	}
	if kw == nil {
		kw = map[string]any{}
	}

	var raw any
	err := c.object.Call("execute_kw", []any{c.db, c.uid, c.password, model, method, args, kw}, &raw)
	if err != nil {
		return nil, fmt.Errorf("odoo: %s.%s: %w", model, method, err)
	}
	return raw, nil
}

// SearchRead searches a model and reads the requested fields.
// A limit of 0 means no limit.
func (c *Client) SearchRead(model string, domain []any, fields []string, limit int) ([]map[string]any, error) {
	if domain == nil {
		domain = []any{}
	}
	kw := map[string]any{}
	if len(fields) > 0 {
		kw["fields"] = fields
	}
	if limit > 0 {
		kw["limit"] = limit
	}

	raw, err := c.ExecuteKw(model, "search_read", []any{domain}, kw)
	if err != nil {
		return nil, err
	}
	return ToRecords(raw), nil
}

// Create inserts a record and returns its id.
func (c *Client) Create(model string, values map[string]any) (int64, error) {
	raw, err := c.ExecuteKw(model, "create", []any{values}, nil)
	if err != nil {
		return 0, err
	}
	id, ok := ToInt64(raw)
	if !ok {
		return 0, fmt.Errorf("odoo: %s.create returned %T, want id", model, raw)
	}
	return id, nil
}

// Write updates a single record.
func (c *Client) Write(model string, id int64, values map[string]any) error {
	_, err := c.ExecuteKw(model, "write", []any{[]int64{id}, values}, nil)
	return err
}

// Unlink deletes records.
func (c *Client) Unlink(model string, ids []int64) error {
	_, err := c.ExecuteKw(model, "unlink", []any{ids}, nil)
	return err
}

// FieldsGet returns the field metadata of a model, keyed by field name.
// Only the attributes the sync cares about are requested.
func (c *Client) FieldsGet(model string) (map[string]map[string]any, error) {
	raw, err := c.ExecuteKw(model, "fields_get", []any{}, map[string]any{
		"attributes": []string{"type", "string", "required"},
	})
	if err != nil {
		return nil, err
	}

	payload, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("odoo: %s.fields_get returned %T", model, raw)
	}

	fields := make(map[string]map[string]any, len(payload))
	for name, attrs := range payload {
		if m, ok := attrs.(map[string]any); ok {
			fields[name] = m
		}
	}
	return fields, nil
}
