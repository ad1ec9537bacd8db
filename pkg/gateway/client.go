package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/pipemirror/internal/logging"
	"github.com/aretw0/pipemirror/pkg/domain"
	"github.com/aretw0/pipemirror/pkg/ports"
	"github.com/oapi-codegen/runtime"
)

// DefaultTimeout bounds a single request when no http.Client is supplied.
const DefaultTimeout = 10 * time.Second

// Client talks to the pipeline server's REST API.
type Client struct {
	baseURL   string
	http      *http.Client
	confirmer Confirmer
	logger    *slog.Logger
}

var _ ports.Gateway = (*Client)(nil)

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout. It applies to a copy of the
// current http.Client, so a transport set by WithHTTPClient is kept.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := &http.Client{}
		if c.http != nil {
			cp := *c.http
			hc = &cp
		}
		hc.Timeout = d
		c.http = hc
	}
}

// WithConfirmer sets the confirmation step used by Delete.
func WithConfirmer(confirmer Confirmer) Option {
	return func(c *Client) {
		c.confirmer = confirmer
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a Client rooted at baseURL (e.g. "http://host:8000/api").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: DefaultTimeout},
		confirmer: NeverConfirm,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string { return c.baseURL }

// HTTPClient returns the underlying http.Client, shared with the event stream.
func (c *Client) HTTPClient() *http.Client { return c.http }

func collectionPath(kind domain.Kind) (string, error) {
	switch kind {
	case domain.KindWorkflow:
		return "/workflows", nil
	case domain.KindInstance:
		return "/instances", nil
	case domain.KindGlobal:
		return "/global_variables", nil
	}
	return "", fmt.Errorf("%w: %v", domain.ErrUnknownKind, kind)
}

func entityPath(kind domain.Kind, key string) (string, error) {
	var prefix, param string
	switch kind {
	case domain.KindWorkflow:
		prefix, param = "/workflows/", "uuid"
	case domain.KindInstance:
		prefix, param = "/instances/", "uuid"
	case domain.KindGlobal:
		prefix, param = "/global_vars/", "name"
	default:
		return "", fmt.Errorf("%w: %v", domain.ErrUnknownKind, kind)
	}
	seg, err := runtime.StyleParamWithLocation("simple", false, param, runtime.ParamLocationPath, key)
	if err != nil {
		return "", fmt.Errorf("invalid %s %q: %w", param, key, err)
	}
	return prefix + seg, nil
}

// do executes one request. body, when non-nil, is sent as JSON; out, when
// non-nil, receives the decoded JSON response (or the raw bytes for *[]byte).
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("%s %s: %w: %w", method, path, domain.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%s %s: %w", method, path, domain.ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if raw, ok := out.(*[]byte); ok {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%s %s: failed to read response: %w: %w", method, path, domain.ErrTransient, err)
		}
		*raw = data
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: failed to decode response: %w: %w", method, path, domain.ErrTransient, err)
	}
	return nil
}

// decodeCollection accepts either an identity-keyed object or an array,
// re-keying array entries with identity.
func decodeCollection[T any](raw json.RawMessage, identity func(T) string, setIdentity func(*T, string)) (map[string]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]T{}, nil
	}

	if trimmed[0] == '[' {
		if identity == nil {
			return nil, errors.New("collection is not keyed")
		}
		var list []T
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		out := make(map[string]T, len(list))
		for _, v := range list {
			out[identity(v)] = v
		}
		return out, nil
	}

	var keyed map[string]T
	if err := json.Unmarshal(trimmed, &keyed); err != nil {
		return nil, err
	}
	if setIdentity != nil {
		for k, v := range keyed {
			setIdentity(&v, k)
			keyed[k] = v
		}
	}
	return keyed, nil
}

func (c *Client) list(ctx context.Context, kind domain.Kind) (json.RawMessage, string, error) {
	path, err := collectionPath(kind)
	if err != nil {
		return nil, "", err
	}
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, path, err
	}
	return raw, path, nil
}

// ListWorkflows fetches the whole workflow collection.
func (c *Client) ListWorkflows(ctx context.Context) (map[string]domain.Workflow, error) {
	raw, path, err := c.list(ctx, domain.KindWorkflow)
	if err != nil {
		return nil, err
	}
	out, err := decodeCollection(raw, domain.Workflow.Identity, func(w *domain.Workflow, k string) {
		if w.UUID == "" {
			w.UUID = k
		}
	})
	if err != nil {
		return nil, fmt.Errorf("GET %s: failed to decode collection: %w: %w", path, domain.ErrTransient, err)
	}
	return out, nil
}

// ListInstances fetches the whole instance collection.
func (c *Client) ListInstances(ctx context.Context) (map[string]domain.Instance, error) {
	raw, path, err := c.list(ctx, domain.KindInstance)
	if err != nil {
		return nil, err
	}
	out, err := decodeCollection(raw, domain.Instance.Identity, func(i *domain.Instance, k string) {
		if i.UUID == "" {
			i.UUID = k
		}
	})
	if err != nil {
		return nil, fmt.Errorf("GET %s: failed to decode collection: %w: %w", path, domain.ErrTransient, err)
	}
	return out, nil
}

// ListGlobals fetches every global variable, keyed by name.
func (c *Client) ListGlobals(ctx context.Context) (map[string]domain.GlobalVariable, error) {
	raw, path, err := c.list(ctx, domain.KindGlobal)
	if err != nil {
		return nil, err
	}
	out, err := decodeCollection[domain.GlobalVariable](raw, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("GET %s: failed to decode collection: %w: %w", path, domain.ErrTransient, err)
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, kind domain.Kind, key string, out any) error {
	path, err := entityPath(kind, key)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// GetWorkflow fetches one workflow.
func (c *Client) GetWorkflow(ctx context.Context, uuid string) (domain.Workflow, error) {
	var w domain.Workflow
	if err := c.get(ctx, domain.KindWorkflow, uuid, &w); err != nil {
		return domain.Workflow{}, err
	}
	if w.UUID == "" {
		w.UUID = uuid
	}
	return w, nil
}

// GetInstance fetches one instance.
func (c *Client) GetInstance(ctx context.Context, uuid string) (domain.Instance, error) {
	var inst domain.Instance
	if err := c.get(ctx, domain.KindInstance, uuid, &inst); err != nil {
		return domain.Instance{}, err
	}
	if inst.UUID == "" {
		inst.UUID = uuid
	}
	return inst, nil
}

// GetGlobal fetches one global variable.
func (c *Client) GetGlobal(ctx context.Context, name string) (domain.GlobalVariable, error) {
	var v domain.GlobalVariable
	if err := c.get(ctx, domain.KindGlobal, name, &v); err != nil {
		return domain.GlobalVariable{}, err
	}
	return v, nil
}

func (c *Client) put(ctx context.Context, kind domain.Kind, key string, body any) error {
	path, err := entityPath(kind, key)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, path, body, nil)
}

// PutWorkflow replaces (or creates) a workflow.
func (c *Client) PutWorkflow(ctx context.Context, w domain.Workflow) error {
	return c.put(ctx, domain.KindWorkflow, w.UUID, w)
}

// PutInstance replaces an instance.
func (c *Client) PutInstance(ctx context.Context, inst domain.Instance) error {
	return c.put(ctx, domain.KindInstance, inst.UUID, inst)
}

// PutGlobal replaces (or creates) a global variable.
func (c *Client) PutGlobal(ctx context.Context, name string, v domain.GlobalVariable) error {
	return c.put(ctx, domain.KindGlobal, name, v)
}

// TogglePause flips the run state of a workflow or instance server-side.
func (c *Client) TogglePause(ctx context.Context, kind domain.Kind, key string) error {
	if kind == domain.KindGlobal {
		return fmt.Errorf("%w: %v cannot be paused", domain.ErrUnknownKind, kind)
	}
	path, err := entityPath(kind, key)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path+"/toggle_pause", nil, nil)
}

// Delete removes an entity after the confirmer approves it.
func (c *Client) Delete(ctx context.Context, kind domain.Kind, key string) error {
	path, err := entityPath(kind, key)
	if err != nil {
		return err
	}

	ok, err := c.confirmer.Confirm(ctx, DeletePrompt(kind, key))
	if err != nil {
		return fmt.Errorf("confirmation failed: %w", err)
	}
	if !ok {
		c.logger.Info("delete declined", "kind", kind.String(), "key", key)
		return domain.ErrDeclined
	}

	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// SpawnInstance asks the server to start a new instance of a workflow.
// The instance reaches the mirror through the normal refresh path.
func (c *Client) SpawnInstance(ctx context.Context, workflowUUID string, vars domain.Variables) error {
	path, err := entityPath(domain.KindWorkflow, workflowUUID)
	if err != nil {
		return err
	}
	if vars == nil {
		vars = domain.Variables{}
	}
	return c.do(ctx, http.MethodPost, path+"/spawn_instance", vars, nil)
}

// GenUUID requests a fresh identity. The server may answer with a JSON
// string or with plain text.
func (c *Client) GenUUID(ctx context.Context) (string, error) {
	var raw []byte
	if err := c.do(ctx, http.MethodGet, "/gen_uuid", nil, &raw); err != nil {
		return "", err
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		id = string(raw)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("GET /gen_uuid: empty identity: %w", domain.ErrTransient)
	}
	return id, nil
}

// VariableTypes lists the variable type names the server knows.
func (c *Client) VariableTypes(ctx context.Context) ([]string, error) {
	var types []string
	if err := c.do(ctx, http.MethodGet, "/variable_types", nil, &types); err != nil {
		return nil, err
	}
	return types, nil
}

// Commands returns the descriptor of every available command, keyed by name.
func (c *Client) Commands(ctx context.Context) (map[string]json.RawMessage, error) {
	var cmds map[string]json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/commands", nil, &cmds); err != nil {
		return nil, err
	}
	return cmds, nil
}
