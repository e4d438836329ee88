// Package grid is the worker-side client for a federated-learning
// coordination server. It composes the persistent-connection transport, the
// one-shot HTTP transport, an artifact codec and the speed prober into one
// operation per server RPC. No retries, no caching: every failure propagates
// to the caller, who decides whether to reconnect.
package grid

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/openfed/gridworker/internal/codec"
	"github.com/openfed/gridworker/internal/model"
	"github.com/openfed/gridworker/internal/probe"
	"github.com/openfed/gridworker/internal/transport"
)

// Persistent-connection message types.
const (
	msgAuthenticate = "federated/authenticate"
	msgCycleRequest = "federated/cycle-request"
	msgHostTraining = "federated/host-training"
	msgReport       = "federated/report"
)

// HTTP artifact endpoints.
const (
	pathGetModel    = "/federated/get-model"
	pathGetPlan     = "/federated/get-plan"
	pathGetProtocol = "/federated/get-protocol"
)

// messageSender is the persistent-connection side of the transport.
type messageSender interface {
	SendMessage(msg transport.Message) (*transport.Response, error)
	Close() error
}

// httpDoer is the one-shot HTTP side of the transport.
type httpDoer interface {
	Do(ctx context.Context, method, path string, params url.Values, body []byte) ([]byte, error)
}

// speedProber runs one full probing session.
type speedProber interface {
	Measure(ctx context.Context, workerID string) (probe.Speed, error)
}

// Options configure a client for one grid endpoint.
type Options struct {
	// Address is the grid host:port; Secure selects wss/https over ws/http.
	Address string
	Secure  bool
	// Timeout bounds the websocket handshake on (re)connect.
	Timeout time.Duration
	// RateLimitMB caps the download probe, 0 for unlimited.
	RateLimitMB float64
}

// Client is the grid façade. It is not safe for concurrent use: the
// persistent connection carries at most one in-flight request.
type Client struct {
	conn   messageSender
	http   httpDoer
	codec  codec.Codec
	prober speedProber
}

// New builds a client. The codec is an explicit dependency so callers choose
// how artifacts are serialized; nothing is connected until the first call.
func New(opts Options, cdc codec.Codec) *Client {
	httpc := transport.NewClient(opts.Address, opts.Secure)
	return &Client{
		conn:   transport.NewConn(opts.Address, opts.Secure, opts.Timeout),
		http:   httpc,
		codec:  cdc,
		prober: probe.New(httpc, opts.RateLimitMB),
	}
}

// Authenticate presents an auth token to the grid and returns the server's
// reply unchanged.
func (c *Client) Authenticate(authToken string) (*transport.Response, error) {
	return c.conn.SendMessage(transport.Message{
		Type: msgAuthenticate,
		Data: map[string]any{"auth_token": authToken},
	})
}

// CycleRequest asks to join a training cycle for a model version, attaching
// the measured connection speed for the server's scheduling decision.
func (c *Client) CycleRequest(workerID, modelName, modelVersion string, speed probe.Speed) (*transport.Response, error) {
	return c.conn.SendMessage(transport.Message{
		Type: msgCycleRequest,
		Data: map[string]any{
			"worker_id": workerID,
			"model":     modelName,
			"version":   modelVersion,
			"ping":      speed.PingMs,
			"download":  speed.DownloadKBps,
			"upload":    speed.UploadKBps,
		},
	})
}

// HostFederatedTraining registers a model and its plans/protocols with the
// grid. Codec payloads travel hex-encoded; the config documents pass through
// as plain JSON.
func (c *Client) HostFederatedTraining(
	m *model.State,
	clientPlans map[string]*model.Plan,
	clientProtocols map[string]*model.Protocol,
	serverAveragingPlan *model.Plan,
	clientConfig model.ClientConfig,
	serverConfig model.ServerConfig,
) (*transport.Response, error) {
	serializedModel, err := c.serializeArtifact(m)
	if err != nil {
		return nil, fmt.Errorf("serialize model: %w", err)
	}

	plans := make(map[string]any, len(clientPlans))
	for name, plan := range clientPlans {
		plans[name] = plan
	}
	serializedPlans, err := c.serializeArtifactMap(plans)
	if err != nil {
		return nil, fmt.Errorf("serialize plans: %w", err)
	}

	protocols := make(map[string]any, len(clientProtocols))
	for name, proto := range clientProtocols {
		protocols[name] = proto
	}
	serializedProtocols, err := c.serializeArtifactMap(protocols)
	if err != nil {
		return nil, fmt.Errorf("serialize protocols: %w", err)
	}

	serializedAvgPlan, err := c.serializeArtifact(serverAveragingPlan)
	if err != nil {
		return nil, fmt.Errorf("serialize averaging plan: %w", err)
	}

	return c.conn.SendMessage(transport.Message{
		Type: msgHostTraining,
		Data: map[string]any{
			"model":          serializedModel,
			"plans":          serializedPlans,
			"protocols":      serializedProtocols,
			"averaging_plan": serializedAvgPlan,
			"client_config":  clientConfig,
			"server_config":  serverConfig,
		},
	})
}

// GetModel fetches and decodes the current model state for a cycle.
func (c *Client) GetModel(ctx context.Context, workerID, requestKey, modelID string) (*model.State, error) {
	params := url.Values{
		"worker_id":   {workerID},
		"request_key": {requestKey},
		"model_id":    {modelID},
	}
	raw, err := c.http.Do(ctx, http.MethodGet, pathGetModel, params, nil)
	if err != nil {
		return nil, err
	}
	var st model.State
	if err := c.codec.Decode(raw, &st); err != nil {
		return nil, fmt.Errorf("decode model state: %w", err)
	}
	return &st, nil
}

// GetPlan fetches a plan, with operations delivered in the requested format
// (model.PlanTypeList or model.PlanTypeTorchscript).
func (c *Client) GetPlan(ctx context.Context, workerID, requestKey, planID, receiveOperationsAs string) (*model.Plan, error) {
	params := url.Values{
		"worker_id":             {workerID},
		"request_key":           {requestKey},
		"plan_id":               {planID},
		"receive_operations_as": {receiveOperationsAs},
	}
	raw, err := c.http.Do(ctx, http.MethodGet, pathGetPlan, params, nil)
	if err != nil {
		return nil, err
	}
	var plan model.Plan
	if err := c.codec.Decode(raw, &plan); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	return &plan, nil
}

// GetProtocol fetches a protocol artifact.
func (c *Client) GetProtocol(ctx context.Context, workerID, requestKey, protocolID string) (*model.Protocol, error) {
	params := url.Values{
		"worker_id":   {workerID},
		"request_key": {requestKey},
		"protocol_id": {protocolID},
	}
	raw, err := c.http.Do(ctx, http.MethodGet, pathGetProtocol, params, nil)
	if err != nil {
		return nil, err
	}
	var proto model.Protocol
	if err := c.codec.Decode(raw, &proto); err != nil {
		return nil, fmt.Errorf("decode protocol: %w", err)
	}
	return &proto, nil
}

// Report submits the trained model diff for a cycle, base64-encoded.
func (c *Client) Report(workerID, requestKey string, diff *model.State) (*transport.Response, error) {
	raw, err := c.codec.Encode(diff)
	if err != nil {
		return nil, fmt.Errorf("serialize diff: %w", err)
	}
	return c.conn.SendMessage(transport.Message{
		Type: msgReport,
		Data: map[string]any{
			"worker_id":   workerID,
			"request_key": requestKey,
			"diff":        base64.StdEncoding.EncodeToString(raw),
		},
	})
}

// ConnectionSpeed runs one full probing session (ping, upload, download).
func (c *Client) ConnectionSpeed(ctx context.Context, workerID string) (probe.Speed, error) {
	return c.prober.Measure(ctx, workerID)
}

// Close tears down the persistent connection; safe if never connected.
func (c *Client) Close() error {
	return c.conn.Close()
}

// serializeArtifact hex-encodes one codec payload.
func (c *Client) serializeArtifact(v any) (string, error) {
	raw, err := c.codec.Encode(v)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

// serializeArtifactMap hex-encodes every value of a named artifact set,
// keeping the keys.
func (c *Client) serializeArtifactMap(artifacts map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(artifacts))
	for name, v := range artifacts {
		encoded, err := c.serializeArtifact(v)
		if err != nil {
			return nil, fmt.Errorf("artifact %q: %w", name, err)
		}
		out[name] = encoded
	}
	return out, nil
}
