// Package sfuhttp talks to the external media-routing server over its HTTP
// API.
package sfuhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Wyydra/huddle/internal/core/domain"
	"github.com/Wyydra/huddle/internal/metrics"
	"github.com/go-resty/resty/v2"
)

const defaultTimeout = 10 * time.Second

// implements port.MediaServer
type Client struct {
	httpClient *resty.Client
}

func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("media server url must be provided")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "huddle-control/1.0").
		SetTimeout(timeout)

	return &Client{httpClient: httpClient}, nil
}

type transportRequest struct {
	PeerID    domain.ParticipantID `json:"peerId"`
	Direction string               `json:"direction,omitempty"`
}

type connectRequest struct {
	HuddleID       domain.SessionID     `json:"hid"`
	PeerID         domain.ParticipantID `json:"peerId"`
	DtlsParameters json.RawMessage      `json:"dtlsParameters"`
}

type produceRequest struct {
	PeerID        domain.ParticipantID `json:"peerId"`
	TransportID   string               `json:"transportId"`
	Kind          domain.MediaKind     `json:"kind"`
	RtpParameters json.RawMessage      `json:"rtpParameters"`
}

type consumeRequest struct {
	PeerID          domain.ParticipantID `json:"peerId"`
	TransportID     string               `json:"transportId"`
	ProducerID      string               `json:"producerId"`
	RtpCapabilities json.RawMessage      `json:"rtpCapabilities"`
}

func (c *Client) EnsureSession(ctx context.Context, sid domain.SessionID) (json.RawMessage, error) {
	return c.post(ctx, "ensure_session", "/huddles/{hid}/ensure", pathParams{"hid": sid.String()}, nil)
}

func (c *Client) CreateTransport(ctx context.Context, sid domain.SessionID, pid domain.ParticipantID, direction string) (json.RawMessage, error) {
	body := transportRequest{PeerID: pid, Direction: direction}
	return c.post(ctx, "create_transport", "/huddles/{hid}/transports", pathParams{"hid": sid.String()}, body)
}

func (c *Client) ConnectTransport(ctx context.Context, sid domain.SessionID, pid domain.ParticipantID, transportID string, dtlsParameters json.RawMessage) error {
	body := connectRequest{HuddleID: sid, PeerID: pid, DtlsParameters: dtlsParameters}
	_, err := c.post(ctx, "connect_transport", "/transports/{tid}/connect", pathParams{"tid": transportID}, body)
	return err
}

func (c *Client) Produce(ctx context.Context, sid domain.SessionID, pid domain.ParticipantID, transportID string, kind domain.MediaKind, rtpParameters json.RawMessage) (domain.Produced, error) {
	body := produceRequest{PeerID: pid, TransportID: transportID, Kind: kind, RtpParameters: rtpParameters}
	data, err := c.post(ctx, "produce", "/huddles/{hid}/produce", pathParams{"hid": sid.String()}, body)
	if err != nil {
		return domain.Produced{}, err
	}

	var ref struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &ref); err != nil || ref.ID == "" {
		return domain.Produced{}, fmt.Errorf("%w: produce: response carries no producer id", domain.ErrMediaServer)
	}
	return domain.Produced{ID: ref.ID, Data: data}, nil
}

func (c *Client) Consume(ctx context.Context, sid domain.SessionID, pid domain.ParticipantID, transportID, producerID string, rtpCapabilities json.RawMessage) (json.RawMessage, error) {
	body := consumeRequest{PeerID: pid, TransportID: transportID, ProducerID: producerID, RtpCapabilities: rtpCapabilities}
	return c.post(ctx, "consume", "/huddles/{hid}/consume", pathParams{"hid": sid.String()}, body)
}

func (c *Client) ProducerOp(ctx context.Context, op domain.MediaOp, producerID string) error {
	return c.handleOp(ctx, "producer", "/producers/{id}", op, producerID)
}

func (c *Client) ConsumerOp(ctx context.Context, op domain.MediaOp, consumerID string) error {
	return c.handleOp(ctx, "consumer", "/consumers/{id}", op, consumerID)
}

func (c *Client) SessionState(ctx context.Context, sid domain.SessionID) (domain.MediaSessionState, error) {
	var state domain.MediaSessionState
	start := time.Now()
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("hid", sid.String()).
		SetResult(&state).
		Get("/huddles/{hid}/state")
	if err := checkResponse("session_state", start, resp, err); err != nil {
		return domain.MediaSessionState{}, err
	}
	return state, nil
}

type pathParams map[string]string

func (c *Client) post(ctx context.Context, operation, path string, params pathParams, body any) (json.RawMessage, error) {
	start := time.Now()
	req := c.httpClient.R().
		SetContext(ctx).
		SetPathParams(params)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Post(path)
	if err := checkResponse(operation, start, resp, err); err != nil {
		return nil, err
	}

	data := json.RawMessage(resp.Body())
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}
	return data, nil
}

func (c *Client) handleOp(ctx context.Context, target, path string, op domain.MediaOp, id string) error {
	operation := target + "_" + string(op)
	start := time.Now()
	req := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("id", id)

	var (
		resp *resty.Response
		err  error
	)
	switch op {
	case domain.MediaPause:
		resp, err = req.Post(path + "/pause")
	case domain.MediaResume:
		resp, err = req.Post(path + "/resume")
	case domain.MediaClose:
		resp, err = req.Delete(path)
	default:
		return fmt.Errorf("%w: unknown %s op %q", domain.ErrMediaServer, target, op)
	}
	return checkResponse(operation, start, resp, err)
}

func checkResponse(operation string, start time.Time, resp *resty.Response, err error) error {
	outcome := "ok"
	defer func() {
		metrics.MediaRequestDuration.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())
	}()

	if err != nil {
		outcome = "error"
		return fmt.Errorf("%w: %s: %v", domain.ErrMediaServer, operation, err)
	}
	if resp.IsError() {
		outcome = "error"
		return fmt.Errorf("%w: %s (%d): %s", domain.ErrMediaServer, operation, resp.StatusCode(), resp.String())
	}
	return nil
}
