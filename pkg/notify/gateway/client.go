// Package gateway provides a notify.Notifier implementation backed by an
// HTTP notification gateway (push and SMS fan-out service).
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"bloodlink/pkg/domain"
	"bloodlink/pkg/notify"
	"bloodlink/pkg/serrors"
)

// Client talks to the notification gateway REST API and fulfills the
// notify.Notifier interface. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client // httpClient performs HTTP requests to the gateway
	baseURL    string       // baseURL is the gateway endpoint, no trailing slash
	token      string       // token authenticates against the gateway
	channel    notify.Channel
}

// Notify posts a single donor notification to the gateway. Critical requests
// always go out over SMS; other urgencies use the configured channel.
func (c *Client) Notify(ctx context.Context, msg notify.Message) error {
	channel := c.channel
	if msg.Urgency == domain.UrgencyCritical {
		channel = notify.ChannelSMS
	}

	type notifyReq struct {
		DonorID    string  `json:"donorId"`
		RequestID  string  `json:"requestId"`
		Channel    string  `json:"channel"`
		BloodType  string  `json:"bloodType"`
		Urgency    string  `json:"urgency"`
		DistanceKm float64 `json:"distanceKm"`
	}
	bodyBytes, err := json.Marshal(notifyReq{
		DonorID:    msg.Donor.ID.String(),
		RequestID:  msg.RequestID.String(),
		Channel:    string(channel),
		BloodType:  string(msg.BloodType),
		Urgency:    string(msg.Urgency),
		DistanceKm: msg.DistanceKm,
	})
	if err != nil {
		return fmt.Errorf("could not marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx,
		http.MethodPost,
		c.baseURL+"/v1/notifications",
		strings.NewReader(string(bodyBytes)))
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("could not read response body: %w", err)
	}
	if resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusTooManyRequests {
		return serrors.With(serrors.ErrUnavailable, "gateway unavailable: %s", strings.TrimSpace(string(b)))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify failed: %s", strings.TrimSpace(string(b)))
	}

	return nil
}

// Ensure Client conforms to the notify.Notifier interface at compile time.
var _ notify.Notifier = (*Client)(nil)

// New constructs a Client for the given gateway endpoint. channel selects
// push or SMS delivery for routine and urgent requests.
func New(httpClient *http.Client, baseURL, token string, channel notify.Channel) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		channel:    channel,
	}
}
