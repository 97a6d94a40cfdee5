package instagram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/solstudio/ig-agent-go/internal/config"
)

// Reaction is the closed set of reaction classes the platform accepts.
type Reaction string

const (
	ReactionLove Reaction = "love"
)

// ValidReaction reports whether r is a supported reaction class.
func ValidReaction(r Reaction) bool {
	return r == ReactionLove
}

// Profile is the subset of the user profile the agent uses.
type Profile struct {
	Name     string `json:"name"`
	Username string `json:"username"`
}

// Client talks to the Messenger Platform Graph API for Instagram messaging.
// Rate-limit (429) and server errors are retried with backoff, honoring a
// Retry-After hint when present, capped at GraphAPIMaxAttempts.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
	backoffBase time.Duration
}

func NewClient(baseURL, accessToken string) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: config.OutboundHTTPTimeout},
		baseURL:     baseURL,
		accessToken: accessToken,
		backoffBase: config.GraphAPIRetryBackoff,
	}
}

type sendMessageRequest struct {
	Recipient recipient    `json:"recipient"`
	Message   *messageBody `json:"message,omitempty"`
	SenderAct string       `json:"sender_action,omitempty"`
	Payload   *reactionReq `json:"payload,omitempty"`
}

type recipient struct {
	ID string `json:"id"`
}

type messageBody struct {
	Text string `json:"text"`
}

type reactionReq struct {
	MessageID string `json:"message_id"`
	Reaction  string `json:"reaction"`
}

type sendMessageResponse struct {
	RecipientID string `json:"recipient_id"`
	MessageID   string `json:"message_id"`
}

type graphError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendText sends a text message and returns the platform message id.
func (c *Client) SendText(ctx context.Context, recipientID, text string) (string, error) {
	body := sendMessageRequest{
		Recipient: recipient{ID: recipientID},
		Message:   &messageBody{Text: text},
	}

	var resp sendMessageResponse
	if err := c.post(ctx, "/me/messages", body, &resp); err != nil {
		return "", fmt.Errorf("send text: %w", err)
	}
	return resp.MessageID, nil
}

// SendReaction reacts to a user's message.
func (c *Client) SendReaction(ctx context.Context, recipientID, messageID string, reaction Reaction) error {
	if !ValidReaction(reaction) {
		return fmt.Errorf("unsupported reaction: %s", reaction)
	}

	body := sendMessageRequest{
		Recipient: recipient{ID: recipientID},
		SenderAct: "react",
		Payload:   &reactionReq{MessageID: messageID, Reaction: string(reaction)},
	}

	if err := c.post(ctx, "/me/messages", body, nil); err != nil {
		return fmt.Errorf("send reaction: %w", err)
	}
	return nil
}

// GetProfile fetches the sender's profile fields.
func (c *Client) GetProfile(ctx context.Context, igsid string) (*Profile, error) {
	endpoint := fmt.Sprintf("%s/%s?fields=name,username&access_token=%s",
		c.baseURL, url.PathEscape(igsid), url.QueryEscape(c.accessToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build profile request: %w", err)
	}

	var profile Profile
	if err := c.doWithRetry(req, nil, &profile); err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &profile, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s%s?access_token=%s", c.baseURL, path, url.QueryEscape(c.accessToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doWithRetry(req, payload, out)
}

func (c *Client) doWithRetry(req *http.Request, payload []byte, out any) error {
	var lastErr error

	for attempt := 1; attempt <= config.GraphAPIMaxAttempts; attempt++ {
		if payload != nil {
			req.Body = io.NopCloser(bytes.NewReader(payload))
			req.ContentLength = int64(len(payload))
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if !sleepCtx(req.Context(), c.backoffFor(attempt, nil)) {
				return req.Context().Err()
			}
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("read response: %w", readErr)
		}

		if resp.StatusCode == http.StatusOK {
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			return nil
		}

		lastErr = graphAPIError(resp.StatusCode, respBody)

		if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
			// Client errors are not retryable.
			return lastErr
		}

		log.Warn().
			Int("status", resp.StatusCode).
			Int("attempt", attempt).
			Msg("graph api call failed, retrying")

		if !sleepCtx(req.Context(), c.backoffFor(attempt, resp)) {
			return req.Context().Err()
		}
	}

	return fmt.Errorf("graph api: retries exhausted: %w", lastErr)
}

func graphAPIError(status int, body []byte) error {
	var ge graphError
	if err := json.Unmarshal(body, &ge); err == nil && ge.Error.Message != "" {
		return fmt.Errorf("graph api status %d: %s (code %d)", status, ge.Error.Message, ge.Error.Code)
	}
	return fmt.Errorf("graph api status %d", status)
}

func (c *Client) backoffFor(attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				return time.Duration(secs) * time.Second
			}
		}
	}
	return c.backoffBase * time.Duration(attempt)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
