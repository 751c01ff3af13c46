package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Client talks to the meeting backend.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a client for the given base URL.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Attendee is the attendee credential issued on join.
type Attendee struct {
	AttendeeID     string `json:"AttendeeId"`
	ExternalUserID string `json:"ExternalUserId"`
}

// JoinInfo carries the meeting and attendee credentials needed to construct
// a media session. Meeting is kept opaque; only the transport interprets it.
type JoinInfo struct {
	Meeting  json.RawMessage `json:"Meeting"`
	Attendee Attendee        `json:"Attendee"`
}

type createMeetingRequest struct {
	MeetingName string `json:"meetingName"`
	UserName    string `json:"userName"`
	Region      string `json:"region"`
	UserID      string `json:"userId"`
}

type createMeetingResponse struct {
	Created bool `json:"created"`
}

// CreateMeeting asks the backend to create a named meeting. A response with
// created=false is a failure.
func (c *Client) CreateMeeting(ctx context.Context, meetingName, userName, region string, creds Credentials) error {
	req := createMeetingRequest{
		MeetingName: meetingName,
		UserName:    userName,
		Region:      region,
		UserID:      creds.UserID,
	}
	var res createMeetingResponse
	if err := c.post(ctx, "/meetings/create", req, creds, &res); err != nil {
		return err
	}
	if !res.Created {
		return fmt.Errorf("%w: meeting %q was not created", ErrRequestFailed, meetingName)
	}
	logrus.WithFields(logrus.Fields{
		"function": "CreateMeeting",
		"meeting":  meetingName,
	}).Info("meeting created")
	return nil
}

type joinMeetingRequest struct {
	MeetingName string `json:"meetingName"`
	UserName    string `json:"userName"`
	UserID      string `json:"userId"`
}

type joinMeetingResponse struct {
	Code     json.RawMessage `json:"code"`
	Meeting  json.RawMessage `json:"Meeting"`
	Attendee Attendee        `json:"Attendee"`
}

// JoinMeeting obtains meeting and attendee credentials for a named meeting.
// An in-band error code maps to *APIError.
func (c *Client) JoinMeeting(ctx context.Context, meetingName, userName string, creds Credentials) (*JoinInfo, error) {
	req := joinMeetingRequest{
		MeetingName: meetingName,
		UserName:    userName,
		UserID:      creds.UserID,
	}
	var res joinMeetingResponse
	if err := c.post(ctx, "/meetings/join", req, creds, &res); err != nil {
		return nil, err
	}
	if len(res.Code) > 0 {
		return nil, &APIError{Code: strings.Trim(string(res.Code), `"`)}
	}
	logrus.WithFields(logrus.Fields{
		"function": "JoinMeeting",
		"meeting":  meetingName,
		"attendee": res.Attendee.AttendeeID,
	}).Info("joined meeting")
	return &JoinInfo{Meeting: res.Meeting, Attendee: res.Attendee}, nil
}

type userNameRequest struct {
	MeetingName string `json:"meetingName"`
	AttendeeID  string `json:"attendeeId"`
}

type userNameResponse struct {
	Result string `json:"result"`
	Name   string `json:"name"`
}

// GetUserName looks up the display name registered for an attendee. A
// non-success result maps to *APIError; callers typically fall back to the
// raw attendee id.
func (c *Client) GetUserName(ctx context.Context, meetingName, attendeeID string, creds Credentials) (string, error) {
	req := userNameRequest{MeetingName: meetingName, AttendeeID: attendeeID}
	var res userNameResponse
	if err := c.post(ctx, "/attendees/name", req, creds, &res); err != nil {
		return "", err
	}
	if res.Result != "success" {
		return "", &APIError{Code: res.Result}
	}
	return res.Name, nil
}

// post sends a JSON request with the auth context attached and decodes the
// JSON response into out.
func (c *Client) post(ctx context.Context, path string, body any, creds Credentials, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if creds.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	}
	if creds.IDToken != "" {
		req.Header.Set("X-ID-Token", creds.IDToken)
	}
	if creds.RefreshToken != "" {
		req.Header.Set("X-Refresh-Token", creds.RefreshToken)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s returned status %d", ErrRequestFailed, path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrRequestFailed, err)
	}
	return nil
}
