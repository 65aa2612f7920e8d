// Package timedoctor reads users and worklogs from the Time Doctor 1.0 API.
package timedoctor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/m1ggy/time-doctor-monday.com-integration/internal/model"
)

// ErrNoData means a successful response carried no data key.
var ErrNoData = errors.New("response has no data")

// Client is a Time Doctor API client. The resty client must already
// carry authorization, see auth.Provider.HTTPClient.
type Client struct {
	http      *resty.Client
	companyID string
	logger    *zap.Logger
}

// NewClient creates a client scoped to one company.
func NewClient(rc *resty.Client, companyID string, logger *zap.Logger) *Client {
	return &Client{http: rc, companyID: companyID, logger: logger}
}

type apiUser struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	Name            string `json:"name"`
	LastTrackGlobal *struct {
		ActiveAt string `json:"activeAt"`
	} `json:"lastTrackGlobal"`
}

type usersResponse struct {
	Data *[]apiUser `json:"data"`
}

// ListUsers returns every user of the company.
func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	var out usersResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("company", c.companyID).
		SetResult(&out).
		Get("/users")
	if err := checkResponse("listing users", resp, err); err != nil {
		return nil, err
	}
	if out.Data == nil {
		return nil, fmt.Errorf("listing users: %w", ErrNoData)
	}

	users := make([]model.User, 0, len(*out.Data))
	for _, u := range *out.Data {
		user := model.User{ID: u.ID, Email: u.Email, Name: u.Name}
		if u.LastTrackGlobal != nil && u.LastTrackGlobal.ActiveAt != "" {
			t, err := parseTime(u.LastTrackGlobal.ActiveAt)
			if err != nil {
				c.logger.Warn("ignoring unparseable activeAt",
					zap.String("user", u.Email),
					zap.String("active_at", u.LastTrackGlobal.ActiveAt),
				)
			} else {
				user.LastActiveAt = &t
			}
		}
		users = append(users, user)
	}
	return users, nil
}

type worklogItem struct {
	UserID string `json:"userId"`
	Start  string `json:"start"`
	Time   int64  `json:"time"`
}

type worklogResponse struct {
	Data json.RawMessage `json:"data"`
}

// ListWorklogs returns the intervals recorded in [from, to) for userIDs,
// keyed by the userId carried on each item.
func (c *Client) ListWorklogs(ctx context.Context, userIDs []string, from, to time.Time) (map[string][]model.TimeInterval, error) {
	result := make(map[string][]model.TimeInterval)
	if len(userIDs) == 0 {
		return result, nil
	}

	var out worklogResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"company": c.companyID,
			"user":    strings.Join(userIDs, ","),
			"from":    from.UTC().Format(time.RFC3339),
			"to":      to.UTC().Format(time.RFC3339),
		}).
		SetResult(&out).
		Get("/activity/worklog")
	if err := checkResponse("listing worklogs", resp, err); err != nil {
		return nil, err
	}
	// An explicit null is an empty day; a missing key is not.
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("listing worklogs: %w", ErrNoData)
	}

	items, err := flatten(out.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding worklogs: %w", err)
	}
	for _, it := range items {
		if it.UserID == "" {
			c.logger.Warn("dropping worklog without userId", zap.String("start", it.Start))
			continue
		}
		start, err := parseTime(it.Start)
		if err != nil {
			c.logger.Warn("dropping worklog with bad start",
				zap.String("user_id", it.UserID),
				zap.String("start", it.Start),
			)
			continue
		}
		dur := it.Time
		if dur < 0 {
			dur = 0
		}
		result[it.UserID] = append(result[it.UserID], model.TimeInterval{Start: start, DurationSeconds: dur})
	}
	return result, nil
}

// flatten accepts the API's per-user nested arrays as well as a flat list.
func flatten(raw json.RawMessage) ([]worklogItem, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var nested [][]worklogItem
	if err := json.Unmarshal(raw, &nested); err == nil {
		var items []worklogItem
		for _, group := range nested {
			items = append(items, group...)
		}
		return items, nil
	}
	var flat []worklogItem
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, err
	}
	return flat, nil
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func checkResponse(op string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%s: time doctor returned %d: %s", op, resp.StatusCode(), resp.String())
	}
	return nil
}
