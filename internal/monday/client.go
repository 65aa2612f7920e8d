// Package monday is a small monday.com GraphQL client covering boards,
// groups and items.
package monday

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/m1ggy/time-doctor-monday.com-integration/internal/model"
)

// ErrNotFound is returned when a board or item id does not resolve.
var ErrNotFound = errors.New("monday: not found")

// Client talks to the monday.com API. Its resty client must have the API
// URL as base URL.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewClient sets the api key and version headers on rc and wraps it.
func NewClient(rc *resty.Client, apiKey, apiVersion string, logger *zap.Logger) *Client {
	rc.SetHeader("Authorization", apiKey)
	if apiVersion != "" {
		rc.SetHeader("API-Version", apiVersion)
	}
	return &Client{http: rc, logger: logger}
}

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

type response struct {
	Data         json.RawMessage `json:"data"`
	Errors       []gqlError      `json:"errors"`
	ErrorCode    string          `json:"error_code"`
	ErrorMessage string          `json:"error_message"`
}

// APIError carries the errors monday.com reported for a request.
type APIError struct {
	Op       string
	Status   int
	Messages []string
}

func (e *APIError) Error() string {
	msg := strings.Join(e.Messages, "; ")
	if e.Status != 0 {
		return fmt.Sprintf("monday %s: status %d: %s", e.Op, e.Status, msg)
	}
	return fmt.Sprintf("monday %s: %s", e.Op, msg)
}

// do runs one GraphQL request and decodes its data into out.
func (c *Client) do(ctx context.Context, op, query string, vars map[string]any, out any) error {
	var body response
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(request{Query: query, Variables: vars}).
		SetResult(&body).
		SetError(&body).
		Post("")
	if err != nil {
		return fmt.Errorf("monday %s: %w", op, err)
	}

	var msgs []string
	for _, e := range body.Errors {
		msgs = append(msgs, e.Message)
	}
	if body.ErrorMessage != "" {
		msgs = append(msgs, strings.TrimSpace(body.ErrorCode+" "+body.ErrorMessage))
	}
	if resp.IsError() {
		if len(msgs) == 0 {
			msgs = append(msgs, resp.String())
		}
		return &APIError{Op: op, Status: resp.StatusCode(), Messages: msgs}
	}
	if len(msgs) > 0 {
		return &APIError{Op: op, Messages: msgs}
	}

	if out == nil || len(body.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(body.Data, out); err != nil {
		return fmt.Errorf("monday %s: decoding data: %w", op, err)
	}
	return nil
}

type board struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FindContainerByLabel returns the board named exactly label, or nil.
func (c *Client) FindContainerByLabel(ctx context.Context, label string) (*model.Container, error) {
	for page := 1; ; page++ {
		var out struct {
			Boards []board `json:"boards"`
		}
		vars := map[string]any{"limit": boardsPageSize, "page": page}
		if err := c.do(ctx, "list boards", queryBoards, vars, &out); err != nil {
			return nil, err
		}
		for _, b := range out.Boards {
			if b.Name == label {
				return &model.Container{ID: b.ID, Label: b.Name}, nil
			}
		}
		if len(out.Boards) < boardsPageSize {
			return nil, nil
		}
	}
}

// CloneContainer duplicates template's structure under a new name.
func (c *Client) CloneContainer(ctx context.Context, template model.Container, label string) (model.Container, error) {
	var out struct {
		DuplicateBoard struct {
			Board board `json:"board"`
		} `json:"duplicate_board"`
	}
	vars := map[string]any{"boardId": template.ID, "name": label}
	if err := c.do(ctx, "duplicate board", mutationDuplicateBoard, vars, &out); err != nil {
		return model.Container{}, err
	}
	b := out.DuplicateBoard.Board
	if b.ID == "" {
		return model.Container{}, fmt.Errorf("monday duplicate board: no board returned for %q", label)
	}
	if b.Name == "" {
		b.Name = label
	}
	c.logger.Info("duplicated board", zap.String("template", template.Label), zap.String("board", b.Name), zap.String("board_id", b.ID))
	return model.Container{ID: b.ID, Label: b.Name}, nil
}

// ListColumns returns the columns of a board.
func (c *Client) ListColumns(ctx context.Context, boardID string) ([]model.Column, error) {
	var out struct {
		Boards []struct {
			Columns []model.Column `json:"columns"`
		} `json:"boards"`
	}
	if err := c.do(ctx, "list columns", queryColumns, map[string]any{"boardId": boardID}, &out); err != nil {
		return nil, err
	}
	if len(out.Boards) == 0 {
		return nil, fmt.Errorf("%w: board %s", ErrNotFound, boardID)
	}
	return out.Boards[0].Columns, nil
}

type group struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// FindGroup returns the id of the group titled title. Titles compare
// trimmed and case-insensitively.
func (c *Client) FindGroup(ctx context.Context, boardID, title string) (string, bool, error) {
	var out struct {
		Boards []struct {
			Groups []group `json:"groups"`
		} `json:"boards"`
	}
	if err := c.do(ctx, "list groups", queryGroups, map[string]any{"boardId": boardID}, &out); err != nil {
		return "", false, err
	}
	if len(out.Boards) == 0 {
		return "", false, fmt.Errorf("%w: board %s", ErrNotFound, boardID)
	}
	for _, g := range out.Boards[0].Groups {
		if sameName(g.Title, title) {
			return g.ID, true, nil
		}
	}
	return "", false, nil
}

// EnsureGroup returns the id of the group titled title, creating it when
// absent.
func (c *Client) EnsureGroup(ctx context.Context, boardID, title string) (string, error) {
	id, ok, err := c.FindGroup(ctx, boardID, title)
	if err != nil {
		return "", err
	}
	if ok {
		return id, nil
	}

	var created struct {
		CreateGroup struct {
			ID string `json:"id"`
		} `json:"create_group"`
	}
	vars := map[string]any{"boardId": boardID, "name": strings.TrimSpace(title)}
	if err := c.do(ctx, "create group", mutationCreateGroup, vars, &created); err != nil {
		return "", err
	}
	c.logger.Info("created group", zap.String("board_id", boardID), zap.String("group", title), zap.String("group_id", created.CreateGroup.ID))
	return created.CreateGroup.ID, nil
}

type itemsPage struct {
	Cursor *string `json:"cursor"`
	Items  []struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Group struct {
			ID string `json:"id"`
		} `json:"group"`
	} `json:"items"`
}

// FindRecord looks for an item named name in the given group, following
// the items cursor until the board is exhausted.
func (c *Client) FindRecord(ctx context.Context, boardID, groupID, name string) (string, bool, error) {
	var first struct {
		Boards []struct {
			ItemsPage itemsPage `json:"items_page"`
		} `json:"boards"`
	}
	vars := map[string]any{"boardId": boardID, "limit": itemsPageSize}
	if err := c.do(ctx, "list items", queryItemsPage, vars, &first); err != nil {
		return "", false, err
	}
	if len(first.Boards) == 0 {
		return "", false, fmt.Errorf("%w: board %s", ErrNotFound, boardID)
	}

	page := first.Boards[0].ItemsPage
	for {
		for _, it := range page.Items {
			if it.Group.ID == groupID && sameName(it.Name, name) {
				return it.ID, true, nil
			}
		}
		if page.Cursor == nil || *page.Cursor == "" {
			return "", false, nil
		}

		var next struct {
			NextItemsPage itemsPage `json:"next_items_page"`
		}
		vars := map[string]any{"cursor": *page.Cursor, "limit": itemsPageSize}
		if err := c.do(ctx, "list items", queryNextItemsPage, vars, &next); err != nil {
			return "", false, err
		}
		page = next.NextItemsPage
	}
}

// CreateRecord creates an item in a group and returns its id.
func (c *Client) CreateRecord(ctx context.Context, boardID, groupID, name string) (string, error) {
	var out struct {
		CreateItem struct {
			ID string `json:"id"`
		} `json:"create_item"`
	}
	vars := map[string]any{"boardId": boardID, "groupId": groupID, "name": name}
	if err := c.do(ctx, "create item", mutationCreateItem, vars, &out); err != nil {
		return "", err
	}
	return out.CreateItem.ID, nil
}

// GetFieldValues returns the text of the requested columns of an item.
// Empty or unset columns map to "".
func (c *Client) GetFieldValues(ctx context.Context, itemID string, columnIDs []string) (map[string]string, error) {
	var out struct {
		Items []struct {
			ColumnValues []struct {
				ID   string  `json:"id"`
				Text *string `json:"text"`
			} `json:"column_values"`
		} `json:"items"`
	}
	vars := map[string]any{"itemId": itemID, "columnIds": columnIDs}
	if err := c.do(ctx, "read column values", queryColumnValues, vars, &out); err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("%w: item %s", ErrNotFound, itemID)
	}

	values := make(map[string]string, len(columnIDs))
	for _, id := range columnIDs {
		values[id] = ""
	}
	for _, cv := range out.Items[0].ColumnValues {
		if cv.Text != nil {
			values[cv.ID] = *cv.Text
		}
	}
	return values, nil
}

// WriteFields sets several column values of an item in one mutation.
func (c *Client) WriteFields(ctx context.Context, boardID, itemID string, writes map[string]any) error {
	if len(writes) == 0 {
		return nil
	}
	encoded, err := json.Marshal(writes)
	if err != nil {
		return fmt.Errorf("monday change column values: encoding values: %w", err)
	}
	vars := map[string]any{"boardId": boardID, "itemId": itemID, "values": string(encoded)}
	return c.do(ctx, "change column values", mutationChangeColumnValues, vars, nil)
}

func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
