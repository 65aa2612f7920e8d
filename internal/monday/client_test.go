package monday_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/m1ggy/time-doctor-monday.com-integration/internal/model"
	"github.com/m1ggy/time-doctor-monday.com-integration/internal/monday"
	"github.com/m1ggy/time-doctor-monday.com-integration/internal/transport"
)

type call struct {
	op   string
	vars map[string]any
}

// operation names a request by the root field it selects.
func operation(query string) string {
	for _, op := range []string{
		"duplicate_board", "create_group", "create_item", "change_multiple_column_values",
		"next_items_page", "items_page", "column_values", "groups", "columns", "boards",
	} {
		if strings.Contains(query, op) {
			return op
		}
	}
	return "unknown"
}

type fakeAPI struct {
	calls  []call
	handle func(op string, vars map[string]any) string
}

func newFake(t *testing.T, handle func(op string, vars map[string]any) string) (*fakeAPI, *monday.Client) {
	t.Helper()
	f := &fakeAPI{handle: handle}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key-1", r.Header.Get("Authorization"))
		assert.Equal(t, "2024-10", r.Header.Get("API-Version"))

		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		op := operation(req.Query)
		f.calls = append(f.calls, call{op: op, vars: req.Variables})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(f.handle(op, req.Variables)))
	}))
	t.Cleanup(srv.Close)

	rc := transport.New(transport.Options{BaseURL: srv.URL}, nil)
	return f, monday.NewClient(rc, "key-1", "2024-10", zap.NewNop())
}

func (f *fakeAPI) ops() []string {
	var out []string
	for _, c := range f.calls {
		out = append(out, c.op)
	}
	return out
}

func boardsJSON(names ...string) string {
	var parts []string
	for i, n := range names {
		parts = append(parts, fmt.Sprintf(`{"id":"%d","name":%q}`, i+1, n))
	}
	return `{"data":{"boards":[` + strings.Join(parts, ",") + `]}}`
}

func TestFindContainerByLabelPages(t *testing.T) {
	full := make([]string, 100)
	for i := range full {
		full[i] = fmt.Sprintf("Board %d", i)
	}
	f, c := newFake(t, func(op string, vars map[string]any) string {
		if vars["page"] == float64(1) {
			return boardsJSON(full...)
		}
		return `{"data":{"boards":[{"id":"777","name":"March 1 - March 15"}]}}`
	})

	got, err := c.FindContainerByLabel(context.Background(), "March 1 - March 15")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.Container{ID: "777", Label: "March 1 - March 15"}, *got)
	require.Len(t, f.calls, 2)
	assert.Equal(t, float64(100), f.calls[0].vars["limit"])
	assert.Equal(t, float64(2), f.calls[1].vars["page"])
}

func TestFindContainerByLabelExactMatch(t *testing.T) {
	_, c := newFake(t, func(string, map[string]any) string {
		return boardsJSON("march 1 - march 15", "March 1 - March 15 ")
	})

	got, err := c.FindContainerByLabel(context.Background(), "March 1 - March 15")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCloneContainer(t *testing.T) {
	f, c := newFake(t, func(string, map[string]any) string {
		return `{"data":{"duplicate_board":{"board":{"id":"900","name":"March 1 - March 15"}}}}`
	})

	got, err := c.CloneContainer(context.Background(), model.Container{ID: "12", Label: "February 1 - February 15"}, "March 1 - March 15")
	require.NoError(t, err)
	assert.Equal(t, "900", got.ID)
	assert.Equal(t, map[string]any{"boardId": "12", "name": "March 1 - March 15"}, f.calls[0].vars)
}

func TestListColumns(t *testing.T) {
	_, c := newFake(t, func(string, map[string]any) string {
		return `{"data":{"boards":[{"columns":[{"id":"name","title":"Name"},{"id":"hour","title":"Clock In"}]}]}}`
	})

	cols, err := c.ListColumns(context.Background(), "12")
	require.NoError(t, err)
	assert.Equal(t, []model.Column{{ID: "name", Title: "Name"}, {ID: "hour", Title: "Clock In"}}, cols)
}

func TestListColumnsUnknownBoard(t *testing.T) {
	_, c := newFake(t, func(string, map[string]any) string { return `{"data":{"boards":[]}}` })

	_, err := c.ListColumns(context.Background(), "12")
	assert.ErrorIs(t, err, monday.ErrNotFound)
}

func TestEnsureGroupFindsExisting(t *testing.T) {
	f, c := newFake(t, func(string, map[string]any) string {
		return `{"data":{"boards":[{"groups":[{"id":"g1","title":" engineering "}]}]}}`
	})

	id, err := c.EnsureGroup(context.Background(), "12", "Engineering")
	require.NoError(t, err)
	assert.Equal(t, "g1", id)
	assert.Equal(t, []string{"groups"}, f.ops())
}

func TestEnsureGroupCreatesMissing(t *testing.T) {
	f, c := newFake(t, func(op string, _ map[string]any) string {
		if op == "create_group" {
			return `{"data":{"create_group":{"id":"g9"}}}`
		}
		return `{"data":{"boards":[{"groups":[{"id":"g1","title":"Support"}]}]}}`
	})

	id, err := c.EnsureGroup(context.Background(), "12", "Engineering")
	require.NoError(t, err)
	assert.Equal(t, "g9", id)
	assert.Equal(t, []string{"groups", "create_group"}, f.ops())
	assert.Equal(t, "Engineering", f.calls[1].vars["name"])
}

func TestFindRecordFollowsCursor(t *testing.T) {
	f, c := newFake(t, func(op string, _ map[string]any) string {
		if op == "next_items_page" {
			return `{"data":{"next_items_page":{"cursor":null,"items":[
				{"id":"i2","name":"mar 5 ","group":{"id":"g1"}}
			]}}}`
		}
		return `{"data":{"boards":[{"items_page":{"cursor":"c1","items":[
			{"id":"i1","name":"Mar 5","group":{"id":"other"}}
		]}}]}}`
	})

	id, ok, err := c.FindRecord(context.Background(), "12", "g1", "Mar 5")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "i2", id)
	assert.Equal(t, []string{"items_page", "next_items_page"}, f.ops())
	assert.Equal(t, "c1", f.calls[1].vars["cursor"])
}

func TestFindRecordMissing(t *testing.T) {
	_, c := newFake(t, func(string, map[string]any) string {
		return `{"data":{"boards":[{"items_page":{"cursor":null,"items":[]}}]}}`
	})

	_, ok, err := c.FindRecord(context.Background(), "12", "g1", "Mar 5")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateRecord(t *testing.T) {
	f, c := newFake(t, func(string, map[string]any) string {
		return `{"data":{"create_item":{"id":"i7"}}}`
	})

	id, err := c.CreateRecord(context.Background(), "12", "g1", "Mar 5")
	require.NoError(t, err)
	assert.Equal(t, "i7", id)
	assert.Equal(t, map[string]any{"boardId": "12", "groupId": "g1", "name": "Mar 5"}, f.calls[0].vars)
}

func TestGetFieldValues(t *testing.T) {
	f, c := newFake(t, func(string, map[string]any) string {
		return `{"data":{"items":[{"column_values":[
			{"id":"hour_in","text":"08:00"},
			{"id":"hour_out","text":null},
			{"id":"date4","text":""}
		]}]}}`
	})

	got, err := c.GetFieldValues(context.Background(), "i1", []string{"hour_in", "hour_out", "date4", "numbers"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"hour_in": "08:00", "hour_out": "", "date4": "", "numbers": ""}, got)
	assert.Equal(t, []any{"hour_in", "hour_out", "date4", "numbers"}, f.calls[0].vars["columnIds"])
}

func TestWriteFieldsSendsJSONString(t *testing.T) {
	f, c := newFake(t, func(string, map[string]any) string {
		return `{"data":{"change_multiple_column_values":{"id":"i1"}}}`
	})

	err := c.WriteFields(context.Background(), "12", "i1", map[string]any{
		"hour_out": map[string]int{"hour": 17, "minute": 0},
		"numbers":  "8.00",
	})
	require.NoError(t, err)

	raw, ok := f.calls[0].vars["values"].(string)
	require.True(t, ok, "values must be a JSON string")
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	assert.Equal(t, "8.00", decoded["numbers"])
	assert.Equal(t, map[string]any{"hour": float64(17), "minute": float64(0)}, decoded["hour_out"])
}

func TestWriteFieldsEmptyIsNoop(t *testing.T) {
	f, c := newFake(t, func(string, map[string]any) string { return `{}` })

	require.NoError(t, c.WriteFields(context.Background(), "12", "i1", nil))
	assert.Empty(t, f.calls)
}

func TestGraphQLErrors(t *testing.T) {
	_, c := newFake(t, func(string, map[string]any) string {
		return `{"data":null,"errors":[{"message":"Complexity budget exhausted"},{"message":"try later"}]}`
	})

	_, err := c.CreateRecord(context.Background(), "12", "g1", "Mar 5")
	var apiErr *monday.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, []string{"Complexity budget exhausted", "try later"}, apiErr.Messages)
	assert.Contains(t, err.Error(), "create item")
}

func TestHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error_code":"Unauthorized","error_message":"Not Authenticated"}`))
	}))
	defer srv.Close()
	c := monday.NewClient(transport.New(transport.Options{BaseURL: srv.URL}, nil), "bad", "", zap.NewNop())

	_, err := c.ListColumns(context.Background(), "12")
	var apiErr *monday.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Contains(t, err.Error(), "Not Authenticated")
}
