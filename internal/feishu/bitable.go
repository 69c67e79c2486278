package feishu

import (
	"context"
	"fmt"
	"net/http"

	"github.com/qq940500529/oracle-feishu-sync/internal/syncerr"
	"github.com/qq940500529/oracle-feishu-sync/internal/typemap"
)

// MaxRecordsPerRequest is the Bitable batch_create hard limit.
const MaxRecordsPerRequest = 500

// Field describes one Bitable field.
type Field struct {
	Name string            `json:"field_name"`
	Type typemap.FieldType `json:"type"`
}

// CreateTable creates a new table in the app with the given fields and
// returns its table ID.
func (c *Client) CreateTable(ctx context.Context, name string, fields []Field) (string, error) {
	payload := map[string]any{
		"table": map[string]any{
			"name":   name,
			"fields": fields,
		},
	}

	var data struct {
		TableID string `json:"table_id"`
	}
	path := fmt.Sprintf("/bitable/v1/apps/%s/tables", c.appToken)
	if err := c.do(ctx, http.MethodPost, path, payload, &data); err != nil {
		return "", err
	}
	if data.TableID == "" {
		return "", syncerr.Errorf(syncerr.KindTransient, "create table %s: empty table_id in response", name)
	}
	return data.TableID, nil
}

// ListFields returns the fields of a table.
func (c *Client) ListFields(ctx context.Context, tableID string) ([]Field, error) {
	var data struct {
		Items []Field `json:"items"`
	}
	path := fmt.Sprintf("/bitable/v1/apps/%s/tables/%s/fields?page_size=100", c.appToken, tableID)
	if err := c.do(ctx, http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}
	return data.Items, nil
}

// CreateField adds one field to a table. Existing fields are never
// altered or removed; schema evolution is additive only.
func (c *Client) CreateField(ctx context.Context, tableID string, field Field) error {
	path := fmt.Sprintf("/bitable/v1/apps/%s/tables/%s/fields", c.appToken, tableID)
	return c.do(ctx, http.MethodPost, path, field, nil)
}

// RowCount returns the number of records currently in a table.
func (c *Client) RowCount(ctx context.Context, tableID string) (int, error) {
	var data struct {
		Total int `json:"total"`
	}
	path := fmt.Sprintf("/bitable/v1/apps/%s/tables/%s/records?page_size=1", c.appToken, tableID)
	if err := c.do(ctx, http.MethodGet, path, nil, &data); err != nil {
		return 0, err
	}
	return data.Total, nil
}

// WriteRecords appends rows to a table with batch_create and returns how
// many the API accepted. The caller must already have chunked the rows;
// oversized requests are rejected here rather than silently split.
func (c *Client) WriteRecords(ctx context.Context, tableID string, rows []map[string]any) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(rows) > MaxRecordsPerRequest {
		return 0, syncerr.Errorf(syncerr.KindConfig, "write of %d records exceeds the %d record API limit", len(rows), MaxRecordsPerRequest)
	}

	records := make([]map[string]any, len(rows))
	for i, row := range rows {
		records[i] = map[string]any{"fields": row}
	}

	var data struct {
		Records []struct {
			RecordID string `json:"record_id"`
		} `json:"records"`
	}
	path := fmt.Sprintf("/bitable/v1/apps/%s/tables/%s/records/batch_create", c.appToken, tableID)
	if err := c.do(ctx, http.MethodPost, path, map[string]any{"records": records}, &data); err != nil {
		return 0, err
	}
	return len(data.Records), nil
}
