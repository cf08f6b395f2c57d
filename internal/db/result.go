package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"peek/internal/decode"
	"peek/internal/domain"
)

// Result is a fully materialized query result. Every row has len(Headers)
// values. A query with zero rows has no headers.
type Result struct {
	Headers []domain.ColumnDescriptor `json:"headers"`
	Rows    [][]decode.Value          `json:"rows"`
}

// JSON renders the result as the text handed back to the model as a tool result.
func (r *Result) JSON() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(data), nil
}

// Results runs query on the pinned connection and decodes every cell by its
// column's type. A result is returned only once every row has been read;
// any failure along the way yields a *domain.QueryError.
func (d *Database) Results(ctx context.Context, query string) (*Result, error) {
	rows, err := d.conn.QueryxContext(ctx, query)
	if err != nil {
		return nil, &domain.QueryError{Query: query, Err: err}
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, &domain.QueryError{Query: query, Err: err}
	}
	headers := make([]domain.ColumnDescriptor, len(colTypes))
	tags := make([]decode.Tag, len(colTypes))
	for i, ct := range colTypes {
		headers[i] = domain.ColumnDescriptor{Name: ct.Name(), Type: ct.DatabaseTypeName()}
		tags[i] = decode.ParseTag(ct.DatabaseTypeName())
	}

	res := &Result{Rows: [][]decode.Value{}}
	for rows.Next() {
		cells, err := rows.SliceScan()
		if err != nil {
			return nil, &domain.QueryError{Query: query, Err: err}
		}
		row := make([]decode.Value, len(cells))
		for i, cell := range cells {
			row[i] = decode.Decode(tags[i], cellBytes(cell))
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.QueryError{Query: query, Err: err}
	}

	if len(res.Rows) > 0 {
		res.Headers = headers
	} else {
		res.Headers = []domain.ColumnDescriptor{}
	}
	d.logger.Debug().Int("rows", len(res.Rows)).Int("columns", len(headers)).Msg("query complete")
	return res, nil
}

// cellBytes converts a driver value to the raw bytes the decoder reads.
// A nil result means SQL NULL.
func cellBytes(v any) []byte {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		out := make([]byte, len(x))
		copy(out, x)
		return out
	case string:
		return []byte(x)
	case time.Time:
		return []byte(x.Format(time.RFC3339Nano))
	case int64:
		return strconv.AppendInt(nil, x, 10)
	case int32:
		return strconv.AppendInt(nil, int64(x), 10)
	case int16:
		return strconv.AppendInt(nil, int64(x), 10)
	case int:
		return strconv.AppendInt(nil, int64(x), 10)
	case float64:
		return strconv.AppendFloat(nil, x, 'g', -1, 64)
	case float32:
		return strconv.AppendFloat(nil, float64(x), 'g', -1, 32)
	case bool:
		return strconv.AppendBool(nil, x)
	case fmt.Stringer:
		return []byte(x.String())
	default:
		if data, err := json.Marshal(x); err == nil {
			return data
		}
		return []byte(fmt.Sprint(x))
	}
}
