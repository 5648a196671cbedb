// Package persistence stores the ledger dataset. Every backend keeps one JSON
// payload per collection ("bucket"), so a partial save only rewrites the
// collections it carries and leaves the rest as they were.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dukerupert/pointkeeper/internal/model"
)

// Adapter loads and saves the dataset. Load on an empty backend returns the
// default dataset. Save treats nil collections as unchanged.
type Adapter interface {
	Load(ctx context.Context) (model.StoreData, error)
	Save(ctx context.Context, data model.StoreData) error
	Close() error
}

// Bucket names, in the order they are written.
var buckets = []string{
	"members",
	"rules",
	"warningRules",
	"transactions",
	"auditLogs",
	"archives",
	"users",
	"appeals",
}

// targets maps each bucket to the field of d it decodes into.
func targets(d *model.StoreData) map[string]any {
	return map[string]any{
		"members":      &d.Members,
		"rules":        &d.Rules,
		"warningRules": &d.WarningRules,
		"transactions": &d.Transactions,
		"auditLogs":    &d.AuditLogs,
		"archives":     &d.Archives,
		"users":        &d.Users,
		"appeals":      &d.Appeals,
	}
}

// present reports which collections of d were supplied.
func present(d model.StoreData) map[string]bool {
	return map[string]bool{
		"members":      d.Members != nil,
		"rules":        d.Rules != nil,
		"warningRules": d.WarningRules != nil,
		"transactions": d.Transactions != nil,
		"auditLogs":    d.AuditLogs != nil,
		"archives":     d.Archives != nil,
		"users":        d.Users != nil,
		"appeals":      d.Appeals != nil,
	}
}

type payload struct {
	bucket string
	data   []byte
}

// encode marshals the non-nil collections of d in bucket order.
func encode(d model.StoreData) ([]payload, error) {
	have := present(d)
	fields := targets(&d)
	var out []payload
	for _, b := range buckets {
		if !have[b] {
			continue
		}
		data, err := json.Marshal(fields[b])
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", b, err)
		}
		out = append(out, payload{bucket: b, data: data})
	}
	return out, nil
}

// decoder accumulates bucket payloads into a dataset.
type decoder struct {
	data    model.StoreData
	targets map[string]any
}

func newDecoder() *decoder {
	d := &decoder{}
	d.targets = targets(&d.data)
	return d
}

func (d *decoder) add(bucket string, raw []byte) error {
	target, ok := d.targets[bucket]
	if !ok || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode %s: %w", bucket, err)
	}
	return nil
}

// result returns the decoded dataset with every collection non-nil.
func (d *decoder) result() model.StoreData {
	return d.data.Normalize()
}

// decodeAll builds a dataset from the payloads that each hands to add.
// Unknown buckets and empty payloads are skipped.
func decodeAll(each func(add func(bucket string, raw []byte) error) error) (model.StoreData, error) {
	dec := newDecoder()
	if err := each(dec.add); err != nil {
		return model.StoreData{}, err
	}
	return dec.result(), nil
}

// loadState reads the ledger_state table shared by the SQL backends.
func loadState(ctx context.Context, db *sql.DB) (model.StoreData, error) {
	return decodeAll(func(add func(string, []byte) error) error {
		rows, err := db.QueryContext(ctx, `SELECT bucket, payload FROM ledger_state`)
		if err != nil {
			return fmt.Errorf("select ledger state: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var bucket string
			var raw []byte
			if err := rows.Scan(&bucket, &raw); err != nil {
				return fmt.Errorf("scan ledger state: %w", err)
			}
			if err := add(bucket, raw); err != nil {
				return err
			}
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate ledger state: %w", err)
		}
		return nil
	})
}
