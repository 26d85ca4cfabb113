// Package postgres implements store.Store on PostgreSQL with one dynamically
// managed table per tenant. Tenant tokens are UUIDs used directly as quoted
// table names; custom columns are VARCHAR(100) and history sequences are
// JSONB arrays. The tenants registry table is owned by the goose migrations.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/secureauth-ai/sentinel/internal/store"
)

// defaultColumns is the fixed row layout every tenant table starts with.
const defaultColumns = `
	id BIGSERIAL PRIMARY KEY,
	password TEXT NOT NULL,
	mfa_key TEXT NOT NULL DEFAULT '',
	total_logins INT NOT NULL DEFAULT 0,
	prev_locations JSONB NOT NULL DEFAULT '[]',
	prev_devices JSONB NOT NULL DEFAULT '[]',
	prev_logins JSONB NOT NULL DEFAULT '[]',
	attempts INT NOT NULL DEFAULT 0,
	all_attempts INT NOT NULL DEFAULT 0,
	pending_mfa BOOLEAN NOT NULL DEFAULT FALSE`

// Tenant is the registry row tracking a tenant table and its declared
// custom columns (stored as a JSON array of names).
type Tenant struct {
	Token         string `gorm:"primaryKey;column:token"`
	CustomColumns string `gorm:"column:custom_columns;type:jsonb"`
	CreatedAt     time.Time
}

func (Tenant) TableName() string {
	return "tenants"
}

type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

func New(db *gorm.DB, log *zap.Logger) *Store {
	return &Store{db: db, log: log}
}

func (s *Store) CreateTenant(ctx context.Context, token string, customColumns []string) error {
	cols, err := json.Marshal(customColumns)
	if err != nil {
		return err
	}

	ddl := defaultColumns
	for _, c := range customColumns {
		ddl += fmt.Sprintf(",\n\t%s VARCHAR(100) NOT NULL DEFAULT ''", pq.QuoteIdentifier(c))
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&Tenant{Token: token, CustomColumns: string(cols)}).Error; err != nil {
			return err
		}
		query := fmt.Sprintf("CREATE TABLE %s ( %s )", pq.QuoteIdentifier(token), ddl)
		return tx.Exec(query).Error
	})
}

// lockedColumns reads the tenant's custom columns under a row lock so schema
// mutations are serialized per tenant.
func lockedColumns(tx *gorm.DB, token string) ([]string, error) {
	var row Tenant
	err := tx.Raw("SELECT * FROM tenants WHERE token = ? FOR UPDATE", token).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.Token == "" {
		return nil, store.ErrUnknownTenant
	}
	var cols []string
	if err := json.Unmarshal([]byte(row.CustomColumns), &cols); err != nil {
		return nil, err
	}
	return cols, nil
}

func saveColumns(tx *gorm.DB, token string, cols []string) error {
	raw, err := json.Marshal(cols)
	if err != nil {
		return err
	}
	return tx.Model(&Tenant{}).Where("token = ?", token).
		Update("custom_columns", string(raw)).Error
}

func (s *Store) AddColumn(ctx context.Context, token, name string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cols, err := lockedColumns(tx, token)
		if err != nil {
			return err
		}
		for _, c := range cols {
			if c == name {
				return store.ErrDuplicateColumn
			}
		}

		query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s VARCHAR(100) NOT NULL DEFAULT ''",
			pq.QuoteIdentifier(token), pq.QuoteIdentifier(name))
		if err := tx.Exec(query).Error; err != nil {
			return err
		}
		return saveColumns(tx, token, append(cols, name))
	})
}

func (s *Store) RemoveColumn(ctx context.Context, token, name string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cols, err := lockedColumns(tx, token)
		if err != nil {
			return err
		}
		idx := -1
		for i, c := range cols {
			if c == name {
				idx = i
				break
			}
		}
		if idx < 0 {
			return store.ErrUnknownColumn
		}

		query := fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s",
			pq.QuoteIdentifier(token), pq.QuoteIdentifier(name))
		if err := tx.Exec(query).Error; err != nil {
			return err
		}
		return saveColumns(tx, token, append(cols[:idx], cols[idx+1:]...))
	})
}

func (s *Store) CustomColumns(ctx context.Context, token string) ([]string, error) {
	var row Tenant
	err := s.db.WithContext(ctx).Where("token = ?", token).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, store.ErrUnknownTenant
		}
		return nil, err
	}
	var cols []string
	if err := json.Unmarshal([]byte(row.CustomColumns), &cols); err != nil {
		return nil, err
	}
	return cols, nil
}

func (s *Store) checkColumn(ctx context.Context, token, column string) error {
	cols, err := s.CustomColumns(ctx, token)
	if err != nil {
		return err
	}
	for _, c := range cols {
		if c == column {
			return nil
		}
	}
	return store.ErrUnknownColumn
}

func (s *Store) Insert(ctx context.Context, token string, rec *store.Record) (int64, error) {
	cols, err := s.CustomColumns(ctx, token)
	if err != nil {
		return 0, err
	}
	declared := make(map[string]bool, len(cols))
	for _, c := range cols {
		declared[c] = true
	}
	for name := range rec.Custom {
		if !declared[name] {
			return 0, store.ErrUnknownColumn
		}
	}

	names := []string{"password", "mfa_key", "total_logins", "prev_locations",
		"prev_devices", "prev_logins", "attempts", "all_attempts", "pending_mfa"}
	args, err := defaultValues(rec)
	if err != nil {
		return 0, err
	}
	for _, c := range cols {
		names = append(names, c)
		args = append(args, rec.Custom[c])
	}

	quoted := make([]string, len(names))
	holes := make([]string, len(names))
	for i, n := range names {
		quoted[i] = pq.QuoteIdentifier(n)
		holes[i] = "?"
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		pq.QuoteIdentifier(token), strings.Join(quoted, ", "), strings.Join(holes, ", "))

	var id int64
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&id).Error; err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) FindByColumn(ctx context.Context, token, column, value string) (*store.Record, error) {
	if err := s.checkColumn(ctx, token, column); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = ? ORDER BY id LIMIT 1",
		pq.QuoteIdentifier(token), pq.QuoteIdentifier(column))
	return s.findOne(ctx, token, query, value)
}

func (s *Store) FindByID(ctx context.Context, token string, id int64) (*store.Record, error) {
	if _, err := s.CustomColumns(ctx, token); err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT * FROM %s WHERE id = ?", pq.QuoteIdentifier(token))
	return s.findOne(ctx, token, query, id)
}

func (s *Store) findOne(ctx context.Context, token, query string, arg any) (*store.Record, error) {
	var rows []map[string]any
	if err := s.db.WithContext(ctx).Raw(query, arg).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, store.ErrNotFound
	}
	cols, err := s.CustomColumns(ctx, token)
	if err != nil {
		return nil, err
	}
	return rowToRecord(rows[0], cols)
}

func (s *Store) All(ctx context.Context, token string) ([]*store.Record, error) {
	cols, err := s.CustomColumns(ctx, token)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT * FROM %s ORDER BY id", pq.QuoteIdentifier(token))
	var rows []map[string]any
	if err := s.db.WithContext(ctx).Raw(query).Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]*store.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := rowToRecord(row, cols)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, token string, rec *store.Record) error {
	cols, err := s.CustomColumns(ctx, token)
	if err != nil {
		return err
	}

	sets := map[string]any{}
	names := []string{"password", "mfa_key", "total_logins", "prev_locations",
		"prev_devices", "prev_logins", "attempts", "all_attempts", "pending_mfa"}
	vals, err := defaultValues(rec)
	if err != nil {
		return err
	}
	for i, n := range names {
		sets[n] = vals[i]
	}
	for _, c := range cols {
		if v, ok := rec.Custom[c]; ok {
			sets[c] = v
		}
	}

	res := s.db.WithContext(ctx).Table(pq.QuoteIdentifier(token)).
		Where("id = ?", rec.ID).Updates(sets)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, token, column, value string) error {
	if err := s.checkColumn(ctx, token, column); err != nil {
		return err
	}

	table := pq.QuoteIdentifier(token)
	query := fmt.Sprintf("DELETE FROM %s WHERE id = (SELECT id FROM %s WHERE %s = ? ORDER BY id LIMIT 1)",
		table, table, pq.QuoteIdentifier(column))

	res := s.db.WithContext(ctx).Exec(query, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// defaultValues serializes a record's fixed columns in layout order.
func defaultValues(rec *store.Record) ([]any, error) {
	locations, err := json.Marshal(rec.PrevLocations)
	if err != nil {
		return nil, err
	}
	devices, err := json.Marshal(rec.PrevDevices)
	if err != nil {
		return nil, err
	}
	logins, err := json.Marshal(rec.PrevLogins)
	if err != nil {
		return nil, err
	}
	return []any{
		rec.PasswordToken, rec.MFAKeyToken, rec.TotalLogins,
		string(locations), string(devices), string(logins),
		rec.Attempts, rec.AllAttempts, rec.PendingMFA,
	}, nil
}

func rowToRecord(row map[string]any, customColumns []string) (*store.Record, error) {
	rec := &store.Record{Custom: make(map[string]string, len(customColumns))}

	rec.ID = asInt64(row["id"])
	rec.PasswordToken = asString(row["password"])
	rec.MFAKeyToken = asString(row["mfa_key"])
	rec.TotalLogins = int(asInt64(row["total_logins"]))
	rec.Attempts = int(asInt64(row["attempts"]))
	rec.AllAttempts = int(asInt64(row["all_attempts"]))
	rec.PendingMFA = asBool(row["pending_mfa"])

	if err := decodeJSON(row["prev_locations"], &rec.PrevLocations); err != nil {
		return nil, err
	}
	if err := decodeJSON(row["prev_devices"], &rec.PrevDevices); err != nil {
		return nil, err
	}
	if err := decodeJSON(row["prev_logins"], &rec.PrevLogins); err != nil {
		return nil, err
	}

	for _, c := range customColumns {
		rec.Custom[c] = asString(row[c])
	}
	return rec, nil
}

func decodeJSON(v any, out any) error {
	switch raw := v.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(raw, out)
	case string:
		return json.Unmarshal([]byte(raw), out)
	default:
		return fmt.Errorf("unexpected jsonb value of type %T", v)
	}
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return ""
	}
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}
