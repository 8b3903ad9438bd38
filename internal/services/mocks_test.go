package services

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/softdays/softdays/internal/services/ai"
)

// Shared fakes for service tests. fakeDB and fakeKV satisfy the DB and
// KV seams; the remaining fakes stand in for the AI and video clients.

type fakeRow struct {
	scanFunc func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error {
	return r.scanFunc(dest...)
}

// rowFromValues builds a Row whose Scan assigns the given values in
// order to the scan destinations.
func rowFromValues(values ...any) fakeRow {
	return fakeRow{scanFunc: func(dest ...any) error {
		if len(dest) != len(values) {
			return fmt.Errorf("scan expects %d destinations, got %d", len(values), len(dest))
		}
		for i, v := range values {
			if err := assignValue(dest[i], v); err != nil {
				return err
			}
		}
		return nil
	}}
}

func assignValue(dest, val any) error {
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Ptr {
		return fmt.Errorf("scan destination is not a pointer: %T", dest)
	}
	ev := dv.Elem()
	if val == nil {
		ev.Set(reflect.Zero(ev.Type()))
		return nil
	}
	vv := reflect.ValueOf(val)
	switch {
	case vv.Type().AssignableTo(ev.Type()):
		ev.Set(vv)
	case ev.Kind() == reflect.Ptr && vv.Type().AssignableTo(ev.Type().Elem()):
		p := reflect.New(ev.Type().Elem())
		p.Elem().Set(vv)
		ev.Set(p)
	case vv.Type().ConvertibleTo(ev.Type()):
		ev.Set(vv.Convert(ev.Type()))
	default:
		return fmt.Errorf("cannot scan %T into %T", val, dest)
	}
	return nil
}

type fakeRows struct {
	rows [][]any
	idx  int
	err  error
}

func rowsFromValues(rows ...[]any) *fakeRows {
	return &fakeRows{rows: rows}
}

func (r *fakeRows) Close() {}

func (r *fakeRows) Err() error { return r.err }

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	values := r.rows[r.idx-1]
	if len(dest) != len(values) {
		return fmt.Errorf("scan expects %d destinations, got %d", len(values), len(dest))
	}
	for i, v := range values {
		if err := assignValue(dest[i], v); err != nil {
			return err
		}
	}
	return nil
}

type fakeCommandTag struct {
	rowsAffected int64
}

func (t fakeCommandTag) RowsAffected() int64 { return t.rowsAffected }

type fakeDB struct {
	QueryFunc    func(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRowFunc func(ctx context.Context, sql string, args ...any) Row
	ExecFunc     func(ctx context.Context, sql string, args ...any) (CommandTag, error)
}

func (db *fakeDB) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	if db.QueryFunc != nil {
		return db.QueryFunc(ctx, sql, args...)
	}
	return rowsFromValues(), nil
}

func (db *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) Row {
	if db.QueryRowFunc != nil {
		return db.QueryRowFunc(ctx, sql, args...)
	}
	return fakeRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
}

func (db *fakeDB) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	if db.ExecFunc != nil {
		return db.ExecFunc(ctx, sql, args...)
	}
	return fakeCommandTag{rowsAffected: 1}, nil
}

type fakeKV struct {
	mu    sync.Mutex
	store map[string]string

	GetFunc   func(ctx context.Context, key string) (string, error)
	SetNXFunc func(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}

func newFakeKV() *fakeKV {
	return &fakeKV{store: make(map[string]string)}
}

func (kv *fakeKV) Get(ctx context.Context, key string) (string, error) {
	if kv.GetFunc != nil {
		return kv.GetFunc(ctx, key)
	}
	kv.mu.Lock()
	defer kv.mu.Unlock()
	val, ok := kv.store[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return val, nil
}

func (kv *fakeKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.store[key] = value
	return nil
}

func (kv *fakeKV) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if kv.SetNXFunc != nil {
		return kv.SetNXFunc(ctx, key, value, ttl)
	}
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if _, ok := kv.store[key]; ok {
		return false, nil
	}
	kv.store[key] = value
	return true, nil
}

func (kv *fakeKV) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return nil
}

func (kv *fakeKV) Del(ctx context.Context, keys ...string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	for _, key := range keys {
		delete(kv.store, key)
	}
	return nil
}

type fakeGenerator struct {
	GenerateFunc func(ctx context.Context, prompt string) (ai.Completion, error)
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (ai.Completion, error) {
	return g.GenerateFunc(ctx, prompt)
}

type fakeEmbedder struct {
	EmbedFunc func(ctx context.Context, text string) ([]float32, error)
	dims      int
}

func (e *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.EmbedFunc(ctx, text)
}

func (e *fakeEmbedder) Dimensions() int {
	if e.dims == 0 {
		return 3
	}
	return e.dims
}

type fakeVideoSearcher struct {
	SearchFunc func(ctx context.Context, query string) (string, error)
}

func (v *fakeVideoSearcher) Search(ctx context.Context, query string) (string, error) {
	if v.SearchFunc != nil {
		return v.SearchFunc(ctx, query)
	}
	return "", nil
}
