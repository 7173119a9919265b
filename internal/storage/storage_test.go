package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

// exerciseKV runs the shared contract against a backend
func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	if _, err := kv.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := kv.Set(ctx, "a", []byte(`{"x":1}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, err := kv.Get(ctx, "a")
	if err != nil || string(v) != `{"x":1}` {
		t.Fatalf("Get = %q, %v", v, err)
	}

	if err := kv.Set(ctx, "a", []byte(`{"x":2}`)); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	if v, _ := kv.Get(ctx, "a"); string(v) != `{"x":2}` {
		t.Errorf("overwrite not applied: %q", v)
	}

	if err := kv.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := kv.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := kv.Delete(ctx, "a"); err != nil {
		t.Errorf("deleting a missing key should succeed: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseKV(t, NewMemoryStore())
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryStore()

	value := []byte("abc")
	_ = kv.Set(ctx, "k", value)
	value[0] = 'z'

	got, _ := kv.Get(ctx, "k")
	if string(got) != "abc" {
		t.Errorf("stored value was aliased: %q", got)
	}
}

func TestSQLiteStore(t *testing.T) {
	kv, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "store.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer kv.Close()

	exerciseKV(t, kv)

	if err := kv.Health(context.Background()); err != nil {
		t.Errorf("Health: %v", err)
	}
}

func TestSQLiteStorePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.db")

	kv, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := kv.Set(ctx, "user", []byte(`{"id":"1"}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := kv.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	v, err := reopened.Get(ctx, "user")
	if err != nil || string(v) != `{"id":"1"}` {
		t.Errorf("Get after reopen = %q, %v", v, err)
	}
}

func TestSQLiteStoreRejectsDirectoryPath(t *testing.T) {
	if _, err := NewSQLiteStore(t.TempDir()); err == nil {
		t.Error("expected an error when the path is a directory")
	}
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	kv := NewRedisStore(client, "cryptobuddy")
	exerciseKV(t, kv)

	_ = kv.Set(context.Background(), "user", []byte("v"))
	if !mr.Exists("cryptobuddy:kv:user") {
		t.Error("expected prefixed key in redis")
	}
}

func TestMySQLStore(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	kv := NewMySQLStore(db)

	mock.ExpectQuery("SELECT v FROM kv_store WHERE k = \\?").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"v"}))
	if _, err := kv.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	mock.ExpectExec("INSERT INTO kv_store").
		WithArgs("a", []byte("value")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	if err := kv.Set(ctx, "a", []byte("value")); err != nil {
		t.Errorf("Set: %v", err)
	}

	mock.ExpectQuery("SELECT v FROM kv_store WHERE k = \\?").
		WithArgs("a").
		WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow([]byte("value")))
	if v, err := kv.Get(ctx, "a"); err != nil || string(v) != "value" {
		t.Errorf("Get = %q, %v", v, err)
	}

	mock.ExpectExec("DELETE FROM kv_store WHERE k = \\?").
		WithArgs("a").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := kv.Delete(ctx, "a"); err != nil {
		t.Errorf("Delete: %v", err)
	}

	mock.ExpectQuery("SELECT v FROM kv_store").
		WithArgs("b").
		WillReturnError(errors.New("connection reset"))
	if _, err := kv.Get(ctx, "b"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("expected wrapped driver error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
