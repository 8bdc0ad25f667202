package store

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/inventory/internal/asset"
)

// fakeDB records what the store sends. Embedded interfaces are left nil;
// calling a method the fake does not override panics.
type fakeDB struct {
	execSQL   []string
	tx        *fakeTx
	beginErr  error
	count     int64
	countErr  error
	lastQuery string
}

func (d *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	if d.beginErr != nil {
		return nil, d.beginErr
	}
	return d.tx, nil
}

func (d *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	d.execSQL = append(d.execSQL, sql)
	return pgconn.CommandTag{}, nil
}

func (d *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	d.lastQuery = sql
	return fakeRow{n: d.count, err: d.countErr}
}

type fakeRow struct {
	n   int64
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*int64) = r.n
	return nil
}

type fakeTx struct {
	pgx.Tx

	execArgs   [][]any
	batch      *pgx.Batch
	failAt     int // 1-based batch entry that fails; 0 for none
	committed  bool
	rolledBack bool
}

func (tx *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	tx.execArgs = append(tx.execArgs, args)
	return pgconn.CommandTag{}, nil
}

func (tx *fakeTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	tx.batch = b
	return &fakeResults{failAt: tx.failAt}
}

func (tx *fakeTx) Commit(ctx context.Context) error {
	tx.committed = true
	return nil
}

func (tx *fakeTx) Rollback(ctx context.Context) error {
	if !tx.committed {
		tx.rolledBack = true
	}
	return nil
}

type fakeResults struct {
	pgx.BatchResults

	n      int
	failAt int
}

func (r *fakeResults) Exec() (pgconn.CommandTag, error) {
	r.n++
	if r.n == r.failAt {
		return pgconn.CommandTag{}, errors.New("duplicate key value violates unique constraint")
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (r *fakeResults) Close() error { return nil }

func testRecords(t *testing.T) []asset.Record {
	t.Helper()
	m, err := asset.NewMapper(asset.ReferenceLayout())
	if err != nil {
		t.Fatal(err)
	}
	var out []asset.Record
	for _, host := range []string{"e1001", "e1002", "e1003"} {
		rec, err := m.Map(2, []string{
			"B240", "R1", "U1", host, "chtc.wisc.edu", "R640", "SN", "", "ST",
			"UW", "CSL", "MG", "Fabrication, UW PO 9",
		})
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, rec)
	}
	return out
}

func TestColumnName(t *testing.T) {
	tests := []struct {
		key  asset.FieldKey
		want string
	}{
		{asset.FieldKey{Category: asset.CategoryAcquisition, Name: "purchase_order"}, "acquisition_purchase_order"},
		{asset.FieldKey{Category: asset.CategoryHardware, Name: "model"}, "hardware_model"},
		{asset.FieldKey{Category: asset.CategoryCondoChassis, Name: "model"}, "condo_chassis_model"},
	}

	for _, tt := range tests {
		if got := ColumnName(tt.key); got != tt.want {
			t.Errorf("ColumnName(%s) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestSchemaSQL(t *testing.T) {
	sql := schemaSQL()

	for _, spec := range asset.Schema {
		want := ColumnName(spec.Key) + " TEXT,"
		if spec.Kind == asset.KindFlag {
			want = ColumnName(spec.Key) + " BOOLEAN,"
		}
		if !strings.Contains(sql, want) {
			t.Errorf("schema missing %q", want)
		}
	}
	if !strings.Contains(sql, "PRIMARY KEY (hostname, domain)") {
		t.Error("assets must be keyed by hostname and domain")
	}
}

func TestUpsertSQL(t *testing.T) {
	sql := upsertSQL()
	wantParams := len(asset.Schema) + 3

	if !strings.Contains(sql, "$"+strconv.Itoa(wantParams)+")") {
		t.Errorf("expected %d parameters: %s", wantParams, sql)
	}
	if strings.Contains(sql, "$"+strconv.Itoa(wantParams+1)) {
		t.Errorf("too many parameters: %s", sql)
	}
	if !strings.Contains(sql, "ON CONFLICT (hostname, domain) DO UPDATE SET") {
		t.Errorf("missing conflict clause: %s", sql)
	}
	if strings.Contains(sql, "hostname = EXCLUDED") || strings.Contains(sql, "domain = EXCLUDED") {
		t.Errorf("key columns must not be updated: %s", sql)
	}
	if !strings.Contains(sql, "tags_morgridge = EXCLUDED.tags_morgridge") {
		t.Errorf("missing field update: %s", sql)
	}
}

func TestAssetArgs(t *testing.T) {
	rec := testRecords(t)[0]
	rec.Location.Building = asset.Absent()
	id := ToPgUUID(uuid.New())

	args := assetArgs(rec, id)
	if len(args) != len(asset.Schema)+3 {
		t.Fatalf("got %d args, want %d", len(args), len(asset.Schema)+3)
	}
	if args[0] != "e1001" || args[1] != "chtc.wisc.edu" {
		t.Errorf("identity args = %v, %v", args[0], args[1])
	}
	if args[len(args)-1] != id {
		t.Errorf("last arg = %v, want import id", args[len(args)-1])
	}

	for i, spec := range asset.Schema {
		arg := args[i+2]
		switch spec.Key.String() {
		case "acquisition.is_fabrication":
			if arg != (pgtype.Bool{Bool: true, Valid: true}) {
				t.Errorf("is_fabrication arg = %#v", arg)
			}
		case "acquisition.purchase_order":
			if arg != (pgtype.Text{String: "9", Valid: true}) {
				t.Errorf("purchase_order arg = %#v", arg)
			}
		case "location.building", "condo_chassis.model":
			if arg != (pgtype.Text{Valid: false}) {
				t.Errorf("%s arg = %#v, want NULL", spec.Key, arg)
			}
		case "condo_chassis.identifier":
			if arg != (pgtype.Text{String: "", Valid: true}) {
				t.Errorf("empty text should stay non-NULL: %#v", arg)
			}
		}
	}
}

func TestToPgConversions(t *testing.T) {
	if got := ToPgText(asset.Absent()); got.Valid {
		t.Errorf("ToPgText(absent) = %#v", got)
	}
	if got := ToPgText(asset.Flag(true)); got.Valid {
		t.Errorf("ToPgText(flag) = %#v", got)
	}
	if got := ToPgText(asset.Text("x")); !got.Valid || got.String != "x" {
		t.Errorf("ToPgText(text) = %#v", got)
	}
	if got := ToPgBool(asset.Absent()); got.Valid {
		t.Errorf("ToPgBool(absent) = %#v", got)
	}
	if got := ToPgBool(asset.Flag(false)); !got.Valid || got.Bool {
		t.Errorf("ToPgBool(false) = %#v", got)
	}

	id := uuid.New()
	if got := ToPgUUID(id); !got.Valid || uuid.UUID(got.Bytes) != id {
		t.Errorf("ToPgUUID() = %#v", got)
	}
}

func TestStore_EnsureSchema(t *testing.T) {
	db := &fakeDB{}
	if err := New(db).EnsureSchema(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(db.execSQL) != 1 || !strings.Contains(db.execSQL[0], "CREATE TABLE IF NOT EXISTS assets") {
		t.Errorf("exec = %v", db.execSQL)
	}
}

func TestStore_UpsertAssets(t *testing.T) {
	tx := &fakeTx{}
	db := &fakeDB{tx: tx}
	records := testRecords(t)
	batchID := uuid.New()

	if err := New(db).UpsertAssets(context.Background(), batchID, records); err != nil {
		t.Fatalf("UpsertAssets() error = %v", err)
	}

	if !tx.committed {
		t.Error("transaction not committed")
	}
	if tx.batch == nil || tx.batch.Len() != len(records) {
		t.Fatalf("batch = %v, want %d queued upserts", tx.batch, len(records))
	}
	if len(tx.execArgs) != 1 || tx.execArgs[0][0] != ToPgUUID(batchID) || tx.execArgs[0][1] != len(records) {
		t.Errorf("import row args = %v", tx.execArgs)
	}
	for i, q := range tx.batch.QueuedQueries {
		if q.Arguments[0] != records[i].Hostname {
			t.Errorf("queued[%d] hostname = %v, want %s", i, q.Arguments[0], records[i].Hostname)
		}
	}
}

func TestStore_UpsertAssets_RollsBackOnFailure(t *testing.T) {
	tx := &fakeTx{failAt: 2}
	db := &fakeDB{tx: tx}

	err := New(db).UpsertAssets(context.Background(), uuid.New(), testRecords(t))
	if err == nil {
		t.Fatal("UpsertAssets() expected error")
	}
	if !strings.Contains(err.Error(), "e1002.chtc.wisc.edu") {
		t.Errorf("error should name the failing record: %v", err)
	}
	if tx.committed || !tx.rolledBack {
		t.Errorf("committed = %v, rolledBack = %v; want rollback only", tx.committed, tx.rolledBack)
	}
}

func TestStore_UpsertAssets_BeginError(t *testing.T) {
	db := &fakeDB{beginErr: errors.New("connection refused")}

	err := New(db).UpsertAssets(context.Background(), uuid.New(), testRecords(t))
	if err == nil || !strings.Contains(err.Error(), "begin transaction") {
		t.Errorf("UpsertAssets() error = %v", err)
	}
}

func TestStore_CountAssets(t *testing.T) {
	db := &fakeDB{count: 42}
	n, err := New(db).CountAssets(context.Background())
	if err != nil || n != 42 {
		t.Errorf("CountAssets() = %d, %v; want 42", n, err)
	}
	if db.lastQuery != countAssetsSQL {
		t.Errorf("query = %q", db.lastQuery)
	}

	db.countErr = errors.New("relation \"assets\" does not exist")
	if _, err := New(db).CountAssets(context.Background()); err == nil {
		t.Error("CountAssets() expected error")
	}
}
