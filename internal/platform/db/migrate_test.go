package db

import (
	"testing"
	"testing/fstest"
	"time"

	"github.com/medscan/medscan/migrations"
)

func TestLoadMigrations(t *testing.T) {
	files := fstest.MapFS{
		"001_medical_record.sql": {Data: []byte("CREATE TABLE medical_record (id UUID PRIMARY KEY);")},
		"002_indexes.sql":        {Data: []byte("CREATE INDEX idx ON medical_record (id);")},
	}

	migrator := NewMigrator(nil, files)
	migs, err := migrator.LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migs) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migs))
	}
	if migs[0].Version != 1 || migs[0].Name != "001_medical_record.sql" {
		t.Errorf("unexpected first migration %+v", migs[0])
	}
	if migs[0].SQL != "CREATE TABLE medical_record (id UUID PRIMARY KEY);" {
		t.Errorf("unexpected SQL content: %s", migs[0].SQL)
	}
	if migs[1].Version != 2 {
		t.Errorf("expected version 2, got %d", migs[1].Version)
	}
}

func TestLoadMigrations_SortOrder(t *testing.T) {
	files := fstest.MapFS{
		"010_tables.sql": {Data: []byte("SELECT 10;")},
		"002_second.sql": {Data: []byte("SELECT 2;")},
		"001_first.sql":  {Data: []byte("SELECT 1;")},
		"005_middle.sql": {Data: []byte("SELECT 5;")},
	}

	migs, err := NewMigrator(nil, files).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	want := []int{1, 2, 5, 10}
	if len(migs) != len(want) {
		t.Fatalf("expected %d migrations, got %d", len(want), len(migs))
	}
	for i, v := range want {
		if migs[i].Version != v {
			t.Errorf("migration %d: expected version %d, got %d", i, v, migs[i].Version)
		}
	}
}

func TestLoadMigrations_SkipsNonMigrationFiles(t *testing.T) {
	files := fstest.MapFS{
		"001_first.sql":    {Data: []byte("SELECT 1;")},
		"README.md":        {Data: []byte("docs")},
		"notes.sql":        {Data: []byte("SELECT 0;")},
		"abc_bad.sql":      {Data: []byte("SELECT 0;")},
		"nested/002_x.sql": {Data: []byte("SELECT 2;")},
	}

	migs, err := NewMigrator(nil, files).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migs) != 1 || migs[0].Version != 1 {
		t.Errorf("expected only 001_first.sql, got %+v", migs)
	}
}

func TestLoadMigrations_EmbeddedSet(t *testing.T) {
	migs, err := NewMigrator(nil, migrations.FS).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migs) == 0 {
		t.Fatal("expected embedded migrations")
	}
	if migs[0].Version != 1 {
		t.Errorf("expected first embedded migration to be version 1, got %d", migs[0].Version)
	}
}

func TestMergeStatus(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	migs := []Migration{{Version: 1, Name: "001_a.sql"}, {Version: 2, Name: "002_b.sql"}}

	statuses := mergeStatus(migs, map[int]time.Time{1: at})
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if !statuses[0].Applied || statuses[0].AppliedAt == nil || !statuses[0].AppliedAt.Equal(at) {
		t.Errorf("expected first migration applied at %v, got %+v", at, statuses[0])
	}
	if statuses[1].Applied || statuses[1].AppliedAt != nil {
		t.Errorf("expected second migration pending, got %+v", statuses[1])
	}
}
