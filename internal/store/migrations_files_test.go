package store

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
)

func migrationsDir() string {
	return filepath.Join("..", "..", "db", "migrations")
}

func TestMigrationsHaveMatchingUpAndDownFiles(t *testing.T) {
	entries, err := os.ReadDir(migrationsDir())
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}

	pattern := regexp.MustCompile(`^(\d+)_.*\.(up|down)\.sql$`)
	byVersion := map[string]map[string]bool{}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		match := pattern.FindStringSubmatch(name)
		if match == nil {
			continue
		}
		version := match[1]
		direction := match[2]
		if byVersion[version] == nil {
			byVersion[version] = map[string]bool{}
		}
		if byVersion[version][direction] {
			t.Fatalf("duplicate %s migration file for version %s", direction, version)
		}
		byVersion[version][direction] = true
	}

	if len(byVersion) == 0 {
		t.Fatal("no migrations discovered")
	}

	for version, dirs := range byVersion {
		if !dirs["up"] || !dirs["down"] {
			t.Fatalf("version %s must include both up and down files", version)
		}
	}
}

func TestSchemaCascadesBoardTreeDeletes(t *testing.T) {
	schema, err := os.ReadFile(filepath.Join(migrationsDir(), "0001_init.up.sql"))
	if err != nil {
		t.Fatalf("read init migration: %v", err)
	}

	tablePattern := regexp.MustCompile(`(?s)CREATE TABLE IF NOT EXISTS (\w+) \((.*?)\n\);`)
	tableBodies := map[string]string{}
	for _, match := range tablePattern.FindAllStringSubmatch(string(schema), -1) {
		tableBodies[match[1]] = match[2]
	}
	if len(tableBodies) == 0 {
		t.Fatal("no tables found in init migration")
	}

	cascades := []struct {
		table  string
		column string
		parent string
	}{
		{"board_members", "board_id", "boards"},
		{"lists", "board_id", "boards"},
		{"tasks", "list_id", "lists"},
		{"tasks", "board_id", "boards"},
		{"labels", "board_id", "boards"},
		{"task_assignments", "task_id", "tasks"},
		{"task_labels", "task_id", "tasks"},
		{"task_labels", "label_id", "labels"},
		{"task_comments", "task_id", "tasks"},
	}
	for _, want := range cascades {
		body, ok := tableBodies[want.table]
		if !ok {
			t.Fatalf("table %s not found in init migration", want.table)
		}
		clause := regexp.MustCompile(want.column + ` TEXT NOT NULL REFERENCES ` + want.parent + `\(id\) ON DELETE CASCADE`)
		if !clause.MatchString(body) {
			t.Errorf("%s.%s must cascade from %s", want.table, want.column, want.parent)
		}
	}
}

func TestActivityLogSurvivesBoardDeletion(t *testing.T) {
	schema, err := os.ReadFile(filepath.Join(migrationsDir(), "0001_init.up.sql"))
	if err != nil {
		t.Fatalf("read init migration: %v", err)
	}

	tablePattern := regexp.MustCompile(`(?s)CREATE TABLE IF NOT EXISTS activity_logs \((.*?)\n\);`)
	match := tablePattern.FindStringSubmatch(string(schema))
	if match == nil {
		t.Fatal("activity_logs table not found in init migration")
	}
	body := match[1]

	if regexp.MustCompile(`REFERENCES`).MatchString(body) {
		t.Errorf("activity_logs must not reference other tables:\n%s", body)
	}
	if regexp.MustCompile(`ON DELETE`).MatchString(body) {
		t.Errorf("activity_logs must not cascade on any delete:\n%s", body)
	}
}
