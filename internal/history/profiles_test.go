package history

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseProfilesINI(t *testing.T) {
	dir := t.TempDir()

	// Two profiles; only the one with a places.sqlite is usable.
	defProfile := filepath.Join(dir, "abc.default")
	if err := os.MkdirAll(defProfile, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(defProfile, "places.sqlite"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write places: %v", err)
	}

	ini := `[General]
StartWithLastProfile=1

[Profile0]
Name=default
IsRelative=1
Path=abc.default
Default=1

[Profile1]
Name=empty
IsRelative=1
Path=def.empty
`
	iniPath := filepath.Join(dir, "profiles.ini")
	if err := os.WriteFile(iniPath, []byte(ini), 0o644); err != nil {
		t.Fatalf("write ini: %v", err)
	}

	profiles, err := ParseProfilesINI(iniPath, dir)
	if err != nil {
		t.Fatalf("ParseProfilesINI: %v", err)
	}

	if len(profiles) != 1 {
		t.Fatalf("expected 1 usable profile, got %d", len(profiles))
	}
	p := profiles[0]
	if p.Name != "default" || !p.IsDefault {
		t.Errorf("unexpected profile: %+v", p)
	}
	if p.Path != defProfile {
		t.Errorf("relative path not resolved: %q", p.Path)
	}
}

func TestParseProfilesINI_SessionOnlyProfileIsUsable(t *testing.T) {
	dir := t.TempDir()

	profile := filepath.Join(dir, "sess.only")
	backups := filepath.Join(profile, "sessionstore-backups")
	if err := os.MkdirAll(backups, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(backups, "recovery.jsonlz4"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write session: %v", err)
	}

	ini := "[Profile0]\nName=sess\nIsRelative=1\nPath=sess.only\n"
	iniPath := filepath.Join(dir, "profiles.ini")
	if err := os.WriteFile(iniPath, []byte(ini), 0o644); err != nil {
		t.Fatalf("write ini: %v", err)
	}

	profiles, err := ParseProfilesINI(iniPath, dir)
	if err != nil {
		t.Fatalf("ParseProfilesINI: %v", err)
	}
	if len(profiles) != 1 || profiles[0].Name != "sess" {
		t.Fatalf("session-only profile should be usable: %+v", profiles)
	}
}
