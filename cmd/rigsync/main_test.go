package main

import (
	"os"
	"path/filepath"
	"testing"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoadConfig(t *testing.T) {
	t.Run("explicit path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "custom.yml")
		if err := os.WriteFile(path, []byte("session:\n  tolerance_ms: 250\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		c, err := loadConfig(path)
		if err != nil {
			t.Fatalf("loadConfig: %v", err)
		}
		if c.Session.ToleranceMs != 250 {
			t.Errorf("tolerance_ms = %v", c.Session.ToleranceMs)
		}
	})

	t.Run("explicit malformed fails", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.yml")
		if err := os.WriteFile(path, []byte("sources: {{"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := loadConfig(path); err == nil {
			t.Error("кривой явный конфиг — ошибка запуска")
		}
	})

	t.Run("default missing gives defaults", func(t *testing.T) {
		chdir(t, t.TempDir())
		c, err := loadConfig("")
		if err != nil {
			t.Fatalf("loadConfig: %v", err)
		}
		if c == nil || c.Session.ToleranceMs != 100 {
			t.Errorf("ожидали конфиг по умолчанию, получили %+v", c)
		}
	})

	t.Run("default malformed falls back", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "rigsync.yml"), []byte("sources: {{"), 0o644); err != nil {
			t.Fatal(err)
		}
		chdir(t, dir)
		c, err := loadConfig("")
		if err != nil {
			t.Fatalf("кривой rigsync.yml по умолчанию не должен ронять запуск: %v", err)
		}
		if c == nil || c.Session.ToleranceMs != 100 {
			t.Errorf("ожидали значения по умолчанию, получили %+v", c)
		}
	})
}
