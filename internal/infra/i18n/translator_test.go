//go:build !integration

package i18n

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestTranslator(t *testing.T) {
	translator, err := newTranslatorFromBytes([]byte("greeting: привет\nwelcome_user: привет %s"))
	if err != nil {
		t.Fatalf("newTranslatorFromBytes failed: %v", err)
	}

	t.Run("should translate a simple key", func(t *testing.T) {
		if got := translator.T("greeting"); got != "привет" {
			t.Errorf("wanted 'привет', got '%s'", got)
		}
	})

	t.Run("should return key if not found", func(t *testing.T) {
		if got := translator.T("nonexistent_key"); got != "nonexistent_key" {
			t.Errorf("wanted 'nonexistent_key', got '%s'", got)
		}
	})

	t.Run("should format arguments correctly", func(t *testing.T) {
		if got := translator.T("welcome_user", "Ali"); got != "привет Ali" {
			t.Errorf("wanted 'привет Ali', got '%s'", got)
		}
	})
}

func TestBundle(t *testing.T) {
	t.Run("embedded locales share the same keys", func(t *testing.T) {
		b, err := NewBundle(LocalesFS)
		if err != nil {
			t.Fatalf("NewBundle: %v", err)
		}
		en, ru := b.byLang["en"], b.byLang["ru"]
		if ru == nil {
			t.Fatal("expected ru locale")
		}
		for k := range en.translations {
			if _, ok := ru.translations[k]; !ok {
				t.Errorf("ru is missing %q", k)
			}
		}
	})

	t.Run("region codes and unknown languages resolve", func(t *testing.T) {
		b, err := NewBundle(LocalesFS)
		if err != nil {
			t.Fatalf("NewBundle: %v", err)
		}
		if got := b.For("ru-RU").T("plans_header"); !strings.HasPrefix(got, "Доступные") {
			t.Errorf("expected russian text, got %q", got)
		}
		if got := b.For("de").T("plans_header"); got != "Available plans:" {
			t.Errorf("expected english fallback, got %q", got)
		}
	})

	t.Run("default locale is required", func(t *testing.T) {
		fsys := fstest.MapFS{"locales/ru.yaml": {Data: []byte("a: b")}}
		if _, err := NewBundle(fsys); err == nil {
			t.Error("expected an error without en.yaml")
		}
	})
}
