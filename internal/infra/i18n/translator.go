package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var LocalesFS embed.FS

const DefaultLang = "en"

type Translator struct {
	translations map[string]string
}

func NewTranslator(fsys fs.FS, langCode string) (*Translator, error) {
	filePath := path.Join("locales", langCode+".yaml")
	data, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read translation file %s: %w", filePath, err)
	}
	return newTranslatorFromBytes(data)
}

func newTranslatorFromBytes(data []byte) (*Translator, error) {
	var translations map[string]string
	if err := yaml.Unmarshal(data, &translations); err != nil {
		return nil, fmt.Errorf("failed to parse translation file: %w", err)
	}
	return &Translator{translations: translations}, nil
}

// T formats the message for key. Unknown keys are returned as is.
func (t *Translator) T(key string, args ...interface{}) string {
	format, ok := t.translations[key]
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(format, args...)
	}
	return format
}

// Bundle holds one translator per locale and falls back to DefaultLang.
type Bundle struct {
	byLang map[string]*Translator
}

// NewBundle loads every locales/<lang>.yaml in fsys. The default language
// must be present.
func NewBundle(fsys fs.FS) (*Bundle, error) {
	files, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, err
	}
	b := &Bundle{byLang: make(map[string]*Translator, len(files))}
	for _, f := range files {
		lang := strings.TrimSuffix(path.Base(f), ".yaml")
		tr, err := NewTranslator(fsys, lang)
		if err != nil {
			return nil, err
		}
		b.byLang[lang] = tr
	}
	if _, ok := b.byLang[DefaultLang]; !ok {
		return nil, fmt.Errorf("missing %s locale", DefaultLang)
	}
	return b, nil
}

// For picks the translator for a Telegram language code such as "ru" or "en-US".
func (b *Bundle) For(langCode string) *Translator {
	lang := strings.ToLower(langCode)
	if i := strings.IndexByte(lang, '-'); i > 0 {
		lang = lang[:i]
	}
	if tr, ok := b.byLang[lang]; ok {
		return tr
	}
	return b.byLang[DefaultLang]
}
