package render

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/russross/blackfriday/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Transform is one entry of the --pipe whitelist.
type Transform func(v any) (any, error)

func text(fn func(string) string) Transform {
	return func(v any) (any, error) { return fn(stringify(v)), nil }
}

// DefaultTransforms returns the built-in whitelist. The "t" transform is
// added by SetLocalizer.
func DefaultTransforms() map[string]Transform {
	return map[string]Transform{
		"upper":      text(strings.ToUpper),
		"lower":      text(strings.ToLower),
		"trim":       text(strings.TrimSpace),
		"capitalize": text(capitalize),
		"title": func(v any) (any, error) {
			return cases.Title(language.Und).String(stringify(v)), nil
		},
		"json": func(v any) (any, error) {
			bs, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				return v, err
			}
			return string(bs), nil
		},
		"markdown": func(v any) (any, error) {
			return string(blackfriday.Run([]byte(stringify(v)))), nil
		},
	}
}

func capitalize(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}

// SetLocalizer enables the "t" transform, which treats the value as a
// message id.
func (e *Engine) SetLocalizer(l *i18n.Localizer) {
	if e.Transforms == nil {
		e.Transforms = DefaultTransforms()
	}
	e.Transforms["t"] = Translate(l)
}

// Translate looks the value up as a message id. Unknown ids return the id
// and an error.
func Translate(l *i18n.Localizer) Transform {
	return func(v any) (any, error) {
		id := stringify(v)
		out, err := l.Localize(&i18n.LocalizeConfig{MessageID: id})
		if err != nil {
			return id, err
		}
		return out, nil
	}
}

// LoadBundle reads every *.toml message file in dir (named like
// "active.en.toml") into a bundle whose default language is lang.
func LoadBundle(dir, lang string) (*i18n.Bundle, error) {
	tag, err := language.Parse(lang)
	if err != nil {
		return nil, fmt.Errorf("render: language %q: %w", lang, err)
	}
	bundle := i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	files, err := filepath.Glob(filepath.Join(dir, "*.toml"))
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		bs, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		if _, err := bundle.ParseMessageFileBytes(bs, f); err != nil {
			return nil, fmt.Errorf("render: locale file %s: %w", f, err)
		}
	}
	return bundle, nil
}
