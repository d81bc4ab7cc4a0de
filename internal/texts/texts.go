// Package texts holds the user-facing strings of the bot.
//
// The built-in English catalog is embedded; a res.<lang>.json file may
// override any key, or a single named .json file may. Placeholders use {name} syntax.
package texts

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

//go:embed default.json
var defaultJSON []byte

var defaults = mustParse(defaultJSON)

func mustParse(b []byte) map[string]string {
	m := map[string]string{}
	if err := json.Unmarshal(b, &m); err != nil {
		panic(fmt.Sprintf("texts: embedded catalog: %v", err))
	}
	return m
}

// Catalog is safe for concurrent use; Reload swaps the whole table atomically.
type Catalog struct {
	m atomic.Pointer[map[string]string]
}

// Default returns a catalog with only the built-in strings.
func Default() *Catalog {
	c := &Catalog{}
	m := maps.Clone(defaults)
	c.m.Store(&m)
	return c
}

// Load returns the built-in strings overridden by the file path resolves to:
// path itself when it names a .json file, else path/res.<lang>.json. A missing
// res.<lang>.json in a directory is not an error; a missing named file is.
func Load(path, lang string) (*Catalog, error) {
	c := Default()
	if err := c.Reload(path, lang); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload rebuilds the table from defaults plus the override file.
// On error the current table is kept.
func (c *Catalog) Reload(path, lang string) error {
	m := maps.Clone(defaults)
	if file, explicit := resolve(path, lang); file != "" {
		b, err := os.ReadFile(file)
		switch {
		case errors.Is(err, os.ErrNotExist) && !explicit:
		case err != nil:
			return err
		default:
			var over map[string]string
			if err := json.Unmarshal(b, &over); err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			maps.Copy(m, over)
		}
	}
	c.m.Store(&m)
	return nil
}

// FilePath returns the override file for path and lang, or "" when path is empty.
func FilePath(path, lang string) string {
	file, _ := resolve(path, lang)
	return file
}

// resolve treats path as the override file itself when it ends in .json or
// names a regular file (explicit), and otherwise as a directory holding
// res.<lang>.json.
func resolve(path, lang string) (file string, explicit bool) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", false
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return path, true
	}
	if fi, err := os.Stat(path); err == nil && fi.Mode().IsRegular() {
		return path, true
	}
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		lang = "en"
	}
	return filepath.Join(path, "res."+lang+".json"), false
}

// Get returns the string for key, or the key itself when unknown.
func (c *Catalog) Get(key string) string {
	if c != nil {
		if m := c.m.Load(); m != nil {
			if v, ok := (*m)[key]; ok {
				return v
			}
		}
	}
	return key
}

// Format fills {name} placeholders from alternating name/value pairs.
//
//	c.Format("broadcast_done", "sent", 2, "failed", 1)
func (c *Catalog) Format(key string, kv ...any) string {
	s := c.Get(key)
	if len(kv) < 2 {
		return s
	}
	pairs := make([]string, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		pairs = append(pairs, "{"+fmt.Sprint(kv[i])+"}", fmt.Sprint(kv[i+1]))
	}
	return strings.NewReplacer(pairs...).Replace(s)
}
