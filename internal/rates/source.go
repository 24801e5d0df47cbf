package rates

import (
	"fmt"
	"os"
)

// EnvRatesJSON names the environment variable whose JSON value replaces the
// whole rate document.
const EnvRatesJSON = "EQUOTEMANAGER_RATES_JSON"

// Source labels where a document came from.
const (
	SourceDefault  = "default"
	SourceFile     = "file"
	SourceEnv      = "env"
	SourceSnapshot = "snapshot"
)

// FromEnv returns the document in EQUOTEMANAGER_RATES_JSON. ok is false when
// the variable is unset or empty.
func FromEnv() (doc Document, ok bool, err error) {
	raw := os.Getenv(EnvRatesJSON)
	if raw == "" {
		return Document{}, false, nil
	}
	doc, err = ParseJSON([]byte(raw))
	if err != nil {
		return Document{}, true, fmt.Errorf("%s: %w", EnvRatesJSON, err)
	}
	return doc, true, nil
}

// Resolve picks the startup document: the environment override, then the
// file at path, then the built-in defaults. The returned document has been
// validated.
func Resolve(path string) (Document, string, error) {
	doc, ok, err := FromEnv()
	source := SourceEnv
	switch {
	case err != nil:
		return Document{}, "", err
	case ok:
	case path != "":
		doc, err = Load(path)
		if err != nil {
			return Document{}, "", err
		}
		source = SourceFile
	default:
		doc, source = Default(), SourceDefault
	}
	if _, err := doc.Table(); err != nil {
		return Document{}, "", fmt.Errorf("%s rates: %w", source, err)
	}
	return doc, source, nil
}
