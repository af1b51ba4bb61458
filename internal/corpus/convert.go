// Package corpus converts the structured company knowledge base into the
// plain-text format the retrieval index ingests.
package corpus

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// Convert reads a JSON knowledge base mapping category names to lists of
// entries and writes plain text suitable for index ingestion: a "###"
// header per category, entries separated by "---", markdown emphasis
// stripped. Categories are emitted in sorted order so the output is
// deterministic.
func Convert(r io.Reader, w io.Writer) error {
	var data map[string][]string
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return fmt.Errorf("decode knowledge base: %w", err)
	}

	categories := make([]string, 0, len(data))
	for category := range data {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	for _, category := range categories {
		if _, err := fmt.Fprintf(w, "\n### %s\n\n", category); err != nil {
			return err
		}
		for _, entry := range data[category] {
			clean := strings.NewReplacer("**", "", "*", "").Replace(entry)
			if _, err := fmt.Fprintf(w, "%s\n\n---\n\n", clean); err != nil {
				return err
			}
		}
	}
	return nil
}

// ConvertFile converts the knowledge base at path and writes the result
// to w.
func ConvertFile(path string, w io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open knowledge base: %w", err)
	}
	defer f.Close()

	return Convert(f, w)
}
