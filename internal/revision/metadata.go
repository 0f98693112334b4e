package revision

import (
	"errors"
	"strings"
	"time"
)

const (
	// Separator joins the descriptions of squashed revisions.
	Separator = "\n-------------\n"
	// Attribution precedes the migration marker in a migrated description.
	Attribution = "Created by MOE: https://github.com/google/moe\n"
	// MigratedRevIDPrefix starts the marker line naming the migration source.
	MigratedRevIDPrefix = "MOE_MIGRATED_REVID="
)

// ErrEmptyMetadata is returned by Concatenate for an empty input list.
var ErrEmptyMetadata = errors.New("cannot concatenate an empty metadata list")

// Metadata describes a revision: who made it, when, why, and its parents.
type Metadata struct {
	ID          string     `json:"id"`
	Author      string     `json:"author"`
	Date        time.Time  `json:"date"`
	Description string     `json:"description"`
	Parents     []Revision `json:"parents,omitempty"`
}

// Equal compares every field. Dates compare as instants.
func (m Metadata) Equal(o Metadata) bool {
	if m.ID != o.ID || m.Author != o.Author || m.Description != o.Description {
		return false
	}
	if !m.Date.Equal(o.Date) || len(m.Parents) != len(o.Parents) {
		return false
	}
	for i := range m.Parents {
		if m.Parents[i] != o.Parents[i] {
			return false
		}
	}
	return true
}

// Concatenate squashes list into a single Metadata. IDs and authors are
// joined with ", " in input order, the date is the latest date, descriptions
// are joined by Separator and parents are concatenated. When migrationSource
// is non-nil a marker block naming its RevID is appended to the description.
//
// A single-element list with no migration source is returned unchanged.
func Concatenate(list []Metadata, migrationSource *Revision) (Metadata, error) {
	if len(list) == 0 {
		return Metadata{}, ErrEmptyMetadata
	}
	if len(list) == 1 && migrationSource == nil {
		return list[0], nil
	}

	ids := make([]string, 0, len(list))
	authors := make([]string, 0, len(list))
	descriptions := make([]string, 0, len(list))
	var parents []Revision
	date := list[0].Date

	for _, m := range list {
		ids = append(ids, m.ID)
		authors = append(authors, m.Author)
		descriptions = append(descriptions, m.Description)
		parents = append(parents, m.Parents...)
		if m.Date.After(date) {
			date = m.Date
		}
	}

	description := strings.Join(descriptions, Separator)
	if migrationSource != nil {
		description += Separator + Attribution + MigratedRevIDPrefix + migrationSource.RevID
	}

	return Metadata{
		ID:          strings.Join(ids, ", "),
		Author:      strings.Join(authors, ", "),
		Date:        date,
		Description: description,
		Parents:     parents,
	}, nil
}

// MigratedRevID returns the id on the last MOE_MIGRATED_REVID line of
// description, if any.
func MigratedRevID(description string) (string, bool) {
	lines := strings.Split(description, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimRight(lines[i], "\r")
		if id, ok := strings.CutPrefix(line, MigratedRevIDPrefix); ok && id != "" {
			return id, true
		}
	}
	return "", false
}
