// Package showid derives the inventory key for a single screening.
//
// A show id is built from four parts (movie, theater, date, time).  Every
// part is normalized so that the same logical show always maps to the same
// key, and the parts are joined with a double underscore.  One seat
// inventory record exists per distinct key.
package showid

import "strings"

// Separator joins the normalized parts of a show id.
const Separator = "__"

// Parts describes a screening.  MovieID takes precedence over MovieTitle.
type Parts struct {
	MovieID    string `json:"movie_id" query:"movie_id"`
	MovieTitle string `json:"movie_title" query:"movie_title"`
	Theater    string `json:"theater" query:"theater"`
	Date       string `json:"date" query:"date"`
	Time       string `json:"time" query:"time"`
}

// Build returns the show id for p.  Empty parts fall back to the literals
// "movie", "theater", "date" and "time".
func Build(p Parts) string {
	parts := [4]string{
		normalize(firstNonEmpty(p.MovieID, p.MovieTitle, "movie")),
		normalize(firstNonEmpty(p.Theater, "theater")),
		normalize(firstNonEmpty(p.Date, "date")),
		normalize(firstNonEmpty(p.Time, "time")),
	}
	return strings.Join(parts[:], Separator)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// normalize trims and lowercases s, turns each whitespace run into a single
// underscore and drops anything outside [a-z0-9_:-].
func normalize(s string) string {
	s = strings.ToLower(strings.TrimFunc(s, isSpace))
	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if isSpace(r) {
			if !inSpace {
				b.WriteByte('_')
				inSpace = true
			}
			continue
		}
		inSpace = false
		if allowed(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// isSpace matches the ECMAScript whitespace and line terminator set, so keys
// agree with those built by the mobile clients.  Unlike unicode.IsSpace it
// excludes U+0085 and includes U+FEFF.
func isSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ', '\u00a0', '\u1680',
		'\u2028', '\u2029', '\u202f', '\u205f', '\u3000', '\ufeff':
		return true
	}
	return r >= '\u2000' && r <= '\u200a'
}

func allowed(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	case r == '_', r == ':', r == '-':
		return true
	}
	return false
}
