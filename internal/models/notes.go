package models

import (
	"fmt"
	"strings"
	"time"
)

// NoteVerb labels a progress notes block
type NoteVerb string

// Note verbs
const (
	NoteProgress NoteVerb = "Progress update"
	NoteFixed    NoteVerb = "Fixed"
	NoteSentBack NoteVerb = "Sent back"
	NoteGeneral  NoteVerb = "Note"
)

// NoteTimeLayout is the timestamp layout inside a notes block header
const NoteTimeLayout = "2006-01-02 15:04:05"

// FormatNote renders one block: "[ts] Verb by actor:\ntext"
func FormatNote(at time.Time, verb NoteVerb, actor, text string) string {
	return fmt.Sprintf("[%s] %s by %s:\n%s", at.UTC().Format(NoteTimeLayout), verb, actor, strings.TrimSpace(text))
}

// AppendNote adds block to the existing log. Existing text is never rewritten.
func AppendNote(existing, block string) string {
	if strings.TrimSpace(existing) == "" {
		return block
	}
	return existing + "\n\n" + block
}
