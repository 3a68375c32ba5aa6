// Package changelog parses raw git commit-log text into structured change
// entries and serializes them back into the same line-oriented format.
package changelog

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Line prefixes recognized by the commit block grammar.
const (
	prefixCommit    = "commit "
	prefixTree      = "tree "
	prefixParent    = "parent "
	prefixAuthor    = "author "
	prefixCommitter = "committer "

	// messageIndent is the indent git puts in front of message body lines.
	messageIndent = "    "

	// identTerminator separates the display name from the email address in
	// an identity line ("Name <email> timestamp zone").
	identTerminator = " <"
)

// statusTags are the name-status letters that mark an affected path line.
const statusTags = "ACDMRT"

// Entry represents one commit parsed from raw log output. An Entry is
// immutable once parsed.
type Entry struct {
	// ID is the full revision identifier from the commit header line.
	ID string

	// Author is the committer display name. The committer line is used
	// deliberately instead of the author line: changes are attributed to
	// whoever integrated them. The name is everything before the first
	// " <" on the committer line, which misparses display names that
	// themselves contain " <". Downstream consumers rely on the existing
	// behavior, so it is kept as is.
	Author string

	// Message is the commit message with the 4-space indent stripped and
	// a trailing newline per body line retained.
	Message string

	// AffectedPaths holds the distinct paths tagged A/C/D/M/R/T, in the
	// order they were first seen.
	AffectedPaths []string
}

// Set is an ordered sequence of entries. Order is the emission order of the
// underlying log command and is never re-sorted.
type Set []*Entry

// ParseEntry parses the lines of a single commit block. Malformed or empty
// input never fails; unrecognized lines are skipped and missing fields stay
// at their zero values.
func ParseEntry(lines []string) *Entry {
	entry := &Entry{}
	seen := make(map[string]struct{})

	for _, line := range lines {
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, prefixCommit):
			fields := strings.Fields(line)
			if len(fields) > 1 {
				entry.ID = fields[1]
			}
		case strings.HasPrefix(line, prefixTree), strings.HasPrefix(line, prefixParent), strings.HasPrefix(line, prefixAuthor):
			// Tree, parentage and original authorship are not modeled.
		case strings.HasPrefix(line, prefixCommitter):
			end := strings.Index(line, identTerminator)
			if end >= len(prefixCommitter) {
				entry.Author = line[len(prefixCommitter):end]
			}
		case strings.HasPrefix(line, messageIndent):
			entry.Message += line[len(messageIndent):] + "\n"
		case isPathLine(line):
			path := line[2:]
			if _, dup := seen[path]; !dup {
				seen[path] = struct{}{}
				entry.AffectedPaths = append(entry.AffectedPaths, path)
			}
		default:
			// Ignore.
		}
	}

	return entry
}

// isPathLine reports whether line has the shape "<X>\t<path>" with X one of
// the name-status letters.
func isPathLine(line string) bool {
	return len(line) > 2 && line[1] == '\t' && strings.IndexByte(statusTags, line[0]) >= 0
}

// Parse splits multi-commit raw log text into per-commit blocks (boundary =
// lines starting with "commit ") and parses each block. Lines before the
// first commit header are ignored. Zero commits yield an empty set.
func Parse(r io.Reader) (Set, error) {
	var (
		set   Set
		block []string
		open  bool
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLineSize)

	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, prefixCommit) {
			if open {
				set = append(set, ParseEntry(block))
			}

			block = block[:0:0]
			open = true
		}

		if open {
			block = append(block, line)
		}
	}

	err := scanner.Err()
	if err != nil {
		return nil, fmt.Errorf("scan commit log: %w", err)
	}

	if open {
		set = append(set, ParseEntry(block))
	}

	return set, nil
}

// maxLineSize bounds a single log line. Commit subjects are short but
// pathological message lines show up in imported histories.
const maxLineSize = 1 << 20

// WriteRaw serializes a set back into the raw log format so the output
// round-trips through Parse. Identity details that parsing discards (email,
// timestamp) are emitted as placeholders and the name-status letter is
// normalized to M; id, author, message and the path set survive the round
// trip unchanged.
func WriteRaw(w io.Writer, set Set) error {
	for _, entry := range set {
		err := writeRawEntry(w, entry)
		if err != nil {
			return err
		}
	}

	return nil
}

func writeRawEntry(w io.Writer, entry *Entry) error {
	var sb strings.Builder

	sb.WriteString(prefixCommit + entry.ID + "\n")
	sb.WriteString(prefixCommitter + entry.Author + " <> 0 +0000\n")
	sb.WriteString("\n")

	if entry.Message != "" {
		for _, line := range strings.Split(strings.TrimSuffix(entry.Message, "\n"), "\n") {
			sb.WriteString(messageIndent + line + "\n")
		}

		sb.WriteString("\n")
	}

	for _, path := range entry.AffectedPaths {
		sb.WriteString("M\t" + path + "\n")
	}

	sb.WriteString("\n")

	_, err := io.WriteString(w, sb.String())
	if err != nil {
		return fmt.Errorf("write commit block: %w", err)
	}

	return nil
}
