package gitlib

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	git2go "github.com/libgit2/git2go/v34"
)

// messageIndent is the indent git puts in front of message body lines.
const messageIndent = "    "

// RawLog writes the raw commit-log text for the exclusive-inclusive range
// (from, to] to w, newest first. The output is the line-oriented format the
// changelog parser consumes: commit/tree/parent/author/committer header,
// indented message body and name-status path lines. A zero from hash logs
// the full history reachable from to.
func (r *Repository) RawLog(w io.Writer, from, to Hash) error {
	walk, err := r.repo.Walk()
	if err != nil {
		return fmt.Errorf("create revwalk: %w", err)
	}
	defer walk.Free()

	walk.Sorting(git2go.SortTime)

	err = walk.Push(to.ToOid())
	if err != nil {
		return fmt.Errorf("push %s to revwalk: %w", to.Short(), err)
	}

	if !from.IsZero() {
		err = walk.Hide(from.ToOid())
		if err != nil {
			return fmt.Errorf("hide %s from revwalk: %w", from.Short(), err)
		}
	}

	buf := bufio.NewWriter(w)

	var emitErr error

	err = walk.Iterate(func(commit *git2go.Commit) bool {
		emitErr = r.emitRawCommit(buf, commit)
		commit.Free()

		return emitErr == nil
	})
	if err != nil {
		return fmt.Errorf("walk %s..%s: %w", from.Short(), to.Short(), err)
	}

	if emitErr != nil {
		return emitErr
	}

	err = buf.Flush()
	if err != nil {
		return fmt.Errorf("flush raw log: %w", err)
	}

	return nil
}

// emitRawCommit writes one commit block in raw log format.
func (r *Repository) emitRawCommit(w io.Writer, commit *git2go.Commit) error {
	var sb strings.Builder

	sb.WriteString("commit " + HashFromOid(commit.Id()).String() + "\n")
	sb.WriteString("tree " + HashFromOid(commit.TreeId()).String() + "\n")

	for i := range commit.ParentCount() {
		sb.WriteString("parent " + HashFromOid(commit.ParentId(i)).String() + "\n")
	}

	sb.WriteString("author " + identOf(commit.Author()) + "\n")
	sb.WriteString("committer " + identOf(commit.Committer()) + "\n")
	sb.WriteString("\n")

	for _, line := range strings.Split(strings.TrimRight(commit.Message(), "\n"), "\n") {
		sb.WriteString(messageIndent + line + "\n")
	}

	sb.WriteString("\n")

	changes, err := r.commitChanges(commit)
	if err != nil {
		return err
	}

	for _, change := range changes {
		sb.WriteString(string(change.Action.Letter()) + "\t" + change.Path + "\n")
	}

	sb.WriteString("\n")

	_, err = io.WriteString(w, sb.String())
	if err != nil {
		return fmt.Errorf("write commit block: %w", err)
	}

	return nil
}

// identOf converts a libgit2 signature into a raw identity line suffix.
func identOf(sig *git2go.Signature) string {
	if sig == nil {
		return "unknown <> 0 +0000"
	}

	return Signature{Name: sig.Name, Email: sig.Email, When: sig.When}.Ident()
}
