package gitlib

import (
	"fmt"
	"time"
)

// Signature represents a git signature (author/committer).
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// secondsPerHour and secondsPerMinute convert a UTC offset into the
// "+hhmm" zone notation git uses in raw identity lines.
const (
	secondsPerHour   = 3600
	secondsPerMinute = 60
)

// Ident formats the signature as a raw identity line suffix
// ("Name <email> timestamp +hhmm"), the shape the changelog parser expects.
func (s Signature) Ident() string {
	_, offset := s.When.Zone()

	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}

	return fmt.Sprintf("%s <%s> %d %s%02d%02d",
		s.Name, s.Email, s.When.Unix(),
		sign, offset/secondsPerHour, (offset%secondsPerHour)/secondsPerMinute)
}
