package svn2svn

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Every replayed commit embeds its originating source revision as a
// trailer line in the log message. The revision map is rebuilt from
// these trailers on resume, so the format is a compatibility contract:
//
//	Replayed-From-Rev: 123
//
// Optionally the original author and date ride along as trailers when
// they are carried in the message rather than patched into revprops:
//
//	Original-Author: alice
//	Original-Date: 2011-02-25T05:50:15.000000Z
const (
	trailerRev    = "Replayed-From-Rev"
	trailerAuthor = "Original-Author"
	trailerDate   = "Original-Date"
)

var trailerRevRe = regexp.MustCompile(`(?m)^` + trailerRev + `: (\d+)\s*$`)

// FormatMessage appends the source-revision trailer block to a log
// message. author and date are included only when logAuthor/logDate are
// set.
func FormatMessage(message string, sourceRev int64, author string, date time.Time, logAuthor, logDate bool) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(message, "\n"))
	b.WriteString("\n\n")
	if logAuthor {
		fmt.Fprintf(&b, "%s: %s\n", trailerAuthor, author)
	}
	if logDate {
		fmt.Fprintf(&b, "%s: %s\n", trailerDate, date.UTC().Format("2006-01-02T15:04:05.000000Z"))
	}
	fmt.Fprintf(&b, "%s: %d\n", trailerRev, sourceRev)

	return b.String()
}

// ParseSourceRev extracts the originating source revision from a replayed
// commit's log message. The trailer is accepted anywhere in the message
// (hooks may append text after it); the last occurrence wins.
func ParseSourceRev(message string) (int64, bool) {
	matches := trailerRevRe.FindAllStringSubmatch(message, -1)
	if len(matches) == 0 {
		return 0, false
	}

	rev, err := strconv.ParseInt(matches[len(matches)-1][1], 10, 64)
	if err != nil {
		return 0, false
	}

	return rev, true
}
