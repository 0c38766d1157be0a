package model

import "fmt"

// ReadFilter restricts queries by read state.
type ReadFilter string

const (
	ReadFilterAll    ReadFilter = "all"
	ReadFilterRead   ReadFilter = "read"
	ReadFilterUnread ReadFilter = "unread"
)

// ParseReadFilter accepts "", "all", "read" and "unread". Empty means all.
func ParseReadFilter(s string) (ReadFilter, error) {
	switch ReadFilter(s) {
	case "", ReadFilterAll:
		return ReadFilterAll, nil
	case ReadFilterRead:
		return ReadFilterRead, nil
	case ReadFilterUnread:
		return ReadFilterUnread, nil
	}
	return "", fmt.Errorf("%w: unknown read filter %q", ErrInvalidArgument, s)
}

// MessageQuery selects active messages. Category and Sender combine when both
// are set.
type MessageQuery struct {
	Read     ReadFilter
	Category *Category
	Sender   string
	Limit    int
	Offset   int
}
