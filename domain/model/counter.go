package model

import (
	"fmt"
	"strconv"
	"strings"
)

// QuestionCounter is the name of the counter row used for display IDs.
const QuestionCounter = "questions"

type Counter struct {
	Name  string `gorm:"type:varchar(50);primary_key"`
	Count int64
}

// FormatDisplayID formats n as "#" followed by at least four zero padded digits.
func FormatDisplayID(n int64) string {
	return fmt.Sprintf("#%04d", n)
}

// ParseDisplayID returns the number behind a display ID, or 0 when id is not one.
func ParseDisplayID(id string) int64 {
	n, err := strconv.ParseInt(strings.TrimPrefix(id, "#"), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
