package order

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// numberAlphabet excludes ambiguous characters (0/O, 1/I/L) so order numbers
// can be read back over the phone.
const numberAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// NewNumber generates a human-readable order number such as
// "POS-20250829-K7MW4Q". Uniqueness is enforced by the storage constraint,
// not by generation: callers must retry on ErrNumberTaken.
func NewNumber(now time.Time) string {
	u := uuid.New()
	n := binary.BigEndian.Uint64(u[:8])

	var sb strings.Builder
	for range 6 {
		sb.WriteByte(numberAlphabet[n%uint64(len(numberAlphabet))])
		n /= uint64(len(numberAlphabet))
	}

	return fmt.Sprintf("POS-%s-%s", now.Format("20060102"), sb.String())
}
