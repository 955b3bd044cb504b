package spreadsheet

import (
	"fmt"
	"strconv"
	"strings"
)

// maxColumnLetters bounds labels to A..ZZZ, which covers every column a grid
// can be configured with
const maxColumnLetters = 3

// ColumnLabel converts a zero-based column index to its letter label
// (0 -> A, 25 -> Z, 26 -> AA)
func ColumnLabel(col int) string {
	col++ // 1-based
	result := ""
	for col > 0 {
		col--
		result = string(rune('A'+col%26)) + result
		col /= 26
	}
	return result
}

// FormatAddress renders an address as an A1-style label
func FormatAddress(addr Address) string {
	if addr.Row < 0 || addr.Column < 0 {
		return fmt.Sprintf("R%dC%d", addr.Row, addr.Column)
	}
	return ColumnLabel(addr.Column) + strconv.Itoa(addr.Row+1)
}

// ParseAddress parses an A1-style label into a zero-based address. it only
// checks syntax; bounds are the grid's concern.
func ParseAddress(label string) (Address, error) {
	split := 0
	for split < len(label) && label[split] >= 'A' && label[split] <= 'Z' {
		split++
	}
	letters, digits := label[:split], label[split:]

	if letters == "" || len(letters) > maxColumnLetters {
		return Address{}, NewApplicationError(InvalidArgument,
			fmt.Sprintf("invalid cell label %q: expected 1-%d column letters", label, maxColumnLetters))
	}
	if digits == "" || digits[0] == '0' {
		return Address{}, NewApplicationError(InvalidArgument,
			fmt.Sprintf("invalid cell label %q: expected a row number starting at 1", label))
	}
	row, err := strconv.Atoi(digits)
	if err != nil || row < 1 {
		return Address{}, NewApplicationError(InvalidArgument,
			fmt.Sprintf("invalid cell label %q: bad row number", label))
	}

	col := 0
	for _, ch := range letters {
		col = col*26 + int(ch-'A'+1)
	}

	return Address{Row: row - 1, Column: col - 1}, nil
}

// ParseRange parses a range label such as "A1:C3"
func ParseRange(label string) (RangeAddress, error) {
	startLabel, endLabel, found := strings.Cut(label, ":")
	if !found {
		return RangeAddress{}, NewApplicationError(InvalidArgument,
			fmt.Sprintf("invalid range label %q: expected START:END", label))
	}
	start, err := ParseAddress(startLabel)
	if err != nil {
		return RangeAddress{}, err
	}
	end, err := ParseAddress(endLabel)
	if err != nil {
		return RangeAddress{}, err
	}
	return NewRange(start, end), nil
}

// MustParseAddress is ParseAddress for labels known at compile time. it
// panics on a malformed label.
func MustParseAddress(label string) Address {
	addr, err := ParseAddress(label)
	if err != nil {
		panic(err)
	}
	return addr
}

// MustParseRange is ParseRange for labels known at compile time
func MustParseRange(label string) RangeAddress {
	r, err := ParseRange(label)
	if err != nil {
		panic(err)
	}
	return r
}
