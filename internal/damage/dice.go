package damage

import (
	"fmt"
	"strconv"
	"strings"
)

// Expectation evaluates the expected value of a dice characteristic as
// printed on a datasheet: "4", "D6", "2D3", "D6+2", "2D6+1".
func Expectation(expr string) (float64, error) {
	text := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(expr), " ", ""))
	if text == "" {
		return 0, fmt.Errorf("empty dice expression")
	}

	var flat float64
	if plus := strings.IndexByte(text, '+'); plus >= 0 {
		bonus, err := strconv.Atoi(text[plus+1:])
		if err != nil {
			return 0, fmt.Errorf("dice expression %q: bad modifier", expr)
		}
		flat = float64(bonus)
		text = text[:plus]
	}

	d := strings.IndexByte(text, 'D')
	if d < 0 {
		value, err := strconv.Atoi(text)
		if err != nil {
			return 0, fmt.Errorf("dice expression %q is not a number", expr)
		}
		return float64(value) + flat, nil
	}

	count := 1
	if d > 0 {
		parsed, err := strconv.Atoi(text[:d])
		if err != nil {
			return 0, fmt.Errorf("dice expression %q: bad dice count", expr)
		}
		count = parsed
	}
	sides, err := strconv.Atoi(text[d+1:])
	if err != nil || sides < 2 {
		return 0, fmt.Errorf("dice expression %q: bad die size", expr)
	}
	return float64(count)*float64(sides+1)/2 + flat, nil
}
