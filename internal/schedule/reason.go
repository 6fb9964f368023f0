package schedule

import (
	"fmt"
	"strings"
)

// Reason classifies why a date was recommended.
type Reason int

const (
	GenericDay Reason = iota
	FullMoonDay
	NumerologyDay
)

// ReasonFor classifies a day of month.
func ReasonFor(day int) Reason {
	switch day {
	case 15:
		return FullMoonDay
	case 1, 8, 18, 28:
		return NumerologyDay
	default:
		return GenericDay
	}
}

func (r Reason) String() string {
	switch r {
	case FullMoonDay:
		return "full_moon_day"
	case NumerologyDay:
		return "numerology_day"
	default:
		return "generic_day"
	}
}

// Description is the source-locale text shown next to a date.
func (r Reason) Description() string {
	switch r {
	case FullMoonDay:
		return "满月吉日，阴阳最和"
	case NumerologyDay:
		return "数理吉日，宜祭祀"
	default:
		return "五行相生之日，宜焚烧"
	}
}

func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Reason) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "full_moon_day":
		*r = FullMoonDay
	case "numerology_day":
		*r = NumerologyDay
	case "generic_day":
		*r = GenericDay
	default:
		return fmt.Errorf("unknown reason %q", text)
	}
	return nil
}

// Explanation renders the source-locale narrative for an outcome.
func Explanation(elapsed, quantity int, hasSchedule bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "自离世之日至今，已历%d个宠物月（合人年%d载）。", elapsed, elapsed)
	b.WriteString("通过焚烧，助宠物轮回，守护阴阳平衡。")
	fmt.Fprintf(&b, "本次建议焚烧数量为%d，取吉数以利往生。", quantity)
	if hasSchedule {
		b.WriteString("所选吉日避冲煞、应五行，可于所列日期行祭。")
	}
	return b.String()
}
