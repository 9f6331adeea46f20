package damage

import (
	"strconv"
	"strings"
)

// ApplyAbilities folds printed weapon ability strings into profile flags.
// Recognized forms: "TORRENT", "TWIN-LINKED", "LETHAL HITS",
// "DEVASTATING WOUNDS", "BLAST", "SUSTAINED HITS 1", "SUSTAINED HITS D3",
// "RAPID FIRE 2", "ANTI-INFANTRY 4+". Unrecognized abilities are ignored;
// they affect play but not the expected-value math.
func (p *WeaponProfile) ApplyAbilities(abilities []string) error {
	for _, raw := range abilities {
		ability := strings.ToUpper(strings.TrimSpace(raw))
		switch {
		case ability == "TORRENT":
			p.Torrent = true
		case ability == "TWIN-LINKED" || ability == "TWIN LINKED":
			p.TwinLinked = true
		case ability == "LETHAL HITS":
			p.LethalHits = true
		case ability == "DEVASTATING WOUNDS":
			p.DevastatingWounds = true
		case ability == "BLAST":
			p.Blast = true
		case strings.HasPrefix(ability, "SUSTAINED HITS"):
			value := strings.TrimSpace(strings.TrimPrefix(ability, "SUSTAINED HITS"))
			if value == "" {
				value = "1"
			}
			extra, err := Expectation(value)
			if err != nil {
				return err
			}
			p.SustainedHits = extra
		case strings.HasPrefix(ability, "RAPID FIRE"):
			value := strings.TrimSpace(strings.TrimPrefix(ability, "RAPID FIRE"))
			extra, err := strconv.Atoi(value)
			if err != nil {
				extra = 1
			}
			p.RapidFire = extra
		case strings.HasPrefix(ability, "ANTI-"):
			rest := strings.TrimPrefix(ability, "ANTI-")
			fields := strings.Fields(rest)
			if len(fields) != 2 {
				continue
			}
			target, err := strconv.Atoi(strings.TrimSuffix(fields[1], "+"))
			if err != nil || target < 2 || target > 6 {
				continue
			}
			p.AntiKeyword = fields[0]
			p.AntiTarget = target
		}
	}
	return nil
}
