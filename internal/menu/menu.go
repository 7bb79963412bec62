// Package menu builds the achievement menu: progress, tier colour and the
// list of unlocked milestones for one visitor.
package menu

import (
	"math"

	"communitysite/internal/milestone"
)

type Item struct {
	ImageKey string `json:"image_key"`
	Icon     string `json:"icon"`
	Title    string `json:"title"`
	Asset    string `json:"asset"`
}

type View struct {
	Title         string `json:"title"`
	ProgressLabel string `json:"progress_label"`
	Unlocked      int    `json:"unlocked"`
	Total         int    `json:"total"`
	Percent       int    `json:"percent"`
	Tier          int    `json:"tier"`
	Color         string `json:"color"`
	Items         []Item `json:"items"`
	EmptyText     string `json:"empty_text,omitempty"`
	LoginText     string `json:"login_text,omitempty"`
	LoginURL      string `json:"login_url,omitempty"`
}

var tierColors = [...]string{"", "#ef4444", "#f59e0b", "#3b82f6", "#22c55e"}

// Tier maps a progress fraction to 1..4: up to 25%, 50%, 75% and above.
func Tier(fraction float64) int {
	switch {
	case fraction <= 0.25:
		return 1
	case fraction <= 0.50:
		return 2
	case fraction <= 0.75:
		return 3
	default:
		return 4
	}
}

func TierColor(tier int) string {
	if tier < 1 || tier >= len(tierColors) {
		return tierColors[1]
	}
	return tierColors[tier]
}

// Build renders the menu. Ids missing from the catalog are skipped.
// linked hides the login prompt for visitors already tied to an account.
func Build(catalog *milestone.Catalog, unlockedIDs []string, locale string, translate func(string) string, linked bool) View {
	locale = milestone.NormalizeLocale(locale)
	items := make([]Item, 0, len(unlockedIDs))
	seen := make(map[string]struct{}, len(unlockedIDs))
	for _, id := range unlockedIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		m, ok := catalog.Lookup(id)
		if !ok {
			continue
		}
		items = append(items, Item{
			ImageKey: m.ImageKey,
			Icon:     catalog.IconFor(id),
			Title:    translate("achievements." + m.ImageKey),
			Asset:    milestone.AssetPath(locale, m.ImageKey),
		})
	}

	total := catalog.Len()
	fraction := 0.0
	if total > 0 {
		fraction = float64(len(items)) / float64(total)
	}
	tier := Tier(fraction)
	v := View{
		Title:         translate("menu.title"),
		ProgressLabel: translate("menu.progress"),
		Unlocked:      len(items),
		Total:         total,
		Percent:       int(math.Round(fraction * 100)),
		Tier:          tier,
		Color:         TierColor(tier),
		Items:         items,
	}
	if len(items) == 0 {
		v.EmptyText = translate("menu.empty")
	}
	if !linked {
		v.LoginText = translate("menu.login")
		v.LoginURL = "/" + locale + "/login"
	}
	return v
}
