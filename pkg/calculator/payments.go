package calculator

import (
	"sort"
	"strings"

	"wc-analytics/pkg/models"
)

// Combined card bucket.
const (
	CombinedCardsMethod = "all_credit_cards_combined"
	CombinedCardsTitle  = "Credit / Debit Card (All Types)"
)

// DefaultCardKeywords are matched case-insensitively against gateway titles and ids.
var DefaultCardKeywords = []string{
	"credit",
	"debit",
	"amex",
	"american express",
	"american_express",
	"payplug",
	"stripe",
	"carta di credito",
	"carta_di_credito",
}

// GatewayTitles resolves a payment gateway id to its display title.
type GatewayTitles interface {
	Title(gatewayID string) string
}

// TitleMap is a static gateway registry; unknown ids resolve to themselves.
type TitleMap map[string]string

// Title implements GatewayTitles.
func (m TitleMap) Title(gatewayID string) string {
	if gatewayID == CombinedCardsMethod {
		return CombinedCardsTitle
	}
	if t, ok := m[gatewayID]; ok && t != "" {
		return t
	}
	return gatewayID
}

// NormalizePaymentMethods folds card gateways into one combined entry, merges entries
// sharing a display title, and sorts by count descending keeping encounter order on ties.
func NormalizePaymentMethods(raw []models.PaymentMethodCount, titles GatewayTitles, keywords []string) []models.PaymentMethodCount {
	if titles == nil {
		titles = TitleMap{}
	}
	if keywords == nil {
		keywords = DefaultCardKeywords
	}

	var (
		out    = []models.PaymentMethodCount{}
		byName = map[string]int{}
		cards  int
	)
	for _, pm := range raw {
		title := titles.Title(pm.Method)
		if isCardGateway(title, pm.Method, keywords) {
			cards += pm.Count
			continue
		}
		if i, ok := byName[title]; ok {
			out[i].Count += pm.Count
			continue
		}
		byName[title] = len(out)
		out = append(out, models.PaymentMethodCount{Method: pm.Method, Title: title, Count: pm.Count})
	}
	if cards > 0 {
		out = append(out, models.PaymentMethodCount{Method: CombinedCardsMethod, Title: CombinedCardsTitle, Count: cards})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

func isCardGateway(title, id string, keywords []string) bool {
	title = strings.ToLower(title)
	id = strings.ToLower(id)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if strings.Contains(title, kw) || strings.Contains(id, kw) {
			return true
		}
	}
	return false
}
