package audit

import "strings"

const redactedPlaceholder = "[REDACTED]"

// Credential material never reaches the audit store, for any action.
// Matching is by substring on the lowercased key.
var redactedKeyFragments = []string{
	"pin",
	"password",
	"passwd",
	"secret",
	"token",
	"authorization",
	"credential",
}

// Historical request layers spelled "amount paid" half a dozen ways. For
// financial actions all of them collapse to one canonical key so reporting
// never has to know about the synonyms.
const canonicalAmountKey = "amount_paid"

var amountSynonyms = map[string]struct{}{
	"amount":         {},
	"amountpaid":     {},
	"amount_paid":    {},
	"paidamount":     {},
	"paid_amount":    {},
	"paymentamount":  {},
	"payment_amount": {},
}

var financialActions = map[string]struct{}{
	ActionCreateMember:   {},
	ActionProcessRenewal: {},
}

// IsFinancial reports whether the action gets amount canonicalization.
func IsFinancial(action string) bool {
	_, ok := financialActions[action]
	return ok
}

// Sanitize deep-copies the payload, redacting credential-like fields
// unconditionally and, for financial actions, folding amount-field synonyms
// into the canonical schema. The input map is never modified.
func Sanitize(action string, data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	return sanitizeMap(IsFinancial(action), data)
}

func sanitizeMap(financial bool, data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for key, value := range data {
		if isRedactedKey(key) {
			out[key] = redactedPlaceholder
			continue
		}
		outKey := key
		if financial {
			if _, ok := amountSynonyms[normalizeKey(key)]; ok {
				outKey = canonicalAmountKey
			}
		}
		out[outKey] = sanitizeValue(financial, value)
	}
	return out
}

func sanitizeValue(financial bool, value any) any {
	switch v := value.(type) {
	case map[string]any:
		return sanitizeMap(financial, v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = sanitizeValue(financial, item)
		}
		return out
	default:
		return v
	}
}

func isRedactedKey(key string) bool {
	lower := strings.ToLower(key)
	for _, fragment := range redactedKeyFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.ReplaceAll(strings.ReplaceAll(key, "-", "_"), " ", "_"))
}
