package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"

	"github.com/zombor/expensomatic/internal/expense"
)

// receiptSchema is what every provider answer must satisfy. Missing or null
// fields fail validation rather than being defaulted.
const receiptSchema = `{
  "type": "object",
  "required": ["amount", "currency", "category", "date"],
  "properties": {
    "amount": {"type": ["number", "string"], "minLength": 1},
    "currency": {"type": "string", "minLength": 1},
    "category": {"type": "string", "minLength": 1},
    "date": {"type": "string", "minLength": 1},
    "description": {"type": "string"}
  }
}`

var receiptJSONSchema = jsonschema.MustCompileString("receipt.json", receiptSchema)

// dateFormats are tried in order; day-first wins over month-first
var dateFormats = []string{
	expense.DateLayout,
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"2 January 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

// buildPrompt is the shared prompt used by all providers
func buildPrompt() string {
	return fmt.Sprintf(`You are analyzing a receipt or invoice. Carefully read all text in the image and extract:

1. **Amount**: the final total, grand total or amount due, as a number only with no currency symbol (e.g. 42.75).
2. **Currency**: the ISO 4217 code of the amount. One of: %s.
3. **Category**: the MOST APPROPRIATE category from: %s.
   If it is food or drink but you cannot clearly tell Breakfast or Lunch, use "Dinner".
4. **Date**: the transaction date in ISO 8601 format (YYYY-MM-DD).
5. **Description**: a few words naming the merchant and what was bought.

Return ONLY valid JSON in this exact format:
{"amount": 12.50, "currency": "GBP", "category": "Lunch", "description": "Pret - sandwich", "date": "2024-09-30"}

Important:
- Do not include any text before or after the JSON
- Do not use markdown code blocks
- If you cannot read the receipt, return {"error": "unreadable"}`,
		strings.Join(expense.SupportedCurrencies(), ", "),
		strings.Join(expense.CategoryNames(), ", "),
	)
}

// extractJSONObject strips markdown fences and surrounding prose
func extractJSONObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return "", fmt.Errorf("%w: no JSON object found in response", ErrMalformed)
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return "", fmt.Errorf("%w: invalid JSON object in response", ErrMalformed)
	}
	return text[startIdx : endIdx+1], nil
}

// parseReceiptJSON validates a provider answer against receiptSchema
func parseReceiptJSON(text string) (*ReceiptData, error) {
	text, err := extractJSONObject(text)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: unmarshaling json: %v", ErrMalformed, err)
	}

	if obj, ok := v.(map[string]any); ok {
		if reason, ok := obj["error"].(string); ok && len(obj) == 1 {
			return nil, fmt.Errorf("%w: %s", ErrRefused, reason)
		}
	}
	if err := receiptJSONSchema.Validate(v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	obj := v.(map[string]any)
	data := &ReceiptData{
		Currency: strings.TrimSpace(obj["currency"].(string)),
		Category: strings.TrimSpace(obj["category"].(string)),
		Date:     strings.TrimSpace(obj["date"].(string)),
	}
	switch amount := obj["amount"].(type) {
	case json.Number:
		data.Amount = amount.String()
	case string:
		data.Amount = strings.TrimSpace(amount)
	}
	if desc, ok := obj["description"].(string); ok {
		data.Description = strings.TrimSpace(desc)
	}
	return data, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ',', ' ', '£', '$', '€', '₹':
			return -1
		}
		return r
	}, s)
	for _, code := range expense.SupportedCurrencies() {
		cleaned = strings.TrimPrefix(strings.TrimSuffix(cleaned, code), code)
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	if amount.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("negative amount %q", s)
	}
	return amount, nil
}

func parseDate(s string) (time.Time, error) {
	for _, format := range dateFormats {
		if d, err := time.Parse(format, s); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// toSuccess converts validated receipt data to the domain record. The bool
// reports whether the category was recognized or fell back to Other.
func toSuccess(data *ReceiptData) (expense.Success, bool, error) {
	amount, err := parseAmount(data.Amount)
	if err != nil {
		return expense.Success{}, false, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	currency, err := expense.ParseCurrency(data.Currency)
	if err != nil {
		return expense.Success{}, false, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	date, err := parseDate(data.Date)
	if err != nil {
		return expense.Success{}, false, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	category, known := expense.CanonicalizeCategory(data.Category)

	return expense.Success{
		Amount:         amount,
		Currency:       currency,
		Category:       category,
		Date:           expense.DateOf(date),
		RawDescription: data.Description,
	}, known, nil
}
