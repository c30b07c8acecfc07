package insight

import (
	"encoding/json"
	"fmt"
	"strings"

	"gastos/internal/ports"
)

const promptTemplate = `Analiza mis gastos de %s y dame un consejo financiero corto y motivador en español.
Total gastado: %s€.
Desglose por categorías: %s.
Sé breve, directo y usa un tono profesional pero amable.`

// BuildPrompt renders the Spanish prompt sent to the language model. The
// category map is embedded as a JSON object of plain numbers.
func BuildPrompt(req ports.InsightRequest) string {
	byCategory := make(map[string]json.Number, len(req.ByCategory))
	for code, amount := range req.ByCategory {
		byCategory[code] = json.Number(amount.String())
	}
	summary, err := json.Marshal(byCategory)
	if err != nil {
		summary = []byte("{}")
	}

	month := "este mes"
	if req.Month.Validate() == nil {
		month = fmt.Sprintf("%s de %d", strings.ToLower(req.Month.Label()), req.Month.Year)
	}

	return fmt.Sprintf(promptTemplate, month, req.Total.String(), summary)
}
