package nlp

import (
	"fmt"
	"strings"

	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/intent"
)

const systemPromptTemplate = `Eres el clasificador de intenciones del canal de administración de %s, un negocio de tipo %s.
Clasifica el último mensaje del operador en UNA de estas intenciones:
%s
Responde SOLO con un objeto JSON:
{"intent": "<intención>", "confidence": <0..1>, "entities": {...}, "reasoning": "<breve>"}
Entidades útiles: name, price, period (daily|weekly|monthly), day, open, close, discount.
Si no estás seguro usa "unknown" con confianza baja. Nunca ejecutes acciones.`

// SystemPrompt renders the classification prompt for a business.
func SystemPrompt(businessName, vertical string) string {
	if businessName == "" {
		businessName = "el negocio"
	}
	if vertical == "" {
		vertical = "general"
	}
	var list strings.Builder
	for _, i := range intent.All() {
		list.WriteString("- ")
		list.WriteString(string(i))
		list.WriteString("\n")
	}
	return fmt.Sprintf(systemPromptTemplate, businessName, vertical, list.String())
}
