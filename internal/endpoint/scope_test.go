package endpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const scopedPrompt = `Eres el asistente de ventas.
Ámbito permitido: "ventas, facturación, clientes"
Respuesta fuera de ámbito: 'Solo puedo ayudarte con ventas.'`

func TestParseDirectives(t *testing.T) {
	assert.Equal(t, []string{"ventas", "facturación", "clientes"}, ParseScopeKeywords(scopedPrompt))
	assert.Equal(t, "Solo puedo ayudarte con ventas.", ParseOutOfScopeResponse(scopedPrompt))

	assert.Equal(t, []string{"billing", "invoices"}, ParseScopeKeywords("Allowed topics: billing, , invoices"))
	assert.Nil(t, ParseScopeKeywords("Scope:   "))
	assert.Nil(t, ParseScopeKeywords("no directives here"))
	assert.Empty(t, ParseOutOfScopeResponse("Out-of-scope response: \"\""))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "facturacion anos", Normalize("  Facturación AÑOS "))
}

func TestIsOutOfScope(t *testing.T) {
	topics := []string{"ventas", "facturación"}
	assert.False(t, IsOutOfScope("¿Cuál fue la FACTURACION de marzo?", topics))
	assert.False(t, IsOutOfScope("ventas anuales", topics))
	assert.False(t, IsOutOfScope("venta", topics), "token contained in topic")
	assert.True(t, IsOutOfScope("¿Qué tiempo hace mañana?", topics))
	assert.False(t, IsOutOfScope("cualquier cosa", nil))
	assert.False(t, IsOutOfScope("  ", topics))
}
