package endpoint

import (
	"slices"
	"strings"

	"github.com/neria/manager/internal/model"
	"github.com/neria/manager/internal/pkg/redact"
)

const responseRules = "\n\nREGLAS DE RESPUESTA:\n" +
	"- Responde directamente con los datos de ENDPOINT_DATA.\n" +
	"- No anuncies búsquedas ni pidas confirmación.\n" +
	"- Si faltan datos, indícalo de forma concisa y sugiere un criterio alternativo."

// BuildSystemPrompt assembles the system message of a chat turn: the service
// prompt, the endpoint catalogue or the prompt-only rule, and the fetched
// data when there is any. Sensitive header values are masked.
func BuildSystemPrompt(prompt, serviceCode, fallbackBaseURL string, endpoints []model.TenantServiceEndpoint, contextText string) string {
	var sb strings.Builder
	if p := strings.TrimSpace(prompt); p != "" {
		sb.WriteString(p)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Contexto del servicio: ")
	sb.WriteString(serviceCode)
	sb.WriteString(".\n")

	enabled := slices.DeleteFunc(slices.Clone(endpoints), func(ep model.TenantServiceEndpoint) bool { return !ep.Enabled })
	if len(enabled) == 0 {
		sb.WriteString("No hay endpoints disponibles. Responde usando el contexto del chat.\n")
		sb.WriteString("Regla obligatoria: responde únicamente con información contenida en este prompt. ")
		sb.WriteString("Si la pregunta no está cubierta por este contexto, responde exactamente: ")
		sb.WriteString("\"" + DefaultRefusal + "\"")
	} else {
		sb.WriteString("Dispones de endpoints para consultar datos. ")
		sb.WriteString("Si necesitas información externa, usa estos endpoints como fuente.\n")
		sb.WriteString("ENDPOINTS:\n")
		for _, ep := range enabled {
			writeEndpointLine(&sb, ep, fallbackBaseURL)
		}
		sb.WriteString("Instrucciones: Si la respuesta depende de datos externos, consulta primero el endpoint más relevante. ")
		sb.WriteString("Si no hay datos suficientes, responde exactamente: \"" + DefaultRefusal + "\"")
	}

	out := strings.TrimSpace(sb.String())
	if strings.TrimSpace(contextText) != "" {
		out += "\n\nENDPOINT_DATA:\n" + contextText + responseRules
	}
	return out
}

func writeEndpointLine(sb *strings.Builder, ep model.TenantServiceEndpoint, fallbackBaseURL string) {
	method := ep.Method
	if method == "" {
		method = "GET"
	}
	slug := ep.Slug
	if slug == "" {
		slug = "n/a"
	}
	base := ep.BaseURL
	if strings.TrimSpace(base) == "" {
		base = fallbackBaseURL
	}
	sb.WriteString("- " + method + " " + ep.Path + " (slug=" + slug + ", baseUrl=" + base + ")")
	if len(ep.Headers) > 0 {
		keys := make([]string, 0, len(ep.Headers))
		for k := range ep.Headers {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		pairs := make([]string, len(keys))
		for i, k := range keys {
			v := ep.Headers[k]
			if redact.IsSensitiveKey(k) {
				v = redact.Mask
			}
			pairs[i] = k + ":" + v
		}
		sb.WriteString(" headers=[" + strings.Join(pairs, ", ") + "]")
	}
	sb.WriteString("\n")
}
