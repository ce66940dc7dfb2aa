package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// VisionOCRPrompt is sent with every rasterized page in the vision tier.
const VisionOCRPrompt = "Transcribe all visible text on this page exactly as written, preserving line breaks and " +
	"reading order. Include headers, footers, tables and handwritten annotations. " +
	"Do not summarize, translate or add commentary. If the page has no text, reply with an empty message."

// BuildDiscoveryPrompt asks for min..max comparable fields over a multi-document sample.
func BuildDiscoveryPrompt(sample string, min, max int) Prompt {
	sys := strings.Join([]string{
		"You are a contracts analyst preparing a comparison table across several contracts.",
		fmt.Sprintf("Propose between %d and %d fields that appear in most of the documents and whose values can be compared side by side.", min, max),
		"Prefer quantitative terms (amounts, rates, fees, durations) and yes/no clauses over narrative ones.",
		"For each field return a snake_case 'key', a precise 'question' that can be answered from one contract alone, and a 'type':",
		"'number' for amounts, rates and percentages; 'integer' for counts and durations in whole units;",
		"'ternary' for yes/no questions; 'category' for a short label from a small set (e.g. issuing entity); 'text' otherwise.",
		"Return ONLY JSON that matches the provided JSON Schema.",
	}, " ")
	return Prompt{
		System: sys,
		User:   "Contract excerpts:\n\n" + sample,
	}
}

// BuildFieldPrompt asks a single field question against retrieved context only.
func BuildFieldPrompt(question, context string) Prompt {
	sys := strings.Join([]string{
		"You answer questions about one contract using ONLY the context provided.",
		"Answer with the value itself, as briefly as possible, with no explanation.",
		"For yes/no questions answer 'yes' or 'no'.",
		"For amounts, rates or durations answer with the number as written in the contract.",
		"If the context does not contain the answer, reply exactly: not found.",
	}, " ")
	var b strings.Builder
	b.WriteString("Context:\n")
	b.WriteString(context)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	return Prompt{System: sys, User: b.String()}
}

// BuildRepairPrompt asks a model to coerce a malformed reply into schema.
func BuildRepairPrompt(schema map[string]any, reply string, verr error) Prompt {
	sys := "You fix malformed JSON. Return ONLY a JSON document that satisfies the JSON Schema. " +
		"Keep every value from the original that fits the schema; drop or reshape whatever does not. Never invent data."
	var b strings.Builder
	b.WriteString("JSON Schema:\n")
	b.WriteString(mustJSON(schema))
	b.WriteString("\n\nOriginal output:\n")
	b.WriteString(truncate(reply, 12000))
	if verr != nil {
		b.WriteString("\n\nValidation error:\n")
		b.WriteString(verr.Error())
	}
	return Prompt{System: sys, User: b.String(), Schema: schema}
}

// BuildEventsPrompt asks for dated obligations and milestones in one contract.
func BuildEventsPrompt(text string) Prompt {
	sys := strings.Join([]string{
		"You extract dated events from a contract: deadlines, payment due dates, renewals, terminations and notice periods.",
		"Only include events with an explicit calendar date, written as YYYY-MM-DD.",
		"For each event give a short 'description', the 'date', and the 'excerpt' of contract text it came from.",
		"If there are no dated events return an empty list.",
		"Return ONLY JSON that matches the provided JSON Schema.",
	}, " ")
	return Prompt{System: sys, User: "Contract text:\n\n" + text}
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
