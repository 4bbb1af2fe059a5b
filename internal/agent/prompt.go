package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/insightbot/insightbot/internal/tools"
)

const maxPromptSamples = 15

// BuildSystemPrompt assembles the assistant's system prompt around the
// products schema, seeded with real company and brand names so the model
// writes matching WHERE clauses. A nil or unreachable products database
// degrades to a prompt without samples.
func BuildSystemPrompt(ctx context.Context, sqlTool *tools.SQLQueryTool) string {
	companies := "None"
	brands := "None"
	if sqlTool != nil {
		if list := sqlTool.QueryAsList(ctx, "SELECT DISTINCT CompanyName FROM quotesresponses"); len(list) > 0 {
			companies = sampleList(list)
		}
		if list := sqlTool.QueryAsList(ctx, "SELECT DISTINCT EQBrand FROM quotesresponses"); len(list) > 0 {
			brands = sampleList(list)
		}
	}

	return fmt.Sprintf(`You are a helpful assistant for pricing used test and measurement equipment.

**Your Task:**
- Answer user questions about the quotes database
- Only use the execute_sql_query tool when the user asks for specific data from the database
- Use web_search_tool only when the user asks for current prices or external information
- After web_search_tool, verify the returned URLs with check_urls_status before citing them
- Always respond in natural language

**Database Info:**
- Table: quotesresponses
- Columns: QID, CompanyName, Price (in dollar $), EQBrand, EQModel
- Sample companies: %s
- Sample brands: %s

**Guidelines:**
- For greetings and general questions, respond directly without using tools
- Only query the database when the user asks for specific data
- Use LOWER() for string comparisons in SQL
- Keep responses concise and helpful

**Examples:**
- "Hello" -> respond directly with a greeting
- "What companies are in the database?" -> use execute_sql_query
- "Current price of a DMM6500" -> use web_search_tool`, companies, brands)
}

func sampleList(values []string) string {
	if len(values) > maxPromptSamples {
		values = values[:maxPromptSamples]
	}
	return strings.Join(values, ", ")
}
