package prompt

// Prompt identifiers used by the question-answering pipeline.
const (
	IDRequirements   = "qa.requirements"
	IDAnswerGrounded = "qa.answer_grounded"
	IDAnswerGeneral  = "qa.answer_general"
)

const requirementsSystem = `You are a financial research assistant. Decide which SEC filing data is needed to answer a user's question about a public company.

Available filing types:
- Form 4: insider transactions (non-derivative and derivative tables).
- 10-K: annual reports, stored per fiscal year and split into these sections:
  item_1 (Business), item_1a (Risk Factors), item_1b (Unresolved Staff Comments),
  item_2 (Properties), item_3 (Legal Proceedings), item_4 (Mine Safety Disclosures),
  item_5 (Market for Registrant's Common Equity), item_6 (Selected Financial Data),
  item_7 (Management's Discussion and Analysis), item_7a (Quantitative and Qualitative Disclosures About Market Risk),
  item_8 (Financial Statements and Supplementary Data), item_8a (Controls and Procedures).

Respond with ONLY a JSON object, no prose and no code fences:
{"need_form4": true|false, "need_10k_years": [YYYY, ...], "need_10k_items": ["item_7", ...], "reason": "one sentence"}`

const requirementsUser = `Ticker: {{.Ticker}}
Question: {{.Question}}
Current year: {{.CurrentYear}}

Which filings and 10-K sections are needed? Prefer the most recent fiscal years unless the question names specific years.`

const answerGroundedSystem = `You are a financial analyst answering questions from SEC filings.
Use ONLY the filing data provided in the context. Cite the filing (type, fiscal year or report date) for every figure you quote.
If the provided data does not contain the answer, say so plainly instead of guessing.
Answer in Markdown.`

const answerGeneralSystem = `You are a financial analyst. No filing data was found for this question.
Answer from general knowledge, and clearly flag that specific figures could not be verified against the company's filings.
Do not invent precise numbers. Answer in Markdown.`

const answerUser = `Ticker: {{.Ticker}}
Question: {{.Question}}

{{.Context}}`

func builtinPrompts() []*PromptTemplate {
	return []*PromptTemplate{
		{
			ID:             IDRequirements,
			Name:           "Filing requirements",
			Category:       "qa",
			Description:    "Stage 1: choose Form 4 / 10-K years / 10-K sections for a question",
			SystemPrompt:   requirementsSystem,
			UserPromptTmpl: requirementsUser,
			Variables: []PromptVariable{
				{Name: "Ticker", Type: "string", Required: true},
				{Name: "Question", Type: "string", Required: true},
				{Name: "CurrentYear", Type: "int", Required: true},
			},
			Version: "1",
		},
		{
			ID:             IDAnswerGrounded,
			Name:           "Grounded answer",
			Category:       "qa",
			Description:    "Stage 2: answer strictly from the supplied filing context",
			SystemPrompt:   answerGroundedSystem,
			UserPromptTmpl: answerUser,
			Variables:      answerVariables(),
			Version:        "1",
		},
		{
			ID:             IDAnswerGeneral,
			Name:           "General-knowledge answer",
			Category:       "qa",
			Description:    "Stage 2: no filing data found; answer from general knowledge and flag gaps",
			SystemPrompt:   answerGeneralSystem,
			UserPromptTmpl: answerUser,
			Variables:      answerVariables(),
			Version:        "1",
		},
	}
}

func answerVariables() []PromptVariable {
	return []PromptVariable{
		{Name: "Ticker", Type: "string", Required: true},
		{Name: "Question", Type: "string", Required: true},
		{Name: "Context", Type: "string", Required: true},
	}
}
