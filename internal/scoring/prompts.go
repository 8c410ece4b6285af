package scoring

import "fmt"

// JudgePrompt is the system prompt for the answer-correctness judge.
const JudgePrompt = `You are an evaluation judge. Evaluate whether the actual response correctly and completely matches the expected response.

Score from 0.0 to 1.0, where 1.0 means the actual response fully conveys the information of the expected response and 0.0 means it is wrong or unrelated. A correct answer is not necessarily identical to the expected answer.

Return STRICT JSON only:
{"score": <float between 0 and 1>, "reason": "<one sentence>"}`

// GroundingPrompt is the system prompt for the hallucination and
// traceability judge.
const GroundingPrompt = "You are an evaluation judge. " +
	"Assess whether the assistant answer is grounded in the provided reference. " +
	"Return STRICT JSON only."

func judgePayload(prompt, expected, actual string) string {
	return fmt.Sprintf(`PROMPT:
%s

EXPECTED RESPONSE:
%s

ACTUAL RESPONSE:
%s`, prompt, expected, actual)
}

func groundingPayload(prompt, expected, answer string) string {
	return fmt.Sprintf(`PROMPT:
%s

EXPECTED RESPONSE:
%s

MODEL ANSWER:
%s

Return JSON only with:
- hallucination_success (boolean)
- hallucination_reason (string)
- traceability_geval_success (boolean)
- traceability_geval_reason (string)`, prompt, expected, answer)
}
