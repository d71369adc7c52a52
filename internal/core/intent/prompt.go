package intent

import "strings"

// BuildClassificationPrompt は発話の意図を JSON で返させるプロンプトを構築する
func BuildClassificationPrompt(utterance string) string {
	var sb strings.Builder

	sb.WriteString("You are an expert classifier. Your job is to determine if the user wants to:\n")
	sb.WriteString("    1. Ask a question about a document (intent: \"question\").\n")
	sb.WriteString("    2. Request a modification to a document summary (intent: \"modification\").\n\n")

	sb.WriteString("Examples:\n")
	sb.WriteString("- \"what is the budget?\" -> \"question\"\n")
	sb.WriteString("- \"explain the main points\" -> \"question\"\n")
	sb.WriteString("- \"change the date to December 25th\" -> \"modification\"\n")
	sb.WriteString("- \"add a clause about termination\" -> \"modification\"\n\n")

	sb.WriteString("Based on the following query: \"")
	sb.WriteString(utterance)
	sb.WriteString("\"\n\n")

	sb.WriteString("Return your decision ONLY as a JSON object: {\"intent\": \"question\" or \"modification\"}\n")
	sb.WriteString("STRICTLY follow the JSON structure. Do not include any other text or explanations.\n")

	return sb.String()
}
