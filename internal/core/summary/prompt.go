package summary

import "strings"

// BuildSummaryPrompt はドキュメント全文の要約を依頼するプロンプトを構築する
func BuildSummaryPrompt(documentText string) string {
	var sb strings.Builder

	sb.WriteString("Please provide a concise and well-structured summary of the following document.\n")
	sb.WriteString("Focus on the key points, objectives, and conclusions.\n\n")
	sb.WriteString("Document: ")
	sb.WriteString(documentText)
	sb.WriteString("\n")

	return sb.String()
}

// BuildRevisionPrompt は現在の要約をユーザーの指示に従って書き換えるプロンプトを構築する
func BuildRevisionPrompt(currentSummary, request string) string {
	var sb strings.Builder

	sb.WriteString("You are an expert editor. Your task is to modify the 'Current Summary' based on the 'User's Request'.\n")
	sb.WriteString("Produce only the complete, new, modified summary as your output. Do not add any conversational text\n")
	sb.WriteString("or phrases like \"Here is the updated summary:\".\n\n")
	sb.WriteString("Current Summary: ")
	sb.WriteString(currentSummary)
	sb.WriteString("\n\n")
	sb.WriteString("User's Request: ")
	sb.WriteString(request)
	sb.WriteString("\n")

	return sb.String()
}
