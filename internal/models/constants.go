package models

const (
	AnswerSystemPrompt = `You are a helpful assistant answering questions about an uploaded document. Answer only from the provided context. If the context does not contain the answer, say that the document does not cover it. Do not use outside knowledge.`

	AnswerPromptTemplate = `Context:
%s
Question: %s`
)
