package models

const (
	ThinkTag         = `(?s)<think>.*?</think>`
	ContextSeparator = "\n\n"
	DefaultTopK      = 4
)

var (
	// QAPromptTemplate is rendered with langchaingo go-template formatting
	QAPromptTemplate = `Use the following pieces of context to answer the question at the end.
If you don't know the answer, just say that you don't know, don't try to make up an answer.
Use three sentences maximum and keep the answer as concise as possible.

{{.context}}
Question: {{.question}}
Helpful Answer:`

	// ChunkSeparators are tried in order, largest unit first
	ChunkSeparators = []string{"\n\n", "\n", ". ", " ", ""}
)
