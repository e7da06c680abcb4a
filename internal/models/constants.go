package models

const (
	MetadataSource  = "source"
	MetadataChunkID = "chunk_id"
	MetadataText    = "text"

	ContextSeparator = "\n\n"
)

var (
	// PromptTemplate is filled with the retrieved context and the user question.
	PromptTemplate = `
Answer the question based only on the context below.

Context:
{context}

Question:
{question}
`
)
