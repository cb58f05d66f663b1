package usecase

import (
	"strings"

	"github.com/kirillkom/askmydocs/internal/core/domain"
)

func composePrompt(question string, chunks []domain.RetrievalResult) string {
	var b strings.Builder
	b.WriteString("You are a helpful assistant. Answer the question using ONLY the context below. ")
	b.WriteString(`If the context doesn't contain the answer, say "I don't know." `)
	b.WriteString("Provide a concise answer and cite sources as [source].\n\n")
	b.WriteString("Context:\n")
	for i, chunk := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("[")
		b.WriteString(chunk.Source)
		b.WriteString("] ")
		b.WriteString(chunk.Text)
	}
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\nAnswer:")
	return b.String()
}
