package verify

import (
	"fmt"
	"strings"

	"peraturan/api/internal/store"
)

const (
	siblingRadius     = 3
	siblingTextLimit  = 500
	promptSchemaBlock = `Balas HANYA dengan satu objek JSON berskema berikut, tanpa teks lain:
{
  "decision": "accept" | "accept_with_corrections" | "reject",
  "confidence": 0.0-1.0,
  "reasoning": "penjelasan singkat dalam bahasa Indonesia",
  "corrected_content": "teks final yang benar (wajib diisi jika decision bukan reject)",
  "additional_issues": [{"type": "...", "description": "...", "location": "..."}],
  "parser_feedback": "catatan tentang kualitas teks hasil parsing, jika ada"
}`
)

// buildPrompt composes the review prompt: the document citation, the target
// node's neighborhood truncated to keep prompt size bounded, and the submitted
// change with its stated reason.
func buildPrompt(work store.Work, node store.DocumentNode, siblings []store.DocumentNode, sug store.Suggestion) string {
	var b strings.Builder

	b.WriteString("Anda adalah pemeriksa akurasi teks peraturan perundang-undangan Indonesia.\n")
	b.WriteString("Seorang pengguna mengusulkan koreksi terhadap salah satu bagian dokumen berikut.\n\n")

	fmt.Fprintf(&b, "Dokumen: %s\n", work.Title)
	if work.CitationURI != "" {
		fmt.Fprintf(&b, "Sumber: %s\n", work.CitationURI)
	}
	fmt.Fprintf(&b, "Bagian target: %s %s\n\n", node.NodeType, node.Number)

	b.WriteString("Konteks bagian-bagian di sekitarnya:\n")
	for _, sib := range siblings {
		marker := ""
		if sib.ID == node.ID {
			marker = " [BAGIAN TARGET]"
		}
		fmt.Fprintf(&b, "--- %s %s%s ---\n%s\n", sib.NodeType, sib.Number, marker, truncate(sib.ContentText, siblingTextLimit))
	}

	b.WriteString("\nTeks saat ini pada bagian target:\n")
	b.WriteString(sug.CurrentContent)
	b.WriteString("\n\nTeks yang diusulkan:\n")
	b.WriteString(sug.SuggestedContent)
	if reason := strings.TrimSpace(sug.UserReason); reason != "" {
		b.WriteString("\n\nAlasan pengusul:\n")
		b.WriteString(reason)
	}

	b.WriteString("\n\nNilai apakah usulan tersebut meningkatkan akurasi teks terhadap sumber resminya.\n")
	b.WriteString(promptSchemaBlock)
	return b.String()
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
