package export

import (
	"context"
	"fmt"

	"peraturan/api/internal/store"
)

// DataStore defines the interface for data access
type DataStore interface {
	GetWork(ctx context.Context, workID int64) (store.Work, error)
	ListNodesByWork(ctx context.Context, workID int64) ([]store.DocumentNode, error)
}

// Service renders works into downloadable PDF files.
type Service struct {
	store DataStore
}

func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// ExportWork renders the full text of a work as a PDF.
func (s *Service) ExportWork(ctx context.Context, workID int64) (*Result, error) {
	work, err := s.store.GetWork(ctx, workID)
	if err != nil {
		return nil, fmt.Errorf("load work %d: %w", workID, err)
	}

	nodes, err := s.store.ListNodesByWork(ctx, workID)
	if err != nil {
		return nil, fmt.Errorf("load nodes for work %d: %w", workID, err)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: work %d has no content", ErrContentUnavailable, workID)
	}

	data := TemplateData{
		Title:       work.Title,
		WorkType:    work.WorkType,
		Number:      work.Number,
		Year:        work.Year,
		Status:      work.Status,
		CitationURI: work.CitationURI,
		UpdatedAt:   work.UpdatedAt,
		Sections:    buildSections(nodes),
	}

	html, err := RenderWorkHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render work html: %w", err)
	}

	return renderPDF(ctx, html, work.Title)
}

// Indonesian display labels per structural node kind.
var nodeLabels = map[string]string{
	"bab":              "BAB",
	"bagian":           "Bagian",
	"paragraf":         "Paragraf",
	"pasal":            "Pasal",
	"ayat":             "Ayat",
	"penjelasan_umum":  "Penjelasan Umum",
	"penjelasan_pasal": "Penjelasan Pasal",
	"pembukaan":        "Pembukaan",
	"aturan_peralihan": "Aturan Peralihan",
}

func buildSections(nodes []store.DocumentNode) []TemplateSection {
	depthByID := make(map[int64]int, len(nodes))
	sections := make([]TemplateSection, 0, len(nodes))
	for _, node := range nodes {
		depth := 0
		if node.ParentID != nil {
			depth = depthByID[*node.ParentID] + 1
		}
		depthByID[node.ID] = depth

		label := nodeLabels[node.NodeType]
		number := node.Number
		if label != "" && number != "" {
			number = fmt.Sprintf("%s %s", label, number)
		} else if label != "" {
			number = label
		}
		// konten_bebas nodes render as plain paragraphs without a label.
		if node.NodeType == "konten_bebas" {
			number = ""
		}

		sections = append(sections, TemplateSection{
			NodeType: node.NodeType,
			Number:   number,
			Heading:  node.Heading,
			Content:  node.ContentText,
			Depth:    depth,
		})
	}
	return sections
}
