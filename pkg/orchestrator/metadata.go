package orchestrator

import (
	"encoding/json"

	"github.com/lokutor-ai/answerflow/pkg/bus"
	"github.com/lokutor-ai/answerflow/pkg/parser"
	"github.com/lokutor-ai/answerflow/pkg/providers/kmsearch"
)

// kmDocFields is the subset of a knowledge-search hit the metadata join
// needs, decoded from the item's raw JSON so unknown fields are ignored
// rather than rejected.
type kmDocFields struct {
	DocumentID   string              `json:"documentId"`
	PublicID     string              `json:"publicId"`
	Title        string              `json:"title"`
	ThumbnailURL string              `json:"thumbnailUrl"`
	Images       []bus.MetaImage     `json:"images"`
	Navigation   bus.MetaNavigation  `json:"navigation"`
}

// joinMetadata resolves a parser-reported doc-id list against the last
// knowledge-search result set, by documentId or publicId, and builds
// the metadata.items payload. Ids absent from the search results are
// omitted, never fabricated.
func joinMetadata(result parser.MetadataResult, km kmsearch.Result) bus.MetadataData {
	byID := make(map[string]kmDocFields, len(km.Data))
	for _, item := range km.Data {
		var fields kmDocFields
		if err := json.Unmarshal(item.Raw, &fields); err != nil {
			continue
		}
		if fields.DocumentID != "" {
			byID[fields.DocumentID] = fields
		}
		if fields.PublicID != "" {
			byID[fields.PublicID] = fields
		}
	}

	items := make([]bus.MetadataItem, 0, len(result.DocIDs))
	for _, id := range result.DocIDs {
		fields, ok := byID[id]
		if !ok {
			continue
		}
		items = append(items, bus.MetadataItem{
			DocID:        id,
			Title:        fields.Title,
			ThumbnailURL: fields.ThumbnailURL,
			Images:       fields.Images,
			Navigation:   fields.Navigation,
		})
	}
	return bus.MetadataData{Items: items}
}
