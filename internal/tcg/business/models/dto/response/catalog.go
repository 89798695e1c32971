package response

import (
	"encoding/json"

	"tcgsync_api/internal/tcg/business/models"
)

// Group is the provider's group (card set) record shape.
type Group struct {
	GroupID        json.Number `json:"groupId"`
	Name           string      `json:"name"`
	Abbreviation   string      `json:"abbreviation"`
	IsSupplemental bool        `json:"isSupplemental"`
	PublishedOn    string      `json:"publishedOn"`
	ModifiedOn     string      `json:"modifiedOn"`
	CategoryID     json.Number `json:"categoryId"`
}

// ToRecord normalizes the group; ok is false when the provider row lacks the
// id or name it must carry.
func (g Group) ToRecord(categoryID string) (models.Record, bool) {
	if g.GroupID.String() == "" || g.Name == "" {
		return models.Record{}, false
	}
	if g.CategoryID.String() != "" {
		categoryID = g.CategoryID.String()
	}
	return models.Record{
		ExternalID: g.GroupID.String(),
		CategoryID: categoryID,
		Name:       g.Name,
		Ext: map[string]interface{}{
			"abbreviation":   g.Abbreviation,
			"isSupplemental": g.IsSupplemental,
			"publishedOn":    g.PublishedOn,
			"modifiedOn":     g.ModifiedOn,
		},
	}, true
}

// ExtendedField is one entry of a product's free-form attribute list.
type ExtendedField struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Value       string `json:"value"`
}

// Product is the provider's product (card) record shape.
type Product struct {
	ProductID    json.Number     `json:"productId"`
	Name         string          `json:"name"`
	CleanName    string          `json:"cleanName"`
	ImageURL     string          `json:"imageUrl"`
	URL          string          `json:"url"`
	GroupID      json.Number     `json:"groupId"`
	CategoryID   json.Number     `json:"categoryId"`
	ModifiedOn   string          `json:"modifiedOn"`
	ExtendedData []ExtendedField `json:"extendedData"`
}

func (p Product) ToRecord(groupID, categoryID string) (models.Record, bool) {
	if p.ProductID.String() == "" || p.Name == "" {
		return models.Record{}, false
	}
	if p.GroupID.String() != "" {
		groupID = p.GroupID.String()
	}
	if p.CategoryID.String() != "" {
		categoryID = p.CategoryID.String()
	}

	ext := map[string]interface{}{
		"cleanName":  p.CleanName,
		"url":        p.URL,
		"imageUrl":   p.ImageURL,
		"modifiedOn": p.ModifiedOn,
	}
	if len(p.ExtendedData) > 0 {
		extended := make(map[string]string, len(p.ExtendedData))
		for _, f := range p.ExtendedData {
			extended[f.Name] = f.Value
		}
		ext["extendedData"] = extended
	}

	return models.Record{
		ExternalID: p.ProductID.String(),
		GroupID:    groupID,
		CategoryID: categoryID,
		Name:       p.Name,
		Ext:        ext,
	}, true
}
