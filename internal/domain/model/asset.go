// Package model defines the core domain entities for the asset service.
package model

import (
	"time"
)

// Asset represents a character asset record.
//
// @Description Character asset with its analyzed metadata
type Asset struct {
	ID        string         `bson:"_id,omitempty" json:"id"`
	Name      string         `bson:"name" json:"name"`
	Type      string         `bson:"type" json:"type"`
	ImageURL  string         `bson:"image_url,omitempty" json:"image_url,omitempty"`
	Metadata  *AssetMetadata `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time      `bson:"updated_at" json:"updated_at"`
}

// AssetMetadata is the analyzed description of an asset produced by the
// analyzer capability.
//
// @Description Analyzer output for a single asset
type AssetMetadata struct {
	// Name is the analyzer's best name for the asset.
	Name string `bson:"name,omitempty" json:"name,omitempty" example:"Iron Golem"`
	// Category classifies the asset (character, prop, environment, ...).
	Category string `bson:"category,omitempty" json:"category,omitempty" example:"character"`
	// Description is a short free-text description.
	Description string `bson:"description,omitempty" json:"description,omitempty"`
	// Style is the visual style (realistic, stylized, pixel, ...).
	Style string `bson:"style,omitempty" json:"style,omitempty" example:"stylized"`
	// Tags are searchable labels extracted from the image.
	Tags []string `bson:"tags,omitempty" json:"tags,omitempty"`
	// DominantColors are hex color codes, most dominant first.
	DominantColors []string `bson:"dominant_colors,omitempty" json:"dominant_colors,omitempty"`
}

// Empty reports whether the metadata carries no analyzed content.
func (m AssetMetadata) Empty() bool {
	return m.Name == "" && m.Category == "" && m.Description == "" &&
		m.Style == "" && len(m.Tags) == 0 && len(m.DominantColors) == 0
}
