// Package media is the asset catalog feeding the drag palette. The timeline
// core only reads it.
package media

import (
	"fmt"
	"time"

	"github.com/heimdex/timeline-agent/internal/drag"
)

type Type string

const (
	TypeAnimation  Type = "animation"
	TypeExpression Type = "expression"
	TypeAudio      Type = "audio"
	TypeCharacter  Type = "character"
	TypeObject     Type = "object"
	TypeShape      Type = "shape"
)

func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case TypeAnimation, TypeExpression, TypeAudio, TypeCharacter, TypeObject, TypeShape:
		return t, nil
	default:
		return "", fmt.Errorf("unknown media type %q", s)
	}
}

type Item struct {
	ID        string    `json:"media_id"`
	Type      Type      `json:"type"`
	Name      string    `json:"name"`
	Length    float64   `json:"length"`
	Thumbnail string    `json:"thumbnail,omitempty"`
	ObjectID  string    `json:"object_id,omitempty"`
	File      string    `json:"file,omitempty"` // relative to the assets dir
	CreatedAt time.Time `json:"created_at"`
}

// DragItem builds the palette drag payload for the item.
func (i *Item) DragItem() drag.Item {
	return drag.Item{
		Kind:     drag.ItemKind(i.Type),
		MediaID:  i.ID,
		Name:     i.Name,
		ObjectID: i.ObjectID,
		Length:   i.Length,
	}
}
