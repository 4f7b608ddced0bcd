package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// MessageTemplate is an outreach text with {{cliente}} and {{vendedor}}
// placeholder tokens. Only active templates are used for personalization.
type MessageTemplate struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name   string             `bson:"nome_template" json:"nome_template"`
	Body   string             `bson:"texto" json:"texto"`
	Active bool               `bson:"ativo" json:"ativo"`
}
