package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ImportBatch labels a set of leads imported together. Deactivating a
// batch removes its pending leads from allocation without deleting them.
type ImportBatch struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name       string             `bson:"nome_base" json:"nome_base"`
	ImportedAt time.Time          `bson:"data_importacao" json:"data_importacao"`
	LeadCount  int                `bson:"total_clientes" json:"total_clientes"`
	Active     bool               `bson:"ativa" json:"ativa"`
}
