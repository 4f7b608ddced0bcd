package store

import (
	"go.mongodb.org/mongo-driver/mongo"
)

// Collection names in the bot database. They predate this service and are
// shared with the import/export tooling.
const (
	LeadsCollection     = "clientes"
	AgentsCollection    = "vendedores"
	TemplatesCollection = "mensagens"
	BatchesCollection   = "bases"
)

// Mongo bundles the four document stores over a single database handle.
type Mongo struct {
	Leads     LeadStore
	Agents    AgentStore
	Templates TemplateStore
	Batches   BatchStore
}

// NewMongo creates the store set for the given database.
func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{
		Leads:     NewMongoLeadStore(db.Collection(LeadsCollection)),
		Agents:    NewMongoAgentStore(db.Collection(AgentsCollection)),
		Templates: NewMongoTemplateStore(db.Collection(TemplatesCollection)),
		Batches:   NewMongoBatchStore(db.Collection(BatchesCollection)),
	}
}
