package agent

import (
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/malbeclabs/hybridqa/pkg/store"
)

// DefaultMaxRepairs is the repair budget callers use when none is configured.
const DefaultMaxRepairs = 2

const (
	defaultRetrieveK    = 6
	defaultBoostK       = 3
	defaultMaxRowChars  = 2000
	defaultModelTimeout = 120 * time.Second
	defaultBoostQuery   = "product policy returns"
)

var defaultPolicyKeywords = []string{"policy", "return window"}

// DefaultHints are the schema-specific generation hints appended to every constraints block.
const DefaultHints = `Schema hints:
- The order line table is "Order Details" and must always be written with double quotes.
- Join path for product sales: Categories -> Products -> "Order Details" -> Orders.
- Dates are stored as text; compare OrderDate against 'YYYY-MM-DD' literals.
- Revenue = SUM(od.UnitPrice * od.Quantity * (1 - od.Discount)) over "Order Details" od.`

// Config holds the configuration for the pipeline.
type Config struct {
	Logger  *slog.Logger
	LLM     LLMClient
	Store   RelationalStore
	Index   TextIndex
	Prompts *Prompts
	Clock   clockwork.Clock

	MaxRepairs   int           // Max repair cycles after a failed execution; 0 disables repairs
	RetrieveK    int           // Fragments fetched for the question (default 6)
	BoostK       int           // Fragments fetched by the policy boost query (default 3)
	BoostQuery   string        // Fixed query used for the policy boost
	MaxRowChars  int           // Serialized row data is truncated to this many characters
	ModelTimeout time.Duration // Per model call

	// PolicyKeywords route a question to the text-only strategy when any appears in it.
	PolicyKeywords []string
	// Hints are appended to the retrieved context to form the constraints text.
	Hints string
	// Tables are the canonical table names, used for schema description, identifier
	// fix-ups and citations.
	Tables []string
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.LLM == nil {
		return errors.New("LLM client is required")
	}
	if cfg.Store == nil {
		return errors.New("store is required")
	}
	if cfg.Index == nil {
		return errors.New("index is required")
	}
	if cfg.Prompts == nil {
		return errors.New("prompts are required")
	}
	if cfg.MaxRepairs < 0 {
		return errors.New("max repairs must not be negative")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.RetrieveK == 0 {
		cfg.RetrieveK = defaultRetrieveK
	}
	if cfg.BoostK == 0 {
		cfg.BoostK = defaultBoostK
	}
	if cfg.BoostQuery == "" {
		cfg.BoostQuery = defaultBoostQuery
	}
	if cfg.MaxRowChars == 0 {
		cfg.MaxRowChars = defaultMaxRowChars
	}
	if cfg.ModelTimeout == 0 {
		cfg.ModelTimeout = defaultModelTimeout
	}
	if len(cfg.PolicyKeywords) == 0 {
		cfg.PolicyKeywords = defaultPolicyKeywords
	}
	if cfg.Hints == "" {
		cfg.Hints = DefaultHints
	}
	if len(cfg.Tables) == 0 {
		cfg.Tables = store.CanonicalTables
	}
	return nil
}
