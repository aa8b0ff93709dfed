package contributionengine

import (
	"log/slog"
	"time"

	httpadapter "lexcontrib/contexts/lexeme-contribution/contribution-engine/adapters/http"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/adapters/memory"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/application/commands"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/application/queries"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/application/workers"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/entities"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/ports"
)

// Module is the composition surface of the contribution engine.
// Runtime wiring consumes Handler; Store and Corpus are set by the in-memory
// constructor for tests and local runs.
type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
	Corpus  *memory.Corpus
}

type Dependencies struct {
	UnitOfWork        ports.UnitOfWork
	Sessions          ports.SessionRepository
	Items             ports.ItemRepository
	Languages         ports.LanguageRepository
	Preferences       ports.PreferenceRepository
	Corpus            ports.CandidateSource
	Clock             ports.Clock
	IDGenerator       ports.IDGenerator
	BatchSize         int
	MaxAttempts       int
	Deadline          time.Duration
	LookupConcurrency int
	Logger            *slog.Logger
}

// NewModule wires the contribution use cases against explicit ports.
func NewModule(deps Dependencies) Module {
	startSession := commands.StartSessionUseCase{
		UnitOfWork:  deps.UnitOfWork,
		Corpus:      deps.Corpus,
		Clock:       deps.Clock,
		IDGenerator: deps.IDGenerator,
		BatchSize:   deps.BatchSize,
		MaxAttempts: deps.MaxAttempts,
		Deadline:    deps.Deadline,
		Logger:      deps.Logger,
	}
	updateItem := commands.UpdateItemUseCase{
		UnitOfWork:  deps.UnitOfWork,
		Corpus:      deps.Corpus,
		Clock:       deps.Clock,
		IDGenerator: deps.IDGenerator,
		Logger:      deps.Logger,
	}
	endSession := commands.EndSessionUseCase{
		UnitOfWork:  deps.UnitOfWork,
		Clock:       deps.Clock,
		IDGenerator: deps.IDGenerator,
		Logger:      deps.Logger,
	}
	getItemDetail := queries.GetItemDetailUseCase{
		Sessions:          deps.Sessions,
		Items:             deps.Items,
		Corpus:            deps.Corpus,
		LookupConcurrency: deps.LookupConcurrency,
		Logger:            deps.Logger,
	}
	getCurrentSession := queries.GetCurrentSessionUseCase{
		Sessions:    deps.Sessions,
		Items:       deps.Items,
		Preferences: deps.Preferences,
		Logger:      deps.Logger,
	}
	listLanguages := queries.ListLanguagesUseCase{
		Languages: deps.Languages,
		Logger:    deps.Logger,
	}

	handler := httpadapter.Handler{
		StartSession:      startSession,
		UpdateItem:        updateItem,
		EndSession:        endSession,
		GetItemDetail:     getItemDetail,
		GetCurrentSession: getCurrentSession,
		ListLanguages:     listLanguages,
		Logger:            deps.Logger,
	}
	return Module{Handler: handler}
}

// SessionExpirer builds the abandoned-session worker on top of the module's
// EndSession use case.
func (m Module) SessionExpirer(sessions ports.SessionRepository, clock ports.Clock, ttl time.Duration, logger *slog.Logger) workers.SessionExpirer {
	return workers.SessionExpirer{
		Sessions:   sessions,
		EndSession: m.Handler.EndSession,
		Clock:      clock,
		TTL:        ttl,
		Logger:     logger,
	}
}

// NewInMemoryModule wires the use cases against in-memory adapters.
func NewInMemoryModule(
	seedLanguages []entities.Language,
	entries []memory.CorpusEntry,
	documents []ports.EntityDocument,
	logger *slog.Logger,
) Module {
	store := memory.NewStore(seedLanguages, logger)
	corpus := memory.NewCorpus(entries, documents)
	module := NewModule(Dependencies{
		UnitOfWork:  store,
		Sessions:    store,
		Items:       store,
		Languages:   store,
		Preferences: store,
		Corpus:      corpus,
		Clock:       store,
		IDGenerator: store,
		Logger:      logger,
	})
	module.Store = store
	module.Corpus = corpus
	return module
}
