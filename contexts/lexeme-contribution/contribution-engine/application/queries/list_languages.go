package queries

import (
	"context"
	"log/slog"
	"sort"

	application "lexcontrib/contexts/lexeme-contribution/contribution-engine/application"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/entities"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/ports"
)

type ListLanguagesUseCase struct {
	Languages ports.LanguageRepository
	Logger    *slog.Logger
}

func (u ListLanguagesUseCase) Execute(ctx context.Context) ([]entities.Language, error) {
	logger := application.ResolveLogger(u.Logger)
	languages, err := u.Languages.ListLanguages(ctx)
	if err != nil {
		logger.Error("list languages failed",
			"event", "list_languages_failed",
			"module", application.ModuleName,
			"layer", "application",
			"error", err.Error(),
		)
		return nil, err
	}
	sort.SliceStable(languages, func(i, j int) bool {
		return languages[i].Code < languages[j].Code
	})
	return languages, nil
}
