package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/entities"
	domainerrors "lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/errors"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"

	sourceService = "contribution-engine"

	onePendingSessionConstraint = "contribution_sessions_one_pending_per_user"
	pendingSubIDConstraint      = "contribution_items_pending_sub"
)

// Repository implements the store ports on Postgres. Reads outside WithinTx
// run without row locks; the transaction-scoped view locks what it reads.
type Repository struct {
	store
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		store:  store{db: db},
		logger: logger,
	}
}

// Migrate creates or updates the contribution tables and partial indexes.
func (r *Repository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(
		&languageModel{},
		&languageActivityModel{},
		&sessionModel{},
		&itemModel{},
		&preferenceModel{},
		&outboxModel{},
	)
}

// SeedLanguages upserts the language catalog and its activity associations.
func (r *Repository) SeedLanguages(ctx context.Context, languages []entities.Language) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		for _, language := range languages {
			row := languageModel{
				LanguageID: language.LanguageID,
				QID:        language.QID,
				Code:       language.Code,
				Name:       language.Name,
				UpdatedAt:  now,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "language_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"qid", "code", "name", "updated_at"}),
			}).Create(&row).Error; err != nil {
				return err
			}
			for _, activity := range language.Activities {
				activityRow := languageActivityModel{
					LanguageID:  language.LanguageID,
					Activity:    string(activity.Activity),
					VariantCode: activity.VariantCode,
					UpdatedAt:   now,
				}
				if err := tx.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "language_id"}, {Name: "activity"}},
					DoUpdates: clause.AssignmentColumns([]string{"variant_code", "updated_at"}),
				}).Create(&activityRow).Error; err != nil {
					return err
				}
			}
		}
		r.logger.Info("language catalog seeded",
			"event", "contribution_language_seed_completed",
			"module", "lexeme-contribution/contribution-engine",
			"layer", "adapter",
			"language_count", len(languages),
		)
		return nil
	})
}

func (r *Repository) WithinTx(ctx context.Context, fn func(ctx context.Context, repos ports.Repositories) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		scoped := &store{db: tx, locking: true}
		return fn(ctx, ports.Repositories{
			Sessions:    scoped,
			Items:       scoped,
			Languages:   scoped,
			Preferences: scoped,
			Outbox:      scoped,
		})
	})
	if isContention(err) {
		r.logger.Warn("contribution transaction aborted by lock contention",
			"event", "contribution_tx_contention",
			"module", "lexeme-contribution/contribution-engine",
			"layer", "adapter",
			"error", err.Error(),
		)
		return fmt.Errorf("%w: %v", domainerrors.ErrStoreContention, err)
	}
	return err
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toPort())
	}
	return items, nil
}

func (r *Repository) MarkOutboxSent(ctx context.Context, outboxID string, sentAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", outboxID).
		Updates(map[string]any{
			"status":  outboxStatusSent,
			"sent_at": sentAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	return nil
}

// store holds the port implementations shared by the plain and the
// transaction-scoped repository.
type store struct {
	db      *gorm.DB
	locking bool
}

func (s *store) query(ctx context.Context) *gorm.DB {
	tx := s.db.WithContext(ctx)
	if s.locking {
		tx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func (s *store) GetPendingSession(ctx context.Context, userID string) (entities.Session, bool, error) {
	var row sessionModel
	err := s.query(ctx).
		Where("user_id = ? AND status = ?", userID, string(entities.SessionStatusPending)).
		Order("started_at DESC").
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Session{}, false, nil
		}
		return entities.Session{}, false, err
	}
	return row.toEntity(), true, nil
}

func (s *store) GetSession(ctx context.Context, sessionID string) (entities.Session, error) {
	var row sessionModel
	err := s.query(ctx).
		Where("session_id = ?", sessionID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Session{}, domainerrors.ErrNoActiveSession
		}
		return entities.Session{}, err
	}
	return row.toEntity(), nil
}

func (s *store) CreateSession(ctx context.Context, session entities.Session) error {
	row := sessionModelFromEntity(session)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			if constraintName(err) == onePendingSessionConstraint {
				return domainerrors.ErrConcurrentSessionStart
			}
			return domainerrors.ErrRepositoryInvariantBroke
		}
		return err
	}
	return nil
}

func (s *store) EndSession(ctx context.Context, sessionID string, endedAt time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&sessionModel{}).
		Where("session_id = ? AND status = ?", sessionID, string(entities.SessionStatusPending)).
		Updates(map[string]any{
			"status":     string(entities.SessionStatusCompleted),
			"updated_at": endedAt.UTC(),
			"deleted_at": endedAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNoActiveSession
	}
	return nil
}

func (s *store) ListStalePendingSessions(ctx context.Context, startedBefore time.Time, limit int) ([]entities.Session, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []sessionModel
	if err := s.db.WithContext(ctx).
		Where("status = ? AND started_at < ?", string(entities.SessionStatusPending), startedBefore.UTC()).
		Order("started_at ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	sessions := make([]entities.Session, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, row.toEntity())
	}
	return sessions, nil
}

func (s *store) ListSessionItems(ctx context.Context, sessionID string) ([]entities.Item, error) {
	var rows []itemModel
	if err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("ordinal ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	return itemsFromModels(rows), nil
}

func (s *store) ListAllocationBlockers(ctx context.Context, scope ports.AllocationScope) ([]entities.Item, error) {
	var rows []itemModel
	if err := s.query(ctx).
		Where("activity = ? AND language_qid = ? AND status IN ?",
			string(scope.Activity),
			scope.LanguageQID,
			blockingStatuses(),
		).
		Order("item_id ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	return itemsFromModels(rows), nil
}

func (s *store) FindAllocationBlockers(ctx context.Context, scope ports.AllocationScope, subID string) ([]entities.Item, error) {
	var rows []itemModel
	if err := s.query(ctx).
		Where("activity = ? AND sub_id = ? AND status IN ?",
			string(scope.Activity),
			subID,
			blockingStatuses(),
		).
		Order("item_id ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	return itemsFromModels(rows), nil
}

func (s *store) CreateItem(ctx context.Context, item entities.Item) error {
	row := itemModelFromEntity(item)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrRepositoryInvariantBroke
		}
		return err
	}
	return nil
}

func (s *store) GetItem(ctx context.Context, sessionID string, itemID string) (entities.Item, error) {
	return s.getItem(s.db.WithContext(ctx), sessionID, itemID)
}

func (s *store) GetItemForUpdate(ctx context.Context, sessionID string, itemID string) (entities.Item, error) {
	return s.getItem(s.query(ctx), sessionID, itemID)
}

func (s *store) getItem(tx *gorm.DB, sessionID string, itemID string) (entities.Item, error) {
	var row itemModel
	err := tx.
		Where("session_id = ? AND item_id = ?", sessionID, itemID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Item{}, domainerrors.ErrItemNotFound
		}
		return entities.Item{}, err
	}
	return row.toEntity(), nil
}

// UpdateItem only moves pending rows; a row that already left pending reads as
// not found.
func (s *store) UpdateItem(ctx context.Context, item entities.Item) error {
	result := s.db.WithContext(ctx).
		Model(&itemModel{}).
		Where("item_id = ? AND status = ?", item.ItemID, string(entities.ItemStatusPending)).
		Updates(map[string]any{
			"status":     string(item.Status),
			"result":     item.Result,
			"updated_at": item.UpdatedAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrItemNotFound
	}
	return nil
}

// DeleteSessionItems locks the session's rows in item_id order before deleting
// them, the same order allocators lock blockers in.
func (s *store) DeleteSessionItems(ctx context.Context, sessionID string) (int, error) {
	var itemIDs []string
	if err := s.query(ctx).
		Model(&itemModel{}).
		Where("session_id = ?", sessionID).
		Order("item_id ASC").
		Pluck("item_id", &itemIDs).
		Error; err != nil {
		return 0, err
	}
	if len(itemIDs) == 0 {
		return 0, nil
	}
	result := s.db.WithContext(ctx).
		Where("item_id IN ?", itemIDs).
		Delete(&itemModel{})
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}

func (s *store) GetLanguageByCode(ctx context.Context, code string) (entities.Language, error) {
	var row languageModel
	err := s.db.WithContext(ctx).
		Where("code = ?", code).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Language{}, domainerrors.ErrLanguageNotFound
		}
		return entities.Language{}, err
	}

	var activities []languageActivityModel
	if err := s.db.WithContext(ctx).
		Where("language_id = ?", row.LanguageID).
		Order("activity ASC").
		Find(&activities).
		Error; err != nil {
		return entities.Language{}, err
	}
	return row.toEntity(activities), nil
}

func (s *store) ListLanguages(ctx context.Context) ([]entities.Language, error) {
	var rows []languageModel
	if err := s.db.WithContext(ctx).Order("code ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	var activities []languageActivityModel
	if err := s.db.WithContext(ctx).Order("language_id ASC, activity ASC").Find(&activities).Error; err != nil {
		return nil, err
	}
	byLanguage := make(map[string][]languageActivityModel, len(rows))
	for _, activity := range activities {
		byLanguage[activity.LanguageID] = append(byLanguage[activity.LanguageID], activity)
	}

	languages := make([]entities.Language, 0, len(rows))
	for _, row := range rows {
		languages = append(languages, row.toEntity(byLanguage[row.LanguageID]))
	}
	return languages, nil
}

// LockAllocationScope takes the row lock on the language/activity association.
// Allocators of the same pair queue here until the holder commits.
func (s *store) LockAllocationScope(ctx context.Context, languageID string, activity entities.ActivityKind) error {
	var row languageActivityModel
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("language_id = ? AND activity = ?", languageID, string(activity)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainerrors.ErrActivityNotAvailable
		}
		return err
	}
	return nil
}

func (s *store) GetPreference(ctx context.Context, userID string) (entities.Preference, bool, error) {
	var row preferenceModel
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Preference{}, false, nil
		}
		return entities.Preference{}, false, err
	}
	return row.toEntity(), true, nil
}

func (s *store) SavePreference(ctx context.Context, preference entities.Preference) error {
	row := preferenceModel{
		UserID:          preference.UserID,
		LanguageID:      preference.LanguageID,
		LanguageCode:    preference.LanguageCode,
		ActiveActivity:  string(preference.ActiveActivity),
		DisplayLanguage: preference.DisplayLanguage,
		UpdatedAt:       time.Now().UTC(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).
		Create(&row).
		Error
}

func (s *store) ClearActiveActivity(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).
		Model(&preferenceModel{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"active_activity": "",
			"updated_at":      time.Now().UTC(),
		}).
		Error
}

func (s *store) AppendOutbox(ctx context.Context, event ports.ContributionEvent) error {
	envelope, err := buildEnvelope(event)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	row := outboxModel{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    event.OccurredAt.UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrRepositoryInvariantBroke
		}
		return err
	}
	return nil
}

func blockingStatuses() []string {
	return []string{string(entities.ItemStatusPending), string(entities.ItemStatusNoItem)}
}

func itemsFromModels(rows []itemModel) []entities.Item {
	items := make([]entities.Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items
}

func buildEnvelope(event ports.ContributionEvent) (ports.EventEnvelope, error) {
	data := map[string]any{
		"session_id": event.SessionID,
		"user_id":    event.UserID,
		"activity":   string(event.Activity),
		"status":     event.Status,
	}
	if event.ItemID != "" {
		data["item_id"] = event.ItemID
	}
	for key, value := range event.Attributes {
		data[key] = value
	}
	partitionKeyPath := "user_id"
	if event.ItemID != "" {
		partitionKeyPath = "sub_id"
	}
	return newEnvelope(event, partitionKeyPath, data)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// isContention reports deadlock and serialization aborts; the request can be
// retried as is.
func isContention(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "40P01" || pgErr.Code == "40001")
}

func constraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}
